package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/gridfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a persistent grid (badger catalog, fs content) described by a
// configuration file, so state survives between command invocations.
type fixture struct {
	dir    string
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	body := strings.Join([]string{
		"host = localhost",
		"port = 1247",
		"zone = tempZone",
		"resource = demoResc",
		"systemUsername = rods",
		"systemPassword = rodspass",
		"logLevel = ERROR",
		"accessLogPath = " + filepath.Join(dir, "access.log"),
		"performanceLogPath = " + filepath.Join(dir, "performance.log"),
		"errorLogPath = " + filepath.Join(dir, "error.log"),
		"backend.catalog.type = badger",
		"backend.catalog.path = " + filepath.Join(dir, "catalog"),
		"backend.content.type = fs",
		"backend.content.path = " + filepath.Join(dir, "content"),
		"",
	}, "\n")
	path := filepath.Join(dir, "gridgate.properties")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return &fixture{dir: dir, config: path}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	require.NoError(t, err, "gridgate %s", strings.Join(args, " "))
	return out
}

func TestFilesWorkflow(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "mkdir", "docs/reports")
	require.ErrorIs(t, err, gridfs.ErrIllegalArgument)
	assert.Contains(t, err.Error(), "Missing recursive flag?")

	f.mustRun(t, "mkdir", "-p", "docs/reports")
	assert.Equal(t, "docs\n", f.mustRun(t, "ls"))

	local := filepath.Join(f.dir, "report.txt")
	require.NoError(t, os.WriteFile(local, []byte("quarterly numbers"), 0600))

	f.mustRun(t, "put", local, "docs/reports/q1.txt")
	_, err = f.run(t, "put", local, "docs/reports/q1.txt")
	assert.ErrorIs(t, err, gridfs.ErrAlreadyExists)
	f.mustRun(t, "put", "--force", local, "docs/reports/q1.txt")

	assert.Equal(t, "q1.txt\n", f.mustRun(t, "ls", "/tempZone/home/rods/docs/reports"))
	assert.Equal(t, "quarterly numbers", f.mustRun(t, "cat", "docs/reports/q1.txt"))
	assert.Equal(t, "true\n", f.mustRun(t, "exists", "docs/reports/q1.txt"))
	assert.Equal(t, "false\n", f.mustRun(t, "exists", "docs/missing.txt"))
	assert.Contains(t, f.mustRun(t, "stat", "docs/reports/q1.txt"), "data-object")

	sum := strings.TrimSpace(f.mustRun(t, "checksum", "docs/reports/q1.txt"))
	assert.NotEmpty(t, sum)
	assert.Equal(t, "ok\n", f.mustRun(t, "verify", local, "docs/reports/q1.txt"))

	copyPath := filepath.Join(f.dir, "copy.txt")
	f.mustRun(t, "get", "docs/reports/q1.txt", copyPath)
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(data))

	_, err = f.run(t, "cat", "docs/reports/nope.txt")
	require.ErrorIs(t, err, gridfs.ErrNotFound)
	assert.Equal(t, exitNotFound, exitCode(err))

	_, err = f.run(t, "rm", "docs")
	assert.ErrorContains(t, err, "not empty")

	f.mustRun(t, "rm", "docs/reports/q1.txt")
	f.mustRun(t, "rmdir", "docs")
	assert.Equal(t, "", f.mustRun(t, "ls"))

	access, err := os.ReadFile(filepath.Join(f.dir, "access.log"))
	require.NoError(t, err)
	assert.Contains(t, string(access), `"command":"createDirectory"`)
	errs, err := os.ReadFile(filepath.Join(f.dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), `"expected":true`)
}

func TestAdministrationWorkflow(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, "user", "add", "alice")
	_, err := f.run(t, "user", "add", "alice")
	assert.Equal(t, exitAlreadyExists, exitCode(err))
	f.mustRun(t, "user", "passwd", "alice", "secret")
	assert.Equal(t, "true\n", f.mustRun(t, "user", "exists", "alice"))

	f.mustRun(t, "group", "add", "lab")
	f.mustRun(t, "group", "adduser", "lab", "alice")
	assert.Equal(t, "alice\n", f.mustRun(t, "group", "members", "lab"))
	_, err = f.run(t, "group", "del", "lab")
	assert.ErrorIs(t, err, gridfs.ErrCollectionNotEmpty)
	f.mustRun(t, "group", "rmuser", "lab", "alice")
	f.mustRun(t, "group", "del", "lab")

	local := filepath.Join(f.dir, "shared.txt")
	require.NoError(t, os.WriteFile(local, []byte("shared"), 0600))
	f.mustRun(t, "put", local, "shared.txt")

	assert.Equal(t, "NONE\n", f.mustRun(t, "perm", "get", "shared.txt", "alice"))
	f.mustRun(t, "perm", "grant", "shared.txt", "read", "alice")
	assert.Equal(t, "READ\n", f.mustRun(t, "perm", "get", "shared.txt", "alice"))
	assert.Equal(t, "OWN\n", f.mustRun(t, "perm", "get", "shared.txt"))

	assert.Equal(t, "shared", f.mustRun(t, "--user", "alice", "--password", "secret",
		"cat", "/tempZone/home/rods/shared.txt"))

	f.mustRun(t, "perm", "revoke", "shared.txt", "alice")
	assert.Equal(t, "NONE\n", f.mustRun(t, "perm", "get", "shared.txt", "alice"))

	f.mustRun(t, "--user", "alice", "--password", "secret", "passwd", "secret", "better")
	_, err = f.run(t, "--user", "alice", "--password", "secret", "ls")
	assert.Error(t, err)
	f.mustRun(t, "--user", "alice", "--password", "better", "ls")

	f.mustRun(t, "user", "del", "alice")
	assert.Equal(t, "false\n", f.mustRun(t, "user", "exists", "alice"))
}

func TestConfigCommands(t *testing.T) {
	f := newFixture(t)

	out := f.mustRun(t, "config", "show")
	assert.Contains(t, out, "zone: tempZone")
	assert.NotContains(t, out, "rodspass")

	out = f.mustRun(t, "config", "show", "-o", "properties")
	assert.Contains(t, out, "backend.catalog.type = badger")

	_, err := f.run(t, "config", "show", "-o", "xml")
	assert.Error(t, err)

	sample := filepath.Join(f.dir, "sample", "gridgate.properties")
	f.mustRun(t, "config", "init", sample)
	_, err = f.run(t, "config", "init", sample)
	assert.Error(t, err)
	f.mustRun(t, "config", "init", "--force", sample)
}

func TestMetricsTextfile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "gridgate.prom")

	f.mustRun(t, "--metrics", path, "mkdir", "data")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gridgate_commands_total")
}

func TestMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridgate.properties")
	require.NoError(t, os.WriteFile(path, []byte("host = localhost\nport = 1247\nzone = tempZone\nresource = demoResc\n"), 0600))

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "ls"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "no system account configured")
}

func TestGarbageCollection(t *testing.T) {
	f := newFixture(t)

	local := filepath.Join(f.dir, "kept.txt")
	require.NoError(t, os.WriteFile(local, []byte("kept"), 0600))
	f.mustRun(t, "put", local, "kept.txt")

	orphan := filepath.Join(f.dir, "content", "left-behind")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0600))

	out := f.mustRun(t, "gc", "--dry-run")
	assert.Contains(t, out, "left-behind\n")
	assert.Contains(t, out, "orphaned=1 deleted=0")
	assert.FileExists(t, orphan)

	out = f.mustRun(t, "gc")
	assert.Contains(t, out, "orphaned=1 deleted=1")
	assert.NoFileExists(t, orphan)

	assert.Equal(t, "kept", f.mustRun(t, "cat", "kept.txt"))
}
