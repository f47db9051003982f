package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
host = localhost
port = 1247
zone = tempZone
resource = demoResc
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func problemsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Problems
}

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimal))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 1247, cfg.Port)
	assert.Equal(t, "tempZone", cfg.Zone)
	assert.Equal(t, "demoResc", cfg.Resource)
	assert.Equal(t, "CS_NEG_DONT_CARE", cfg.SSLPolicy)
	assert.Equal(t, "STANDARD", cfg.AuthScheme)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Backend.Catalog.Type)
	assert.Equal(t, "memory", cfg.Backend.Content.Type)
	assert.False(t, cfg.HasSystemAccount())

	acct := cfg.Account("alice", "secret")
	assert.Equal(t, grid.Account{
		Host:            "localhost",
		Port:            1247,
		Zone:            "tempZone",
		Username:        "alice",
		Password:        "secret",
		DefaultResource: "demoResc",
		AuthScheme:      grid.AuthStandard,
		SSLPolicy:       grid.SSLDontCare,
	}, acct)
	assert.Equal(t, "/tempZone/home/alice", acct.Home())

	_, err = cfg.SystemAccount()
	assert.ErrorIs(t, err, ErrNoSystemAccount)
}

func TestParse_AllOptionalKeys(t *testing.T) {
	dir := t.TempDir()
	body := minimal + `
sslPolicy = cs_neg_require
authScheme = pam
systemUsername = rods
systemPassword = rodspass
accessLogPath = ` + filepath.Join(dir, "access.log") + `
performanceLogPath = ` + filepath.Join(dir, "perf.log") + `
errorLogPath = ` + filepath.Join(dir, "error.log") + `
logLevel = debug
`
	cfg, err := Parse(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "CS_NEG_REQUIRE", cfg.SSLPolicy)
	assert.Equal(t, "PAM", cfg.AuthScheme)
	assert.Equal(t, "DEBUG", cfg.LogLevel)

	sys, err := cfg.SystemAccount()
	require.NoError(t, err)
	assert.Equal(t, "rods", sys.Username)
	assert.Equal(t, "rodspass", sys.Password)
	assert.Equal(t, grid.SSLRequire, sys.SSLPolicy)

	paths := cfg.LogPaths()
	assert.Equal(t, filepath.Join(dir, "access.log"), paths.Access)
	assert.Equal(t, filepath.Join(dir, "perf.log"), paths.Performance)
	assert.Equal(t, filepath.Join(dir, "error.log"), paths.Error)
}

func TestParse_ReportsEveryMissingKey(t *testing.T) {
	_, err := Parse(strings.NewReader("# nothing here\n"))
	problems := problemsOf(t, err)

	assert.ElementsMatch(t, []string{
		"host: required key is missing",
		"port: required key is missing",
		"zone: required key is missing",
		"resource: required key is missing",
	}, problems)
	assert.Contains(t, err.Error(), "4 problems")
}

func TestParse_ReportsEveryMalformedValue(t *testing.T) {
	body := `
host = localhost
port = abc
zone = tempZone
resource = demoResc
sslPolicy = sometimes
authScheme = magic
logLevel = loud
systemUsername = rods
accessLogPath = /definitely/not/here/access.log
`
	_, err := Parse(strings.NewReader(body))
	problems := problemsOf(t, err)
	joined := strings.Join(problems, "\n")

	assert.Len(t, problems, 6, joined)
	assert.Contains(t, joined, `port: "abc" is not a number`)
	assert.Contains(t, joined, `sslPolicy: "SOMETIMES" is not one of CS_NEG_REFUSE, CS_NEG_REQUIRE, CS_NEG_DONT_CARE`)
	assert.Contains(t, joined, `authScheme: "MAGIC"`)
	assert.Contains(t, joined, `logLevel: "LOUD"`)
	assert.Contains(t, joined, "systemPassword: required when systemUsername is set")
	assert.Contains(t, joined, "accessLogPath: parent directory of /definitely/not/here/access.log does not exist")
}

func TestParse_OverflowingNumberIsReportedWithOthers(t *testing.T) {
	_, err := Parse(strings.NewReader("port = 99999999999999999999\nsslPolicy = bogus\n"))
	problems := problemsOf(t, err)
	joined := strings.Join(problems, "\n")

	assert.Contains(t, joined, `port: "99999999999999999999" is out of range`)
	assert.Contains(t, joined, `sslPolicy: "BOGUS"`)
	assert.Contains(t, joined, "host:")
	assert.Contains(t, joined, "zone:")
	assert.Contains(t, joined, "resource:")
	assert.NotContains(t, joined, "port: required")
}

func TestParse_CommandRateLimit(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimal + "commandRateLimit = 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.CommandRateLimit)
	assert.Equal(t, 50, cfg.CommandBurst)

	cfg, err = Parse(strings.NewReader(minimal + "commandRateLimit = 50\ncommandBurst = 80\n"))
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.CommandBurst)

	_, err = Parse(strings.NewReader(minimal + "commandRateLimit = fast\ncommandBurst = -1\n"))
	problems := problemsOf(t, err)
	assert.ElementsMatch(t, []string{
		`commandRateLimit: "fast" is not a number`,
		"commandBurst: -1 is below the minimum 0",
	}, problems)
}

func TestParse_PortRange(t *testing.T) {
	tests := []struct {
		port string
		want string
	}{
		{"0", "port: required key is missing"},
		{"70000", "port: 70000 exceeds the maximum 65535"},
		{"-1", "port: -1 is below the minimum 1"},
	}
	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			body := strings.Replace(minimal, "port = 1247", "port = "+tt.port, 1)
			_, err := Parse(strings.NewReader(body))
			assert.Equal(t, []string{tt.want}, problemsOf(t, err))
		})
	}
}

func TestParse_Backends(t *testing.T) {
	_, err := Parse(strings.NewReader(minimal + "backend.catalog.type = badger\n"))
	assert.Equal(t, []string{"backend.catalog.path: required when backend.catalog.type is badger"}, problemsOf(t, err))

	_, err = Parse(strings.NewReader(minimal + "backend.content.type = s3\n"))
	assert.ElementsMatch(t, []string{
		"backend.s3.bucket: required when backend.content.type is s3",
		"backend.s3.region: required when backend.content.type is s3",
	}, problemsOf(t, err))

	_, err = Parse(strings.NewReader(minimal + "backend.content.type = fs\n"))
	assert.Equal(t, []string{"backend.content.path: required when backend.content.type is fs"}, problemsOf(t, err))

	_, err = Parse(strings.NewReader(minimal + "backend.content.type = tape\n"))
	assert.Len(t, problemsOf(t, err), 1)

	cfg, err := Parse(strings.NewReader(minimal + `
backend.catalog.type = BADGER
backend.catalog.path = /var/lib/gridgate
backend.content.type = s3
backend.s3.bucket = grid
backend.s3.region = eu-north-1
backend.s3.accessKeyId = AKIA
backend.s3.secretAccessKey = shh
`))
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend.Catalog.Type)

	opts, err := decodeS3Options(cfg.Backend.S3)
	require.NoError(t, err)
	assert.Equal(t, "grid", opts.Bucket)
	assert.Equal(t, "eu-north-1", opts.Region)
	assert.Equal(t, "AKIA", opts.AccessKeyID)
	assert.Equal(t, "shh", opts.SecretAccessKey)
}

func TestParse_ConflictingKeys(t *testing.T) {
	_, err := Parse(strings.NewReader(minimal + "backend.catalog = badger\nbackend.catalog.path = /x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GRIDGATE_ZONE", "otherZone")
	t.Setenv("GRIDGATE_BACKEND_CATALOG_TYPE", "badger")
	t.Setenv("GRIDGATE_BACKEND_CATALOG_PATH", "/tmp/catalog")

	body := strings.Replace(minimal, "resource = demoResc", "", 1)
	t.Setenv("GRIDGATE_RESOURCE", "envResc")

	cfg, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "otherZone", cfg.Zone)
	assert.Equal(t, "envResc", cfg.Resource)
	assert.Equal(t, "badger", cfg.Backend.Catalog.Type)
	assert.Equal(t, "/tmp/catalog", cfg.Backend.Catalog.Path)
}

func TestLoad_SearchOrder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), FileName)
	invalid := writeConfig(t, t.TempDir(), "host = localhost\n")
	valid := writeConfig(t, t.TempDir(), minimal)
	other := writeConfig(t, t.TempDir(), strings.Replace(minimal, "tempZone", "otherZone", 1))

	cfg, err := Load(missing, invalid, valid, other)
	require.NoError(t, err)
	assert.Equal(t, "tempZone", cfg.Zone)

	_, err = Load(missing, invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing+": not found")
	assert.Contains(t, err.Error(), invalid+": invalid configuration")
	assert.False(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimal)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.properties"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultSearchPaths(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform directory differs")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	assert.Equal(t, []string{
		FileName,
		"/etc/gridgate/" + FileName,
		filepath.Join(xdg, "gridgate", FileName),
	}, DefaultSearchPaths())
}

func TestLoader_LoadsOnce(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimal)
	l := NewLoader(path)
	assert.False(t, l.Loaded())

	var wg sync.WaitGroup
	results := make([]*Configuration, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := l.Get()
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	wg.Wait()
	assert.True(t, l.Loaded())
	for _, cfg := range results {
		assert.Same(t, results[0], cfg)
	}

	require.NoError(t, os.Remove(path))
	cfg, err := l.Get()
	require.NoError(t, err)
	assert.Same(t, results[0], cfg)
}

func TestLoader_RemembersFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	l := NewLoader(path)

	_, err := l.Get()
	require.Error(t, err)
	assert.True(t, l.Loaded())

	writeConfig(t, dir, minimal)
	_, again := l.Get()
	assert.Equal(t, err, again)
}

func TestRendering_RedactsSecrets(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimal + `
systemUsername = rods
systemPassword = rodspass
backend.content.type = s3
backend.s3.bucket = grid
backend.s3.region = eu-north-1
backend.s3.secretAccessKey = shh
`))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "host: localhost")
	assert.Contains(t, out, "systemUsername: rods")
	assert.NotContains(t, out, "rodspass")
	assert.NotContains(t, out, "shh")
	assert.Equal(t, "rodspass", cfg.SystemPassword)

	props := cfg.Properties()
	assert.Contains(t, props, "zone = tempZone")
	assert.NotContains(t, props, "rodspass")
	assert.NotContains(t, props, "shh")

	back, err := Parse(strings.NewReader(props))
	require.NoError(t, err)
	assert.Equal(t, cfg.Zone, back.Zone)
	assert.Equal(t, cfg.Backend.Content.Type, back.Backend.Content.Type)
	assert.Equal(t, "grid", back.Backend.S3["bucket"])
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", FileName)
	require.NoError(t, WriteSample(path, false))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tempZone", cfg.Zone)
	assert.True(t, cfg.HasSystemAccount())

	assert.Error(t, WriteSample(path, false))
	assert.NoError(t, WriteSample(path, true))
}
