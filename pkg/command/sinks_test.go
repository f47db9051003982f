package command

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	sink, err := OpenFileSink(path)
	require.NoError(t, err)

	cmd := newContext(alice, "ls", []any{"/tempZone"}, time.Now())
	require.NoError(t, sink.Append(context.Background(), cmd))
	require.NoError(t, sink.Append(context.Background(), newPerf(cmd, 5*time.Millisecond, false)))
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "ls", first["command"])
	assert.Equal(t, cmd.ID.String(), first["id"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, float64(5), second["elapsed_ms"])
	assert.Equal(t, false, second["had_errors"])
}

func TestFileSink_SharedPathConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.log")

	const sinks, perSink = 4, 50
	var wg sync.WaitGroup
	for range sinks {
		sink, err := OpenFileSink(path)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sink.Close()
			for j := range perSink {
				cmd := newContext(alice, "op", []any{j}, time.Now())
				assert.NoError(t, sink.Append(context.Background(), newPerf(cmd, time.Millisecond, false)))
			}
		}()
	}
	wg.Wait()

	lines := readLines(t, path)
	require.Len(t, lines, sinks*perSink)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "corrupt line %q", line)
	}
}

func TestFileSink_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	cmd := newContext(alice, "rm", nil, time.Now())
	require.NoError(t, sink.Append(context.Background(), newFailure(cmd, errors.New("x"), nil, true)))
	require.NoError(t, sink.Close())

	assert.Len(t, readLines(t, path), 2)
}

func TestFileSink_CloseIsIdempotent(t *testing.T) {
	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "a.log"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestFileSink_MissingDirectory(t *testing.T) {
	_, err := OpenFileSink(filepath.Join(t.TempDir(), "missing", "a.log"))
	assert.Error(t, err)
}

func TestOpenSinks(t *testing.T) {
	dir := t.TempDir()
	sinks, err := OpenSinks(LogPaths{Access: filepath.Join(dir, "access.log")})
	require.NoError(t, err)
	defer sinks.Close()

	assert.IsType(t, &FileSink{}, sinks.Access)
	assert.IsType(t, LoggerSink{}, sinks.Performance)
	assert.IsType(t, LoggerSink{}, sinks.Error)

	_, err = OpenSinks(LogPaths{Error: filepath.Join(dir, "nope", "error.log")})
	assert.Error(t, err)
}

func TestGateway_FileSinksEndToEnd(t *testing.T) {
	dir := t.TempDir()
	paths := LogPaths{
		Access:      filepath.Join(dir, "access.log"),
		Performance: filepath.Join(dir, "perf.log"),
		Error:       filepath.Join(dir, "error.log"),
	}
	sinks, err := OpenSinks(paths)
	require.NoError(t, err)
	g := NewGateway(sinks)

	_ = Do(context.Background(), g, alice, "ok", nil, func(context.Context) error { return nil })
	_ = Do(context.Background(), g, alice, "bad", nil, func(context.Context) error { return errMissing })
	require.NoError(t, sinks.Close())

	assert.Len(t, readLines(t, paths.Access), 2)
	assert.Len(t, readLines(t, paths.Performance), 2)
	errLines := readLines(t, paths.Error)
	require.Len(t, errLines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(errLines[0]), &rec))
	assert.Equal(t, "bad", rec["command"])
	assert.Equal(t, "missing", rec["message"])
}

func TestErrorTypeName(t *testing.T) {
	type custom struct{ error }
	base := &custom{errors.New("x")}

	assert.Equal(t, "", ErrorTypeName(nil))
	assert.Equal(t, "*command.custom", ErrorTypeName(base))
	assert.Equal(t, "*command.custom", ErrorTypeName(errorsWrap(base)))
}

func errorsWrap(err error) error {
	return errors.Join(err)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}
