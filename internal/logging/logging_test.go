package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	assert.Contains(t, DefaultLogDir(), ".catalogsearch")
	assert.Equal(t, "server.log", filepath.Base(DefaultLogPath()))
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "info", def.Level)
	assert.Empty(t, def.FilePath)
	assert.True(t, def.WriteToStderr)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.Equal(t, DefaultLogPath(), dbg.FilePath)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	var stderr bytes.Buffer

	logger, cleanup, err := setup(Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}, &stderr)
	require.NoError(t, err)
	logger.Debug("index_commit", "ops", 3)
	cleanup()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	e := ParseLine(strings.TrimSpace(string(raw)))
	assert.True(t, e.Valid)
	assert.Equal(t, "index_commit", e.Msg)
	assert.Equal(t, float64(3), e.Attrs["ops"])
	assert.Empty(t, stderr.String(), "stderr disabled")
}

func TestSetup_StderrWhenNoFile(t *testing.T) {
	var stderr bytes.Buffer

	logger, cleanup, err := setup(Config{Level: "warn"}, &stderr)
	require.NoError(t, err)
	defer cleanup()
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, stderr.String(), "dropped")
	assert.Contains(t, stderr.String(), `"msg":"kept"`)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG", "DEBUG": "DEBUG", "info": "INFO", "warn": "WARN",
		"warning": "WARN", "error": "ERROR", " Error ": "ERROR", "bogus": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in).String(), in)
	}
}

func TestFindLogFile(t *testing.T) {
	_, err := FindLogFile("/nonexistent/log.log")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	found, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t,
		`{"time":"2026-01-15T10:00:00Z","level":"DEBUG","msg":"m1"}`,
		`{"time":"2026-01-15T10:01:00Z","level":"INFO","msg":"m2"}`,
		`not json`,
		`{"time":"2026-01-15T10:03:00Z","level":"ERROR","msg":"m4"}`,
		`{"time":"2026-01-15T10:04:00Z","level":"INFO","msg":"m5"}`,
	)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	got, err := v.Tail(path, 3)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.False(t, got[0].Valid)
	assert.Equal(t, "m4", got[1].Msg)
	assert.Equal(t, "m5", got[2].Msg)
}

func TestViewer_Filters(t *testing.T) {
	path := writeLog(t,
		`{"time":"2026-01-15T10:00:00Z","level":"DEBUG","msg":"search_executed"}`,
		`{"time":"2026-01-15T10:01:00Z","level":"WARN","msg":"search_degraded"}`,
		`{"time":"2026-01-15T10:02:00Z","level":"ERROR","msg":"index_commit_failed"}`,
	)

	byLevel := NewViewer(ViewerConfig{Level: "warn"}, &bytes.Buffer{})
	got, err := byLevel.Tail(path, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	byPattern := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`search_`)}, &bytes.Buffer{})
	got, err = byPattern.Tail(path, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestViewer_Format(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)
	e := ParseLine(`{"time":"2026-01-15T10:00:00.123Z","level":"INFO","msg":"reindex_complete","documents":6,"b":"x"}`)

	v.Print([]Entry{e, ParseLine("raw text")})

	assert.Equal(t, "10:00:00.123 INFO  reindex_complete b=x documents=6\nraw text\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, `{"level":"INFO","msg":"old"}`)
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan Entry, 1)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end before appending.
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"level":"INFO","msg":"new"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-entries:
		assert.Equal(t, "new", e.Msg)
	case <-ctx.Done():
		t.Fatal("no entry followed")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 0; i < 5; i++ {
		_, err := fmt.Fprintf(w, "line %d\n", i)
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line 4\n", string(current))
	prev, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "line 3\n", string(prev))
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.log")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("b\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(raw))
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(path, 10, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, strings.Count(string(raw), "\n"))
}
