package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/catalogsearch/internal/config"
	"github.com/shopfront/catalogsearch/pkg/version"
)

// workspace isolates HOME and XDG_CONFIG_HOME and writes a config file
// that keeps the index and catalog under a temp dir.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	path := filepath.Join(dir, "test.yaml")
	content := fmt.Sprintf("index:\n  path: %s\ncatalog:\n  path: %s\n",
		filepath.Join(dir, "index"), filepath.Join(dir, "catalog.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return workspace{dir: dir, config: path}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--config", w.config}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{"default", nil, func(t *testing.T, out string) {
			assert.Contains(t, out, "catalogsearch")
			assert.Contains(t, out, version.Version)
			assert.Contains(t, out, "commit")
		}},
		{"short", []string{"--short"}, func(t *testing.T, out string) {
			assert.Equal(t, version.Version+"\n", out)
		}},
		{"json", []string{"--json"}, func(t *testing.T, out string) {
			var info version.BuildInfo
			require.NoError(t, json.Unmarshal([]byte(out), &info))
			assert.Equal(t, version.Version, info.Version)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newVersionCmd()
			buf := &bytes.Buffer{}
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)
			require.NoError(t, cmd.Execute())
			tt.check(t, buf.String())
		})
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "reindex", "search", "index", "config", "logs", "version"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestRootCmd_ProfileFlagsWriteFiles(t *testing.T) {
	w := newWorkspace(t)
	cpu := filepath.Join(w.dir, "cpu.prof")
	heap := filepath.Join(w.dir, "heap.prof")

	_, err := w.run(t, "--profile-cpu", cpu, "--profile-mem", heap, "version", "--short")
	require.NoError(t, err)

	for _, p := range []string{cpu, heap} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSearchCmd_SeededText(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "search", "laptop", "--seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Laptop")
	assert.NotContains(t, out, "Darjeeling")
}

func TestSearchCmd_JSONWithFilters(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "search", "*", "--seed", "--category", "tea", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Data[0].ID)
	assert.Equal(t, int64(4), resp.Data[1].ID)
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "search", "laptop", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "search")
	assert.Error(t, err)
}

func TestReindexThenIndexInfo(t *testing.T) {
	w := newWorkspace(t)

	// Given: a seeded catalog indexed on disk
	out, err := w.run(t, "reindex", "--seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 6 items")

	// When: a later run opens the same index
	out, err = w.run(t, "index", "info", "--json")
	require.NoError(t, err)

	// Then: the documents persisted
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.EqualValues(t, 6, info["document_count"])
	assert.Contains(t, info, "heap_in_use_bytes")

	out, err = w.run(t, "search", "tea")
	require.NoError(t, err)
	assert.Contains(t, out, "Darjeeling")
	assert.Contains(t, out, "Assam")
}

func TestIndexInfo_Text(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "index", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents")
	assert.Contains(t, out, "Cache")
}

func TestConfigCmd_InitForceRestore(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	require.True(t, config.UserConfigExists())

	out, err = w.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = w.run(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")

	out, err = w.run(t, "config", "restore", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, ".bak")

	out, err = w.run(t, "config", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored user configuration")
}

func TestConfigCmd_RestoreWithoutBackups(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "config", "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config backups")
}

func TestConfigCmd_ShowJSON(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "config", "show", "--json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, filepath.Join(w.dir, "index"), cfg.Index.Path)
	assert.Equal(t, filepath.Join(w.dir, "catalog.db"), cfg.Catalog.Path)
}

func TestConfigCmd_Path(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath()+"\n", out)
}

func TestLogsCmd_FiltersFile(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(w.dir, "server.log")
	lines := `{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"server_started","addr":":8080"}
{"time":"2026-01-02T10:00:01Z","level":"ERROR","msg":"index_commit_failed","op":"reindex_all"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	out, err := w.run(t, "logs", "--file", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "server_started")
	assert.Contains(t, out, "index_commit_failed")

	out, err = w.run(t, "logs", "--file", path, "--level", "error", "--no-color")
	require.NoError(t, err)
	assert.NotContains(t, out, "server_started")
	assert.Contains(t, out, "index_commit_failed")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "logs", "--file", filepath.Join(w.dir, "absent.log"))
	assert.Error(t, err)
}

func TestServe_ServesAndShutsDown(t *testing.T) {
	w := newWorkspace(t)
	cfg, err := config.Load(w.dir, w.config)
	require.NoError(t, err)
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.LogLevel = "error"

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, serveOptions{seed: true}, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"documents":6`)

	resp, err = http.Get("http://" + addr + "/api/items/search?q=lamp")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Desk Lamp")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeOptions_ApplyOnlyChangedFlags(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--addr", ":9999"}))

	cfg := config.NewConfig()
	before := cfg.Index.Path
	opts := serveOptions{addr: ":9999"}
	opts.apply(cmd, cfg)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, before, cfg.Index.Path)
}
