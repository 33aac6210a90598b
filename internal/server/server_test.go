package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"font-metrics/internal/domain"
)

func testConfig() domain.RunConfig {
	return domain.RunConfig{ServerPort: 0}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// TestStartServesMeasurementPage checks the embedded page is served at "/".
func TestStartServesMeasurementPage(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	s := New()
	require.NoError(t, s.Start(context.Background(), testConfig()))
	defer s.Stop()

	require.True(t, s.Running())
	status, body := get(t, s.URL())
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `<canvas id="canvas"`)
}

// TestStartIsIdempotent checks a second Start does not rebind.
func TestStartIsIdempotent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	binds := 0
	s := New()
	s.listen = func(network, address string) (net.Listener, error) {
		binds++
		return net.Listen(network, address)
	}

	require.NoError(t, s.Start(context.Background(), testConfig()))
	defer s.Stop()
	url := s.URL()
	require.NoError(t, s.Start(context.Background(), testConfig()))

	if binds != 1 {
		t.Fatalf("binds = %d, want 1", binds)
	}
	if s.URL() != url {
		t.Fatalf("url = %q, want %q", s.URL(), url)
	}
}

// TestStartReportsBindError checks an occupied port surfaces ServerBindError.
func TestStartReportsBindError(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	s := New()
	err = s.Start(context.Background(), domain.RunConfig{ServerPort: port})

	var bindErr *domain.ServerBindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("error = %v (%T), want *domain.ServerBindError", err, err)
	}
	if bindErr.Port != port {
		t.Fatalf("port = %d, want %d", bindErr.Port, port)
	}
	if s.Running() {
		t.Fatal("server should not be running after a bind failure")
	}
}

// TestStopWithoutStartIsNoop checks Stop is safe on a fresh server.
func TestStopWithoutStartIsNoop(t *testing.T) {
	s := New()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.URL() != "" {
		t.Fatalf("url = %q, want empty", s.URL())
	}
}

// TestAdditionalMountServesFilesInsideRootOnly checks alias mounts and
// traversal protection.
func TestAdditionalMountServesFilesInsideRootOnly(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "x.woff"), []byte("font-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0o644))

	cfg := testConfig()
	cfg.AdditionalMounts = []domain.Mount{{Alias: "fonts/", LocalPath: assets}}
	s := New()
	require.NoError(t, s.Start(context.Background(), cfg))
	defer s.Stop()

	status, body := get(t, s.URL()+"fonts/x.woff")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "font-bytes", body)

	status, body = get(t, s.URL()+"fonts/%2e%2e/secret.txt")
	assert.NotEqual(t, http.StatusOK, status)
	assert.NotContains(t, body, "secret")
}

// TestPublishServesLocalFile checks published font files are reachable.
func TestPublishServesLocalFile(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	file := filepath.Join(t.TempDir(), "Custom.TTF")
	require.NoError(t, os.WriteFile(file, []byte("ttf"), 0o644))

	s := New()
	require.NoError(t, s.Start(context.Background(), testConfig()))
	defer s.Stop()

	urlPath, err := s.Publish(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(urlPath, PublishedPrefix))
	assert.True(t, strings.HasSuffix(urlPath, ".ttf"))

	status, body := get(t, strings.TrimSuffix(s.URL(), "/")+urlPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ttf", body)

	status, _ = get(t, s.URL()+"_fonts/unknown.ttf")
	assert.Equal(t, http.StatusNotFound, status)
}

// TestCustomPageDir checks a configured page directory replaces the
// embedded page.
func TestCustomPageDir(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.server")
	defer teardown()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte(`<html><body><canvas id="canvas"></canvas><p>custom</p></body></html>`), 0o644))

	cfg := testConfig()
	cfg.PageDir = dir
	s := New()
	require.NoError(t, s.Start(context.Background(), cfg))
	defer s.Stop()

	_, body := get(t, s.URL())
	assert.Contains(t, body, "custom")
}

// TestCheckPage checks the drawing surface detection.
func TestCheckPage(t *testing.T) {
	embedded, err := PageFS("")
	require.NoError(t, err)
	assert.NoError(t, CheckPage(embedded))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte(`<html><body><canvas id="other"></canvas><div id="canvas"></div></body></html>`), 0o644))
	custom, err := PageFS(dir)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckPage(custom), ErrNoSurface)

	_, err = PageFS(filepath.Join(dir, "index.html"))
	assert.Error(t, err)
}

// TestMountPrefix checks alias normalization.
func TestMountPrefix(t *testing.T) {
	for alias, want := range map[string]string{
		"fonts":         "/fonts/",
		"/fonts/":       "/fonts/",
		" /a/b ":        "/a/b/",
		"/x/../../etc/": "/etc/",
		"/":             "/",
	} {
		if got := MountPrefix(alias); got != want {
			t.Errorf("MountPrefix(%q) = %q, want %q", alias, got, want)
		}
	}
}
