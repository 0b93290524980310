package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dictgen/internal/config"
)

func newWordServer(t *testing.T) *httptest.Server {
	t.Helper()
	words := []string{"cherry", "apple", "banana"}
	var next atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		word := words[int(next.Add(1)-1)%len(words)]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"word":%q,"definition":"def of %s","pronunciation":"%s-ish"}]`, word, word, word)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(words string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 8888, ShutdownTimeoutSeconds: 5},
		Limiter: config.LimiterConfig{MaxConcurrentRequests: 2},
		Fetch: config.FetchConfig{
			URL:            words,
			TimeoutSeconds: 5,
			MaxWordCount:   100,
			UserAgent:      "dictgen-test",
		},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Events:  config.EventsConfig{Sink: config.SinkLog, BufferSize: 16},
	}
}

func startApp(t *testing.T, cfg *config.Config) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	app, err := Build(context.Background(), cfg,
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	return base, cancel, done
}

func TestAppGeneratesDictionaryEndToEnd(t *testing.T) {
	words := newWordServer(t)
	base, cancel, done := startApp(t, testConfig(words.URL))

	body := bytes.NewBufferString(`{"dict_name":"fruit","word_count":3}`)
	resp, err := http.Post(base+"/api/v1/dict/generate", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/dict/fruit/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got map[string]any
		if json.NewDecoder(resp.Body).Decode(&got) != nil {
			return false
		}
		return got["status"] == "Completed"
	}, 3*time.Second, 10*time.Millisecond)

	resp, err = http.Get(base + "/api/v1/dict/fruit/statistics")
	require.NoError(t, err)
	var stats struct {
		Stats map[string]int `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, stats.Stats)

	resp, err = http.Get(base + "/api/v1/dict/fruit/download")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "apple: apple-ish, def of apple\nbanana: banana-ish, def of banana\ncherry: cherry-ish, def of cherry", buf.String())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestAppRestoresLocalArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.txt"),
		[]byte("apple: ap, a fruit\nbanana: ba, long\ncherry: ch, small\n"), 0o600))

	cfg := testConfig("http://127.0.0.1:1/unused")
	cfg.Storage = config.StorageConfig{Backend: config.BackendLocal, Local: config.LocalConfig{BaseDir: dir}}
	cfg.Events.Sink = config.SinkNone
	base, cancel, done := startApp(t, cfg)
	defer func() {
		cancel()
		<-done
	}()

	resp, err := http.Get(base + "/api/v1/dict/alpha/statistics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got struct {
		Message string         `json:"message"`
		Stats   map[string]int `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Dictionary exist", got.Message)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, got.Stats)

	missing, err := http.Get(base + "/api/v1/dict/beta/status")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestBuildRejectsUnusableLocalDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := testConfig("http://127.0.0.1:1/unused")
	cfg.Storage = config.StorageConfig{Backend: config.BackendLocal, Local: config.LocalConfig{BaseDir: file}}
	_, err := Build(context.Background(), cfg, WithLogger(zap.NewNop()), WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
}
