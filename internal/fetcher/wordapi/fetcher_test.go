package wordapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dictgen/internal/dictionary"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchObjectPayload(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"word":"apple","pronunciation":"ap-ul","definition":"a fruit"}`))
	})

	f := New(Config{URL: srv.URL, UserAgent: "dictgen-test"}, srv.Client())
	rec, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dictionary.Record{Word: "apple", Pronunciation: "ap-ul", Definition: "a fruit"}, rec)
	assert.Equal(t, "dictgen-test", gotUA)
}

func TestFetchArrayPayload(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(` [{"word":"banana","pronunciation":"buh-nan-uh","definition":"long"}]`))
	})

	rec, err := New(Config{URL: srv.URL}, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "banana", rec.Word)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := New(Config{URL: srv.URL}, srv.Client()).Fetch(context.Background())
	require.ErrorIs(t, err, dictionary.ErrRemoteRequestFailed)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestFetchMalformedPayloads(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":    `<html>oops</html>`,
		"empty array": `[]`,
		"no word":     `{"pronunciation":"x","definition":"y"}`,
		"wrong type":  `{"word": 42}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := New(Config{URL: srv.URL}, srv.Client()).Fetch(context.Background())
			require.ErrorIs(t, err, dictionary.ErrDeserializationFailed)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{URL: url}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, dictionary.ErrRemoteRequestFailed)
}

func TestFetchHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Config{URL: srv.URL}, srv.Client()).Fetch(ctx)
	require.ErrorIs(t, err, dictionary.ErrRemoteRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	assert.Equal(t, DefaultURL, f.cfg.URL)
	assert.NotNil(t, f.client)
}
