// Package wordapi implements dictionary.Fetcher against a random-word JSON API.
package wordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/dictgen/internal/dictionary"
)

// DefaultURL is the public endpoint used when none is configured.
const DefaultURL = "https://random-words-api.vercel.app/word"

const maxBodyBytes = 1 << 20

// Config controls the client.
type Config struct {
	URL       string
	UserAgent string
}

// Fetcher requests one random word per call.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New builds a Fetcher. A nil client gets a pooled transport sized for
// high fan-out.
func New(cfg Config, client *http.Client) *Fetcher {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if client == nil {
		client = &http.Client{Transport: newHTTPTransport()}
	}
	return &Fetcher{cfg: cfg, client: client}
}

type payload struct {
	Word          string `json:"word"`
	Pronunciation string `json:"pronunciation"`
	Definition    string `json:"definition"`
}

// Fetch performs a single GET and decodes the word payload.
func (f *Fetcher) Fetch(ctx context.Context) (dictionary.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, http.NoBody)
	if err != nil {
		return dictionary.Record{}, fmt.Errorf("%w: build request: %w", dictionary.ErrRemoteRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return dictionary.Record{}, fmt.Errorf("%w: %w", dictionary.ErrRemoteRequestFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return dictionary.Record{}, fmt.Errorf("%w: status %d: %s", dictionary.ErrRemoteRequestFailed, resp.StatusCode, detail)
	}
	if err != nil {
		return dictionary.Record{}, fmt.Errorf("%w: read body: %w", dictionary.ErrRemoteRequestFailed, err)
	}
	return decode(body)
}

// decode accepts either a bare object or a one-element array, which is what
// the public API actually returns.
func decode(body []byte) (dictionary.Record, error) {
	trimmed := bytes.TrimSpace(body)
	var p payload
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []payload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return dictionary.Record{}, fmt.Errorf("%w: %w", dictionary.ErrDeserializationFailed, err)
		}
		if len(list) == 0 {
			return dictionary.Record{}, fmt.Errorf("%w: empty word list", dictionary.ErrDeserializationFailed)
		}
		p = list[0]
	} else if err := json.Unmarshal(trimmed, &p); err != nil {
		return dictionary.Record{}, fmt.Errorf("%w: %w", dictionary.ErrDeserializationFailed, err)
	}
	if strings.TrimSpace(p.Word) == "" {
		return dictionary.Record{}, fmt.Errorf("%w: payload has no word", dictionary.ErrDeserializationFailed)
	}
	return dictionary.Record{
		Word:          p.Word,
		Pronunciation: p.Pronunciation,
		Definition:    p.Definition,
	}, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
	}
}
