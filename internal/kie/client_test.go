package kie

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:       "key",
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		MaxAttempts:  5,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEditImagePollsUntilSuccess(t *testing.T) {
	var polls atomic.Int32
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_, _ = io.WriteString(w, `{"code":200,"data":{"taskId":"t1"}}`)
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t1", r.URL.Query().Get("taskId"))
		if polls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"code":200,"data":{"state":"generating"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[\"https://cdn/x.png\"]}"}}`)
	})
	c := newTestClient(t, mux)

	img, err := c.EditImage(context.Background(), EditOptions{Prompt: "p", InputURLs: []string{"https://in/src.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", img.URL)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, "nano-banana-pro", created["model"])
	input := created["input"].(map[string]any)
	assert.Equal(t, []any{"https://in/src.jpg"}, input["image_input"])
	assert.Equal(t, "png", input["output_format"])
}

func TestEditImageFluxUsesInputURLs(t *testing.T) {
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_, _ = io.WriteString(w, `{"code":200,"data":{"taskId":"t2"}}`)
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[]}"}}`)
	})
	c := newTestClient(t, mux)

	_, err := c.EditImage(context.Background(), EditOptions{Model: "flux-2-pro", InputURLs: []string{"u"}})
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, "flux-2/pro-image-to-image", created["model"])
	assert.Contains(t, created["input"], "input_urls")
}

func TestEditImageTaskFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/createTask", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":{"taskId":"t3"}}`)
	})
	mux.HandleFunc("/api/v1/jobs/recordInfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":{"state":"fail","failCode":"400","failMsg":"nsfw"}}`)
	})
	c := newTestClient(t, mux)

	_, err := c.EditImage(context.Background(), EditOptions{InputURLs: []string{"u"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nsfw")
}

func TestEditImageRequiresInput(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.EditImage(context.Background(), EditOptions{Prompt: "p"})
	assert.Error(t, err)
}

func TestCreateTaskHTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "unauthorized")
	}))
	_, err := c.EditImage(context.Background(), EditOptions{InputURLs: []string{"u"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	img := &Image{URL: srv.URL + "/x.png"}
	require.NoError(t, c.Download(context.Background(), img))
	assert.Equal(t, "bytes", string(img.Bytes))
	assert.Equal(t, "image/png", img.Mime)
}

func TestTruncateBody(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, []rune(truncateBody(long)), 513)
	assert.Equal(t, "ok", truncateBody([]byte("  ok \n")))
}
