package streamhttp_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	// Packages
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	streamhttp "github.com/mutablelogic/go-mcp/pkg/transport/streamhttp"
	assert "github.com/stretchr/testify/assert"
)

// newJSONServer answers every POST with a single JSON-RPC response body,
// echoing a fixed session ID on the first response, and returns 405 for
// GET so the background listener stops cleanly on its first attempt.
func newJSONServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Mcp-Session-Id", "sess-1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
		case http.MethodGet:
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return httptest.NewServer(mux)
}

func Test_streamhttp_roundtrip_json(t *testing.T) {
	assert := assert.New(t)

	srv := newJSONServer(t)
	defer srv.Close()

	tr, err := streamhttp.New(streamhttp.Config{URL: srv.URL + "/mcp"})
	assert.NoError(err)

	received := make(chan transport.Frame, 1)
	err = tr.Start(context.Background(), func(f transport.Frame) {
		received <- f
	})
	assert.NoError(err)
	assert.True(tr.Alive())

	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.NoError(tr.Send(context.Background(), payload))

	select {
	case f := <-received:
		assert.Equal(string(payload), string(f.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}

	assert.NoError(tr.Close(context.Background()))
	assert.False(tr.Alive())
}

func Test_streamhttp_sse_response(t *testing.T) {
	assert := assert.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr, err := streamhttp.New(streamhttp.Config{URL: srv.URL + "/mcp"})
	assert.NoError(err)

	received := make(chan transport.Frame, 1)
	assert.NoError(tr.Start(context.Background(), func(f transport.Frame) {
		received <- f
	}))

	payload := []byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	assert.NoError(tr.Send(context.Background(), payload))

	select {
	case f := <-received:
		assert.Equal(string(payload), string(f.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE-delivered frame")
	}

	assert.NoError(tr.Close(context.Background()))
}

func Test_streamhttp_close_idempotent(t *testing.T) {
	assert := assert.New(t)

	srv := newJSONServer(t)
	defer srv.Close()

	tr, err := streamhttp.New(streamhttp.Config{URL: srv.URL + "/mcp"})
	assert.NoError(err)
	assert.NoError(tr.Start(context.Background(), func(transport.Frame) {}))

	assert.NoError(tr.Close(context.Background()))
	assert.NoError(tr.Close(context.Background()))
}

func Test_streamhttp_empty_url_rejected(t *testing.T) {
	assert := assert.New(t)

	_, err := streamhttp.New(streamhttp.Config{})
	assert.Error(err)
}

func Test_streamhttp_factory_registered(t *testing.T) {
	assert := assert.New(t)

	srv := newJSONServer(t)
	defer srv.Close()

	tr, err := transport.DefaultRegistry.New("streamhttp", streamhttp.Config{URL: srv.URL + "/mcp"})
	assert.NoError(err)
	assert.NotNil(tr)
}
