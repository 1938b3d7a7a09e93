package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects stream callback invocations in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) callbacks() StreamCallbacks {
	return StreamCallbacks{
		OnToken: func(token string) { r.add("token:" + token) },
		OnError: func(message string) { r.add("error:" + message) },
		OnDone: func() {
			r.add("done")
			close(r.done)
		},
	}
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete")
	}
}

func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/query", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
}

func TestQueryDispatchOrder(t *testing.T) {
	srv := sseServer(t, "data: [ERROR]x\n", "data: y\n")
	defer srv.Close()

	rec := newRecorder()
	c := New(srv.URL)
	s := c.Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	assert.Equal(t, []string{"error:[ERROR]x", "token:y", "done"}, rec.snapshot())
	assert.Equal(t, StateDone, s.State())
}

func TestQueryFlushesUnterminatedTail(t *testing.T) {
	srv := sseServer(t, "data: Hello\n", "data: z")
	defer srv.Close()

	rec := newRecorder()
	c := New(srv.URL)
	c.Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	assert.Equal(t, []string{"token:Hello", "token:z", "done"}, rec.snapshot())
}

func TestQuerySendsRequestBody(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: ok\n"))
	}))
	defer srv.Close()

	rec := newRecorder()
	c := New(srv.URL)
	c.Query(context.Background(), QueryRequest{
		Question:       "what is this",
		MetadataFilter: map[string]string{"source": "spec.pdf"},
	}, rec.callbacks())
	rec.waitDone(t)

	assert.JSONEq(t, `"what is this"`, string(body["question"]))
	// K defaults to 4 when unset.
	assert.JSONEq(t, `4`, string(body["k"]))
	assert.JSONEq(t, `{"source":"spec.pdf"}`, string(body["metadata_filter"]))
}

func TestQueryNilFilterSerializesAsNull(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: ok\n"))
	}))
	defer srv.Close()

	rec := newRecorder()
	New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())
	rec.waitDone(t)

	assert.JSONEq(t, `null`, string(body["metadata_filter"]))
}

func TestQueryErrorBodyStringDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "index not built"}`))
	}))
	defer srv.Close()

	rec := newRecorder()
	s := New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	assert.Equal(t, []string{"error:index not built", "done"}, rec.snapshot())
	assert.Equal(t, StateDone, s.State())
}

func TestQueryErrorBodyNonStringDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": {"code": 42}}`))
	}))
	defer srv.Close()

	rec := newRecorder()
	New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"code": 42}`, events[0][len("error:"):])
	assert.Equal(t, "done", events[1])
}

func TestQueryUndecodableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>nope</html>"))
	}))
	defer srv.Close()

	rec := newRecorder()
	New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	assert.Equal(t, []string{"error:Request failed", "done"}, rec.snapshot())
}

func TestQueryUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	rec := newRecorder()
	New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	rec.waitDone(t)
	assert.Equal(t, []string{"error:query request failed", "done"}, rec.snapshot())
}

func TestCancelBeforeAnyPayload(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	rec := newRecorder()
	s := New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	// Let the request get going, then abort.
	time.Sleep(50 * time.Millisecond)
	s.Cancel()
	time.Sleep(100 * time.Millisecond)

	// Cancellation is not a failure: no tokens, no error, no completion.
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, StateCancelled, s.State())
}

func TestCancelSuppressesCompletion(t *testing.T) {
	firstSent := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: partial\n"))
		w.(http.Flusher).Flush()
		close(firstSent)
		<-release
	}))
	defer srv.Close()

	rec := newRecorder()
	s := New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())

	<-firstSent
	// Wait for the token to be dispatched before cancelling.
	assert.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) == 1 && events[0] == "token:partial"
	}, time.Second, 5*time.Millisecond)

	s.Cancel()
	close(release)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []string{"token:partial"}, rec.snapshot())
	assert.Equal(t, StateCancelled, s.State())
}

func TestCancelAfterDoneIsNoop(t *testing.T) {
	srv := sseServer(t, "data: a\n")
	defer srv.Close()

	rec := newRecorder()
	s := New(srv.URL).Query(context.Background(), QueryRequest{Question: "q"}, rec.callbacks())
	rec.waitDone(t)

	s.Cancel()
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, []string{"token:a", "done"}, rec.snapshot())
}
