package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// errorMarker flags an in-band stream error. The marker stays part of the
// message handed to OnError.
const errorMarker = "[ERROR]"

// StreamState describes where a query session is in its lifecycle.
type StreamState int32

const (
	// StateStreaming means the session is live and may still dispatch events.
	StateStreaming StreamState = iota
	// StateDone means the session finished, on either the success or the
	// failure path, and OnDone has been called.
	StateDone
	// StateCancelled means the caller aborted the session. No OnDone is
	// delivered for a cancelled session.
	StateCancelled
)

// StreamCallbacks receive the decoded events of one query session. Each
// payload is dispatched in arrival order: lines starting with the error
// marker go to OnError, everything else to OnToken verbatim. OnDone fires
// exactly once after the last payload, on both the success and failure paths,
// but never after a cancel.
type StreamCallbacks struct {
	OnToken func(token string)
	OnError func(message string)
	OnDone  func()
}

// Stream is the handle to one in-flight query session.
type Stream struct {
	state  atomic.Int32
	cancel context.CancelFunc
}

// State reports the session's current lifecycle state.
func (s *Stream) State() StreamState {
	return StreamState(s.state.Load())
}

// Cancel aborts the underlying transport. Payloads already decoded may still
// be dispatched, but nothing that arrives after the abort is, and OnDone is
// suppressed. Cancelling a finished session is a no-op.
func (s *Stream) Cancel() {
	s.state.CompareAndSwap(int32(StateStreaming), int32(StateCancelled))
	s.cancel()
}

// cancelled reports whether the caller has aborted the session.
func (s *Stream) cancelled() bool {
	return s.State() == StateCancelled
}

// finish moves a live session to done and fires OnDone. Suppressed when the
// session was cancelled first.
func (s *Stream) finish(cb StreamCallbacks) {
	if s.state.CompareAndSwap(int32(StateStreaming), int32(StateDone)) {
		if cb.OnDone != nil {
			cb.OnDone()
		}
	}
}

// Query opens one streaming query session against POST /v1/query and returns
// its handle immediately. The response is either a JSON error body, surfaced
// as one OnError followed by OnDone, or a server-sent-event stream decoded
// into per-payload callbacks. K defaults to 4; a nil MetadataFilter means no
// filter.
func (c *Client) Query(ctx context.Context, req QueryRequest, cb StreamCallbacks) *Stream {
	if req.K <= 0 {
		req.K = 4
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel}
	s.state.Store(int32(StateStreaming))

	go c.runStream(ctx, s, req, cb)
	return s
}

func (c *Client) runStream(ctx context.Context, s *Stream, req QueryRequest, cb StreamCallbacks) {
	fail := func(message string) {
		if s.cancelled() {
			return
		}
		if cb.OnError != nil {
			cb.OnError(message)
		}
		s.finish(cb)
	}

	body, err := json.Marshal(req)
	if err != nil {
		fail("query request failed")
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		fail("query request failed")
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		if s.cancelled() {
			return
		}
		c.log.Warn("query transport error", zap.Error(err))
		fail("query request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fail(decodeDetail(resp.Body, "Request failed"))
		return
	}

	dispatch := func(payload string) bool {
		if s.cancelled() {
			return false
		}
		if strings.HasPrefix(payload, errorMarker) {
			if cb.OnError != nil {
				cb.OnError(payload)
			}
		} else if cb.OnToken != nil {
			cb.OnToken(payload)
		}
		return true
	}

	var dec sseDecoder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, payload := range dec.Feed(buf[:n]) {
				if !dispatch(payload) {
					return
				}
			}
		}
		if err != nil {
			if s.cancelled() {
				return
			}
			if err != io.EOF {
				c.log.Warn("query stream interrupted", zap.Error(err))
				fail("query request failed")
				return
			}
			break
		}
	}

	// The stream has no explicit end marker; a final unterminated line still
	// counts if it carries the data prefix.
	if payload, ok := dec.Flush(); ok {
		if !dispatch(payload) {
			return
		}
	}

	s.finish(cb)
}
