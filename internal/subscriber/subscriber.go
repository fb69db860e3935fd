// Package subscriber implements the subscriber engine: the handshake,
// optional catch-up replay, and live streaming loop for one SSE
// connection, with unsubscribe guaranteed on every exit path. Grounded
// on sse/handler.go's ServeHTTP loop (flusher + keep-alive ticker +
// client-gone select) and original_source/src/web.rs's subscribe handler
// plus src/req.rs's SubReqGuard drop-guard, reinterpreted as a Go defer.
package subscriber

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/apperr"
	"github.com/johnjansen/tinysse/internal/bus"
	"github.com/johnjansen/tinysse/internal/message"
	"github.com/johnjansen/tinysse/internal/scripting"
	"github.com/johnjansen/tinysse/internal/sseframe"
)

// Handler serves the sub_path route.
type Handler struct {
	Bus           *bus.Bus
	Host          *scripting.Host
	KeepAlive     time.Duration
	KeepAliveText string
	IdleTimeout   time.Duration // 0 disables
	TimeoutRetry  time.Duration
	Log           zerolog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	req := message.NewRequest(r, addrFromRequest(r))
	se := message.SubscribeEnvelope{Req: req, LastEventID: message.LastEventID(r), Meta: message.Meta{}}

	se, ok, err := h.Host.Subscribe(se)
	if err != nil {
		writeJSONError(w, apperr.NewInternal(err))
		return
	}
	if !ok {
		writeJSONError(w, apperr.NewForbidden("subscribe rejected by script"))
		return
	}

	// Join the bus before the handshake frame or catch-up replay is
	// written, so nothing published in between is missed.
	cur := h.Bus.Subscribe()
	defer func() {
		h.Bus.Unsubscribe()
		if err := h.Host.Unsubscribe(se); err != nil {
			h.Log.Error().Err(err).Msg("unsubscribe hook failed")
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := sseframe.WriteComment(w, "ok"); err != nil {
		return
	}
	flusher.Flush()

	if se.LastEventID != nil && h.Host.HasHook("catchup") {
		msgs, present, err := h.Host.Catchup(se, *se.LastEventID)
		if err != nil {
			h.Log.Error().Err(err).Msg("catchup hook failed")
		} else if present {
			for _, m := range msgs {
				if m.IsEmpty() {
					continue
				}
				if err := sseframe.WriteMessage(w, m); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}

	h.stream(w, flusher, r, cur, se)
}

func (h *Handler) stream(w http.ResponseWriter, flusher http.Flusher, r *http.Request, cur bus.Cursor, se message.SubscribeEnvelope) {
	ctx := r.Context()
	disconnected := ctx.Done()

	var keepAliveC <-chan time.Time
	if h.KeepAlive > 0 {
		t := time.NewTicker(h.KeepAlive)
		defer t.Stop()
		keepAliveC = t.C
	}

	start := time.Now()
	var idleTimer *time.Timer
	var idleC <-chan time.Time
	if h.IdleTimeout > 0 {
		idleTimer = time.NewTimer(h.IdleTimeout)
		defer idleTimer.Stop()
		idleC = idleTimer.C
	}

	type recvResult struct {
		res bus.Result
		cur bus.Cursor
	}
	recvCh := make(chan recvResult, 1)
	recvDone := make(chan struct{})
	defer close(recvDone)

	startRecv := func(c bus.Cursor) {
		go func() {
			res, next := h.Bus.Recv(c, recvDone)
			select {
			case recvCh <- recvResult{res: res, cur: next}:
			case <-recvDone:
			}
		}()
	}
	startRecv(cur)

	for {
		select {
		case <-disconnected:
			return

		case <-keepAliveC:
			if err := sseframe.WriteComment(w, h.KeepAliveText); err != nil {
				return
			}
			flusher.Flush()

		case <-idleC:
			elapsedMS := time.Since(start).Milliseconds()
			retryMS := h.TimeoutRetry.Milliseconds()
			if override, ok, err := h.Host.Timeout(se, elapsedMS); err != nil {
				h.Log.Error().Err(err).Msg("timeout hook failed")
			} else if ok {
				retryMS = override
			}
			_ = sseframe.WriteTimeout(w, retryMS)
			flusher.Flush()
			return

		case rr := <-recvCh:
			if rr.res.Closed {
				return
			}
			if idleTimer != nil {
				if !idleTimer.Stop() {
					<-idleTimer.C
				}
				idleTimer.Reset(h.IdleTimeout)
				start = time.Now()
			}
			if rr.res.Lagged > 0 {
				h.Log.Warn().Int("skipped", rr.res.Lagged).Msg("subscriber lagged, resynced to tail")
				startRecv(rr.cur)
				continue
			}
			if rr.res.PE.Msg.IsEmpty() {
				startRecv(rr.cur)
				continue
			}
			out, ok, err := h.Host.Message(rr.res.PE, se)
			if err != nil {
				h.Log.Error().Err(err).Msg("message hook failed")
				startRecv(rr.cur)
				continue
			}
			if !ok || out.Msg.IsEmpty() {
				h.Log.Debug().Msg("message dropped by hook")
				startRecv(rr.cur)
				continue
			}
			if err := sseframe.WriteMessage(w, out.Msg); err != nil {
				return
			}
			flusher.Flush()
			startRecv(rr.cur)
		}
	}
}

func writeJSONError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_, _ = w.Write([]byte(`{"error":"` + jsonEscape(err.Error()) + `"}`))
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '\\':
			out = append(out, '\\', byte(r))
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, string(r)...)
		}
	}
	return string(out)
}
