package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collective-judgment/cjo/internal/ctxutil"
	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/model"
)

const sseKeepAlive = 15 * time.Second

// HandleSubscribe handles GET /v1/events: an SSE stream of Core-bus events
// (JUDGMENT_CREATED, CONSENSUS_REACHED) as they're emitted.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming unsupported")
		return
	}
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Ingress is a trusted API surface behind Bearer auth, not a browser page
	// with cookie-based session auth, so cross-origin upgrades are safe here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleVoteStream handles GET /v1/votes/stream: a websocket feed of dog
// pack votes and consensus outcomes from the Agent bus, for dashboards that
// want push updates without polling Get.
func (h *Handlers) HandleVoteStream(w http.ResponseWriter, r *http.Request) {
	if h.agentBus == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "vote stream unavailable")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "request_id", ctxutil.RequestIDFromContext(r.Context()))
		return
	}
	defer conn.Close()

	events := make(chan model.Event, 64)
	unsubscribe := h.agentBus.Subscribe(eventfabric.SubscriberFunc(func(e model.Event) {
		switch e.Kind {
		case model.EventDogVoteCast, model.EventConsensusReached:
			select {
			case events <- e:
			default:
			}
		}
	}))
	defer unsubscribe()

	// Drain client reads so a closed/broken connection is detected promptly;
	// this stream is server-push only, so any inbound message just triggers
	// the read error that ends the loop.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
