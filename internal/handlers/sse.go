package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	datastar "github.com/starfederation/datastar-go/datastar"
)

// StreamRoom streams room updates to one player over SSE. Every
// committed write to the room document arrives as a fresh view
// projected for this player; transient game events (busts, steals,
// round results) ride alongside as one-shot signals.
//
// GET /sse/rooms/{code}
func (h *Handler) StreamRoom(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "code")

	// Bound the stream lifetime; clients reconnect with a fresh request.
	ctx := r.Context()
	if h.config.Server.SSETimeout > 0 {
		var cancelCtx context.CancelFunc
		ctx, cancelCtx = context.WithTimeout(ctx, h.config.Server.SSETimeout)
		defer cancelCtx()
		r = r.WithContext(ctx)
	}

	id := playerID(r, roomCode)
	if id == "" {
		http.Error(w, "Not in room", http.StatusUnauthorized)
		return
	}
	view, err := h.engine.View(roomCode, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, idx := view.PlayerByID(id); idx < 0 {
		http.Error(w, "Player not found", http.StatusUnauthorized)
		return
	}

	snapshots, cancel, err := h.engine.Store().Subscribe(roomCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer cancel()

	events := h.engine.Bus().Subscribe(roomCode)
	defer h.engine.Bus().Unsubscribe(roomCode, events)

	sse := datastar.NewSSE(w, r)
	log := h.log.With().Str("room", roomCode).Str("player", id).Logger()
	log.Debug().Msg("sse connection established")

	// Initial full view so a reconnecting client never renders stale
	// state while waiting for the next write.
	if err := sse.MarshalAndPatchSignals(map[string]any{"room": view}); err != nil {
		log.Debug().Err(err).Msg("initial sse send failed")
		return
	}

	// Keepalive ping; browsers may close idle SSE connections after a
	// few minutes.
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("sse connection closed")
			return

		case snap, ok := <-snapshots:
			if !ok || snap.State == nil {
				// Room deleted: tell the client and end the stream.
				sse.MarshalAndPatchSignals(map[string]any{"roomClosed": true})
				log.Debug().Msg("room closed, ending sse stream")
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{
				"room":    snap.State.View(id),
				"version": snap.Version,
			}); err != nil {
				log.Debug().Err(err).Msg("sse send failed")
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{"event": ev}); err != nil {
				log.Debug().Err(err).Msg("sse event send failed")
				return
			}

		case <-heartbeat.C:
			if err := sse.MarshalAndPatchSignals(map[string]any{"ping": time.Now().Unix()}); err != nil {
				log.Debug().Msg("heartbeat failed, closing sse stream")
				return
			}
		}
	}
}

// ValidateSSERequest rejects SSE requests from clients that cannot
// stream.
func ValidateSSERequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		next(w, r)
	}
}
