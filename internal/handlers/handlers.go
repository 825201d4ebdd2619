package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"partyline/internal/config"
	"partyline/internal/engine"
	"partyline/internal/room"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine *engine.Engine
	config *config.ServerConfig
	log    zerolog.Logger
}

// New creates a new handler
func New(e *engine.Engine, cfg *config.ServerConfig, log zerolog.Logger) *Handler {
	return &Handler{
		engine: e,
		config: cfg,
		log:    log,
	}
}

// Engine returns the handler's engine (for testing)
func (h *Handler) Engine() *engine.Engine {
	return h.engine
}

// getOrCreateSession gets or creates a session for the user
func getOrCreateSession(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie("session")
	if err == nil {
		return cookie.Value
	}

	// Create new session
	b := make([]byte, 16)
	rand.Read(b)
	sessionID := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7, // 7 days
	})

	return sessionID
}

// setPlayerCookie binds the caller's browser to their seat in one room.
func setPlayerCookie(w http.ResponseWriter, roomCode, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "player_" + roomCode,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // rooms don't outlive a day
	})
}

// clearPlayerCookie drops the seat binding after a leave or kick.
func clearPlayerCookie(w http.ResponseWriter, roomCode string) {
	http.SetCookie(w, &http.Cookie{
		Name:   "player_" + roomCode,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// playerID extracts the caller's seat for the room from their cookie.
func playerID(r *http.Request, roomCode string) string {
	cookie, err := r.Cookie("player_" + roomCode)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// writeJSON writes a JSON response body
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps engine errors onto HTTP statuses. Rule rejections are
// 422s carrying the reason so clients can show it verbatim.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var illegal *room.IllegalActionError
	if errors.As(err, &illegal) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": illegal.Reason})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrRoomExists),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrGameAlreadyStarted),
		errors.Is(err, room.ErrNotEnoughPlayers):
		status = http.StatusConflict
	case errors.Is(err, room.ErrNotHost),
		errors.Is(err, room.ErrNotInRoom):
		status = http.StatusForbidden
	case errors.Is(err, room.ErrUnknownGame):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("unhandled error")
		h.writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
