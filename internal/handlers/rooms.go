package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"partyline/internal/room"
)

const maxNameLength = 24

// cleanName normalizes a submitted display name.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// ListGames returns the engine's game catalog.
//
// GET /api/games
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"games": h.engine.Games()})
}

// CreateRoom opens a new room and seats the caller as host.
//
// POST /api/rooms  {"game": "...", "name": "..."}
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Game string `json:"game"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := cleanName(req.Name)
	if name == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	st, hostID, err := h.engine.CreateRoom(req.Game, name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	getOrCreateSession(w, r)
	setPlayerCookie(w, st.Code, hostID)
	h.log.Info().Str("room", st.Code).Str("game", req.Game).Msg("room created")
	h.writeJSON(w, http.StatusCreated, st.View(hostID))
}

// GetRoom returns the room projected for the caller.
//
// GET /api/rooms/{code}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	view, err := h.engine.View(code, playerID(r, code))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// JoinRoom seats the caller into an open lobby.
//
// POST /api/rooms/{code}/join  {"name": "..."}
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	// Re-joining with a live seat cookie is a no-op that returns the
	// current view, so a page reload never seats a duplicate.
	if existing := playerID(r, code); existing != "" {
		if view, err := h.engine.View(code, existing); err == nil {
			if _, idx := view.PlayerByID(existing); idx >= 0 {
				h.writeJSON(w, http.StatusOK, view)
				return
			}
		}
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := cleanName(req.Name)
	if name == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	id, err := h.engine.Join(code, name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	getOrCreateSession(w, r)
	setPlayerCookie(w, code, id)
	view, err := h.engine.View(code, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// LeaveRoom removes the caller's seat. The host leaving closes the room
// for everyone.
//
// POST /api/rooms/{code}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	id := playerID(r, code)
	if id == "" {
		h.writeError(w, room.ErrNotInRoom)
		return
	}
	if err := h.engine.Leave(code, id); err != nil {
		h.writeError(w, err)
		return
	}
	clearPlayerCookie(w, code)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// KickPlayer removes another player by host authority.
//
// POST /api/rooms/{code}/kick  {"target": "<playerId>"}
func (h *Handler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req struct {
		Target string `json:"target"`
	}
	if err := decodeBody(r, &req); err != nil || req.Target == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target is required"})
		return
	}
	if err := h.engine.Kick(code, playerID(r, code), req.Target); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "kicked"})
}

// ToggleReady flips the caller's ready flag.
//
// POST /api/rooms/{code}/ready
func (h *Handler) ToggleReady(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	id := playerID(r, code)
	if id == "" {
		h.writeError(w, room.ErrNotInRoom)
		return
	}
	if err := h.engine.ToggleReady(code, id); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.engine.View(code, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// StartGame begins play, or deals the next round between rounds.
//
// POST /api/rooms/{code}/start
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	id := playerID(r, code)
	if err := h.engine.StartGame(code, id); err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info().Str("room", code).Msg("game started")
	view, err := h.engine.View(code, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ResetRoom returns the room to the lobby.
//
// POST /api/rooms/{code}/reset
func (h *Handler) ResetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	id := playerID(r, code)
	if err := h.engine.Reset(code, id); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.engine.View(code, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Act routes a game action to the room's rules.
//
// POST /api/rooms/{code}/actions  {"type": "...", "data": {...}}
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	id := playerID(r, code)
	if id == "" {
		h.writeError(w, room.ErrNotInRoom)
		return
	}

	var req struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeBody(r, &req); err != nil || req.Type == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}

	if err := h.engine.Act(code, id, req.Type, req.Data); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.engine.View(code, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
