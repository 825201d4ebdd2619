package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyline/internal/config"
	"partyline/internal/engine"
	"partyline/internal/games/ghostdice"
	"partyline/internal/games/protocol"
	"partyline/internal/store"
)

func testConfig() *config.ServerConfig {
	cfg := config.DefaultConfig()
	cfg.Server.Port = "8080"
	cfg.Server.Host = "127.0.0.1"
	return cfg
}

func newTestRouter(t *testing.T) (*chi.Mux, *Handler) {
	t.Helper()
	e := engine.New(store.NewMemoryStore(), engine.NewBus(), zerolog.Nop())
	e.SetSeed(1)
	e.Register(ghostdice.Rules{})
	e.Register(protocol.Rules{})

	h := New(e, testConfig(), zerolog.Nop())
	router := SetupRouter(h, h.config, &RouterOptions{
		DisableRateLimiting:  true,
		DisableRequestLogger: true,
	})
	return router, h
}

// doJSON fires a JSON request with the given cookies and decodes the
// response body into a generic map.
func doJSON(t *testing.T, router *chi.Mux, method, path string, body any, cookies []*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// createRoom creates a room through the API and returns the code plus
// the host's seat cookie.
func createRoom(t *testing.T, router *chi.Mux, game string) (string, []*http.Cookie) {
	t.Helper()
	rec, body := doJSON(t, router, "POST", "/api/rooms", map[string]string{
		"game": game,
		"name": "Host",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	code, _ := body["roomId"].(string)
	require.NotEmpty(t, code)
	return code, rec.Result().Cookies()
}

// joinRoom joins an existing room and returns the joiner's cookies.
func joinRoom(t *testing.T, router *chi.Mux, code, name string) []*http.Cookie {
	t.Helper()
	rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/join", map[string]string{
		"name": name,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func TestCreateRoom(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("success", func(t *testing.T) {
		rec, body := doJSON(t, router, "POST", "/api/rooms", map[string]string{
			"game": "ghost_dice",
			"name": "Ada",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "ghost_dice", body["game"])
		assert.Equal(t, "lobby", body["status"])
		assert.True(t, body["isHost"].(bool))

		code := body["roomId"].(string)
		var seatCookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "player_"+code {
				seatCookie = c
			}
		}
		require.NotNil(t, seatCookie, "seat cookie must be set")
		assert.NotEmpty(t, seatCookie.Value)
	})

	t.Run("unknown game", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms", map[string]string{
			"game": "chess",
			"name": "Ada",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms", map[string]string{
			"game": "ghost_dice",
			"name": "   ",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRoom(t *testing.T) {
	router, _ := newTestRouter(t)
	code, cookies := createRoom(t, router, "ghost_dice")

	rec, body := doJSON(t, router, "GET", "/api/rooms/"+code, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, code, body["roomId"])
	assert.True(t, body["isHost"].(bool))

	rec, _ = doJSON(t, router, "GET", "/api/rooms/ZZZZZZ", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinRoom(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("success", func(t *testing.T) {
		code, _ := createRoom(t, router, "ghost_dice")
		rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/join", map[string]string{
			"name": "Bob",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		players := body["players"].([]any)
		assert.Len(t, players, 2)
		assert.False(t, body["isHost"].(bool))
	})

	t.Run("rejoin with live cookie does not duplicate the seat", func(t *testing.T) {
		code, _ := createRoom(t, router, "ghost_dice")
		cookies := joinRoom(t, router, code, "Bob")

		rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/join", map[string]string{
			"name": "Bob",
		}, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["players"].([]any), 2)
	})

	t.Run("missing room", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms/ZZZZZZ/join", map[string]string{
			"name": "Bob",
		}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("after start", func(t *testing.T) {
		router, _ := newTestRouter(t)
		code, hostCookies := createRoom(t, router, "ghost_dice")
		guest := joinRoom(t, router, code, "Bob")

		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/ready", nil, guest)
		require.Equal(t, http.StatusOK, rec.Code)
		rec, _ = doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = doJSON(t, router, "POST", "/api/rooms/"+code+"/join", map[string]string{
			"name": "Late",
		}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestStartGame(t *testing.T) {
	router, _ := newTestRouter(t)
	code, hostCookies := createRoom(t, router, "ghost_dice")
	guest := joinRoom(t, router, code, "Bob")

	t.Run("non-host cannot start", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, guest)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unready players block the start", func(t *testing.T) {
		rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, body["error"], "ready")
	})

	t.Run("success", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/ready", nil, guest)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "playing", body["status"])
		assert.NotNil(t, body["payload"])
	})
}

func TestActions(t *testing.T) {
	router, _ := newTestRouter(t)
	code, hostCookies := createRoom(t, router, "ghost_dice")
	guest := joinRoom(t, router, code, "Bob")

	doJSON(t, router, "POST", "/api/rooms/"+code+"/ready", nil, guest)
	rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("no seat cookie", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/actions", map[string]any{
			"type": "bid",
			"data": map[string]any{"quantity": 1, "face": 3},
		}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("illegal action returns the reason", func(t *testing.T) {
		// A challenge before any bid exists is a rule rejection.
		rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/actions", map[string]any{
			"type": "challenge",
		}, hostCookies)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("missing type", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/actions", map[string]any{
			"data": map[string]any{},
		}, hostCookies)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLeaveAndKick(t *testing.T) {
	t.Run("leave without seat", func(t *testing.T) {
		router, _ := newTestRouter(t)
		code, _ := createRoom(t, router, "ghost_dice")
		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/leave", nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("guest leaves", func(t *testing.T) {
		router, _ := newTestRouter(t)
		code, hostCookies := createRoom(t, router, "ghost_dice")
		guest := joinRoom(t, router, code, "Bob")

		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/leave", nil, guest)
		require.Equal(t, http.StatusOK, rec.Code)

		_, body := doJSON(t, router, "GET", "/api/rooms/"+code, nil, hostCookies)
		assert.Len(t, body["players"].([]any), 1)
	})

	t.Run("host leaving closes the room", func(t *testing.T) {
		router, _ := newTestRouter(t)
		code, hostCookies := createRoom(t, router, "ghost_dice")
		joinRoom(t, router, code, "Bob")

		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/leave", nil, hostCookies)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = doJSON(t, router, "GET", "/api/rooms/"+code, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("host kicks a guest", func(t *testing.T) {
		router, h := newTestRouter(t)
		code, hostCookies := createRoom(t, router, "ghost_dice")
		joinRoom(t, router, code, "Bob")

		st, _, err := h.Engine().Store().Get(code)
		require.NoError(t, err)
		require.Len(t, st.Players, 2)
		target := st.Players[1].ID

		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/kick", map[string]string{
			"target": target,
		}, hostCookies)
		require.Equal(t, http.StatusOK, rec.Code)

		_, body := doJSON(t, router, "GET", "/api/rooms/"+code, nil, hostCookies)
		assert.Len(t, body["players"].([]any), 1)
	})

	t.Run("guest cannot kick", func(t *testing.T) {
		router, h := newTestRouter(t)
		code, _ := createRoom(t, router, "ghost_dice")
		guest := joinRoom(t, router, code, "Bob")

		st, _, err := h.Engine().Store().Get(code)
		require.NoError(t, err)

		rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/kick", map[string]string{
			"target": st.HostID,
		}, guest)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestResetRoom(t *testing.T) {
	router, _ := newTestRouter(t)
	code, hostCookies := createRoom(t, router, "ghost_dice")
	guest := joinRoom(t, router, code, "Bob")

	doJSON(t, router, "POST", "/api/rooms/"+code+"/ready", nil, guest)
	rec, _ := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/reset", nil, hostCookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lobby", body["status"])
	assert.Nil(t, body["payload"])
}

func TestListGames(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, body := doJSON(t, router, "GET", "/api/games", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	games := body["games"].([]any)
	assert.Contains(t, games, "ghost_dice")
	assert.Contains(t, games, "protocol")
}

func TestRoomQR(t *testing.T) {
	router, _ := newTestRouter(t)
	code, _ := createRoom(t, router, "ghost_dice")

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/rooms/%s/qr.png", code), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())

	req = httptest.NewRequest("GET", "/api/rooms/ZZZZZZ/qr.png", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRoom_TimeoutEndsStream(t *testing.T) {
	router, h := newTestRouter(t)
	code, cookies := createRoom(t, router, "ghost_dice")
	h.config.Server.SSETimeout = 50 * time.Millisecond

	req := httptest.NewRequest("GET", "/sse/rooms/"+code, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()

	start := time.Now()
	router.ServeHTTP(rec, req)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "room", "initial view must be sent before the deadline")
	assert.Less(t, elapsed, 2*time.Second, "stream must end at the configured timeout")
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRedaction_OpponentDiceHidden(t *testing.T) {
	router, _ := newTestRouter(t)
	code, hostCookies := createRoom(t, router, "ghost_dice")
	guest := joinRoom(t, router, code, "Bob")

	doJSON(t, router, "POST", "/api/rooms/"+code+"/ready", nil, guest)
	rec, body := doJSON(t, router, "POST", "/api/rooms/"+code+"/start", nil, hostCookies)
	require.Equal(t, http.StatusOK, rec.Code)

	viewerID := body["viewerId"].(string)
	payload := body["payload"].(map[string]any)
	dice := payload["dice"].(map[string]any)
	for owner, cup := range dice {
		for _, die := range cup.([]any) {
			face := die.(float64)
			if owner == viewerID {
				assert.NotZero(t, face, "own dice must be visible")
			} else {
				assert.Zero(t, face, "opponent dice must be redacted")
			}
		}
	}
}
