package engine

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"partyline/internal/room"
	"partyline/internal/store"
)

// Engine hosts rooms for every registered game. It owns the lobby,
// ready, kick and reset machinery once for all games; the games
// themselves only implement Rules.
type Engine struct {
	store *store.MemoryStore
	bus   *Bus
	log   zerolog.Logger

	mu     sync.Mutex
	games  map[string]Rules
	actors map[string]*actor
	rngs   map[string]*rand.Rand

	// seed lets tests pin the shuffle; 0 means time-seeded per room.
	seed int64
	// codeAttempts bounds the code-collision retry loop; 0 means the
	// default of 10.
	codeAttempts int
	// maxPlayers caps seats server-wide on top of each game's own
	// MaxPlayers; 0 means no extra cap.
	maxPlayers int
}

// New creates an engine backed by the given store.
func New(ms *store.MemoryStore, bus *Bus, log zerolog.Logger) *Engine {
	return &Engine{
		store:  ms,
		bus:    bus,
		log:    log,
		games:  make(map[string]Rules),
		actors: make(map[string]*actor),
		rngs:   make(map[string]*rand.Rand),
	}
}

// Register adds a game to the engine's catalog.
func (e *Engine) Register(r Rules) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.games[r.Name()] = r
}

// Games returns the names of all registered games.
func (e *Engine) Games() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.games))
	for name := range e.games {
		names = append(names, name)
	}
	return names
}

// Bus exposes the transient event bus for SSE handlers.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// Store exposes the room store for subscription handlers.
func (e *Engine) Store() *store.MemoryStore {
	return e.store
}

// SetSeed pins the per-room RNG seed. Test hook.
func (e *Engine) SetSeed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seed = seed
}

// SetCodeAttempts sets how many room codes CreateRoom tries before
// giving up on a collision streak.
func (e *Engine) SetCodeAttempts(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codeAttempts = n
}

// SetMaxPlayers applies a server-wide seat cap on top of each game's
// own limit.
func (e *Engine) SetMaxPlayers(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxPlayers = n
}

// CreateRoom opens a new room for the named game with the creator seated
// as host. Returns the initial document and the host's player ID.
func (e *Engine) CreateRoom(gameName, hostName string) (*room.State, string, error) {
	e.mu.Lock()
	_, ok := e.games[gameName]
	seed := e.seed
	attempts := e.codeAttempts
	e.mu.Unlock()
	if !ok {
		return nil, "", room.ErrUnknownGame
	}
	if attempts <= 0 {
		attempts = 10
	}

	hostID := uuid.NewString()
	host := room.NewPlayer(hostID, hostName)

	var st *room.State
	for attempt := 0; attempt < attempts; attempt++ {
		code := room.GenerateCode()
		candidate := &room.State{
			Code:      code,
			GameName:  gameName,
			HostID:    hostID,
			Status:    room.StatusLobby,
			Players:   []*room.Player{host},
			CreatedAt: time.Now(),
		}
		candidate.Logf(room.LogNeutral, "%s opened the room", hostName)
		if err := e.store.Create(code, candidate); err != nil {
			if err == room.ErrRoomExists {
				continue
			}
			return nil, "", err
		}
		st = candidate
		break
	}
	if st == nil {
		return nil, "", room.ErrRoomExists
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e.mu.Lock()
	e.rngs[st.Code] = rand.New(rand.NewSource(seed))
	code := st.Code
	e.actors[code] = newActor(code, st, e.store, e.bus, e.log, func() {
		e.mu.Lock()
		delete(e.actors, code)
		delete(e.rngs, code)
		e.mu.Unlock()
	})
	e.mu.Unlock()

	return st.Clone(), hostID, nil
}

// Join seats a new player. Fails with ErrRoomNotFound, ErrRoomFull or
// ErrGameAlreadyStarted.
func (e *Engine) Join(code, name string) (string, error) {
	rules, a, err := e.roomRules(code)
	if err != nil {
		return "", err
	}
	playerID := uuid.NewString()
	seats := rules.MaxPlayers()
	e.mu.Lock()
	if e.maxPlayers > 0 && e.maxPlayers < seats {
		seats = e.maxPlayers
	}
	e.mu.Unlock()
	err = a.do(func(st *room.State) error {
		if st.Status != room.StatusLobby {
			return room.ErrGameAlreadyStarted
		}
		if len(st.Players) >= seats {
			return room.ErrRoomFull
		}
		st.Players = append(st.Players, room.NewPlayer(playerID, name))
		st.Logf(room.LogNeutral, "%s joined", name)
		return nil
	})
	if err != nil {
		return "", err
	}
	return playerID, nil
}

// Leave removes a player. The host leaving tears the whole room down:
// host authority is never re-elected.
func (e *Engine) Leave(code, playerID string) error {
	rules, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	return a.do(func(st *room.State) error {
		return removePlayer(st, rules, playerID, "left")
	})
}

// Kick removes a player by host authority.
func (e *Engine) Kick(code, actorID, targetID string) error {
	rules, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	return a.do(func(st *room.State) error {
		if actorID != st.HostID {
			return room.ErrNotHost
		}
		if targetID == st.HostID {
			return room.Illegalf("the host cannot kick themselves")
		}
		return removePlayer(st, rules, targetID, "was kicked")
	})
}

// ToggleReady flips the player's ready flag. Toggling twice is identity.
func (e *Engine) ToggleReady(code, playerID string) error {
	_, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	return a.do(func(st *room.State) error {
		p, _ := st.PlayerByID(playerID)
		if p == nil {
			return room.ErrNotInRoom
		}
		p.Ready = !p.Ready
		return nil
	})
}

// StartGame begins play from the lobby, or deals the next round from
// round_end. Host only; every non-host player must be ready.
func (e *Engine) StartGame(code, actorID string) error {
	rules, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	rng := e.roomRNG(code)
	return a.do(func(st *room.State) error {
		if actorID != st.HostID {
			return room.ErrNotHost
		}
		switch st.Status {
		case room.StatusLobby:
			if len(st.Players) < rules.MinPlayers() {
				return room.ErrNotEnoughPlayers
			}
		case room.StatusRoundEnd:
			// next round of a running game
		default:
			return room.ErrGameAlreadyStarted
		}
		if !st.AllReady() {
			return room.Illegalf("waiting for every player to be ready")
		}
		if st.Status == room.StatusLobby {
			st.Round = 1
		} else {
			st.Round++
		}
		if err := rules.Start(st, rng); err != nil {
			return err
		}
		st.Status = room.StatusPlaying
		st.ClearReady()
		st.Logf(room.LogSuccess, "round %d started", st.Round)
		return nil
	})
}

// Reset returns the room to the lobby, clearing all game state. Host
// only.
func (e *Engine) Reset(code, actorID string) error {
	_, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	return a.do(func(st *room.State) error {
		if actorID != st.HostID {
			return room.ErrNotHost
		}
		st.Status = room.StatusLobby
		st.Payload = nil
		st.Turn = 0
		st.Round = 0
		for _, p := range st.Players {
			p.Ready = false
			p.Eliminated = false
			p.Score = 0
		}
		st.Log(room.LogWarning, "the host reset the room to the lobby")
		return nil
	})
}

// Act routes a game action to the room's rules.
func (e *Engine) Act(code, actorID, kind string, data json.RawMessage) error {
	rules, a, err := e.roomRules(code)
	if err != nil {
		return err
	}
	return a.do(func(st *room.State) error {
		if _, idx := st.PlayerByID(actorID); idx < 0 {
			return room.ErrNotInRoom
		}
		if st.Status != room.StatusPlaying {
			return room.Illegalf("no actions allowed while the room is %s", st.Status)
		}
		return rules.Apply(st, actorID, kind, data)
	})
}

// View returns the room projected for one viewer.
func (e *Engine) View(code, viewerID string) (*room.View, error) {
	st, _, err := e.store.Get(code)
	if err != nil {
		return nil, err
	}
	return st.View(viewerID), nil
}

// removePlayer is the shared leave/kick path: it deletes the seat,
// re-derives the turn pointer and lets the game clear any sub-state the
// departed player was involved in.
func removePlayer(st *room.State, rules Rules, playerID, verb string) error {
	p, idx := st.PlayerByID(playerID)
	if idx < 0 {
		return room.ErrNotInRoom
	}
	if playerID == st.HostID {
		return errTearDown
	}
	name := p.Name
	st.RemovePlayer(playerID)
	st.Logf(room.LogWarning, "%s %s", name, verb)

	if st.Status == room.StatusPlaying || st.Status == room.StatusRoundEnd {
		rules.PlayerLeft(st, playerID)
		if len(st.Players) < rules.MinPlayers() || st.AliveCount() <= 1 {
			st.Status = room.StatusFinished
			st.Log(room.LogDanger, "too few players remain; the game is over")
		}
	}
	return nil
}

// roomRules resolves the actor and rules for a live room.
func (e *Engine) roomRules(code string) (Rules, *actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.actors[code]
	if !ok {
		return nil, nil, room.ErrRoomNotFound
	}
	rules, ok := e.games[a.game]
	if !ok {
		return nil, nil, room.ErrUnknownGame
	}
	return rules, a, nil
}

func (e *Engine) roomRNG(code string) *rand.Rand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rngs[code]
}
