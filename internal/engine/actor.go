package engine

import (
	"errors"

	"github.com/rs/zerolog"

	"partyline/internal/room"
	"partyline/internal/store"
)

// errTearDown is returned by a mutator to request room deletion (host
// departure). The actor turns it into a store delete plus shutdown.
var errTearDown = errors.New("tear down room")

// intent is one request for the room actor: a mutator plus a reply
// channel the caller blocks on.
type intent struct {
	mutate func(st *room.State) error
	reply  chan error
}

// actor owns one room. It is the only writer of that room's document:
// clients submit intents over a channel, the actor applies them one at a
// time to a working copy and commits successful mutations to the store,
// which fans the new version out to subscribers. Two players acting in
// the same instant are therefore serialized instead of clobbering each
// other's writes.
type actor struct {
	code     string
	game     string
	state    *room.State
	intents  chan intent
	quit     chan struct{}
	store    *store.MemoryStore
	bus      *Bus
	log      zerolog.Logger
	onDelete func()
}

func newActor(code string, st *room.State, ms *store.MemoryStore, bus *Bus, log zerolog.Logger, onDelete func()) *actor {
	a := &actor{
		code:     code,
		game:     st.GameName,
		state:    st,
		intents:  make(chan intent, 32),
		quit:     make(chan struct{}),
		store:    ms,
		bus:      bus,
		log:      log.With().Str("room", code).Logger(),
		onDelete: onDelete,
	}
	go a.loop()
	return a
}

func (a *actor) loop() {
	for {
		select {
		case in := <-a.intents:
			in.reply <- a.handle(in.mutate)
		case <-a.quit:
			return
		}
	}
}

// handle applies the mutator to a working copy and swaps it in only on
// success, so a rejected action leaves the document bit-for-bit
// unchanged.
func (a *actor) handle(mutate func(st *room.State) error) error {
	next := a.state.Clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, errTearDown) {
			a.tearDown()
			return nil
		}
		return err
	}

	effects := next.Effects
	next.Effects = nil
	a.state = next

	if _, err := a.store.Update(a.code, next); err != nil {
		a.log.Error().Err(err).Msg("room vanished under its actor")
		return err
	}
	a.bus.publishEffects(a.code, effects)
	return nil
}

// tearDown deletes the room and shuts the actor down. Called from the
// actor goroutine when a mutator signals errTearDown.
func (a *actor) tearDown() {
	if err := a.store.Delete(a.code); err != nil {
		a.log.Error().Err(err).Msg("failed to delete room")
	}
	a.bus.DropRoom(a.code)
	if a.onDelete != nil {
		a.onDelete()
	}
	close(a.quit)
}

// do submits a mutator and waits for the actor's verdict.
func (a *actor) do(mutate func(st *room.State) error) error {
	in := intent{mutate: mutate, reply: make(chan error, 1)}
	select {
	case a.intents <- in:
	case <-a.quit:
		return room.ErrRoomNotFound
	}
	select {
	case err := <-in.reply:
		return err
	case <-a.quit:
		// The reply may have raced the shutdown.
		select {
		case err := <-in.reply:
			return err
		default:
			return room.ErrRoomNotFound
		}
	}
}
