package room

import (
	"fmt"
	"testing"
)

func seated(n int) *State {
	st := &State{
		Code:   "ROOM22",
		HostID: "p0",
		Status: StatusPlaying,
	}
	for i := 0; i < n; i++ {
		st.Players = append(st.Players, NewPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i)))
	}
	return st
}

func TestAdvanceTurn_SkipsEliminated(t *testing.T) {
	st := seated(4)
	st.Turn = 0
	st.Players[1].Eliminated = true

	st.AdvanceTurn()
	if st.Turn != 2 {
		t.Errorf("turn = %d, want 2 (skipping eliminated seat 1)", st.Turn)
	}

	st.AdvanceTurn()
	st.AdvanceTurn()
	if st.Turn != 0 {
		t.Errorf("turn = %d, want 0 after wrapping", st.Turn)
	}
}

func TestTurnRotation_AlwaysLandsOnAlivePlayer(t *testing.T) {
	st := seated(5)
	st.Players[1].Eliminated = true
	st.Players[3].Eliminated = true

	for i := 0; i < 20; i++ {
		st.AdvanceTurn()
		p := st.ActivePlayer()
		if p == nil || p.Eliminated {
			t.Fatalf("iteration %d: active player %+v", i, p)
		}
	}
}

func TestRemovePlayer_TurnPointerIntegrity(t *testing.T) {
	t.Run("removing earlier seat shifts turn down", func(t *testing.T) {
		st := seated(4)
		st.Turn = 2

		hadTurn, ok := st.RemovePlayer("p0")
		if !ok || hadTurn {
			t.Fatalf("hadTurn=%v ok=%v", hadTurn, ok)
		}
		if st.Turn != 1 || st.ActivePlayer().ID != "p2" {
			t.Errorf("turn = %d (%s), want to still point at p2", st.Turn, st.ActivePlayer().ID)
		}
	})

	t.Run("removing the active player hands turn to successor", func(t *testing.T) {
		st := seated(4)
		st.Turn = 1

		hadTurn, ok := st.RemovePlayer("p1")
		if !ok || !hadTurn {
			t.Fatalf("hadTurn=%v ok=%v", hadTurn, ok)
		}
		if st.ActivePlayer().ID != "p2" {
			t.Errorf("active = %s, want successor p2", st.ActivePlayer().ID)
		}
	})

	t.Run("removing the last seat wraps the pointer", func(t *testing.T) {
		st := seated(3)
		st.Turn = 2

		hadTurn, _ := st.RemovePlayer("p2")
		if !hadTurn {
			t.Fatal("expected the removed player to hold the turn")
		}
		if st.Turn != 0 || st.ActivePlayer().ID != "p0" {
			t.Errorf("turn = %d (%s), want wrap to p0", st.Turn, st.ActivePlayer().ID)
		}
	})

	t.Run("unknown player is a no-op", func(t *testing.T) {
		st := seated(3)
		if _, ok := st.RemovePlayer("ghost"); ok {
			t.Error("removing an unknown player should report false")
		}
		if len(st.Players) != 3 {
			t.Error("seating changed")
		}
	})
}

func TestAllReady_HostExcluded(t *testing.T) {
	st := seated(3)
	if st.AllReady() {
		t.Error("nobody ready yet")
	}
	st.Players[1].Ready = true
	st.Players[2].Ready = true
	if !st.AllReady() {
		t.Error("all non-host players ready; host should not gate")
	}
}

func TestAllReady_EliminatedExcluded(t *testing.T) {
	st := seated(3)
	st.Players[1].Ready = true
	st.Players[2].Eliminated = true
	if !st.AllReady() {
		t.Error("an eliminated player should not gate readiness")
	}
}

func TestReadyToggle_Idempotent(t *testing.T) {
	st := seated(2)
	p := st.Players[1]
	before := p.Ready
	p.Ready = !p.Ready
	p.Ready = !p.Ready
	if p.Ready != before {
		t.Error("double toggle should restore the original state")
	}
}

func TestClone_IsDeep(t *testing.T) {
	st := seated(2)
	st.Log(LogNeutral, "hello")

	c := st.Clone()
	c.Players[0].Name = "mutated"
	c.Logs[0].Text = "mutated"

	if st.Players[0].Name == "mutated" {
		t.Error("clone shares player pointers")
	}
	if st.Logs[0].Text == "mutated" {
		t.Error("clone shares log backing array")
	}
}

func TestLog_UniqueIDs(t *testing.T) {
	st := seated(2)
	for i := 0; i < 50; i++ {
		st.Logf(LogNeutral, "entry %d", i)
	}
	seen := make(map[string]bool, len(st.Logs))
	for _, entry := range st.Logs {
		if seen[entry.ID] {
			t.Fatalf("duplicate log id %s", entry.ID)
		}
		seen[entry.ID] = true
	}
}

func TestGenerateCode_AlphabetAndLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		if len(code) != CodeLength {
			t.Fatalf("code %q length %d, want %d", code, len(code), CodeLength)
		}
		if !ValidCode(code) {
			t.Fatalf("generated code %q fails validation", code)
		}
		for _, forbidden := range "0O1IL" {
			for _, ch := range code {
				if ch == forbidden {
					t.Fatalf("code %q contains ambiguous character %c", code, forbidden)
				}
			}
		}
	}
}

func TestValidCode(t *testing.T) {
	if ValidCode("AB2") {
		t.Error("short code accepted")
	}
	if ValidCode("ABC10Z") {
		t.Error("code with forbidden characters accepted")
	}
	if !ValidCode("XK7Q2M") {
		t.Error("well-formed code rejected")
	}
}
