package protocol

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"partyline/internal/room"
)

func newTestRoom(t *testing.T, players int) *room.State {
	t.Helper()
	st := &room.State{
		Code:    "TEST22",
		HostID:  "p0",
		Status:  room.StatusPlaying,
		Players: make([]*room.Player, 0, players),
	}
	for i := 0; i < players; i++ {
		id := fmt.Sprintf("p%d", i)
		st.Players = append(st.Players, room.NewPlayer(id, "Player "+id))
	}
	if err := New().Start(st, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return st
}

func teamJSON(ids ...string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{"team": ids})
	return b
}

func voteJSON(approve bool) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"approve":%v}`, approve))
}

func submitJSON(success bool) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"success":%v}`, success))
}

// approveTeam drives a full proposal+vote for the given team.
func approveTeam(t *testing.T, st *room.State, team ...string) {
	t.Helper()
	r := New()
	leader := st.ActivePlayer()
	if err := r.Apply(st, leader.ID, actionPropose, teamJSON(team...)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	for _, pl := range st.Players {
		if err := r.Apply(st, pl.ID, actionVote, voteJSON(true)); err != nil {
			t.Fatalf("vote by %s: %v", pl.ID, err)
		}
	}
}

func TestStart_RoleCounts(t *testing.T) {
	for _, n := range []int{5, 6, 7, 8, 9, 10} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			st := newTestRoom(t, n)
			p := st.Payload.(*Payload)

			rogues := 0
			for _, role := range p.Roles {
				if role == RoleRogue {
					rogues++
				}
			}
			if rogues != rogueCounts[n] {
				t.Errorf("%d rogues among %d players, want %d", rogues, n, rogueCounts[n])
			}
			if len(p.Roles) != n {
				t.Errorf("roles dealt to %d players, want %d", len(p.Roles), n)
			}
		})
	}
}

func TestTwoFailMission(t *testing.T) {
	if TwoFailMission(5, 4) {
		t.Error("5-player mission 4 should need one sabotage")
	}
	if !TwoFailMission(7, 4) {
		t.Error("7-player mission 4 should need two sabotages")
	}
	if TwoFailMission(7, 3) {
		t.Error("7-player mission 3 should need one sabotage")
	}
}

func TestPropose_TeamSizeEnforced(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	leader := st.ActivePlayer()

	// Mission 1 at 5 players needs exactly 2.
	err := r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p1", "p2"))
	if !room.IsIllegal(err) {
		t.Errorf("oversized team should be illegal, got %v", err)
	}
	err = r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p0"))
	if !room.IsIllegal(err) {
		t.Errorf("duplicate member should be illegal, got %v", err)
	}
	if err := r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p1")); err != nil {
		t.Fatalf("legal proposal rejected: %v", err)
	}
}

func TestPropose_NonLeaderRejected(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	other := st.Players[(st.Turn+1)%5]

	err := r.Apply(st, other.ID, actionPropose, teamJSON("p0", "p1"))
	if !room.IsIllegal(err) {
		t.Errorf("non-leader proposal should be illegal, got %v", err)
	}
}

func TestVote_RejectionRotatesLeader(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	p := st.Payload.(*Payload)
	leader := st.ActivePlayer()

	if err := r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p1")); err != nil {
		t.Fatalf("propose: %v", err)
	}
	for _, pl := range st.Players {
		if err := r.Apply(st, pl.ID, actionVote, voteJSON(false)); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	if p.Rejections != 1 {
		t.Errorf("rejections = %d, want 1", p.Rejections)
	}
	if p.Phase != PhasePropose {
		t.Errorf("phase = %s, want propose", p.Phase)
	}
	if st.ActivePlayer().ID == leader.ID {
		t.Error("leadership should rotate after a rejection")
	}
}

func TestVote_TieRejects(t *testing.T) {
	st := newTestRoom(t, 6)
	r := New()
	p := st.Payload.(*Payload)
	leader := st.ActivePlayer()

	if err := r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p1")); err != nil {
		t.Fatalf("propose: %v", err)
	}
	for i, pl := range st.Players {
		if err := r.Apply(st, pl.ID, actionVote, voteJSON(i%2 == 0)); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if p.Phase != PhasePropose || p.Rejections != 1 {
		t.Errorf("3-3 tie should reject (phase=%s rejections=%d)", p.Phase, p.Rejections)
	}
}

func TestFiveRejections_RoguesWin(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	p := st.Payload.(*Payload)

	for i := 0; i < maxRejections; i++ {
		leader := st.ActivePlayer()
		if err := r.Apply(st, leader.ID, actionPropose, teamJSON("p0", "p1")); err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
		for _, pl := range st.Players {
			if err := r.Apply(st, pl.ID, actionVote, voteJSON(false)); err != nil {
				t.Fatalf("vote: %v", err)
			}
		}
	}

	if p.Winner != RoleRogue {
		t.Errorf("winner = %q, want rogue after five straight rejections", p.Winner)
	}
	if st.Status != room.StatusFinished {
		t.Errorf("status = %s, want finished", st.Status)
	}
}

func TestMission_SabotageThresholds(t *testing.T) {
	t.Run("one sabotage fails a normal mission", func(t *testing.T) {
		st := newTestRoom(t, 5)
		r := New()
		p := st.Payload.(*Payload)

		rogue := findRole(st, p, RoleRogue)
		loyal := findRole(st, p, RoleLoyal)
		approveTeam(t, st, rogue, loyal)

		if err := r.Apply(st, rogue, actionSubmit, submitJSON(false)); err != nil {
			t.Fatalf("sabotage: %v", err)
		}
		if err := r.Apply(st, loyal, actionSubmit, submitJSON(true)); err != nil {
			t.Fatalf("clean packet: %v", err)
		}
		if len(p.Results) != 1 || p.Results[0] {
			t.Errorf("results = %v, want one failed mission", p.Results)
		}
	})

	t.Run("7 players mission 4 needs two sabotages", func(t *testing.T) {
		st := newTestRoom(t, 7)
		r := New()
		p := st.Payload.(*Payload)

		// Fast-forward to mission 4 with a 1-1 ledger so nothing ends
		// the game early.
		p.Mission = 4
		p.Results = []bool{true, false, true}

		rogue := findRole(st, p, RoleRogue)
		team := []string{rogue}
		for _, pl := range st.Players {
			if pl.ID != rogue && len(team) < 4 {
				team = append(team, pl.ID)
			}
		}
		approveTeam(t, st, team...)

		if err := r.Apply(st, rogue, actionSubmit, submitJSON(false)); err != nil {
			t.Fatalf("sabotage: %v", err)
		}
		for _, id := range team[1:] {
			if err := r.Apply(st, id, actionSubmit, submitJSON(true)); err != nil {
				t.Fatalf("clean packet: %v", err)
			}
		}

		// Exactly one sabotage on the two-fail mission still succeeds.
		if got := p.Results[len(p.Results)-1]; !got {
			t.Error("one sabotage should not fail the two-fail mission")
		}
	})
}

func TestSubmit_LoyalCannotSabotage(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	p := st.Payload.(*Payload)

	loyal := findRole(st, p, RoleLoyal)
	rogue := findRole(st, p, RoleRogue)
	approveTeam(t, st, loyal, rogue)

	err := r.Apply(st, loyal, actionSubmit, submitJSON(false))
	if !room.IsIllegal(err) {
		t.Errorf("loyal sabotage should be illegal, got %v", err)
	}
}

func TestThreeResults_DecideGame(t *testing.T) {
	st := newTestRoom(t, 5)
	r := New()
	p := st.Payload.(*Payload)

	p.Results = []bool{true, true}
	loyalA := findRole(st, p, RoleLoyal)
	loyalB := ""
	for _, pl := range st.Players {
		if p.Roles[pl.ID] == RoleLoyal && pl.ID != loyalA {
			loyalB = pl.ID
			break
		}
	}
	p.Mission = 3
	approveTeam(t, st, loyalA, loyalB)

	if err := r.Apply(st, loyalA, actionSubmit, submitJSON(true)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Apply(st, loyalB, actionSubmit, submitJSON(true)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if p.Winner != RoleLoyal {
		t.Errorf("winner = %q, want loyal after three clean missions", p.Winner)
	}
	if st.Status != room.StatusFinished {
		t.Errorf("status = %s, want finished", st.Status)
	}
}

func TestRedact_RoleSecrecy(t *testing.T) {
	st := newTestRoom(t, 5)
	p := st.Payload.(*Payload)

	rogue := findRole(st, p, RoleRogue)
	loyal := findRole(st, p, RoleLoyal)

	loyalView := st.View(loyal).Payload.(*Payload)
	if len(loyalView.Roles) != 1 || loyalView.Roles[loyal] != RoleLoyal {
		t.Errorf("loyal viewer sees roles %v, want only their own", loyalView.Roles)
	}

	rogueView := st.View(rogue).Payload.(*Payload)
	for id, role := range rogueView.Roles {
		if role != RoleRogue && id != rogue {
			t.Errorf("rogue viewer sees loyal role for %s", id)
		}
	}
	rogueSeen := 0
	for _, role := range rogueView.Roles {
		if role == RoleRogue {
			rogueSeen++
		}
	}
	if rogueSeen != rogueCounts[5] {
		t.Errorf("rogue viewer sees %d rogues, want %d", rogueSeen, rogueCounts[5])
	}
}

func TestPlayerLeft_DissolvesPendingTeam(t *testing.T) {
	st := newTestRoom(t, 6)
	r := New()
	p := st.Payload.(*Payload)
	leader := st.ActivePlayer()

	member := st.Players[(st.Turn+1)%6]
	if err := r.Apply(st, leader.ID, actionPropose, teamJSON(leader.ID, member.ID)); err != nil {
		t.Fatalf("propose: %v", err)
	}

	st.RemovePlayer(member.ID)
	New().PlayerLeft(st, member.ID)

	if p.Phase != PhasePropose || p.Team != nil {
		t.Errorf("phase=%s team=%v, want fresh proposal after departure", p.Phase, p.Team)
	}
}

func findRole(st *room.State, p *Payload, role string) string {
	for _, pl := range st.Players {
		if p.Roles[pl.ID] == role {
			return pl.ID
		}
	}
	return ""
}
