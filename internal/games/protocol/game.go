// Package protocol implements a hidden-role mission game. A few players
// are secretly rogue processes; each mission the leader proposes a team,
// the table votes, and an approved team secretly submits clean or
// sabotage packets. Five straight rejected proposals hand the game to
// the rogues, as do three failed missions; three clean missions win it
// for the loyal processes.
package protocol

import (
	"encoding/json"
	"math/rand"

	"partyline/internal/room"
)

// Roles.
const (
	RoleLoyal = "loyal"
	RoleRogue = "rogue"
)

// Phases within a playing round.
const (
	PhasePropose = "propose"
	PhaseVote    = "vote"
	PhaseMission = "mission"
)

const (
	missions        = 5
	maxRejections   = 5
	minPlayers      = 5
	maxPlayers      = 10
	actionPropose   = "propose"
	actionVote      = "vote"
	actionSubmit    = "submit"
	eventVoteResult = "vote_result"
	eventMission    = "mission_result"
)

// rogueCounts maps player count to the number of hidden rogues.
var rogueCounts = map[int]int{5: 2, 6: 2, 7: 3, 8: 3, 9: 3, 10: 4}

// teamSizes maps player count to the team size of each mission.
var teamSizes = map[int][missions]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

// TwoFailMission reports whether the given mission (1-based) needs two
// sabotage packets to fail at the given table size.
func TwoFailMission(playerCount, mission int) bool {
	return playerCount >= 7 && mission == 4
}

// Payload is the game-specific room document section.
type Payload struct {
	// Roles are secret: each viewer sees their own; rogues see each
	// other.
	Roles map[string]string `json:"roles"`
	// Mission is 1-based; Results records outcomes of played missions.
	Mission int      `json:"mission"`
	Phase   string   `json:"phase"`
	Team    []string `json:"team,omitempty"`
	// Votes on the proposed team, hidden until everyone has voted.
	Votes map[string]bool `json:"votes"`
	// Submissions from the acting team, always hidden.
	Submissions map[string]bool `json:"submissions"`
	Rejections  int             `json:"rejections"`
	Results     []bool          `json:"results"`
	Winner      string          `json:"winner,omitempty"`
}

func (p *Payload) Clone() room.Payload {
	c := &Payload{
		Mission:     p.Mission,
		Phase:       p.Phase,
		Team:        append([]string(nil), p.Team...),
		Rejections:  p.Rejections,
		Results:     append([]bool(nil), p.Results...),
		Winner:      p.Winner,
		Roles:       make(map[string]string, len(p.Roles)),
		Votes:       make(map[string]bool, len(p.Votes)),
		Submissions: make(map[string]bool, len(p.Submissions)),
	}
	for id, role := range p.Roles {
		c.Roles[id] = role
	}
	for id, v := range p.Votes {
		c.Votes[id] = v
	}
	for id, v := range p.Submissions {
		c.Submissions[id] = v
	}
	return c
}

func (p *Payload) Redact(viewerID string) {
	rogueViewer := p.Roles[viewerID] == RoleRogue && p.Winner == ""
	for id := range p.Roles {
		if id == viewerID {
			continue
		}
		if p.Winner != "" {
			continue // everything is revealed once the game is decided
		}
		if rogueViewer && p.Roles[id] == RoleRogue {
			continue
		}
		delete(p.Roles, id)
	}
	for id := range p.Votes {
		if id != viewerID {
			delete(p.Votes, id)
		}
	}
	for id := range p.Submissions {
		if id != viewerID {
			delete(p.Submissions, id)
		}
	}
}

func (p *Payload) PendingFor(viewerID string) bool {
	switch p.Phase {
	case PhaseVote:
		_, voted := p.Votes[viewerID]
		return !voted
	case PhaseMission:
		if !contains(p.Team, viewerID) {
			return false
		}
		_, submitted := p.Submissions[viewerID]
		return !submitted
	}
	return false
}

// Rules implements the engine contract.
type Rules struct{}

func New() *Rules { return &Rules{} }

func (Rules) Name() string    { return "protocol" }
func (Rules) MinPlayers() int { return minPlayers }
func (Rules) MaxPlayers() int { return maxPlayers }

func (Rules) Start(st *room.State, rng *rand.Rand) error {
	n := len(st.Players)
	p := &Payload{
		Mission:     1,
		Phase:       PhasePropose,
		Roles:       make(map[string]string, n),
		Votes:       make(map[string]bool),
		Submissions: make(map[string]bool),
	}

	order := rng.Perm(n)
	rogues := rogueCounts[n]
	for i, seat := range order {
		role := RoleLoyal
		if i < rogues {
			role = RoleRogue
		}
		p.Roles[st.Players[seat].ID] = role
	}

	st.Payload = p
	st.Turn = rng.Intn(n)
	st.Logf(room.LogNeutral, "%d processes spawn; %d are rogue", n, rogues)
	return nil
}

func (r Rules) Apply(st *room.State, actorID, kind string, data json.RawMessage) error {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return room.Illegalf("roles not dealt yet")
	}
	if p.Winner != "" {
		return room.Illegalf("the game is already decided")
	}
	actor, _ := st.PlayerByID(actorID)
	if actor == nil {
		return room.Illegalf("you are not seated in this room")
	}

	switch kind {
	case actionPropose:
		return propose(st, p, actor, data)
	case actionVote:
		return vote(st, p, actor, data)
	case actionSubmit:
		return submit(st, p, actor, data)
	default:
		return room.Illegalf("unknown action %q", kind)
	}
}

func (Rules) PlayerLeft(st *room.State, playerID string) {
	p, ok := st.Payload.(*Payload)
	if !ok {
		return
	}
	delete(p.Roles, playerID)
	delete(p.Votes, playerID)
	delete(p.Submissions, playerID)

	// A proposal or mission involving the departed player cannot stand;
	// fall back to a fresh proposal without burning a rejection.
	if contains(p.Team, playerID) {
		p.Team = nil
		p.Votes = make(map[string]bool)
		p.Submissions = make(map[string]bool)
		p.Phase = PhasePropose
		st.Log(room.LogWarning, "the proposed team dissolved; the leader proposes again")
		return
	}
	// Everyone may already have voted once the departed vote is gone.
	if p.Phase == PhaseVote && len(p.Votes) == len(st.Players) {
		tallyVotes(st, p)
	}
	if p.Phase == PhaseMission && allSubmitted(p) {
		resolveMission(st, p)
	}
}

func propose(st *room.State, p *Payload, actor *room.Player, data json.RawMessage) error {
	if p.Phase != PhasePropose {
		return room.Illegalf("no proposal is expected now")
	}
	leader := st.ActivePlayer()
	if leader == nil || leader.ID != actor.ID {
		return room.Illegalf("only the leader proposes a team")
	}

	var req struct {
		Team []string `json:"team"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return room.Illegalf("malformed proposal")
	}
	want := teamSizes[len(st.Players)][p.Mission-1]
	if len(req.Team) != want {
		return room.Illegalf("mission %d needs a team of %d", p.Mission, want)
	}
	seen := make(map[string]bool, len(req.Team))
	for _, id := range req.Team {
		if member, _ := st.PlayerByID(id); member == nil {
			return room.Illegalf("proposed member is not in the room")
		}
		if seen[id] {
			return room.Illegalf("duplicate team member")
		}
		seen[id] = true
	}

	p.Team = req.Team
	p.Phase = PhaseVote
	p.Votes = make(map[string]bool)
	st.Logf(room.LogNeutral, "%s proposes a team of %d for mission %d", actor.Name, want, p.Mission)
	return nil
}

func vote(st *room.State, p *Payload, actor *room.Player, data json.RawMessage) error {
	if p.Phase != PhaseVote {
		return room.Illegalf("no vote is open")
	}
	if _, voted := p.Votes[actor.ID]; voted {
		return room.Illegalf("you have already voted")
	}
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return room.Illegalf("malformed vote")
	}

	p.Votes[actor.ID] = req.Approve
	st.Logf(room.LogNeutral, "%s casts a vote", actor.Name)

	if len(p.Votes) == len(st.Players) {
		tallyVotes(st, p)
	}
	return nil
}

func submit(st *room.State, p *Payload, actor *room.Player, data json.RawMessage) error {
	if p.Phase != PhaseMission {
		return room.Illegalf("no mission is underway")
	}
	if !contains(p.Team, actor.ID) {
		return room.Illegalf("you are not on the mission team")
	}
	if _, submitted := p.Submissions[actor.ID]; submitted {
		return room.Illegalf("you have already submitted")
	}
	var req struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return room.Illegalf("malformed submission")
	}
	if !req.Success && p.Roles[actor.ID] != RoleRogue {
		return room.Illegalf("loyal processes cannot sabotage")
	}

	p.Submissions[actor.ID] = req.Success
	st.Logf(room.LogNeutral, "%s submits a packet", actor.Name)

	if allSubmitted(p) {
		resolveMission(st, p)
	}
	return nil
}

// tallyVotes resolves a complete table vote. A strict majority approves;
// a tie rejects.
func tallyVotes(st *room.State, p *Payload) {
	approvals := 0
	for _, approve := range p.Votes {
		if approve {
			approvals++
		}
	}
	approved := approvals*2 > len(st.Players)
	st.Emit(eventVoteResult, "", map[string]any{
		"approvals": approvals,
		"voters":    len(st.Players),
		"approved":  approved,
	})

	if approved {
		p.Phase = PhaseMission
		p.Rejections = 0
		p.Submissions = make(map[string]bool)
		st.Logf(room.LogSuccess, "team approved %d-%d; the mission begins", approvals, len(st.Players)-approvals)
		return
	}

	p.Rejections++
	p.Team = nil
	p.Votes = make(map[string]bool)
	p.Phase = PhasePropose
	st.AdvanceTurn()
	st.Logf(room.LogWarning, "team rejected %d-%d (%d of %d)", approvals, len(st.Players)-approvals, p.Rejections, maxRejections)

	if p.Rejections >= maxRejections {
		decide(st, p, RoleRogue, "five proposals rejected in a row")
	}
}

// resolveMission scores a complete set of packet submissions.
func resolveMission(st *room.State, p *Payload) {
	sabotage := 0
	for _, success := range p.Submissions {
		if !success {
			sabotage++
		}
	}
	needed := 1
	if TwoFailMission(len(st.Players), p.Mission) {
		needed = 2
	}
	failed := sabotage >= needed

	p.Results = append(p.Results, !failed)
	st.Emit(eventMission, "", map[string]any{
		"mission":  p.Mission,
		"sabotage": sabotage,
		"failed":   failed,
	})
	if failed {
		st.Logf(room.LogDanger, "mission %d fails with %d sabotage packet(s)", p.Mission, sabotage)
	} else {
		st.Logf(room.LogSuccess, "mission %d succeeds", p.Mission)
	}

	wins, fails := 0, 0
	for _, ok := range p.Results {
		if ok {
			wins++
		} else {
			fails++
		}
	}
	switch {
	case wins >= 3:
		decide(st, p, RoleLoyal, "three clean missions")
		return
	case fails >= 3:
		decide(st, p, RoleRogue, "three failed missions")
		return
	}

	p.Mission++
	p.Team = nil
	p.Votes = make(map[string]bool)
	p.Submissions = make(map[string]bool)
	p.Phase = PhasePropose
	st.AdvanceTurn()
}

// decide ends the game for one faction.
func decide(st *room.State, p *Payload, winner, reason string) {
	p.Winner = winner
	st.Status = room.StatusFinished
	for _, pl := range st.Players {
		if p.Roles[pl.ID] == winner {
			pl.Score++
		}
	}
	if winner == RoleLoyal {
		st.Logf(room.LogSuccess, "loyal processes win: %s", reason)
	} else {
		st.Logf(room.LogDanger, "rogue processes win: %s", reason)
	}
}

func allSubmitted(p *Payload) bool {
	for _, id := range p.Team {
		if _, ok := p.Submissions[id]; !ok {
			return false
		}
	}
	return true
}

func contains(team []string, id string) bool {
	for _, member := range team {
		if member == id {
			return true
		}
	}
	return false
}
