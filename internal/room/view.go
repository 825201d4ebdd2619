package room

// View is a room document projected for one observing player: opponents'
// private holdings redacted, plus the affordances the client needs to
// decide which controls to enable. Affordances are derived purely from
// document fields; there is no separate access-control layer.
type View struct {
	*State
	ViewerID     string `json:"viewerId"`
	YourTurn     bool   `json:"yourTurn"`
	PendingOnYou bool   `json:"pendingOnYou"`
	IsHost       bool   `json:"isHost"`
}

// View projects the state for the given viewer. The result is a deep
// copy; callers may hand it to an encoder without further locking.
func (s *State) View(viewerID string) *View {
	c := s.Clone()
	if c.Payload != nil {
		c.Payload.Redact(viewerID)
	}
	v := &View{
		State:    c,
		ViewerID: viewerID,
		IsHost:   viewerID == c.HostID,
	}
	if active := c.ActivePlayer(); active != nil && c.Status == StatusPlaying {
		v.YourTurn = active.ID == viewerID
	}
	if c.Payload != nil && c.Status == StatusPlaying {
		v.PendingOnYou = c.Payload.PendingFor(viewerID)
	}
	return v
}
