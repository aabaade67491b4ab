package models

// Group is a legacy user group.
type Group struct {
	LegacyID      int64
	Name          string
	DestinationID int64
}

// Persisted reports whether the group has a destination id.
func (g *Group) Persisted() bool { return g.DestinationID > 0 }

// Membership links an accepted user to the destination group of its legacy group.
type Membership struct {
	GroupDestinationID int64
	UserDestinationID  int64
}
