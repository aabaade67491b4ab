package models

// User is a legacy account. Username holds the sanitized, unique name chosen
// for the destination; OriginalUsername is the name as exported.
type User struct {
	LegacyID         int64
	GroupLegacyID    int64
	DisplayName      string
	OriginalUsername string
	Username         string
	Email            string
	Website          string
	Title            string
	Bio              string
	DestinationID    int64
}

// Persisted reports whether the user has a destination id.
func (u *User) Persisted() bool { return u.DestinationID > 0 }

// SentinelUserID is the destination author id used for posts whose legacy
// author was rejected or never loaded.
const SentinelUserID int64 = -1
