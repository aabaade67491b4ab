package models

// Category is a legacy forum.
type Category struct {
	LegacyID      int64
	Name          string
	Description   string
	DestinationID int64
}

// Persisted reports whether the category has a destination id.
func (c *Category) Persisted() bool { return c.DestinationID > 0 }

// PermissionLevel is a destination category permission type. Lower non-zero
// values grant more.
type PermissionLevel int

// Destination permission levels.
const (
	PermissionNone     PermissionLevel = 0
	PermissionFull     PermissionLevel = 1
	PermissionCanPost  PermissionLevel = 2
	PermissionReadOnly PermissionLevel = 3
)

// String returns the level name used in logs and reports.
func (p PermissionLevel) String() string {
	switch p {
	case PermissionFull:
		return "full"
	case PermissionCanPost:
		return "can-post"
	case PermissionReadOnly:
		return "read-only"
	default:
		return "none"
	}
}

// MorePermissive reports whether p grants more than other.
func (p PermissionLevel) MorePermissive(other PermissionLevel) bool {
	if p == PermissionNone {
		return false
	}

	return other == PermissionNone || p < other
}

// CategoryPermission grants a legacy group a level on a legacy category.
type CategoryPermission struct {
	CategoryLegacyID int64
	GroupLegacyID    int64
	Level            PermissionLevel
}
