// Package permission maps legacy forum permission bitfields onto destination
// category permission levels.
package permission

import "github.com/persistorai/forumport/internal/models"

// Legacy forum permission bits.
const (
	CanView        = 1
	CanPostNew     = 16
	CanReplyOwn    = 32
	CanReplyOthers = 64
	CanViewThreads = 524288
)

// Translate returns the destination level for a legacy bitfield. The second
// result is false when the group cannot see the category at all, in which
// case no permission row should be written.
func Translate(bits int64) (models.PermissionLevel, bool) {
	canSee := bits&(CanView|CanViewThreads) != 0
	canReply := bits&(CanReplyOwn|CanReplyOthers) != 0
	canCreate := bits&CanPostNew != 0

	switch {
	case canSee && canReply && canCreate:
		return models.PermissionFull, true
	case canSee && canReply:
		return models.PermissionCanPost, true
	case canSee:
		return models.PermissionReadOnly, true
	default:
		return models.PermissionNone, false
	}
}
