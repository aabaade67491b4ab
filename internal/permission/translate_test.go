package permission_test

import (
	"testing"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/permission"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		bits   int64
		want   models.PermissionLevel
		wantOK bool
	}{
		{"view only", permission.CanView, models.PermissionReadOnly, true},
		{"view threads only", permission.CanViewThreads, models.PermissionReadOnly, true},
		{"view and reply own", permission.CanView | permission.CanReplyOwn, models.PermissionCanPost, true},
		{"view and reply others", permission.CanView | permission.CanReplyOthers, models.PermissionCanPost, true},
		{"view reply post", permission.CanView | permission.CanReplyOwn | permission.CanPostNew, models.PermissionFull, true},
		{"zero", 0, models.PermissionNone, false},
		{"post without view", permission.CanPostNew | permission.CanReplyOwn, models.PermissionNone, false},
		{"post new without reply", permission.CanView | permission.CanPostNew, models.PermissionReadOnly, true},
		{"every bit", -1, models.PermissionFull, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := permission.Translate(tt.bits)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Translate(%d) = (%s, %v), want (%s, %v)", tt.bits, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
