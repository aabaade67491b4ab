package materialize

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
)

// groups creates one destination group per target and maps every member
// legacy id onto it.
func (m *Materializer) groups(ctx context.Context, ds *models.Dataset) error {
	rows := make([][]any, len(ds.GroupTargets))
	for i, t := range ds.GroupTargets {
		rows[i] = []any{t.Name}
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table:         "groups",
		Columns:       []string{"name"},
		Rows:          rows,
		Returning:     []string{"id"},
		SkipConflicts: true,
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	for i, res := range results {
		t := ds.GroupTargets[i]

		if res.Conflict {
			for _, id := range loadedMembers(t.Members, ds.Groups) {
				m.conflict(ds, models.EntityGroup, id, "duplicate name", logrus.Fields{"name": t.Name})
			}

			continue
		}

		t.DestinationID = res.Values[0]

		for _, id := range t.Members {
			m.groupDest[id] = t.DestinationID

			if g, ok := ds.Groups[id]; ok {
				g.DestinationID = t.DestinationID
				ds.Report.Record(models.Accepted(models.EntityGroup, id))
			}
		}
	}

	return nil
}

// users persists every accepted user. A destination collision on username or
// email skips the user; its content falls back to the sentinel author.
func (m *Materializer) users(ctx context.Context, ds *models.Dataset) error {
	ids := models.SortedIDs(ds.Users)
	rows := make([][]any, len(ids))

	for i, id := range ids {
		u := ds.Users[id]

		var primaryGroup any
		if gid, ok := m.groupDest[u.GroupLegacyID]; ok {
			primaryGroup = gid
		}

		rows[i] = []any{
			u.Username,
			strings.ToLower(u.Username),
			nullable(u.DisplayName),
			u.Email,
			nullable(u.Website),
			nullable(u.Title),
			primaryGroup,
			1,
			false,
			false,
			nullable(u.Bio),
		}
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table: "users",
		Columns: []string{
			"username", "username_lower", "name", "email", "website", "title",
			"primary_group_id", "trust_level", "email_digests", "external_links_in_new_tab", "bio_raw",
		},
		Rows:          rows,
		Returning:     []string{"id"},
		SkipConflicts: true,
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	for i, res := range results {
		u := ds.Users[ids[i]]

		if res.Conflict {
			m.conflict(ds, models.EntityUser, u.LegacyID, "duplicate username or email", logrus.Fields{"username": u.Username})

			continue
		}

		u.DestinationID = res.Values[0]
		ds.Report.Record(models.Accepted(models.EntityUser, u.LegacyID))
	}

	return nil
}

// memberships adds every persisted user to the destination group of its
// legacy group.
func (m *Materializer) memberships(ctx context.Context, ds *models.Dataset) error {
	var (
		rows    [][]any
		members []int64
	)

	for _, id := range models.SortedIDs(ds.Users) {
		u := ds.Users[id]
		if !u.Persisted() {
			continue
		}

		gid, ok := m.groupDest[u.GroupLegacyID]
		if !ok {
			continue
		}

		rows = append(rows, []any{gid, u.DestinationID})
		members = append(members, id)
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table:         "group_users",
		Columns:       []string{"group_id", "user_id"},
		Rows:          rows,
		SkipConflicts: true,
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	for i, res := range results {
		if res.Conflict {
			m.conflict(ds, models.EntityMembership, members[i], "already a member", nil)

			continue
		}

		ds.Report.Record(models.Accepted(models.EntityMembership, members[i]))
	}

	return nil
}

// loadedMembers returns the members present in loaded, in member order.
func loadedMembers[T any](members []int64, loaded map[int64]*T) []int64 {
	var out []int64

	for _, id := range members {
		if _, ok := loaded[id]; ok {
			out = append(out, id)
		}
	}

	return out
}
