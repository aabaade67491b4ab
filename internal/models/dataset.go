package models

import (
	"slices"
	"strings"
)

// Dataset is the in-memory state handed from phase to phase. The loader
// fills the entity tables, the remapper fills the targets, and the
// materializer attaches destination ids in place.
type Dataset struct {
	Groups      map[int64]*Group
	Users       map[int64]*User
	Categories  map[int64]*Category
	Permissions []*CategoryPermission
	Topics      map[int64]*Topic
	Posts       map[int64]*Post

	GroupAliases    *AliasTable
	CategoryAliases *AliasTable

	GroupTargets    []*Target
	CategoryTargets []*Target

	// Indexes built during user acceptance.
	EmailIndex    map[string]int64
	UsernameIndex map[string]int64
	Renames       map[string]string

	Report *Report
}

// NewDataset returns an empty dataset reporting into report.
func NewDataset(report *Report) *Dataset {
	return &Dataset{
		Groups:        make(map[int64]*Group),
		Users:         make(map[int64]*User),
		Categories:    make(map[int64]*Category),
		Topics:        make(map[int64]*Topic),
		Posts:         make(map[int64]*Post),
		EmailIndex:    make(map[string]int64),
		UsernameIndex: make(map[string]int64),
		Renames:       make(map[string]string),
		Report:        report,
	}
}

// SortedIDs returns the keys of m in ascending order.
func SortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// UserByOriginalName finds an accepted user by its exported username,
// case-insensitively.
func (d *Dataset) UserByOriginalName(name string) (*User, bool) {
	chosen, ok := d.Renames[strings.ToLower(name)]
	if !ok {
		return nil, false
	}

	id, ok := d.UsernameIndex[strings.ToLower(chosen)]
	if !ok {
		return nil, false
	}

	u, ok := d.Users[id]

	return u, ok
}
