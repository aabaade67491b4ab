package models

// AliasTable collapses legacy ids onto canonical keys. Keys keep the order in
// which they were first seen, and members keep file order within a key.
type AliasTable struct {
	keys      []string
	members   map[string][]int64
	canonical map[int64]string
}

// NewAliasTable returns an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{
		members:   make(map[string][]int64),
		canonical: make(map[int64]string),
	}
}

// Add maps legacyID onto key. It returns false when legacyID is already
// mapped; the first mapping wins.
func (a *AliasTable) Add(legacyID int64, key string) bool {
	if _, ok := a.canonical[legacyID]; ok {
		return false
	}

	if _, ok := a.members[key]; !ok {
		a.keys = append(a.keys, key)
	}

	a.members[key] = append(a.members[key], legacyID)
	a.canonical[legacyID] = key

	return true
}

// Keys returns canonical keys in first-seen order.
func (a *AliasTable) Keys() []string {
	if a == nil {
		return nil
	}

	return a.keys
}

// Members returns the legacy ids mapped onto key.
func (a *AliasTable) Members(key string) []int64 {
	if a == nil {
		return nil
	}

	return a.members[key]
}

// Contains reports whether legacyID is mentioned in the table.
func (a *AliasTable) Contains(legacyID int64) bool {
	if a == nil {
		return false
	}

	_, ok := a.canonical[legacyID]

	return ok
}

// Empty reports whether the table is absent or has no rows.
func (a *AliasTable) Empty() bool {
	return a == nil || len(a.canonical) == 0
}

// Target is one destination entity together with the legacy ids that
// collapse onto it.
type Target struct {
	Name          string
	Description   string
	Members       []int64
	DestinationID int64
}
