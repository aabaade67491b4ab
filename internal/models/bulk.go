package models

// InsertOp is a batch of typed rows bound for one destination table. Each row
// holds one value per column. Returning names the generated columns the store
// must hand back for every row, in submission order.
type InsertOp struct {
	Table     string
	Columns   []string
	Rows      [][]any
	Returning []string

	// SkipConflicts makes a uniqueness violation on a single row skip that
	// row instead of failing the batch.
	SkipConflicts bool
}

// InsertResult is the outcome of one submitted row.
type InsertResult struct {
	Values   []int64
	Conflict bool
}

// UpdateRow sets Values on the row whose key column equals Key.
type UpdateRow struct {
	Key    int64
	Values []any
}

// UpdateOp is a batch of keyed updates applied in one transaction.
type UpdateOp struct {
	Table     string
	KeyColumn string
	Columns   []string
	Rows      []UpdateRow
}

// RecomputeStep names an aggregate recomputation the store knows how to run.
type RecomputeStep string

// Recompute steps, in the order the stats driver issues them.
const (
	StepUserActions     RecomputeStep = "user_actions"
	StepGroupCounts     RecomputeStep = "group_counts"
	StepTopicStats      RecomputeStep = "topic_stats"
	StepPostReplyUsers  RecomputeStep = "post_reply_users"
	StepCategorySearch  RecomputeStep = "category_search"
	StepPostSearchReset RecomputeStep = "post_search_reset"
	StepUserSearch      RecomputeStep = "user_search"
)

// TextRow is an id with a text column, used for bios read back for cooking.
type TextRow struct {
	ID   int64
	Text string
}

// SearchDoc is one post's search input: its cooked body plus the title and
// category name of the topic it belongs to.
type SearchDoc struct {
	PostID       int64
	Cooked       string
	TopicTitle   string
	CategoryName string
}
