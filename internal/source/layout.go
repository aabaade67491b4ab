package source

// Format describes how a tabular file is delimited.
type Format struct {
	Comma rune
	// Quoted files follow CSV quoting rules. Unquoted files are split on
	// Comma line by line, and quote characters are ordinary text.
	Quoted bool
}

// Common formats of a legacy export.
var (
	CSV = Format{Comma: ',', Quoted: true}
	TSV = Format{Comma: '\t', Quoted: false}
)

// FileSpec names one input file and maps logical fields onto its header
// columns.
type FileSpec struct {
	Name    string
	Format  Format
	Columns map[string]string
}

// column returns the header name for field, defaulting to the field itself.
func (f FileSpec) column(field string) string {
	if c, ok := f.Columns[field]; ok {
		return c
	}

	return field
}

// Logical field names.
const (
	FieldID          = "id"
	FieldGroupID     = "group_id"
	FieldTitle       = "title"
	FieldUsername    = "username"
	FieldEmail       = "email"
	FieldWebsite     = "website"
	FieldUserTitle   = "user_title"
	FieldBio         = "bio"
	FieldDescription = "description"
	FieldCategoryID  = "category_id"
	FieldPermissions = "permissions"
	FieldAuthorID    = "author_id"
	FieldCreatedAt   = "created_at"
	FieldViews       = "views"
	FieldVisible     = "visible"
	FieldSticky      = "sticky"
	FieldTopicID     = "topic_id"
	FieldBody        = "body"
	FieldParentID    = "parent_id"
	FieldName        = "name"
	FieldNewID       = "new_id"
)

// Layout lists every input file of an export.
type Layout struct {
	Groups          FileSpec
	Users           FileSpec
	Categories      FileSpec
	Permissions     FileSpec
	Topics          FileSpec
	Posts           FileSpec
	GroupMapping    FileSpec
	CategoryMapping FileSpec
}

// DefaultLayout describes a vBulletin export.
func DefaultLayout() Layout {
	return Layout{
		Groups: FileSpec{
			Name:   "usergroup.csv",
			Format: CSV,
			Columns: map[string]string{
				FieldID:    "usergroupid",
				FieldTitle: "title",
			},
		},
		Users: FileSpec{
			Name:   "user.csv",
			Format: TSV,
			Columns: map[string]string{
				FieldID:        "userid",
				FieldGroupID:   "usergroupid",
				FieldUsername:  "username",
				FieldEmail:     "email",
				FieldWebsite:   "homepage",
				FieldUserTitle: "usertitle",
				FieldBio:       "field1",
			},
		},
		Categories: FileSpec{
			Name:   "forum.csv",
			Format: CSV,
			Columns: map[string]string{
				FieldID:          "forumid",
				FieldTitle:       "title",
				FieldDescription: "description",
			},
		},
		Permissions: FileSpec{
			Name:   "forumpermission.csv",
			Format: CSV,
			Columns: map[string]string{
				FieldCategoryID:  "forumid",
				FieldGroupID:     "usergroupid",
				FieldPermissions: "forumpermissions",
			},
		},
		Topics: FileSpec{
			Name:   "thread.csv",
			Format: TSV,
			Columns: map[string]string{
				FieldID:         "threadid",
				FieldTitle:      "title",
				FieldAuthorID:   "postuserid",
				FieldCreatedAt:  "dateline",
				FieldCategoryID: "forumid",
				FieldViews:      "views",
				FieldVisible:    "visible",
				FieldSticky:     "sticky",
			},
		},
		Posts: FileSpec{
			Name:   "post.csv",
			Format: TSV,
			Columns: map[string]string{
				FieldID:        "postid",
				FieldTopicID:   "threadid",
				FieldAuthorID:  "userid",
				FieldCreatedAt: "dateline",
				FieldBody:      "pagetext",
				FieldVisible:   "visible",
				FieldParentID:  "parentid",
			},
		},
		GroupMapping: FileSpec{
			Name:   "groups.csv",
			Format: CSV,
			Columns: map[string]string{
				FieldID:    "old_id",
				FieldNewID: "new_id",
			},
		},
		CategoryMapping: FileSpec{
			Name:   "categories.csv",
			Format: CSV,
			Columns: map[string]string{
				FieldID:   "id",
				FieldName: "name",
			},
		},
	}
}
