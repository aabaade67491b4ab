package materialize_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/db"
	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/materialize"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/remap"
	"github.com/persistorai/forumport/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// openDest migrates a temp SQLite destination and returns a store plus a raw
// handle for assertions.
func openDest(t *testing.T) (domain.BulkStore, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dest.db")
	url := "sqlite://" + path

	if err := store.Migrate(ctx, url, testLogger()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	s, err := store.Open(ctx, url, testLogger(), store.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)

	raw, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	return s, raw
}

var t0 = time.Date(2012, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ds *models.Dataset
}

func newFixture() *fixture {
	return &fixture{ds: models.NewDataset(models.NewReport("test"))}
}

func (f *fixture) group(id int64, name string) {
	f.ds.Groups[id] = &models.Group{LegacyID: id, Name: name}
}

func (f *fixture) user(id, group int64, name string) {
	f.ds.Users[id] = &models.User{
		LegacyID: id, GroupLegacyID: group, OriginalUsername: name, Username: name,
		DisplayName: name, Email: name + "@example.com",
	}
}

func (f *fixture) category(id int64, name, desc string) {
	f.ds.Categories[id] = &models.Category{LegacyID: id, Name: name, Description: desc}
}

func (f *fixture) topic(id, author, category int64) {
	f.ds.Topics[id] = &models.Topic{
		LegacyID: id, Title: "Topic", Slug: "topic", AuthorLegacyID: author,
		CategoryLegacyID: category, CreatedAt: t0, Visible: true,
	}
}

func (f *fixture) post(id, topic, author, parent int64, raw string) {
	f.ds.Posts[id] = &models.Post{
		LegacyID: id, TopicLegacyID: topic, AuthorLegacyID: author,
		ParentLegacyID: parent, Raw: raw, Visible: true, CreatedAt: t0.Add(time.Duration(id) * time.Minute),
	}
	f.ds.Topics[topic].PostIDs = append(f.ds.Topics[topic].PostIDs, id)
}

func (f *fixture) run(t *testing.T, s domain.BulkStore, opts materialize.Options) {
	t.Helper()

	remap.New(testLogger(), 50).Apply(f.ds)

	if err := materialize.New(s, testLogger(), opts).Run(context.Background(), f.ds); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPostPositionsFollowLegacyIDs(t *testing.T) {
	s, raw := openDest(t)

	f := newFixture()
	f.group(1, "members")
	f.user(10, 1, "alice")
	f.category(100, "General", "")
	f.topic(1000, 10, 100)

	// Source order is scrambled; positions must follow ascending ids.
	f.post(5003, 1000, 10, 5001, "third")
	f.post(5001, 1000, 10, 0, "first")
	f.post(5002, 1000, 10, 5003, "second replies forward")
	f.post(5004, 1000, 10, 9999, "fourth replies to nothing")

	// Small batches exercise the batching path.
	f.run(t, s, materialize.Options{BatchSize: 1, PostBatchSize: 2})

	want := map[int64]int{5001: 1, 5002: 2, 5003: 3, 5004: 4}
	for id, pos := range want {
		p := f.ds.Posts[id]
		if p.Position != pos {
			t.Errorf("post %d position = %d, want %d", id, p.Position, pos)
		}
		if !p.Persisted() || p.DestinationTopicID != f.ds.Topics[1000].DestinationID {
			t.Errorf("post %d not attached to its topic: %+v", id, p)
		}

		var number int
		var replyTo sql.NullInt64
		if err := raw.QueryRow(`SELECT post_number, reply_to_post_number FROM posts WHERE id = ?`, p.DestinationID).
			Scan(&number, &replyTo); err != nil {
			t.Fatalf("reading post %d: %v", id, err)
		}
		if number != pos {
			t.Errorf("post %d stored as number %d, want %d", id, number, pos)
		}

		wantReply := id == 5003
		if replyTo.Valid != wantReply || (wantReply && replyTo.Int64 != 1) {
			t.Errorf("post %d reply_to = %+v", id, replyTo)
		}
	}
}

func TestInvalidTopicsAreNotPersisted(t *testing.T) {
	s, raw := openDest(t)

	f := newFixture()
	f.group(1, "members")
	f.user(10, 1, "alice")
	f.category(100, "General", "")

	f.topic(1000, 10, 100) // valid
	f.post(1, 1000, 10, 0, "hello")
	f.post(2, 1000, 77, 0, "by a rejected author")

	f.topic(1001, 10, 100) // no posts

	f.topic(1002, 77, 100) // author rejected
	f.post(3, 1002, 77, 0, "x")
	f.topic(1003, 77, 100) // same rejected author
	f.post(4, 1003, 10, 0, "y")

	f.topic(1004, 10, 404) // category never loaded
	f.post(5, 1004, 10, 0, "z")

	f.run(t, s, materialize.Options{})

	for id, persisted := range map[int64]bool{1000: true, 1001: false, 1002: false, 1003: false, 1004: false} {
		if f.ds.Topics[id].Persisted() != persisted {
			t.Errorf("topic %d persisted = %v, want %v", id, !persisted, persisted)
		}
	}

	var topics int
	if err := raw.QueryRow(`SELECT COUNT(*) FROM topics`).Scan(&topics); err != nil {
		t.Fatal(err)
	}
	if topics != 1 {
		t.Errorf("destination has %d topics, want 1", topics)
	}

	var author int64
	if err := raw.QueryRow(`SELECT user_id FROM posts WHERE id = ?`, f.ds.Posts[2].DestinationID).Scan(&author); err != nil {
		t.Fatal(err)
	}
	if author != models.SentinelUserID {
		t.Errorf("post by rejected author stored under %d, want %d", author, models.SentinelUserID)
	}

	tally := f.ds.Report.Tally(models.EntityTopic)
	if tally.Accepted != 1 || tally.Rejected != 4 {
		t.Errorf("topic tally = %+v", tally)
	}
	if tally.Reasons["author rejected"] != 2 || tally.Reasons["no posts"] != 1 || tally.Reasons["category not persisted"] != 1 {
		t.Errorf("topic reasons = %v", tally.Reasons)
	}
}

func TestDuplicateGroupNameIsAConflict(t *testing.T) {
	s, raw := openDest(t)

	f := newFixture()
	f.group(1, "members")
	f.group(2, "members")
	f.user(10, 1, "alice")
	f.user(11, 2, "bob")

	f.run(t, s, materialize.Options{})

	if !f.ds.Groups[1].Persisted() || f.ds.Groups[2].Persisted() {
		t.Fatalf("groups persisted = %v/%v, want true/false", f.ds.Groups[1].Persisted(), f.ds.Groups[2].Persisted())
	}

	if got := f.ds.Report.Tally(models.EntityGroup); got.Conflict != 1 || got.Accepted != 1 {
		t.Errorf("group tally = %+v", got)
	}

	// bob is still imported, just without a group.
	var primary sql.NullInt64
	if err := raw.QueryRow(`SELECT primary_group_id FROM users WHERE username = 'bob'`).Scan(&primary); err != nil {
		t.Fatal(err)
	}
	if primary.Valid {
		t.Errorf("bob primary_group_id = %d, want NULL", primary.Int64)
	}

	var members int
	if err := raw.QueryRow(`SELECT COUNT(*) FROM group_users`).Scan(&members); err != nil {
		t.Fatal(err)
	}
	if members != 1 {
		t.Errorf("group_users = %d, want 1", members)
	}
}

func TestCategoryAliasesCollapse(t *testing.T) {
	s, raw := openDest(t)

	f := newFixture()
	f.group(1, "members")
	f.user(10, 1, "alice")
	f.category(100, "General", "General chat")
	f.category(101, "Off-Topic", "Anything else")
	f.category(102, "Archive", "")

	f.ds.CategoryAliases = models.NewAliasTable()
	f.ds.CategoryAliases.Add(100, "Lounge")
	f.ds.CategoryAliases.Add(101, "Lounge")

	f.topic(1000, 10, 100)
	f.post(1, 1000, 10, 0, "a")
	f.topic(1001, 10, 101)
	f.post(2, 1001, 10, 0, "b")

	f.ds.Permissions = []*models.CategoryPermission{
		{CategoryLegacyID: 100, GroupLegacyID: 1, Level: models.PermissionReadOnly},
		{CategoryLegacyID: 101, GroupLegacyID: 1, Level: models.PermissionFull},
		{CategoryLegacyID: 102, GroupLegacyID: 1, Level: models.PermissionFull},
	}

	f.run(t, s, materialize.Options{})

	var names []string
	rows, err := raw.Query(`SELECT name FROM categories`)
	if err != nil {
		t.Fatal(err)
	}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatal(err)
		}
		names = append(names, n)
	}
	rows.Close()

	if len(names) != 1 || names[0] != "Lounge" {
		t.Fatalf("categories = %v, want [Lounge]", names)
	}

	lounge := f.ds.Categories[100].DestinationID
	if lounge == 0 || f.ds.Categories[101].DestinationID != lounge {
		t.Fatalf("aliased categories not merged: %d vs %d", lounge, f.ds.Categories[101].DestinationID)
	}

	for _, tid := range []int64{1000, 1001} {
		var cat int64
		if err := raw.QueryRow(`SELECT category_id FROM topics WHERE id = ?`, f.ds.Topics[tid].DestinationID).Scan(&cat); err != nil {
			t.Fatal(err)
		}
		if cat != lounge {
			t.Errorf("topic %d category = %d, want %d", tid, cat, lounge)
		}
	}

	// Two aliased rows collapse to the most permissive level.
	var perm int
	if err := raw.QueryRow(`SELECT permission_type FROM category_groups WHERE category_id = ?`, lounge).Scan(&perm); err != nil {
		t.Fatal(err)
	}
	if perm != int(models.PermissionFull) {
		t.Errorf("permission_type = %d, want %d", perm, models.PermissionFull)
	}

	// The first alias's description becomes a definition topic.
	var topicID sql.NullInt64
	if err := raw.QueryRow(`SELECT topic_id FROM categories WHERE id = ?`, lounge).Scan(&topicID); err != nil {
		t.Fatal(err)
	}
	if !topicID.Valid {
		t.Fatal("category has no definition topic")
	}

	var title, body string
	if err := raw.QueryRow(`SELECT t.title, p.raw FROM topics t JOIN posts p ON p.topic_id = t.id WHERE t.id = ?`, topicID.Int64).
		Scan(&title, &body); err != nil {
		t.Fatal(err)
	}
	if title != "About the Lounge category" || body != "General chat" {
		t.Errorf("definition topic = %q / %q", title, body)
	}
}
