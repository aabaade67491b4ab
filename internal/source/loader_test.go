package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/source"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func tsv(rows ...[]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "\t")
	}

	return strings.Join(lines, "\n") + "\n"
}

// baseExport returns a small, valid export keyed by file name.
func baseExport() map[string]string {
	return map[string]string{
		"usergroup.csv": "usergroupid,title\n1,Registered Users\n2,Moder@tors\n",
		"forum.csv":     "forumid,title,description\n10,General,\"Talk, about anything\"\n11,Off-Topic,\n",
		"forumpermission.csv": "forumid,usergroupid,forumpermissions\n" +
			"10,1,1\n10,2,113\n11,1,0\n",
		"thread.csv": tsv(
			[]string{"threadid", "title", "postuserid", "dateline", "forumid", "views", "visible", "sticky"},
			[]string{"100", "Hello world", "1", "1300000000", "10", "5", "1", "1"},
			[]string{"101", "Second \"quoted\" topic", "2", "1300000100", "11", "0", "1", "0"},
		),
		"post.csv": tsv(
			[]string{"postid", "threadid", "userid", "dateline", "pagetext", "visible", "parentid"},
			[]string{"1001", "100", "1", "1300000000", `first\r\nline`, "1", "0"},
			[]string{"1000", "100", "2", "1300000050", `reply\twith tab`, "1", "1001"},
			[]string{"1002", "999", "2", "1300000060", "orphan", "1", "0"},
		),
		"user.csv": tsv(
			[]string{"userid", "usergroupid", "username", "email", "homepage", "usertitle", "field1"},
			[]string{"1", "1", "John Doe", "john@example.com", "http://john.example", "Member", `bio\nline`},
			[]string{"2", "2", "alice", "alice@example.com", "", "", ""},
			[]string{"3", "1", "bob", "ALICE@example.com", "", "", ""},
			[]string{"4", "1", "carol", "", "", "", ""},
		),
	}
}

func writeExport(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	return dir
}

func load(t *testing.T, dir string, opts source.Options) (*models.Dataset, error) {
	t.Helper()

	opts.Dir = dir
	if opts.Encoding == "" {
		opts.Encoding = "utf-8"
	}

	l, err := source.New(testLogger(), opts)
	if err != nil {
		t.Fatalf("source.New: %v", err)
	}

	return l.Load(context.Background(), models.NewReport("test"))
}

func TestLoad_Entities(t *testing.T) {
	ds, err := load(t, writeExport(t, baseExport()), source.Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(ds.Groups) != 2 || ds.Groups[2].Name != "Modertors" {
		t.Errorf("groups = %+v, want 2 with sanitized name Modertors", ds.Groups)
	}

	if got := ds.Categories[10].Description; got != "Talk, about anything" {
		t.Errorf("category description = %q", got)
	}

	if len(ds.Permissions) != 2 {
		t.Fatalf("permissions = %d, want 2 (bitfield 0 dropped)", len(ds.Permissions))
	}

	if ds.Permissions[1].Level != models.PermissionFull {
		t.Errorf("permission 113 level = %s, want full", ds.Permissions[1].Level)
	}

	topic := ds.Topics[100]
	if !topic.Pinned || topic.Slug != "hello-world" || topic.Views != 5 {
		t.Errorf("topic 100 = %+v", topic)
	}

	if got := ds.Topics[101].Title; got != `Second "quoted" topic` {
		t.Errorf("tab file title = %q, quotes must survive", got)
	}

	if len(topic.PostIDs) != 2 {
		t.Errorf("topic 100 posts = %v, want 2", topic.PostIDs)
	}

	if _, ok := ds.Posts[1002]; ok {
		t.Error("post of unknown topic must be skipped")
	}

	if got := ds.Posts[1001].Raw; got != "first\nline" {
		t.Errorf("post raw = %q, want normalized newline", got)
	}

	if got := ds.Posts[1000].Raw; got != "reply\twith tab" {
		t.Errorf("post raw = %q, want literal tab", got)
	}

	if ds.Posts[1000].ParentLegacyID != 1001 {
		t.Errorf("parent = %d, want 1001", ds.Posts[1000].ParentLegacyID)
	}
}

func TestLoad_UserAcceptance(t *testing.T) {
	ds, err := load(t, writeExport(t, baseExport()), source.Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(ds.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(ds.Users))
	}

	if _, ok := ds.Users[3]; ok {
		t.Error("user 3 has a duplicate email (case-insensitive) and must be rejected")
	}

	if _, ok := ds.Users[4]; ok {
		t.Error("user 4 has no email and must be rejected")
	}

	if got := ds.Users[1].Username; got != "John_Doe" {
		t.Errorf("username = %q, want John_Doe", got)
	}

	if got := ds.Renames["john doe"]; got != "John_Doe" {
		t.Errorf("rename index = %q, want John_Doe", got)
	}

	if got := ds.Users[1].Bio; got != "bio\nline" {
		t.Errorf("bio = %q", got)
	}

	tally := ds.Report.Tally(models.EntityUser)
	if tally.Rejected != 2 || tally.Reasons["duplicate email"] != 1 || tally.Reasons["missing email"] != 1 {
		t.Errorf("user tally = %+v", tally)
	}
}

func TestLoad_Latin1(t *testing.T) {
	files := baseExport()
	files["forum.csv"] = "forumid,title,description\n10,Caf\xe9,\n"

	ds, err := load(t, writeExport(t, files), source.Options{Encoding: "iso-8859-1"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := ds.Categories[10].Name; got != "Café" {
		t.Errorf("name = %q, want Café", got)
	}
}

func TestLoad_Mappings(t *testing.T) {
	files := baseExport()
	files["categories.csv"] = "id,name\n10,Lounge\n11,Lounge\n"
	files["groups.csv"] = "old_id,new_id\n2,1\n"

	ds, err := load(t, writeExport(t, files), source.Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if keys := ds.CategoryAliases.Keys(); len(keys) != 1 || keys[0] != "Lounge" {
		t.Errorf("category alias keys = %v", keys)
	}

	if members := ds.GroupAliases.Members("1"); len(members) != 2 || members[0] != 2 || members[1] != 1 {
		t.Errorf("group alias members = %v, want [2 1]", members)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		files := baseExport()
		delete(files, "post.csv")

		_, err := load(t, writeExport(t, files), source.Options{})
		if !errors.Is(err, models.ErrUnreadableInput) {
			t.Errorf("err = %v, want ErrUnreadableInput", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		files := baseExport()
		files["usergroup.csv"] = "usergroupid,label\n1,x\n"

		_, err := load(t, writeExport(t, files), source.Options{})
		if !errors.Is(err, models.ErrMissingColumn) {
			t.Errorf("err = %v, want ErrMissingColumn", err)
		}
	})

	t.Run("explicit mapping missing", func(t *testing.T) {
		dir := writeExport(t, baseExport())

		_, err := load(t, dir, source.Options{GroupMappingPath: filepath.Join(dir, "nope.csv")})
		if !errors.Is(err, models.ErrMissingMapping) {
			t.Errorf("err = %v, want ErrMissingMapping", err)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := source.New(testLogger(), source.Options{Encoding: "klingon-8"})
		if !errors.Is(err, models.ErrUnknownEncoding) {
			t.Errorf("err = %v, want ErrUnknownEncoding", err)
		}
	})

	t.Run("malformed rows are skipped", func(t *testing.T) {
		files := baseExport()
		files["usergroup.csv"] = "usergroupid,title\nabc,Broken\n1,Fine\n"

		ds, err := load(t, writeExport(t, files), source.Options{})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if len(ds.Groups) != 1 {
			t.Errorf("groups = %d, want 1", len(ds.Groups))
		}
	})
}
