package rewrite

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// testDataset has alice (renamed alice42), carol, and one topic 7 persisted
// as destination topic 12 whose third post is legacy post 555.
func testDataset() *models.Dataset {
	ds := models.NewDataset(models.NewReport("test"))

	add := func(id int64, original, chosen string) {
		ds.Users[id] = &models.User{LegacyID: id, OriginalUsername: original, Username: chosen, DestinationID: id + 100}
		ds.UsernameIndex[chosen] = id
		ds.Renames[original] = chosen
	}
	add(1, "alice", "alice42")
	add(3, "carol", "carol")

	ds.Topics[7] = &models.Topic{LegacyID: 7, Slug: "welcome-aboard", DestinationID: 12, PostIDs: []int64{553, 554, 555}}
	for i, id := range []int64{553, 554, 555} {
		ds.Posts[id] = &models.Post{
			LegacyID: id, TopicLegacyID: 7,
			DestinationID: id + 1000, Position: i + 1, DestinationTopicID: 12,
		}
	}

	// Loaded but never persisted.
	ds.Topics[8] = &models.Topic{LegacyID: 8, Slug: "orphan"}

	return ds
}

func newRewriter(baseURL string) *Rewriter {
	return New(NewIndex(testDataset()), baseURL, testLogger())
}

func TestRewriteRules(t *testing.T) {
	rw := newRewriter("https://forum.example.com")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"mention renamed", "hi [mention]alice[/mention]!", "hi @alice42!"},
		{"mention case-insensitive tag", "[MENTION]Alice[/MENTION]", "@alice42"},
		{"mention rejected user", "[mention]bob[/mention]", "[mention]bob[/mention]"},
		{"mention by id", "[mention=3]Carol C[/mention]", "@carol"},
		{"mention by unknown id", "[mention=99]ghost[/mention]", "[mention=99]ghost[/mention]"},
		{"plain quote", "[quote]said so[/quote]", "\n> said so\n"},
		{"quote by user", "[quote=alice]hello[/quote]", "\n[quote=\"alice42\"]\nhello\n[/quote]\n"},
		{"quote by quoted user", `[quote="alice"]hello[/quote]`, "\n[quote=\"alice42\"]\nhello\n[/quote]\n"},
		{"quote by unknown user", "[quote=bob]hello[/quote]", "[quote=bob]hello[/quote]"},
		{"quote with post", "[quote=carol;555][/quote]", "\n[quote=\"carol,post:3,topic:12\"]\n\n[/quote]\n"},
		{"quote with missing post", "[quote=carol;556][/quote]", "[quote=carol;556][/quote]"},
		{"code", "[code]x := 1[/code]", "\n```\nx := 1\n```\n"},
		{"php", "[PHP]<?php echo 1; ?>[/PHP]", "\n```php\n<?php echo 1; ?>\n```\n"},
		{"html", "[html]<b>x</b>[/html]", "\n```html\n<b>x</b>\n```\n"},
		{"highlight", `[highlight="go"]fmt.Println()[/highlight]`, "\n```\nfmt.Println()\n```\n"},
		{"samp", "run [samp]ls -la[/samp] now", "run `ls -la` now"},
		{"youtube", "[youtube]dQw4w9WgXcQ[/youtube]", "http://youtu.be/dQw4w9WgXcQ"},
		{"video", "[video=youtube;dQw4w9WgXcQ]https://www.youtube.com/watch?v=dQw4w9WgXcQ[/video]", "http://youtu.be/dQw4w9WgXcQ"},
		{"thread", "[thread]7[/thread]", "https://forum.example.com/t/welcome-aboard/12"},
		{"thread label", "see [thread=7]the intro[/thread]", "see [the intro](https://forum.example.com/t/welcome-aboard/12)"},
		{"thread not persisted", "[thread]8[/thread]", "[thread]8[/thread]"},
		{"post", "[post]554[/post]", "https://forum.example.com/t/welcome-aboard/12/2"},
		{"post label", "[post=555]this[/post]", "[this](https://forum.example.com/t/welcome-aboard/12/3)"},
		{"post missing", "[post=999]that[/post]", "[post=999]that[/post]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rw.Rewrite(tc.in); got != tc.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRewriteLeavesUnresolvedSpansUntouched(t *testing.T) {
	rw := newRewriter("")
	in := "a [mention]nobody[/mention] b [thread]404[/thread] c [post=1]x[/post] d [quote=zed;9]q[/quote] e"

	if got := rw.Rewrite(in); got != in {
		t.Errorf("Rewrite changed unresolvable markup:\n got %q\nwant %q", got, in)
	}
}

func TestRewriteRelativeLinksWithoutBaseURL(t *testing.T) {
	rw := newRewriter("")
	if got := rw.Rewrite("[thread]7[/thread]"); got != "/t/welcome-aboard/12" {
		t.Errorf("Rewrite = %q", got)
	}
}

func TestRewriteMixed(t *testing.T) {
	rw := newRewriter("")
	in := "[quote=alice]see [mention]carol[/mention][/quote] and [mention]bob[/mention]"
	want := "\n[quote=\"alice42\"]\nsee @carol\n[/quote]\n and [mention]bob[/mention]"

	if got := rw.Rewrite(in); got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}

func TestIndexSkipsUnpersisted(t *testing.T) {
	ds := testDataset()
	ds.Users[5] = &models.User{LegacyID: 5, OriginalUsername: "dave", Username: "dave"}
	ds.UsernameIndex["dave"] = 5
	ds.Renames["dave"] = "dave"

	ix := NewIndex(ds)
	if _, ok := ix.Username("dave"); ok {
		t.Error("unpersisted user resolved by name")
	}
	if _, ok := ix.UserByID(5); ok {
		t.Error("unpersisted user resolved by id")
	}
	if _, ok := ix.Topic(8); ok {
		t.Error("unpersisted topic resolved")
	}
	if name, ok := ix.Username("ALICE"); !ok || name != "alice42" {
		t.Errorf("Username(ALICE) = %q, %v", name, ok)
	}
}
