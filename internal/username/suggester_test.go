package username_test

import (
	"strings"
	"testing"

	"github.com/persistorai/forumport/internal/username"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"John Doe", "John_Doe"},
		{"  --alice--  ", "alice"},
		{"Zoë Straße", "Zoe_Strasse"},
		{"__under", "under"},
		{"a.b.c!", "a_b_c"},
		{"!!!", "user"},
		{"", "user"},
		{"日本", "user"},
	}

	for _, tt := range tests {
		if got := username.Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSuggest_PadsAndTruncates(t *testing.T) {
	s := username.New(3, 15)

	if got := s.Suggest("jo"); got != "jo1" {
		t.Errorf("Suggest(jo) = %q, want jo1", got)
	}

	if got := s.Suggest("averyveryverylongusername"); got != "averyveryverylo" {
		t.Errorf("Suggest(long) = %q, want averyveryverylo", got)
	}
}

func TestClaim_SuffixesSameBase(t *testing.T) {
	s := username.New(3, 20)

	first := s.Claim("John Doe")
	if first != "John_Doe" {
		t.Fatalf("first = %q, want John_Doe", first)
	}

	second := s.Claim("john_doe")
	if second != "john_doe1" {
		t.Fatalf("second = %q, want john_doe1", second)
	}

	third := s.Claim("John-Doe")
	if third != "John_Doe2" {
		t.Fatalf("third = %q, want John_Doe2", third)
	}
}

func TestSuggest_DoesNotRegister(t *testing.T) {
	s := username.New(3, 20)

	if a, b := s.Suggest("bob"), s.Suggest("bob"); a != b {
		t.Errorf("Suggest registered a name: %q then %q", a, b)
	}

	if s.Taken("bob") {
		t.Error("bob should not be taken after Suggest")
	}
}

func TestSuggest_SuffixFitsMaxLength(t *testing.T) {
	s := username.New(3, 8)
	s.Register("abcdefgh")

	for i := 1; i <= 9; i++ {
		s.Register("abcdefg" + string(rune('0'+i)))
	}

	got := s.Suggest("abcdefghij")
	if got != "abcdef10" {
		t.Errorf("got %q, want abcdef10", got)
	}

	if len(got) > 8 {
		t.Errorf("len(%q) = %d exceeds max", got, len(got))
	}
}

func TestClaim_TinyMaxLengthStaysUnique(t *testing.T) {
	s := username.New(1, 2)
	seen := make(map[string]bool)

	for range 200 {
		got := strings.ToLower(s.Claim("ab"))
		if seen[got] {
			t.Fatalf("duplicate username %q", got)
		}

		seen[got] = true
	}

	if !seen["ab"] || !seen["a9"] || !seen["10"] || !seen["100"] {
		t.Errorf("unexpected suffix sequence, claimed %d names", len(seen))
	}
}

func TestClaim_UniqueCaseInsensitive(t *testing.T) {
	s := username.New(3, 20)
	names := []string{"Alice", "alice", "ALICE", "al ice", "Al_Ice", "alice1"}
	seen := make(map[string]bool)

	for _, n := range names {
		got := strings.ToLower(s.Claim(n))
		if seen[got] {
			t.Fatalf("duplicate username %q", got)
		}

		seen[got] = true
	}
}
