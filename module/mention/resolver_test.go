package mention

import (
	"reflect"
	"testing"
)

func TestExtractMentions(t *testing.T) {
	text := "Hi @jane.doe and @bob@example.com"
	got := ExtractMentions(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 mentions, got %d: %+v", len(got), got)
	}

	if got[0].Token != "jane.doe" || got[0].IsEmail {
		t.Errorf("first mention: %+v", got[0])
	}
	if got[0].Start != 3 || got[0].End != 12 {
		t.Errorf("first mention offsets: start=%d end=%d", got[0].Start, got[0].End)
	}
	if text[got[0].Start:got[0].End] != "@jane.doe" {
		t.Errorf("first mention slice: %q", text[got[0].Start:got[0].End])
	}

	if got[1].Token != "bob@example.com" || !got[1].IsEmail {
		t.Errorf("email mention split or misflagged: %+v", got[1])
	}
	if text[got[1].Start:got[1].End] != "@bob@example.com" {
		t.Errorf("email mention slice: %q", text[got[1].Start:got[1].End])
	}
	if got[0].End > got[1].Start {
		t.Errorf("overlapping offsets: %+v", got)
	}
}

func TestExtractMentionsTrailingPunctuation(t *testing.T) {
	text := "thanks @bob."
	got := ExtractMentions(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(got))
	}
	if got[0].Token != "bob" {
		t.Errorf("token swallowed punctuation: %q", got[0].Token)
	}
	if text[got[0].Start:got[0].End] != "@bob" {
		t.Errorf("offsets: %q", text[got[0].Start:got[0].End])
	}
}

func TestExtractMentionsEmpty(t *testing.T) {
	if got := ExtractMentions("no mentions here"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestResolve(t *testing.T) {
	dir := []User{
		{ID: "u1", Email: "bob@example.com", Name: "Bob B"},
		{ID: "u2", Email: "jane@example.com", Name: "Jane Doe"},
	}

	got := ParseAndResolve("ping @bob@example.com @Bob.B @jane.doe @nobody", dir)
	if len(got) != 4 {
		t.Fatalf("expected 4 mentions, got %d", len(got))
	}

	// email and normalized name forms land on the same user
	if !got[0].Resolved || got[0].User.ID != "u1" {
		t.Errorf("email form: %+v", got[0])
	}
	if !got[1].Resolved || got[1].User.ID != "u1" {
		t.Errorf("dot-normalized name form: %+v", got[1])
	}
	if !got[2].Resolved || got[2].User.ID != "u2" {
		t.Errorf("lowercase name form: %+v", got[2])
	}
	if got[3].Resolved {
		t.Errorf("@nobody should stay unresolved: %+v", got[3])
	}
}

func TestResolveNoFuzzyMatch(t *testing.T) {
	dir := []User{{ID: "u1", Email: "bob@example.com", Name: "Bob Builder"}}
	got := ParseAndResolve("hey @bob", dir)
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(got))
	}
	if got[0].Resolved {
		t.Errorf("partial token must not resolve: %+v", got[0])
	}
}

func TestParseAndResolveDeterministic(t *testing.T) {
	dir := []User{{ID: "u1", Email: "bob@example.com", Name: "Bob B"}}
	text := "cc @bob@example.com and @Bob.B"
	a := ParseAndResolve(text, dir)
	b := ParseAndResolve(text, dir)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Jane   Doe "); got != "jane.doe" {
		t.Fatalf("normalize: %q", got)
	}
}
