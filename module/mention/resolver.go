package mention

import (
	"regexp"
	"strings"
)

// User is one entry of a caller-supplied directory: a project's
// collaborators or an organization's members. Scope selection is the
// caller's job; the resolver never widens it.
type User struct {
	ID    string
	Email string
	Name  string
}

// RawMention is a candidate token scanned out of free text, offsets
// into the original string included so a UI can highlight it.
type RawMention struct {
	Token   string // matched token without the leading @
	IsEmail bool
	Start   int // offset of the @
	End     int // offset one past the last token byte
}

// Mention is a raw mention plus its resolution outcome. Unresolved
// mentions keep User nil; there is no fuzzy guessing.
type Mention struct {
	RawMention
	Resolved bool
	User     *User
}

// Email form first so @bob@example.com is not split at its inner dot
// or @; otherwise a word-like dot-separated name token.
var mentionPattern = regexp.MustCompile(
	`@([\w.+-]+@[\w-]+(?:\.[\w-]+)+|\w+(?:\.\w+)*)`)

var emailShape = regexp.MustCompile(`^[\w.+-]+@[\w-]+(?:\.[\w-]+)+$`)

// ExtractMentions scans text for @-prefixed tokens in order of
// appearance with exact, non-overlapping offsets.
func ExtractMentions(text string) []RawMention {
	idx := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]RawMention, 0, len(idx))
	for _, m := range idx {
		token := text[m[2]:m[3]]
		out = append(out, RawMention{
			Token:   token,
			IsEmail: emailShape.MatchString(token),
			Start:   m[0],
			End:     m[1],
		})
	}
	return out
}

// NormalizeName folds a display name to its mention token form:
// spaces become dots, case is ignored. Distinct users can collide
// under this rule; the first directory entry wins.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "."))
}

// Resolve matches raw mentions against the directory. Exact
// case-insensitive email match takes precedence; otherwise the token
// is compared to each user's normalized display name. No partial
// matching: anything ambiguous stays unresolved.
func Resolve(raws []RawMention, directory []User) []Mention {
	byEmail := make(map[string]*User, len(directory))
	byName := make(map[string]*User, len(directory))
	for i := range directory {
		u := &directory[i]
		if u.Email != "" {
			k := strings.ToLower(u.Email)
			if _, dup := byEmail[k]; !dup {
				byEmail[k] = u
			}
		}
		if u.Name != "" {
			k := NormalizeName(u.Name)
			if _, dup := byName[k]; !dup {
				byName[k] = u
			}
		}
	}

	out := make([]Mention, 0, len(raws))
	for _, raw := range raws {
		m := Mention{RawMention: raw}
		key := strings.ToLower(raw.Token)
		if u, ok := byEmail[key]; ok {
			m.Resolved, m.User = true, u
		} else if u, ok := byName[key]; ok && !raw.IsEmail {
			m.Resolved, m.User = true, u
		}
		out = append(out, m)
	}
	return out
}

// ParseAndResolve is the composition domain handlers call.
func ParseAndResolve(text string, directory []User) []Mention {
	return Resolve(ExtractMentions(text), directory)
}
