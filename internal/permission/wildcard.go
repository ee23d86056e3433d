package permission

import (
	"fmt"
	"strings"
)

const (
	// WildcardToken matches anything at its position.
	WildcardToken  = "*"
	partDivider    = ":"
	subpartDivider = ","
)

// WildcardPermission is a colon-delimited, wildcard-aware permission string.
// Each part between colons is itself a comma-delimited set of tokens, so
// "doc:read,write:7" holds two tokens at the action position. Matching is
// case-insensitive.
type WildcardPermission struct {
	parts []map[string]struct{}
}

// Parse builds a WildcardPermission from its string form. Empty strings and
// parts consisting only of dividers are rejected.
func Parse(s string) (WildcardPermission, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return WildcardPermission{}, fmt.Errorf("permission string cannot be empty")
	}

	var parts []map[string]struct{}
	for _, part := range strings.Split(strings.ToLower(trimmed), partDivider) {
		tokens := make(map[string]struct{})
		for _, sub := range strings.Split(part, subpartDivider) {
			sub = strings.TrimSpace(sub)
			if sub != "" {
				tokens[sub] = struct{}{}
			}
		}
		if len(tokens) == 0 {
			return WildcardPermission{}, fmt.Errorf("permission string %q cannot contain parts with only dividers", s)
		}
		parts = append(parts, tokens)
	}
	return WildcardPermission{parts: parts}, nil
}

// MustParse is Parse for statically known strings; it panics on error.
func MustParse(s string) WildcardPermission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Implies reports whether this (granted) permission implies other (the
// requested permission): every position present in other must be matched by
// a wildcard or a superset of tokens at the same position here. When this
// permission has fewer parts than other, its missing trailing parts imply
// everything; when it has more, the extra parts must all be wildcards.
func (p WildcardPermission) Implies(other WildcardPermission) bool {
	return implies(p.parts, other.parts, false)
}

func (p WildcardPermission) String() string {
	var sb strings.Builder
	for i, part := range p.parts {
		if i > 0 {
			sb.WriteString(partDivider)
		}
		tokens := make([]string, 0, len(part))
		for t := range part {
			tokens = append(tokens, t)
		}
		sb.WriteString(strings.Join(tokens, subpartDivider))
	}
	return sb.String()
}

// DoubleWildcardPermission is a slightly more permissive variant wherein a
// wildcard on either side of the implies equation grants permission at that
// level. This allows a permission like "AppUser:*:15" (all access of user 15
// to themselves) to satisfy a check against "AppUser:read:*", which the base
// type rejects.
type DoubleWildcardPermission struct {
	WildcardPermission
}

// ParseDouble builds a DoubleWildcardPermission from its string form.
func ParseDouble(s string) (DoubleWildcardPermission, error) {
	p, err := Parse(s)
	if err != nil {
		return DoubleWildcardPermission{}, err
	}
	return DoubleWildcardPermission{p}, nil
}

// MustParseDouble is ParseDouble for statically known strings.
func MustParseDouble(s string) DoubleWildcardPermission {
	p, err := ParseDouble(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Implies applies the symmetric-wildcard matching rule.
func (p DoubleWildcardPermission) Implies(other DoubleWildcardPermission) bool {
	return implies(p.parts, other.parts, true)
}

func implies(parts, otherParts []map[string]struct{}, symmetric bool) bool {
	i := 0
	for _, otherPart := range otherParts {
		// If this permission has fewer parts than the other, everything
		// after the number of parts contained here is automatically implied.
		if len(parts)-1 < i {
			return true
		}
		part := parts[i]
		if !hasWildcard(part) &&
			!(symmetric && hasWildcard(otherPart)) &&
			!containsAll(part, otherPart) {
			return false
		}
		i++
	}

	// Extra trailing parts on this permission only imply when all wildcards.
	for ; i < len(parts); i++ {
		if !hasWildcard(parts[i]) {
			return false
		}
	}
	return true
}

func hasWildcard(part map[string]struct{}) bool {
	_, ok := part[WildcardToken]
	return ok
}

func containsAll(part, other map[string]struct{}) bool {
	for token := range other {
		if _, ok := part[token]; !ok {
			return false
		}
	}
	return true
}
