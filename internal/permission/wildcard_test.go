package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "   ", ":", "a::b", "doc:,,:read", ":read"} {
		_, err := Parse(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestParseNormalizesCaseAndSpace(t *testing.T) {
	a := MustParse("AppUser:Read, Write")
	b := MustParse("appuser:write,read")
	assert.True(t, a.Implies(b))
	assert.True(t, b.Implies(a))
}

func TestImpliesReflexive(t *testing.T) {
	for _, s := range []string{"doc:read", "*", "doc:read:42:name", "a,b:c"} {
		p := MustParse(s)
		assert.True(t, p.Implies(p), "%q should imply itself", s)
	}
}

func TestWildcardAbsorbsEverything(t *testing.T) {
	all := MustParse("*")
	for _, s := range []string{"doc:read", "doc:read:42:name", "x"} {
		assert.True(t, all.Implies(MustParse(s)), "* should imply %q", s)
	}
}

func TestShorterGrantImpliesLongerRequest(t *testing.T) {
	grant := MustParse("doc:read")
	assert.True(t, grant.Implies(MustParse("doc:read:42")))
	assert.True(t, grant.Implies(MustParse("doc:read:42:name")))
	assert.False(t, MustParse("doc:read:42").Implies(MustParse("doc:read")))
}

func TestExtraTrailingPartsMustBeWildcard(t *testing.T) {
	assert.True(t, MustParse("doc:read:*:*").Implies(MustParse("doc:read")))
	assert.False(t, MustParse("doc:read:42:*").Implies(MustParse("doc:read")))
	assert.False(t, MustParse("doc:read:*:name").Implies(MustParse("doc:read")))
}

func TestSubpartSuperset(t *testing.T) {
	grant := MustParse("doc:read,write")
	assert.True(t, grant.Implies(MustParse("doc:read")))
	assert.True(t, grant.Implies(MustParse("doc:read,write")))
	assert.False(t, grant.Implies(MustParse("doc:read,delete")))
	assert.False(t, MustParse("doc:read").Implies(grant))
}

func TestDoubleWildcardSymmetry(t *testing.T) {
	// The request carries a wildcard where the grant is specific: the base
	// matcher denies, the double matcher allows.
	grant := "AppUser:*:15"
	request := "AppUser:read:*"

	g, err := Parse(grant)
	require.NoError(t, err)
	r := MustParse(request)
	assert.False(t, g.Implies(r))

	dg := MustParseDouble(grant)
	dr := MustParseDouble(request)
	assert.True(t, dg.Implies(dr))
}

func TestDoubleWildcardStillDeniesDisjoint(t *testing.T) {
	g := MustParseDouble("AppUser:*:15")
	assert.False(t, g.Implies(MustParseDouble("AppUser:read:16")))
	assert.False(t, g.Implies(MustParseDouble("Role:read:*")))
}

func TestDoubleWildcardKeepsBaseBehavior(t *testing.T) {
	// Without a wildcard on either side the symmetric rule changes nothing.
	g := MustParseDouble("doc:read")
	assert.True(t, g.Implies(MustParseDouble("doc:read:42")))
	assert.False(t, g.Implies(MustParseDouble("doc:write")))
}
