package objects

import (
	"testing"

	"authbase/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = models.Schema{
	"id":       {Column: "id", Kind: models.KindInt, Filterable: true},
	"username": {Column: "username", Kind: models.KindString, Filterable: true},
	"sent":     {Column: "sent", Kind: models.KindTime, Filterable: true},
	"version":  {Column: "version", Kind: models.KindInt},
}

func TestParseFiltersDefaultsToEquality(t *testing.T) {
	clauses, err := ParseFilters(testSchema, map[string]string{"username": "alice"})
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Equal(t, "username = ?", clauses[0].SQL)
	assert.Equal(t, []interface{}{"alice"}, clauses[0].Args)
}

func TestParseFiltersOperators(t *testing.T) {
	cases := map[string]string{
		">= 5": "id >= ?",
		"<5":   "id < ?",
		"!=5":  "id <> ?",
		"=5":   "id = ?",
		"> 5":  "id > ?",
		"<= 5": "id <= ?",
	}
	for value, wantSQL := range cases {
		clauses, err := ParseFilters(testSchema, map[string]string{"id": value})
		require.NoError(t, err, "value %q", value)
		require.Len(t, clauses, 1)
		assert.Equal(t, wantSQL, clauses[0].SQL)
		assert.Equal(t, []interface{}{int64(5)}, clauses[0].Args)
	}
}

func TestParseFiltersNull(t *testing.T) {
	clauses, err := ParseFilters(testSchema, map[string]string{"sent": "null"})
	require.NoError(t, err)
	assert.Equal(t, "sent IS NULL", clauses[0].SQL)
	assert.Empty(t, clauses[0].Args)

	clauses, err = ParseFilters(testSchema, map[string]string{"sent": "!=null"})
	require.NoError(t, err)
	assert.Equal(t, "sent IS NOT NULL", clauses[0].SQL)

	_, err = ParseFilters(testSchema, map[string]string{"sent": "> null"})
	var illegal *IllegalFilterError
	assert.ErrorAs(t, err, &illegal)
}

func TestParseFiltersRejectsUndeclaredAndUnfilterable(t *testing.T) {
	var illegal *IllegalFilterError

	// never declared: the raw name must not reach query text
	_, err := ParseFilters(testSchema, map[string]string{"username; DROP TABLE": "x"})
	assert.ErrorAs(t, err, &illegal)

	// declared but not filterable
	_, err = ParseFilters(testSchema, map[string]string{"version": "3"})
	assert.ErrorAs(t, err, &illegal)
}

func TestParseFiltersRejectsUncoercibleValue(t *testing.T) {
	var illegal *IllegalFilterError
	_, err := ParseFilters(testSchema, map[string]string{"id": "abc"})
	assert.ErrorAs(t, err, &illegal)
	_, err = ParseFilters(testSchema, map[string]string{"sent": "yesterday"})
	assert.ErrorAs(t, err, &illegal)
}

func TestParseSort(t *testing.T) {
	terms, err := ParseSort(testSchema, "username desc|id")
	require.NoError(t, err)
	assert.Equal(t, []string{"username DESC", "id ASC"}, terms)

	terms, err = ParseSort(testSchema, "")
	require.NoError(t, err)
	assert.Nil(t, terms)

	// unfilterable properties are still sortable
	terms, err = ParseSort(testSchema, "version asc")
	require.NoError(t, err)
	assert.Equal(t, []string{"version ASC"}, terms)
}

func TestParseSortRejectsBadInput(t *testing.T) {
	var illegal *IllegalFilterError
	for _, expr := range []string{"nosuch asc", "id sideways", "id asc extra", "id; DROP TABLE users"} {
		_, err := ParseSort(testSchema, expr)
		assert.ErrorAs(t, err, &illegal, "expected %q to be rejected", expr)
	}
}

func TestOwnershipClause(t *testing.T) {
	clause, err := OwnershipClause(9, "")
	require.NoError(t, err)
	assert.Equal(t, "(owner_id IS NULL OR owner_id = ?)", clause.SQL)
	assert.Equal(t, []interface{}{uint64(9)}, clause.Args)

	clause, err = OwnershipClause(9, "7, 42")
	require.NoError(t, err)
	assert.Equal(t, "(owner_id IS NULL OR owner_id = ? OR id IN ?)", clause.SQL)
	assert.Equal(t, []interface{}{uint64(9), []uint64{7, 42}}, clause.Args)
}

func TestOwnershipClauseRejectsNonNumericIDs(t *testing.T) {
	_, err := OwnershipClause(9, "7,abc")
	assert.Error(t, err)
	_, err = OwnershipClause(9, "7 OR 1=1")
	assert.Error(t, err)
}
