package objects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"authbase/internal/models"
)

// IllegalFilterError rejects a list request before any query is built. The
// offending property or value is named so the client can fix the request;
// the raw input never reaches SQL text.
type IllegalFilterError struct {
	Reason string
}

func (e *IllegalFilterError) Error() string {
	return "illegal filter: " + e.Reason
}

var filterPattern = regexp.MustCompile(`^(=|>=|!=|<=|>|<)\s*(.*)$`)

// Clause is one assembled WHERE fragment with its bind arguments. The SQL
// text is built exclusively from schema columns and fixed operator strings.
type Clause struct {
	SQL  string
	Args []interface{}
}

// ParseFilters validates raw property filters against the type's schema and
// assembles one clause per filter. Values may carry a leading comparison
// operator ("=", "!=", "<", "<=", ">", ">="); a bare value means equality.
// The literal value "null" becomes an IS [NOT] NULL test and only makes
// sense with "=" or "!=".
func ParseFilters(schema models.Schema, raw map[string]string) ([]Clause, error) {
	clauses := make([]Clause, 0, len(raw))
	for prop, value := range raw {
		spec, ok := schema[prop]
		if !ok || !spec.Filterable {
			return nil, &IllegalFilterError{Reason: fmt.Sprintf("property %q is not filterable", prop)}
		}

		op := "="
		if m := filterPattern.FindStringSubmatch(value); m != nil {
			op, value = m[1], m[2]
		}
		value = strings.TrimSpace(value)

		if strings.EqualFold(value, "null") {
			switch op {
			case "=":
				clauses = append(clauses, Clause{SQL: spec.Column + " IS NULL"})
			case "!=":
				clauses = append(clauses, Clause{SQL: spec.Column + " IS NOT NULL"})
			default:
				return nil, &IllegalFilterError{
					Reason: fmt.Sprintf("operator %q cannot compare %q against null", op, prop),
				}
			}
			continue
		}

		arg, err := coerce(spec.Kind, value)
		if err != nil {
			return nil, &IllegalFilterError{
				Reason: fmt.Sprintf("bad value %q for property %q: %v", value, prop, err),
			}
		}
		if op == "!=" {
			op = "<>"
		}
		clauses = append(clauses, Clause{SQL: spec.Column + " " + op + " ?", Args: []interface{}{arg}})
	}
	return clauses, nil
}

func coerce(kind models.FieldKind, value string) (interface{}, error) {
	switch kind {
	case models.KindInt:
		return strconv.ParseInt(value, 10, 64)
	case models.KindBool:
		return strconv.ParseBool(value)
	case models.KindTime:
		return time.Parse(time.RFC3339, value)
	default:
		return value, nil
	}
}

// ParseSort validates a sort expression of the form
// "field asc|field2 desc" (entries divided by "|", direction optional,
// ascending by default) and returns ORDER BY terms. Any declared property
// may be sorted on, filterable or not.
func ParseSort(schema models.Schema, sort string) ([]string, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return nil, nil
	}

	var terms []string
	for _, entry := range strings.Split(sort, "|") {
		fields := strings.Fields(entry)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, &IllegalFilterError{Reason: fmt.Sprintf("malformed sort entry %q", entry)}
		}
		spec, ok := schema[fields[0]]
		if !ok {
			return nil, &IllegalFilterError{Reason: fmt.Sprintf("cannot sort on unknown property %q", fields[0])}
		}

		dir := "ASC"
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				dir = "DESC"
			default:
				return nil, &IllegalFilterError{Reason: fmt.Sprintf("bad sort direction %q", fields[1])}
			}
		}
		terms = append(terms, spec.Column+" "+dir)
	}
	return terms, nil
}

// ParsePermittedIDs parses the comma-separated object id filter from the
// permission check. Each entry must parse as a numeric id, which keeps
// arbitrary permission text out of the query.
func ParsePermittedIDs(permittedIDs string) ([]uint64, error) {
	parts := strings.Split(permittedIDs, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric object id %q in permission grant", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OwnershipClause limits visibility to records that are unowned, owned by
// the principal, or explicitly permitted by id. permittedIDs is the
// comma-separated filter from the permission check.
func OwnershipClause(ownerID uint64, permittedIDs string) (Clause, error) {
	if permittedIDs == "" {
		return Clause{
			SQL:  "(owner_id IS NULL OR owner_id = ?)",
			Args: []interface{}{ownerID},
		}, nil
	}

	ids, err := ParsePermittedIDs(permittedIDs)
	if err != nil {
		return Clause{}, err
	}
	return Clause{
		SQL:  "(owner_id IS NULL OR owner_id = ? OR id IN ?)",
		Args: []interface{}{ownerID, ids},
	}, nil
}
