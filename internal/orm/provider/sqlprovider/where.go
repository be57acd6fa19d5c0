package sqlprovider

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// statement collects the bind arguments of a statement being rendered
type statement struct {
	dialect Dialect
	args    []any
}

// bind appends v and returns its placeholder
func (s *statement) bind(v any) string {
	s.args = append(s.args, v)
	return s.dialect.Placeholder(len(s.args))
}

// where renders f as a WHERE clause, or "" when f is empty
func (s *statement) where(f provider.Filter) (string, error) {
	if len(f) == 0 {
		return "", nil
	}
	g, err := provider.Parse(f)
	if err != nil {
		return "", err
	}
	sql, err := s.group(g)
	if err != nil || sql == "" {
		return "", err
	}
	return " WHERE " + sql, nil
}

// group converts the predicate group to SQL
func (s *statement) group(g *provider.Group) (string, error) {
	if g.Empty() {
		return "", nil
	}

	parts := make([]string, 0, len(g.Conditions)+len(g.Groups))
	for _, c := range g.Conditions {
		sql, err := s.condition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, sub := range g.Groups {
		sql, err := s.group(sub)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, "("+sql+")")
		}
	}

	connector := " AND "
	if g.Or {
		connector = " OR "
	}
	return strings.Join(parts, connector), nil
}

// condition converts a condition to SQL with parameterized values
func (s *statement) condition(c *provider.Condition) (string, error) {
	col := s.dialect.Quote(c.Field)

	switch c.Operator {
	case provider.Eq:
		if c.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + s.bind(c.Value), nil

	case provider.Ne:
		if c.Value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " != " + s.bind(c.Value), nil

	case provider.Gt, provider.Gte, provider.Lt, provider.Lte:
		return fmt.Sprintf("%s %s %s", col, c.Operator, s.bind(c.Value)), nil

	case provider.In, provider.NotIn:
		values, _ := provider.ToSlice(c.Value)
		negate := c.Operator == provider.NotIn
		if len(values) == 0 {
			// an empty IN list matches nothing
			if negate {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		if s.dialect == Postgres {
			if negate {
				return col + " <> ALL(" + s.bind(pq.Array(values)) + ")", nil
			}
			return col + " = ANY(" + s.bind(pq.Array(values)) + ")", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = s.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", col, c.Operator, strings.Join(placeholders, ", ")), nil

	case provider.Like:
		return col + " LIKE " + s.bind(c.Value), nil

	case provider.ILike:
		if s.dialect == Postgres {
			return col + " ILIKE " + s.bind(c.Value), nil
		}
		return "LOWER(" + col + ") LIKE LOWER(" + s.bind(c.Value) + ")", nil

	case provider.IsNull:
		if isNull, _ := c.Value.(bool); isNull {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", c.Operator)
	}
}

// orderBy renders an ORDER BY clause
func (s *statement) orderBy(page *provider.Pagination) string {
	if page == nil || len(page.OrderBy) == 0 {
		return ""
	}
	parts := make([]string, len(page.OrderBy))
	for i, o := range page.OrderBy {
		dir := provider.Asc
		if o.Direction == provider.Desc {
			dir = provider.Desc
		}
		parts[i] = s.dialect.Quote(o.Field) + " " + string(dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
