package provider

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Filter is a GraphQL-shaped list filter. Keys are column names with an
// optional operator suffix ("age_gt", "name_ilike"); the reserved keys
// "_and" and "_or" hold lists of nested filters.
type Filter map[string]any

const (
	KeyAnd = "_and"
	KeyOr  = "_or"
)

// Operator represents a comparison operator
type Operator int

const (
	Eq Operator = iota
	Ne
	Gt
	Gte
	Lt
	Lte
	In
	NotIn
	Like
	ILike
	IsNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Gt:
		return ">"
	case Gte:
		return ">="
	case Lt:
		return "<"
	case Lte:
		return "<="
	case In:
		return "IN"
	case NotIn:
		return "NOT IN"
	case Like:
		return "LIKE"
	case ILike:
		return "ILIKE"
	case IsNull:
		return "IS NULL"
	default:
		return "UNKNOWN"
	}
}

// Suffix returns the filter key suffix selecting the operator.
func (o Operator) Suffix() string {
	switch o {
	case Ne:
		return "_ne"
	case Gt:
		return "_gt"
	case Gte:
		return "_gte"
	case Lt:
		return "_lt"
	case Lte:
		return "_lte"
	case In:
		return "_in"
	case NotIn:
		return "_nin"
	case Like:
		return "_like"
	case ILike:
		return "_ilike"
	case IsNull:
		return "_null"
	default:
		return ""
	}
}

// suffix lookup order: longer suffixes sharing a tail must come first.
var suffixOrder = []Operator{ILike, Like, IsNull, NotIn, Gte, Lte, In, Ne, Gt, Lt}

// SplitKey splits a filter key into its column and operator.
func SplitKey(key string) (string, Operator) {
	for _, op := range suffixOrder {
		s := op.Suffix()
		if strings.HasSuffix(key, s) && len(key) > len(s) {
			return strings.TrimSuffix(key, s), op
		}
	}
	return key, Eq
}

// Condition represents a single column predicate
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Group represents a group of predicates combined with AND/OR
type Group struct {
	Conditions []*Condition
	Groups     []*Group
	Or         bool
}

// Empty reports whether the group has no predicates.
func (g *Group) Empty() bool {
	return g == nil || (len(g.Conditions) == 0 && len(g.Groups) == 0)
}

// Without returns g with the conditions on fields removed. An OR group
// mentioning one of fields is dropped whole, so the result never matches
// fewer records than g.
func (g *Group) Without(fields map[string]bool) *Group {
	if g == nil {
		return nil
	}
	out := &Group{Or: g.Or}
	if g.Or && g.mentions(fields) {
		return out
	}
	for _, c := range g.Conditions {
		if !fields[c.Field] {
			out.Conditions = append(out.Conditions, c)
		}
	}
	for _, sub := range g.Groups {
		if pruned := sub.Without(fields); !pruned.Empty() {
			out.Groups = append(out.Groups, pruned)
		}
	}
	return out
}

func (g *Group) mentions(fields map[string]bool) bool {
	for _, c := range g.Conditions {
		if fields[c.Field] {
			return true
		}
	}
	for _, sub := range g.Groups {
		if sub.mentions(fields) {
			return true
		}
	}
	return false
}

// Parse converts a filter into a predicate tree. Keys are visited in sorted
// order so the resulting tree (and any SQL rendered from it) is stable.
func Parse(f Filter) (*Group, error) {
	root := &Group{}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := f[key]
		switch key {
		case KeyAnd, KeyOr:
			subs, err := Nested(value)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", key, err)
			}
			group := &Group{Or: key == KeyOr}
			for _, sub := range subs {
				g, err := Parse(sub)
				if err != nil {
					return nil, err
				}
				if !g.Empty() {
					group.Groups = append(group.Groups, g)
				}
			}
			if !group.Empty() {
				root.Groups = append(root.Groups, group)
			}
		default:
			field, op := SplitKey(key)
			if op == In || op == NotIn {
				list, ok := ToSlice(value)
				if !ok {
					return nil, fmt.Errorf("filter %s: expected a list, got %T", key, value)
				}
				value = list
			}
			if op == IsNull {
				if _, ok := value.(bool); !ok {
					return nil, fmt.Errorf("filter %s: expected a boolean, got %T", key, value)
				}
			}
			root.Conditions = append(root.Conditions, &Condition{Field: field, Operator: op, Value: value})
		}
	}
	return root, nil
}

// Nested normalizes the value of an _and/_or key into a list of filters.
func Nested(v any) ([]Filter, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []Filter:
		return list, nil
	case Filter:
		return []Filter{list}, nil
	case map[string]any:
		return []Filter{list}, nil
	}
	items, ok := ToSlice(v)
	if !ok {
		return nil, fmt.Errorf("expected a list of filters, got %T", v)
	}
	out := make([]Filter, 0, len(items))
	for _, item := range items {
		switch m := item.(type) {
		case Filter:
			out = append(out, m)
		case map[string]any:
			out = append(out, m)
		case nil:
		default:
			return nil, fmt.Errorf("expected a filter object, got %T", item)
		}
	}
	return out, nil
}

// And combines filters so that every one of them must hold. Empty filters
// are dropped; a single remaining filter is returned unchanged.
func And(filters ...Filter) Filter {
	return combine(KeyAnd, filters)
}

// Or combines filters so that at least one of them must hold.
func Or(filters ...Filter) Filter {
	return combine(KeyOr, filters)
}

func combine(key string, filters []Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return Filter{key: kept}
	}
}

// Matches reports whether rec satisfies f.
func Matches(rec Record, f Filter) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}
	g, err := Parse(f)
	if err != nil {
		return false, err
	}
	return Match(rec, g), nil
}

// Match evaluates a predicate tree against a record.
func Match(rec Record, g *Group) bool {
	if g.Empty() {
		return true
	}
	results := make([]bool, 0, len(g.Conditions)+len(g.Groups))
	for _, c := range g.Conditions {
		results = append(results, matchCondition(rec, c))
	}
	for _, sub := range g.Groups {
		results = append(results, Match(rec, sub))
	}
	if g.Or {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

func matchCondition(rec Record, c *Condition) bool {
	v := rec[c.Field]
	switch c.Operator {
	case Eq:
		if list, ok := ToSlice(v); ok {
			return containsValue(list, c.Value)
		}
		return Equal(v, c.Value)
	case Ne:
		return !Equal(v, c.Value)
	case Gt, Gte, Lt, Lte:
		cmp, ok := Compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case Gt:
			return cmp > 0
		case Gte:
			return cmp >= 0
		case Lt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case In:
		list, _ := ToSlice(c.Value)
		return containsValue(list, v)
	case NotIn:
		list, _ := ToSlice(c.Value)
		return !containsValue(list, v)
	case Like, ILike:
		s, ok := v.(string)
		pattern, pok := c.Value.(string)
		if !ok || !pok {
			return false
		}
		return likeMatch(s, pattern, c.Operator == ILike)
	case IsNull:
		want, _ := c.Value.(bool)
		return (v == nil) == want
	default:
		return false
	}
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// likeMatch implements SQL LIKE semantics: % matches any run, _ one rune.
func likeMatch(s, pattern string, insensitive bool) bool {
	var b strings.Builder
	if insensitive {
		b.WriteString("(?is)")
	} else {
		b.WriteString("(?s)")
	}
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// ToSlice converts any slice value to []any.
func ToSlice(v any) ([]any, bool) {
	switch list := v.(type) {
	case nil:
		return nil, false
	case []any:
		return list, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Equal compares two scalar values, treating numbers of different Go types
// and ids given as strings or integers as equal when they denote the same
// value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareInts(a, b); ok {
		return c == 0
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return KeyOf(a) == KeyOf(b)
}

// Compare orders two values of compatible types.
func Compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if c, ok := compareInts(a, b); ok {
		return c, true
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// KeyOf renders a value as a stable string, suitable as a map or cache key.
func KeyOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// compareInts orders two integers exactly; float64 loses precision above 2^53.
func compareInts(a, b any) (int, bool) {
	sa, ua, aSigned, ok := toInt(a)
	if !ok {
		return 0, false
	}
	sb, ub, bSigned, ok := toInt(b)
	if !ok {
		return 0, false
	}
	switch {
	case aSigned && bSigned:
		return cmp.Compare(sa, sb), true
	case !aSigned && !bSigned:
		return cmp.Compare(ua, ub), true
	case aSigned:
		if sa < 0 {
			return -1, true
		}
		return cmp.Compare(uint64(sa), ub), true
	default:
		if sb < 0 {
			return 1, true
		}
		return cmp.Compare(ua, uint64(sb)), true
	}
}

func toInt(v any) (signed int64, unsigned uint64, isSigned, ok bool) {
	switch n := v.(type) {
	case int:
		return int64(n), 0, true, true
	case int8:
		return int64(n), 0, true, true
	case int16:
		return int64(n), 0, true, true
	case int32:
		return int64(n), 0, true, true
	case int64:
		return n, 0, true, true
	case uint:
		return 0, uint64(n), false, true
	case uint8:
		return 0, uint64(n), false, true
	case uint16:
		return 0, uint64(n), false, true
	case uint32:
		return 0, uint64(n), false, true
	case uint64:
		return 0, n, false, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, 0, true, true
		}
	}
	return 0, 0, false, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}
