package schema

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
)

var nameRe = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

func validName(name string) bool {
	return nameRe.MatchString(name)
}

// reservedNames are type names the generated schema defines itself.
var reservedNames = map[string]bool{
	"Query":                     true,
	"Mutation":                  true,
	"Subscription":              true,
	"AggregateResult":           true,
	"SortOrder":                 true,
	"OrderByInput":              true,
	"AdminMetadata":             true,
	"AdminEntityMetadata":       true,
	"AdminFieldMetadata":        true,
	"AdminRelationshipMetadata": true,
	"AdminEnumMetadata":         true,
	"String":                    true,
	"Int":                       true,
	"Float":                     true,
	"Boolean":                   true,
	"ID":                        true,
	"DateTime":                  true,
	"JSON":                      true,
}

// IsReservedName reports whether name collides with a generated or built-in
// type. Names starting with an underscore are reserved as well.
func IsReservedName(name string) bool {
	return reservedNames[name] || strings.HasPrefix(name, "_")
}

// ReservedNames returns the fixed reserved names.
func ReservedNames() []string {
	names := make([]string, 0, len(reservedNames))
	for n := range reservedNames {
		names = append(names, n)
	}
	return names
}

// Pluralize returns the English plural of an entity name
func Pluralize(name string) string {
	return inflect.Pluralize(name)
}

// LowerFirst lower-cases the first rune: "TaskItem" becomes "taskItem".
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// UpperFirst upper-cases the first rune.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
