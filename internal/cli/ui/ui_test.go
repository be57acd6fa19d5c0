package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	out := FormatError(ErrorOptions{
		Context:     "entity not found",
		Problem:     `no entity named "Tsk"`,
		Details:     []string{"the schema declares 2 entities"},
		Suggestions: []string{"Task"},
		Help:        []string{"List entities: gqlmeta validate"},
		NoColor:     true,
	})

	assert.Equal(t, "✗ ENTITY NOT FOUND: no entity named \"Tsk\"\n"+
		"   the schema declares 2 entities\n"+
		"\n   Did you mean: Task?\n"+
		"\n   → List entities: gqlmeta validate\n", out)
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "schema is valid", true)
	assert.Equal(t, "✓ schema is valid\n", buf.String())
}

func TestSuggest(t *testing.T) {
	candidates := []string{"Task", "User", "Comment", "Tag"}

	assert.Equal(t, []string{"Task", "Tag", "User"}, Suggest("Tsk", candidates))
	assert.Equal(t, []string{"User"}, Suggest("user", candidates))
	assert.Empty(t, Suggest("Invoice", candidates))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 1, levenshtein("café", "cafe"))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "ENTITY", "OPERATIONS")
	table.AddRow("Task", "task, tasks")
	table.AddRow("User", "user")
	table.Render()

	assert.Equal(t, ""+
		"ENTITY  OPERATIONS\n"+
		"------  -----------\n"+
		"Task    task, tasks\n"+
		"User    user\n", buf.String())
}
