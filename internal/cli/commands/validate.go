package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/gqlmeta/internal/cli/ui"
	"github.com/conduit-lang/gqlmeta/internal/graphql/sdl"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// ErrValidationFailed is returned after validation problems were reported
var ErrValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and entity declarations",
		Long: `Load the configuration and declarations, resolve every relationship
and build the schema without connecting to any backend. Problems are
reported together.

Examples:
  gqlmeta validate
  gqlmeta validate -c staging.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, reg, a, err := buildOffline(cmd.Context())
			if err != nil {
				reportProblems(out, reg, err)
				return ErrValidationFailed
			}

			printed, err := sdl.Print(a.Schema)
			if err == nil {
				_, err = sdl.Validate(printed)
			}
			if err != nil {
				ui.WriteError(out, ui.ErrorOptions{
					Context: "schema invalid",
					Problem: err.Error(),
					NoColor: noColor,
				})
				return ErrValidationFailed
			}

			ui.WriteSuccess(out, fmt.Sprintf("%s: %d entities valid", cfg.Schema.EntitiesFile, reg.Count()), noColor)
			fmt.Fprintln(out)

			table := ui.NewTable(out, noColor, "ENTITY", "PROVIDER", "FIELDS", "OPERATIONS")
			for _, e := range reg.Entities() {
				table.AddRow(e.Name, providerName(e), strconv.Itoa(len(e.Fields)), strings.Join(a.Operations[e.Name], ", "))
			}
			table.Render()
			return nil
		},
	}
}

func providerName(e *schema.Entity) string {
	name := fmt.Sprintf("%T", e.Provider)
	return strings.TrimPrefix(name, "*")
}

func reportProblems(w io.Writer, reg *schema.Registry, err error) {
	for _, problem := range flatten(err) {
		opts := ui.ErrorOptions{
			Context: "declaration invalid",
			Problem: problem.Error(),
			NoColor: noColor,
			Help:    []string{"Validate: gqlmeta validate"},
		}

		var unresolved *schema.UnresolvedRelationshipError
		if reg != nil && errors.As(problem, &unresolved) {
			opts.Context = "relationship unresolved"
			if target := relationTarget(reg, unresolved); target != "" {
				opts.Suggestions = ui.Suggest(target, reg.List())
			}
		}
		ui.WriteError(w, opts)
	}
}

func relationTarget(reg *schema.Registry, err *schema.UnresolvedRelationshipError) string {
	e, ok := reg.Get(err.Entity)
	if !ok {
		return ""
	}
	f, ok := e.Field(err.Field)
	if !ok {
		return ""
	}
	return f.Target.Name()
}
