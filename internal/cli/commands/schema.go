package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/gqlmeta/internal/cli/ui"
	"github.com/conduit-lang/gqlmeta/internal/graphql/sdl"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the generated GraphQL schema",
		Long: `Build the schema from the entity declarations and print it as SDL.
No database or cache connection is made.

Examples:
  gqlmeta schema
  gqlmeta schema -o schema.graphql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, a, err := buildOffline(cmd.Context())
			if err != nil {
				return err
			}

			printed, err := sdl.Print(a.Schema)
			if err != nil {
				return fmt.Errorf("failed to print schema: %w", err)
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), printed)
				return nil
			}
			if err := os.WriteFile(output, []byte(printed), 0644); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Schema written to %s", output), noColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the SDL to a file instead of stdout")
	return cmd
}
