package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/gqlmeta/internal/cli/ui"
	"github.com/conduit-lang/gqlmeta/runtime/metadata"
)

// NewMetadataCommand creates the metadata command
func NewMetadataCommand() *cobra.Command {
	var (
		entity  string
		depth   int
		reverse bool
	)

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the entity metadata document",
		Long: `Print the metadata of the generated schema as JSON: entities, fields,
capabilities, operations, enums and the relationship graph.

With --entity only that entity is printed, followed by its dependency
subgraph.

Examples:
  gqlmeta metadata
  gqlmeta metadata --entity Task --depth 2
  gqlmeta metadata --entity User --reverse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, a, err := buildOffline(cmd.Context())
			if err != nil {
				return err
			}

			var doc any = a.Metadata
			if entity != "" {
				idx := metadata.NewIndex(a.Metadata)
				meta, err := idx.Entity(entity)
				if err != nil {
					ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
						Context:     "unknown entity",
						Problem:     err.Error(),
						Suggestions: ui.Suggest(entity, reg.List()),
						NoColor:     noColor,
					})
					return err
				}
				deps, err := idx.Dependencies(entity, metadata.DependencyOptions{Depth: depth, Reverse: reverse})
				if err != nil {
					return err
				}
				doc = struct {
					Entity       *metadata.EntityMetadata  `json:"entity"`
					Dependencies *metadata.DependencyGraph `json:"dependencies"`
				}{meta, deps}
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Print a single entity and its dependencies")
	cmd.Flags().IntVar(&depth, "depth", 1, "Dependency depth with --entity (0 for unlimited)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Follow relationships pointing to the entity")
	return cmd
}
