package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.cue>",
		Short: "Load menu products and tables from a CUE file",
		Long: `Load menu products and tables from a CUE file.

Products are matched by name: an existing product has its image and
quantity overwritten. Table numbers that already exist are skipped.

Example file:

  products: [
    {name: "Burger", quantity: 20},
    {name: "Fries", quantity: 50, image_url: "https://cdn.example.com/fries.png"},
  ]
  tables: [1, 2, 3, 4]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			f, err := seed.Load(args[0])
			if err != nil {
				return out.Fail(WrapExitError(ExitCommandError, "invalid seed file", err))
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				res, err := seed.Apply(ctx, f, a.catalog, a.tables)
				if err != nil {
					return err
				}
				return out.Success(res, formatSeedResult(res))
			})
		},
	}
}

func formatSeedResult(res seed.Result) string {
	return fmt.Sprintf("Products: %d created, %d updated\nTables: %d created, %d skipped",
		res.ProductsCreated, res.ProductsUpdated, res.TablesCreated, res.TablesSkipped)
}
