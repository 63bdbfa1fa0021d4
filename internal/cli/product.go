package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/model"
)

// NewProductCommand creates the product admin command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage menu products and stock",
	}

	cmd.AddCommand(newProductAddCommand(rootOpts))
	cmd.AddCommand(newProductUpdateCommand(rootOpts))
	cmd.AddCommand(newProductSetQtyCommand(rootOpts))
	cmd.AddCommand(newProductRmCommand(rootOpts))
	cmd.AddCommand(newProductLsCommand(rootOpts))
	return cmd
}

func newProductAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		quantity int
		imageURL string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a product",
		Example: `  tableside product add "Margherita" --qty 20
  tableside product add Lemonade --qty 40 --image https://cdn.example.com/lemonade.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				p, err := a.catalog.Create(ctx, args[0], imageURL, quantity)
				if err != nil {
					return err
				}
				return out.Success(p, fmt.Sprintf("Added %s (%s), %d on hand", p.Name, p.ID, p.Quantity))
			})
		},
	}

	cmd.Flags().IntVarP(&quantity, "qty", "q", 0, "quantity on hand")
	cmd.Flags().StringVar(&imageURL, "image", "", "image URL")
	return cmd
}

func newProductUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name     string
		imageURL string
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a product's name, image, or quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				p, err := a.catalog.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					p.Name = name
				}
				if cmd.Flags().Changed("image") {
					p.ImageURL = imageURL
				}
				if cmd.Flags().Changed("qty") {
					p.Quantity = quantity
				}
				p, err = a.catalog.Update(ctx, p)
				if err != nil {
					return err
				}
				return out.Success(p, fmt.Sprintf("Updated %s (%s), %d on hand", p.Name, p.ID, p.Quantity))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&imageURL, "image", "", "new image URL")
	cmd.Flags().IntVarP(&quantity, "qty", "q", 0, "new quantity on hand")
	return cmd
}

func newProductSetQtyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-qty <id> <quantity>",
		Short: "Overwrite a product's quantity on hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(
					WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]), err))
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if err := a.catalog.SetQuantity(ctx, args[0], quantity); err != nil {
					return err
				}
				p, err := a.catalog.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(p, fmt.Sprintf("%s now has %d on hand", p.Name, p.Quantity))
			})
		},
	}
}

func newProductRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if err := a.catalog.Delete(ctx, args[0]); err != nil {
					return err
				}
				return out.Success(map[string]string{"id": args[0]}, fmt.Sprintf("Removed %s", args[0]))
			})
		},
	}
}

func newProductLsCommand(rootOpts *RootOptions) *cobra.Command {
	var lowOnly bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				var (
					products []model.Product
					err      error
				)
				if lowOnly {
					products, err = a.catalog.LowStock(ctx, a.cfg.LowStockThreshold)
				} else {
					products, err = a.catalog.List(ctx)
				}
				if err != nil {
					return err
				}
				return out.Success(products, formatProducts(products, a.cfg.LowStockThreshold))
			})
		},
	}

	cmd.Flags().BoolVar(&lowOnly, "low-stock", false, "only products at or below the low-stock threshold")
	return cmd
}

func formatProducts(products []model.Product, threshold int) string {
	if len(products) == 0 {
		return "No products."
	}
	var b strings.Builder
	for _, p := range products {
		flag := ""
		if p.LowStock(threshold) {
			flag = "  LOW"
		}
		fmt.Fprintf(&b, "%-12s %-24s %5d%s\n", p.ID, p.Name, p.Quantity, flag)
	}
	return b.String()
}
