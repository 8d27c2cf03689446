package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"pantry/internal/api"
	"pantry/internal/pantry"
	"pantry/internal/services"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Inspect and manage inventory items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsAddCommand(ctx))
	itemsCmd.AddCommand(newItemsEditCommand(ctx))
	itemsCmd.AddCommand(newItemsDeleteCommand(ctx))
	itemsCmd.AddCommand(newItemsWatchCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var search string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				items, err := manager.Snapshot(runCtx)
				if err != nil {
					return err
				}
				items = pantry.Filter(items, search)
				if asJSON {
					return writeJSON(cmd, api.InventoryResponse{Items: api.FromItems(items)})
				}
				printItems(cmd, items)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show items whose name contains this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type draftFlags struct {
	name      string
	price     string
	quantity  string
	imageURL  string
	imagePath string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Item name")
	cmd.Flags().StringVar(&f.price, "price", "", "Unit price, e.g. 2.49")
	cmd.Flags().StringVar(&f.quantity, "quantity", "", "Quantity on hand")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "Existing photo URL to keep")
	cmd.Flags().StringVar(&f.imagePath, "image", "", "Photo file to upload")
}

// draft builds the submission. On edit, fields whose flags were not given
// keep the stored values.
func (f *draftFlags) draft(cmd *cobra.Command, current *pantry.Item) pantry.Draft {
	d := pantry.Draft{Name: f.name, Price: f.price, Quantity: f.quantity, ImageURL: f.imageURL}
	if current == nil {
		return d
	}
	flags := cmd.Flags()
	if !flags.Changed("name") {
		d.Name = current.Name
	}
	if !flags.Changed("price") {
		d.Price = current.Price.String()
	}
	if !flags.Changed("quantity") {
		d.Quantity = strconv.FormatInt(current.Quantity, 10)
	}
	if !flags.Changed("image-url") {
		d.ImageURL = current.ImageURL
	}
	return d
}

func (f *draftFlags) asset() ([]byte, error) {
	if f.imagePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.imagePath)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

func newItemsAddCommand(ctx *commandContext) *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an inventory item",
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := flags.asset()
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				outcome, err := manager.AddItem(runCtx, flags.draft(cmd, nil), asset)
				if err != nil {
					return err
				}
				if outcome.Skipped {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing saved: --name, --price and --quantity are required")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", outcome.Item.Name, outcome.Item.ID)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newItemsEditCommand(ctx *commandContext) *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an inventory item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := flags.asset()
			if err != nil {
				return err
			}
			id := args[0]
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				items, err := manager.Snapshot(runCtx)
				if err != nil {
					return err
				}
				current := findItem(items, id)
				if current == nil {
					return services.Wrap(services.ErrNotFound, "cli", "edit", fmt.Sprintf("item %s not found", id), nil)
				}
				outcome, err := manager.EditItem(runCtx, id, flags.draft(cmd, current), asset)
				if err != nil {
					return err
				}
				if outcome.Skipped {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing saved: name, price and quantity must not be blank")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", outcome.Item.Name, outcome.Item.ID)
				printCleanup(cmd, outcome.Cleanup)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newItemsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an inventory item and its photo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				outcome, err := manager.DeleteItem(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", outcome.Item.Name, outcome.Item.ID)
				printCleanup(cmd, outcome.Cleanup)
				return nil
			})
		},
	}
}

func newItemsWatchCommand(ctx *commandContext) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the inventory every time it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				signalCtx, cancel := signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				sub, err := manager.Subscribe(signalCtx, func(items []pantry.Item) {
					printItems(cmd, pantry.Filter(items, search))
				})
				if err != nil {
					return err
				}
				defer sub.Close()

				select {
				case <-signalCtx.Done():
				case <-sub.Done():
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show items whose name contains this text")
	return cmd
}

func findItem(items []pantry.Item, id string) *pantry.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func printItems(cmd *cobra.Command, items []pantry.Item) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "Inventory is empty")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			item.Price.StringFixed(2),
			strconv.FormatInt(item.Quantity, 10),
			yesNo(item.ImageURL != ""),
			item.ID,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Name", "Price", "Qty", "Photo", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func printCleanup(cmd *cobra.Command, cleanup pantry.Cleanup) {
	switch {
	case cleanup.Err != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: photo %s was not removed: %v\n", cleanup.Key, cleanup.Err)
	case cleanup.Succeeded:
		fmt.Fprintf(cmd.OutOrStdout(), "Removed photo %s\n", cleanup.Key)
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
