package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/internal/cartsync"
)

// cartCommand builds a command that sends one cart request and prints the
// resulting cart.
func cartCommand(opts *RootOptions, use, short string, args cobra.PositionalArgs, req func(args []string) (method, path string, body any, err error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, path, body, err := req(args)
			if err != nil {
				return err
			}
			return sendCart(opts, cmd, method, path, body)
		},
	}
}

func sendCart(opts *RootOptions, cmd *cobra.Command, method, path string, body any) error {
	c := newClient(opts, cmd)
	var snap cartsync.Snapshot
	if err := c.do(cmd, method, path, body, &snap); err != nil {
		return err
	}
	if c.text() && !opts.Quiet {
		c.printCart(snap)
	}
	return nil
}

// NewCartCommand creates the cart command.
func NewCartCommand(opts *RootOptions) *cobra.Command {
	return cartCommand(opts, "cart", "Show the cart", cobra.NoArgs,
		func([]string) (string, string, any, error) {
			return "GET", "/cart", nil, nil
		})
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	var qty int
	cmd := cartCommand(opts, "add <product-id>", "Add a product to the cart", cobra.ExactArgs(1),
		func(args []string) (string, string, any, error) {
			if qty < 1 {
				return "", "", nil, fmt.Errorf("--qty must be at least 1")
			}
			return "POST", "/cart/items", map[string]any{"product_id": args[0], "quantity": qty}, nil
		})
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return cartCommand(opts, "remove <product-id>", "Remove a line from the cart", cobra.ExactArgs(1),
		func(args []string) (string, string, any, error) {
			return "DELETE", "/cart/items/" + url.PathEscape(args[0]), nil, nil
		})
}

// NewQuantityCommand creates the qty command.
func NewQuantityCommand(opts *RootOptions) *cobra.Command {
	return cartCommand(opts, "qty <product-id> <quantity>", "Set a line's quantity (0 removes it)", cobra.ExactArgs(2),
		func(args []string) (string, string, any, error) {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return "", "", nil, fmt.Errorf("invalid quantity %q", args[1])
			}
			return "PUT", "/cart/items/" + url.PathEscape(args[0]), map[string]int{"quantity": n}, nil
		})
}

// NewSelectCommand creates the select command.
func NewSelectCommand(opts *RootOptions) *cobra.Command {
	var all, none bool
	cmd := cartCommand(opts, "select [product-id...]", "Choose which lines go to checkout", cobra.ArbitraryArgs,
		func(args []string) (string, string, any, error) {
			switch {
			case all && none:
				return "", "", nil, fmt.Errorf("--all and --none are mutually exclusive")
			case all:
				return "PUT", "/cart/selection", map[string]any{"all": true}, nil
			case none:
				return "PUT", "/cart/selection", map[string]any{"all": false}, nil
			case len(args) == 0:
				return "", "", nil, fmt.Errorf("give product ids, --all or --none")
			}
			return "PUT", "/cart/selection", map[string]any{"refs": args}, nil
		})
	cmd.Flags().BoolVar(&all, "all", false, "select every line")
	cmd.Flags().BoolVar(&none, "none", false, "clear the selection")
	return cmd
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(opts *RootOptions) *cobra.Command {
	return cartCommand(opts, "toggle <product-id>", "Flip one line's selection", cobra.ExactArgs(1),
		func(args []string) (string, string, any, error) {
			return "POST", "/cart/selection/" + url.PathEscape(args[0]) + "/toggle", nil, nil
		})
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	return cartCommand(opts, "clear", "Empty the cart", cobra.NoArgs,
		func([]string) (string, string, any, error) {
			return "DELETE", "/cart", nil, nil
		})
}
