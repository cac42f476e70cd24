package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"storefront/internal/checkout"
	"storefront/internal/model"
)

// NewProductsCommand creates the products command.
func NewProductsCommand(opts *RootOptions) *cobra.Command {
	var category string
	var bestsellers bool

	cmd := &cobra.Command{
		Use:   "products [product-id]",
		Short: "List products, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts, cmd)

			if len(args) == 1 {
				var p model.Product
				if err := c.do(cmd, "GET", "/products/"+url.PathEscape(args[0]), nil, &p); err != nil {
					return err
				}
				if c.text() {
					c.printProducts([]model.Product{p})
					if p.Description != "" && !opts.Quiet {
						fmt.Fprintf(c.out, "\n%s\n", p.Description)
					}
				}
				return nil
			}

			path := "/products"
			switch {
			case bestsellers:
				path = "/products/bestsellers"
			case category != "":
				path += "?category=" + url.QueryEscape(category)
			}
			var products []model.Product
			if err := c.do(cmd, "GET", path, nil, &products); err != nil {
				return err
			}
			if c.text() {
				c.printProducts(products)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only products in this category")
	cmd.Flags().BoolVar(&bestsellers, "bestsellers", false, "only best sellers")
	return cmd
}

// NewCheckoutCommand creates the checkout command. Without --payment it
// only checks that checkout can begin and prints the summary.
func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	var req checkout.Request
	var payment string

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out the selected lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts, cmd)

			if payment == "" {
				var summary checkout.Summary
				if err := c.do(cmd, "POST", "/checkout/begin", nil, &summary); err != nil {
					return err
				}
				if c.text() {
					for _, l := range summary.Lines {
						fmt.Fprintf(c.out, "%-8s %-30s %3d × %8s\n", l.Ref(), l.Product.Name, l.Quantity, l.Product.Price)
					}
					fmt.Fprintf(c.out, "%sSubtotal %s%s\n", colorBold, summary.Subtotal, colorReset)
				}
				return nil
			}

			req.PaymentMethod = model.PaymentMethod(payment)
			if !req.PaymentMethod.Valid() {
				return fmt.Errorf("unknown payment method %q (want paypal or cod)", payment)
			}
			var order model.Order
			if err := c.do(cmd, "POST", "/checkout", req, &order); err != nil {
				return err
			}
			if c.text() {
				c.printSuccess("Order %s placed", order.ID)
				if !opts.Quiet {
					c.printOrder(order)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&payment, "payment", "", "place the order paying with paypal or cod")
	cmd.Flags().StringVar(&req.Shipping.FirstName, "first-name", "", "shipping first name")
	cmd.Flags().StringVar(&req.Shipping.LastName, "last-name", "", "shipping last name")
	cmd.Flags().StringVar(&req.Shipping.Address, "address", "", "shipping street address")
	return cmd
}

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and manage orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts, cmd)
			var orders []model.Order
			if err := c.do(cmd, "GET", "/orders", nil, &orders); err != nil {
				return err
			}
			if c.text() {
				if len(orders) == 0 && !opts.Quiet {
					fmt.Fprintf(c.out, "%sNo orders%s\n", colorGray, colorReset)
				}
				for _, o := range orders {
					c.printOrder(o)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts, cmd)
			var order model.Order
			if err := c.do(cmd, "GET", "/orders/"+url.PathEscape(args[0]), nil, &order); err != nil {
				return err
			}
			if c.text() {
				c.printOrder(order)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <order-id> [item-id]",
		Short: "Cancel an order, or one item of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts, cmd)
			path := "/orders/" + url.PathEscape(args[0])
			if len(args) == 2 {
				path += "/items/" + url.PathEscape(args[1])
			}
			if err := c.do(cmd, "POST", path+"/cancel", nil, nil); err != nil {
				return err
			}
			if c.text() {
				c.printSuccess("Canceled")
			}
			return nil
		},
	})

	return cmd
}
