package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront/internal/cartsync"
	"storefront/internal/model"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func (c *client) printRequest(method, path string, body []byte) {
	fmt.Fprintf(c.out, "\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		c.printJSON(body, "  ")
	}
}

func (c *client) printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Fprintf(c.out, "\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	c.printJSON(body, "  ")
}

func (c *client) printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(data), prefix, "  "); err != nil {
		fmt.Fprintf(c.out, "%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !c.opts.Verbose && c.opts.Format != "json" {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Fprintln(c.out, output)
}

func (c *client) printSuccess(format string, args ...any) {
	if !c.opts.Quiet {
		fmt.Fprintf(c.out, "%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func (c *client) printError(format string, args ...any) {
	fmt.Fprintf(c.out, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func (c *client) printWarning(format string, args ...any) {
	fmt.Fprintf(c.out, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

// text reports whether human-readable output is wanted.
func (c *client) text() bool {
	return c.opts.Format == "text"
}

// printCart renders a cart snapshot as a table. Selected lines are marked.
func (c *client) printCart(snap cartsync.Snapshot) {
	if len(snap.Lines) == 0 {
		fmt.Fprintf(c.out, "%sCart is empty%s (%s)\n", colorGray, colorReset, snap.State)
		return
	}

	selected := make(map[model.ProductRef]bool, len(snap.Selected))
	for _, ref := range snap.Selected {
		selected[ref] = true
	}

	for _, l := range snap.Lines {
		mark := "[ ]"
		if selected[l.Ref()] {
			mark = "[x]"
		}
		fmt.Fprintf(c.out, "%s %-8s %-30s %3d × %8s = %9s\n",
			mark, l.Ref(), l.Product.Name, l.Quantity, l.Product.Price, model.Price(l.Subtotal()))
	}
	fmt.Fprintf(c.out, "%s%d items, total %s, selected %s%s (%s)\n",
		colorBold, snap.TotalItems, snap.TotalPrice, snap.SelectedSubtotal, colorReset, snap.State)
}

func (c *client) printProducts(products []model.Product) {
	for _, p := range products {
		fmt.Fprintf(c.out, "%-8s %-30s %8s  %s\n", p.ID, p.Name, p.Price, p.CategoryName)
	}
}

func (c *client) printOrder(o model.Order) {
	fmt.Fprintf(c.out, "%sOrder %s%s  %s  %s  %s\n",
		colorBold, o.ID, colorReset, o.Status, o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04"))
	for _, item := range o.Items {
		fmt.Fprintf(c.out, "  %-8s %-30s %3d × %8s\n", item.ID, item.Product.Name, item.Quantity, item.Price)
	}
}
