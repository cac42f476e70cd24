// Package cli implements storefrontctl, a command line client for the
// storefront's local REST API. Each command performs one operation, so
// commands compose in scripts.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Format  string // "json" | "text"
	Quiet   bool
	Verbose bool
	NoColor bool

	// HTTPClient is replaced in tests.
	HTTPClient *http.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for storefrontctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	cmd := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Drive the storefront cart from the command line",
		Long: `storefrontctl talks to a running storefront over its local REST API.

Examples:
  storefrontctl add 60 --qty 2
  storefrontctl select --none && storefrontctl toggle 60
  storefrontctl login --email ana@example.com --password secret
  storefrontctl checkout --payment cod --first-name Ana --address "1 Main St"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.NoColor || os.Getenv("NO_COLOR") != "" || opts.Format == "json" {
				disableColors()
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("STOREFRONT_URL", "http://localhost:8080"), "storefront base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only essential output")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print requests and full responses")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	// Cart
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewQuantityCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	// Catalog, checkout and orders
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))

	// Session
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
