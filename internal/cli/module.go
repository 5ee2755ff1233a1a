package cli

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Module provides the CLI commands
var Module = fx.Module("cli",
	fx.Provide(
		NewServeCmd,
	),
	fx.Invoke(RunCLI),
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session daemon",
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address override (host:port)")
	cmd.Flags().StringP("feed-url", "f", "", "Auction feed URL override")

	return cmd
}

// RunCLI executes the cobra CLI before the daemon comes up. Flag overrides
// are exported as environment variables; this must run ahead of configuration
// loading.
func RunCLI(serveCmd *cobra.Command) {
	rootCmd := &cobra.Command{
		Use:   "barterdash-sessiond",
		Short: "BarterDash auction session daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation serves with configuration defaults.
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(CreateConfigCommand())

	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return applyOverrides(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyOverrides exports flag values as configuration environment variables
func applyOverrides(cmd *cobra.Command) error {
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		host, port, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", listen, err)
		}
		os.Setenv("BARTERDASH_SERVER_HOST", host)
		os.Setenv("BARTERDASH_SERVER_PORT", port)
	}

	if feedURL, _ := cmd.Flags().GetString("feed-url"); feedURL != "" {
		os.Setenv("BARTERDASH_FEED_URL", feedURL)
	}

	return nil
}
