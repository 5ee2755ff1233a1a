package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AimalShah/BarterDash-sub003/internal/config"
)

// CreateConfigCommand creates a cobra command that prints the effective
// daemon configuration
func CreateConfigCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective daemon configuration",
		Long: `Print the configuration the daemon would run with, after defaults,
.env files and environment variables are applied. Secrets are redacted.

Use --json flag for machine-readable JSON output.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error loading configuration: %v\n", err)
				os.Exit(1)
			}

			redactSecrets(cfg)

			if jsonOutput {
				output, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error marshalling configuration: %v\n", err)
					os.Exit(1)
				}
				fmt.Println(string(output))
			} else {
				printHumanReadable(cfg)
			}

			os.Exit(0)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

// redactSecrets blanks credentials before the configuration is printed
func redactSecrets(cfg *config.Config) {
	if cfg.Database.ConnectionString != "" {
		cfg.Database.ConnectionString = "[redacted]"
	}
	if cfg.Feed.AuthToken != "" {
		cfg.Feed.AuthToken = "[redacted]"
	}
}

func printHumanReadable(cfg *config.Config) {
	fmt.Println("Effective configuration:")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("  Server    %s:%d (read %ds, write %ds, cors %s)\n",
		cfg.Server.Host, cfg.Server.Port,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout,
		cfg.Server.CORSAllowOrigin)

	fmt.Printf("  Database  %s (pool %d open / %d idle, lifetime %dm)\n",
		cfg.Database.ConnectionString,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime)

	fmt.Printf("  Feed      %s (buffer %d, pong timeout %ds)\n",
		cfg.Feed.URL, cfg.Feed.MessageBuffer, cfg.Feed.PongTimeout)

	fmt.Printf("  Session   auto-reconnect=%v attempts=%d backoff=%d..%dms heartbeat=%dms\n",
		cfg.Session.EnableAutoReconnect, cfg.Session.MaxReconnectAttempts,
		cfg.Session.BaseReconnectDelayMS, cfg.Session.MaxReconnectDelayMS,
		cfg.Session.HeartbeatIntervalMS)

	fmt.Printf("  Logging   %s (%s) -> %s\n",
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)

	fmt.Println(strings.Repeat("=", 60))
}
