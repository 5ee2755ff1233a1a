package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var daemonAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Control client for the BarterDash session daemon",
	}

	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "http://127.0.0.1:8082",
		"Daemon API address")

	rootCmd.AddCommand(
		newStatsCmd(),
		newEventsCmd(),
		newActionCmd("connect", "Establish the session", "/api/v1/session/connect"),
		newActionCmd("disconnect", "Tear the session down", "/api/v1/session/disconnect"),
		newActionCmd("reconnect", "Force a fresh session cycle", "/api/v1/session/reconnect"),
		newForegroundCmd(),
		newPruneCmd(),
		newBidsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the session snapshot and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodGet, "/api/v1/session/stats", nil)
		},
	}
}

func newEventsCmd() *cobra.Command {
	var limit, offset int
	var summary bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the session journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if summary {
				return call(http.MethodGet, "/api/v1/session/events/summary", nil)
			}
			path := fmt.Sprintf("/api/v1/session/events?limit=%d&offset=%d", limit, offset)
			return call(http.MethodGet, path, nil)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show per-type counts instead of entries")
	return cmd
}

func newActionCmd(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodPost, path, nil)
		},
	}
}

func newForegroundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "foreground {on|off}",
		Short: "Report the host application lifecycle to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch args[0] {
			case "on":
				active = true
			case "off":
				active = false
			default:
				return fmt.Errorf("argument must be on or off, got %q", args[0])
			}

			payload, err := json.Marshal(map[string]bool{"active": active})
			if err != nil {
				return err
			}

			return call(http.MethodPut, "/api/v1/session/foreground", bytes.NewReader(payload))
		},
	}
}

func newPruneCmd() *cobra.Command {
	var olderThanHours int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove journal entries past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/session/events?older_than_hours=" + strconv.Itoa(olderThanHours)
			return call(http.MethodDelete, path, nil)
		},
	}

	cmd.Flags().IntVar(&olderThanHours, "older-than-hours", 168, "Retention window in hours")
	return cmd
}

func newBidsCmd() *cobra.Command {
	var highest bool

	cmd := &cobra.Command{
		Use:   "bids <auction-id>",
		Short: "Show the bids observed for an auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/auctions/" + args[0] + "/bids"
			if highest {
				path += "/highest"
			}
			return call(http.MethodGet, path, nil)
		},
	}

	cmd.Flags().BoolVar(&highest, "highest", false, "Show only the top bid")
	return cmd
}

// call performs one request against the daemon and pretty-prints the response
func call(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, daemonAddr+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", daemonAddr, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		fmt.Println(string(payload))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return nil
}
