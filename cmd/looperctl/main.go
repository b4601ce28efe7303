// Command looperctl inspects and tunes a running application through its
// control API: list resources and systems, enable or disable a system, and
// read cycle statistics.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var addr string

func main() {
	root := &cobra.Command{
		Use:   "looperctl",
		Short: "Inspect and tune a running control loop",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9090", "control API address")

	root.AddCommand(
		&cobra.Command{
			Use:   "resources",
			Short: "List registered resource types",
			RunE: func(cmd *cobra.Command, args []string) error {
				return get(cmd.OutOrStdout(), "/resources")
			},
		},
		&cobra.Command{
			Use:   "get <resource>",
			Short: "Read a resource's JSON value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return get(cmd.OutOrStdout(), "/resources/"+args[0])
			},
		},
		&cobra.Command{
			Use:   "set <resource> <json>",
			Short: "Update a resource from a JSON value",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return put(cmd.OutOrStdout(), "/resources/"+args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "systems",
			Short: "List scheduled systems in execution order",
			RunE: func(cmd *cobra.Command, args []string) error {
				return get(cmd.OutOrStdout(), "/systems")
			},
		},
		&cobra.Command{
			Use:   "enable <system>",
			Short: "Enable a system",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return post(cmd.OutOrStdout(), "/systems/"+args[0]+"/enable")
			},
		},
		&cobra.Command{
			Use:   "disable <system>",
			Short: "Disable a system",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return post(cmd.OutOrStdout(), "/systems/"+args[0]+"/disable")
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show cycle statistics",
			RunE: func(cmd *cobra.Command, args []string) error {
				return get(cmd.OutOrStdout(), "/stats")
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func client() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func get(out io.Writer, path string) error {
	resp, err := client().Get("http://" + addr + path)
	if err != nil {
		return fmt.Errorf("control API unreachable: %w", err)
	}
	defer resp.Body.Close()
	return render(out, resp)
}

func put(out io.Writer, path, body string) error {
	req, err := http.NewRequest(http.MethodPut, "http://"+addr+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client().Do(req)
	if err != nil {
		return fmt.Errorf("control API unreachable: %w", err)
	}
	defer resp.Body.Close()
	return render(out, resp)
}

func post(out io.Writer, path string) error {
	resp, err := client().Post("http://"+addr+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("control API unreachable: %w", err)
	}
	defer resp.Body.Close()
	return render(out, resp)
}

func render(out io.Writer, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control API returned %s: %s", resp.Status, body)
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Fprintln(out, string(body))
		return nil //nolint:nilerr // raw output is an acceptable fallback
	}
	formatted, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(formatted))
	return nil
}
