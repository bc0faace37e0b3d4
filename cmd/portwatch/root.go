package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/portwatch/internal/app"
	"github.com/bobmcallan/portwatch/internal/common"
)

// appLoader builds the application core from a config path.
type appLoader func(configPath string) (*app.App, error)

type cli struct {
	load       appLoader
	configPath string
	format     string
}

// newRootCmd assembles the portwatch command tree.
func newRootCmd(load appLoader) *cobra.Command {
	c := &cli{load: load}

	root := &cobra.Command{
		Use:   "portwatch",
		Short: "Tiered stock data refresh engine",
		Long: `portwatch keeps a local store of stock records fresh by refreshing
each group of fields on its own cadence: quotes every few minutes during
market hours, fundamentals daily, ownership weekly and statements quarterly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.format {
			case "table", "json":
				return nil
			default:
				return fmt.Errorf("unsupported format %q (table|json)", c.format)
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to portwatch.toml (default: PORTWATCH_CONFIG or portwatch.toml next to the binary)")
	root.PersistentFlags().StringVar(&c.format, "format", "table", "Output format (table|json)")

	root.AddCommand(
		c.refreshCmd(),
		c.lookupCmd(),
		c.showCmd(),
		c.logCmd(),
		c.scheduleCmd(),
		c.cronTokenCmd(),
		c.versionCmd(),
	)
	return root
}

// withApp loads the app, runs fn and releases storage afterwards.
func (c *cli) withApp(fn func(a *app.App) error) error {
	a, err := c.load(c.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := common.CurrentBuild()
			if c.format == "json" {
				return c.writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
}
