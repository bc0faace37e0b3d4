package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/portwatch/internal/app"
	"github.com/bobmcallan/portwatch/internal/models"
	"github.com/bobmcallan/portwatch/internal/server"
)

const timeLayout = "2006-01-02 15:04:05"

func (c *cli) refreshCmd() *cobra.Command {
	var (
		tierName string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "refresh [SYMBOL...]",
		Short: "Refresh one tier for the given symbols, or every tracked symbol",
		Example: `  portwatch refresh --tier realtime AAPL
  portwatch refresh --tier daily AAPL MSFT
  portwatch refresh --tier weekly --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := models.ParseTier(tierName)
			if err != nil {
				return err
			}
			if all == (len(args) > 0) {
				return fmt.Errorf("give either symbols or --all")
			}

			return c.withApp(func(a *app.App) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					result, ok := a.Refresh.RefreshTier(ctx, args[0], tier)
					if c.format == "json" {
						if err := c.writeJSON(out, result); err != nil {
							return err
						}
					} else {
						printResult(out, result)
					}
					if !ok {
						return fmt.Errorf("refresh of %s failed", result.Symbol)
					}
					return nil
				}

				var batch *models.BatchResult
				if all {
					batch, err = a.Refresh.RefreshAll(ctx, tier)
					if err != nil {
						return err
					}
				} else {
					batch = a.Refresh.RefreshMany(ctx, args, tier)
				}
				if c.format == "json" {
					return c.writeJSON(out, batch)
				}
				printBatch(out, batch)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&tierName, "tier", "t", "", "Tier to refresh (realtime|daily|weekly|quarterly)")
	cmd.Flags().BoolVar(&all, "all", false, "Refresh every tracked symbol")
	_ = cmd.MarkFlagRequired("tier")
	return cmd
}

func (c *cli) lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup QUERY",
		Short: "Find a tracked stock, or start tracking it via provider search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				rec, err := a.Refresh.LookupStock(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printStock(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show SYMBOL",
		Short: "Show the stored record for a tracked symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				rec, err := a.Refresh.GetStock(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printStock(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func (c *cli) logCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log SYMBOL",
		Short: "Show the refresh audit log for a symbol, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			return c.withApp(func(a *app.App) error {
				entries, err := a.Refresh.RefreshLog(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c.format == "json" {
					return c.writeJSON(out, entries)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tTIER\tSTATUS\tLATENCY\tFIELDS\tERROR")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%s\t%s\n",
						e.CreatedAt.Format(timeLayout), e.Tier, e.Status, e.LatencyMs,
						joinOrDash(e.FieldsUpdated), orDash(e.Error))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}

func (c *cli) scheduleCmd() *cobra.Command {
	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Scheduled tier runs",
	}
	schedule.AddCommand(&cobra.Command{
		Use:   "run NAME",
		Short: "Trigger a named schedule once, honouring its throttle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				outcome, err := a.Schedules.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c.format == "json" {
					return c.writeJSON(out, outcome)
				}
				if outcome.Skipped {
					fmt.Fprintf(out, "Schedule %s skipped: %s\n", outcome.Schedule, outcome.Reason)
					return nil
				}
				printBatch(out, outcome.Batch)
				return nil
			})
		},
	})
	return schedule
}

func (c *cli) cronTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "cron-token",
		Short: "Print a signed bearer token for POST /api/cron/refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			return c.withApp(func(a *app.App) error {
				token, err := server.NewCronToken(a.Config.Auth.CronSecret, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

func (c *cli) printStock(out io.Writer, rec *models.StockRecord) error {
	if c.format == "json" {
		return c.writeJSON(out, rec)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Symbol", rec.Symbol},
		{"Name", strOrDash(rec.LongName)},
		{"Exchange", strOrDash(rec.Exchange)},
		{"Sector", strOrDash(rec.Sector)},
		{"Price", floatOrDash(rec.CurrentPrice)},
		{"Change %", floatOrDash(rec.DayChangePercent)},
		{"Market cap", floatOrDash(rec.MarketCap)},
		{"P/E", floatOrDash(rec.PERatio)},
		{"Realtime", timeOrDash(rec.LastRealTimeUpdate)},
		{"Daily", timeOrDash(rec.LastDailyUpdate)},
		{"Weekly", timeOrDash(rec.LastWeeklyUpdate)},
		{"Quarterly", timeOrDash(rec.LastQuarterlyUpdate)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func printResult(out io.Writer, r *models.RefreshResult) {
	fmt.Fprintf(out, "%s %s: %s (%d fields)\n", r.Symbol, r.Tier, r.Status, len(r.FieldsUpdated))
	if r.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", r.Error)
	}
}

func printBatch(out io.Writer, b *models.BatchResult) {
	if b == nil {
		return
	}
	fmt.Fprintf(out, "%s: %d/%d succeeded\n", b.Tier, len(b.Successful), b.Total)
	if len(b.Failed) > 0 {
		fmt.Fprintf(out, "  failed: %s\n", joinOrDash(b.Failed))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func strOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return orDash(*s)
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}
