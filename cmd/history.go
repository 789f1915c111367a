package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/aurorax/pkg/history"
)

// HistoryCommand lists the searches submitted from this machine
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List searches submitted from this machine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries to show (0 for all)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Only show searches of this type",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only show searches in this state",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "prune",
				Usage: "Forget searches submitted before a cutoff",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Remove entries submitted longer ago than this",
						Value: 30 * 24 * time.Hour,
					},
					&cli.BoolFlag{
						Name:  "vacuum",
						Usage: "Reclaim disk space afterwards",
					},
				},
				Action: withHistory(func(ctx context.Context, c *cli.Command, e *env, store *history.Store) error {
					n, err := store.Prune(ctx, time.Now().Add(-c.Duration("older-than")))
					if err != nil {
						return err
					}
					if c.Bool("vacuum") {
						if err := store.Vacuum(ctx); err != nil {
							return fmt.Errorf("vacuum: %w", err)
						}
					}
					fmt.Fprintf(e.stdout, "Removed %s entries\n", formatNumber(n))
					return nil
				}),
			},
			{
				Name:  "optimize",
				Usage: "Check and optimize the history database",
				Action: withHistory(func(ctx context.Context, c *cli.Command, e *env, store *history.Store) error {
					problems, err := store.Check(ctx)
					if err != nil {
						return err
					}
					if len(problems) > 0 {
						for _, p := range problems {
							fmt.Fprintln(e.stderr, p)
						}
						return fmt.Errorf("history database failed its integrity check (%d problems)", len(problems))
					}
					if err := store.Optimize(ctx); err != nil {
						return err
					}
					fmt.Fprintln(e.stdout, "History database optimized")
					return nil
				}),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := setupEnv(c, false)
			if err != nil {
				return err
			}

			opts := history.ListOptions{State: c.String("state"), Limit: c.Int("limit")}
			if c.IsSet("domain") {
				drv, err := driverFor(c.String("domain"))
				if err != nil {
					return err
				}
				opts.Domain = drv.Name()
			}

			store, err := history.Open(e.cfg.HistoryDBPath())
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(ctx, opts)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(e.stdout, metaStyle.Render("no searches recorded yet"))
				return nil
			}
			fmt.Fprintln(e.stdout, renderHistory(entries))
			return nil
		},
	}
}

type historyAction func(ctx context.Context, c *cli.Command, e *env, store *history.Store) error

func withHistory(fn historyAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		e, err := setupEnv(c, false)
		if err != nil {
			return err
		}
		store, err := history.Open(e.cfg.HistoryDBPath())
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer func() { _ = store.Close() }()
		return fn(ctx, c, e, store)
	}
}

func renderHistory(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, en := range entries {
		cached := ""
		if en.Cached {
			cached = "yes"
		}
		results := "-"
		if en.State == "completed" {
			results = formatNumber(en.ResultCount)
		}
		rows = append(rows, []string{
			en.RequestID,
			en.Domain,
			renderStateName(en.State),
			results,
			formatTime(en.SubmittedAt),
			cached,
		})
	}
	return renderTable([]string{"REQUEST", "DOMAIN", "STATE", "RESULTS", "SUBMITTED", "CACHED"}, rows)
}
