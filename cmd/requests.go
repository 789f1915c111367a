package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/aurorax/pkg/history"
	"github.com/rubiojr/aurorax/pkg/search"
)

// RequestsCommand groups the commands that operate on existing requests
func RequestsCommand() *cli.Command {
	return &cli.Command{
		Name:  "requests",
		Usage: "Inspect, wait for, cancel and download existing search requests",
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "Fetch the current status of a request",
				ArgsUsage: "REQUEST_ID",
				Flags:     []cli.Flag{domainFlag()},
				Action: withRequest(func(ctx context.Context, c *cli.Command, e *env, h handle) error {
					if _, err := h.FetchStatus(ctx); err != nil {
						return err
					}
					fmt.Fprintln(e.stdout, renderStatus(h))
					return nil
				}),
			},
			{
				Name:      "logs",
				Usage:     "Print the server-side log of a request",
				ArgsUsage: "REQUEST_ID",
				Flags:     []cli.Flag{domainFlag()},
				Action: withRequest(func(ctx context.Context, c *cli.Command, e *env, h handle) error {
					if _, err := h.FetchStatus(ctx); err != nil {
						return err
					}
					fmt.Fprintln(e.stdout, renderLogs(h.Logs()))
					return nil
				}),
			},
			{
				Name:      "wait",
				Usage:     "Wait until a request completes, fails or is cancelled",
				ArgsUsage: "REQUEST_ID",
				Flags:     []cli.Flag{domainFlag(), pollIntervalFlag(), timeoutFlag(), verboseFlag()},
				Action: withRequest(func(ctx context.Context, c *cli.Command, e *env, h handle) error {
					ctx, cancel := withTimeout(ctx, c)
					defer cancel()
					if err := h.Wait(ctx); err != nil {
						return err
					}
					e.recordResumed(ctx, h)
					fmt.Fprintln(e.stdout, renderStatus(h))
					return nil
				}),
			},
			{
				Name:      "data",
				Usage:     "Download the results of a completed request",
				ArgsUsage: "REQUEST_ID",
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringFlag{
						Name:  "response-format",
						Usage: "JSON document selecting the result fields to return",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write results to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Ignore results cached in the local history",
					},
				},
				Action: requestData,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a running request",
				ArgsUsage: "REQUEST_ID",
				Flags: []cli.Flag{
					domainFlag(),
					&cli.BoolFlag{
						Name:  "block",
						Usage: "Wait until the server acknowledges the cancellation",
					},
					pollIntervalFlag(),
					timeoutFlag(),
					verboseFlag(),
				},
				Action: withRequest(func(ctx context.Context, c *cli.Command, e *env, h handle) error {
					ctx, cancel := withTimeout(ctx, c)
					defer cancel()
					res, err := h.Cancel(ctx, c.Bool("block"))
					if err != nil {
						return fmt.Errorf("cancelling %s: %w", h.ID(), err)
					}
					e.recordResumed(ctx, h)
					if !c.Bool("block") {
						fmt.Fprintf(e.stdout, "Cancellation of %s requested\n", h.ID())
						return nil
					}
					fmt.Fprintf(e.stdout, "Request %s is %s\n", h.ID(), renderState(res.State))
					return nil
				}),
			},
			{
				Name:  "describe",
				Usage: "Render a query document as the server's SQL-like description",
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "JSON query document (\"-\" reads stdin)",
						Required: true,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					drv, err := driverFor(c.String("domain"))
					if err != nil {
						return err
					}
					query, err := readQueryFile(c.String("query"))
					if err != nil {
						return err
					}
					e, err := setupEnv(c, false)
					if err != nil {
						return err
					}
					desc, err := drv.Describe(ctx, e.client, query)
					if err != nil {
						return fmt.Errorf("describing query: %w", err)
					}
					fmt.Fprintln(e.stdout, desc)
					return nil
				},
			},
			adminListCommand(),
			adminDeleteCommand(),
		},
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Print progress events to stderr",
	}
}

type requestAction func(ctx context.Context, c *cli.Command, e *env, h handle) error

// withRequest resumes the request named by the first argument and hands it
// to fn.
func withRequest(fn requestAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		id := c.Args().First()
		if id == "" {
			return fmt.Errorf("a request id is required")
		}
		drv, err := driverFor(c.String("domain"))
		if err != nil {
			return err
		}
		e, err := setupEnv(c, c.Bool("verbose"))
		if err != nil {
			return err
		}
		defer e.close()
		return fn(ctx, c, e, drv.Resume(e.client, id, search.JobOptions{}))
	}
}

// recordResumed updates the journal after a state change of a resumed
// request.
func (e *env) recordResumed(ctx context.Context, h handle) {
	store := e.openHistory()
	if store == nil {
		return
	}
	defer func() { _ = store.Close() }()
	e.record(ctx, store, h)
}

func requestData(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("a request id is required")
	}
	drv, err := driverFor(c.String("domain"))
	if err != nil {
		return err
	}
	format, err := readResponseFormat(c.String("response-format"))
	if err != nil {
		return err
	}
	e, err := setupEnv(c, false)
	if err != nil {
		return err
	}

	store := e.openHistory()
	if store != nil {
		defer func() { _ = store.Close() }()
		if !c.Bool("refresh") && format == nil {
			cached, err := store.LoadResults(ctx, id)
			switch {
			case err == nil:
				return writeResults(e.stdout, c.String("output"), cached)
			case !errors.Is(err, history.ErrNotFound):
				fmt.Fprintln(e.stderr, metaStyle.Render("warning: "+err.Error()))
			}
		}
	}

	h := drv.Resume(e.client, id, search.JobOptions{ResponseFormat: format})
	if _, err := h.FetchStatus(ctx); err != nil {
		return err
	}
	if h.State() != search.Completed {
		return fmt.Errorf("request %s is %s: %w", id, h.State(), search.ErrNotCompleted)
	}
	e.record(ctx, store, h)
	return fetchAndWrite(ctx, e, store, h, c.String("output"))
}

func adminListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List search requests on the server (administrators only)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search-type", Usage: "conjunction, data_product or ephemeris"},
			&cli.BoolFlag{Name: "active", Usage: "Only requests that are (or, with =false, are not) running"},
			&cli.StringFlag{Name: "start", Usage: "Requested at or after this time (2006-01-02T15:04:05)"},
			&cli.StringFlag{Name: "end", Usage: "Requested at or before this time (2006-01-02T15:04:05)"},
			&cli.IntFlag{Name: "file-size", Usage: "Result file size in kilobytes"},
			&cli.IntFlag{Name: "result-count", Usage: "Number of results"},
			&cli.IntFlag{Name: "query-duration", Usage: "Query duration in milliseconds"},
			&cli.BoolFlag{Name: "error-condition", Usage: "Only failed (or, with =false, successful) requests"},
			&cli.StringFlag{Name: "order", Usage: "Sort column", Value: "requested"},
			&cli.StringFlag{Name: "second-order", Usage: "Secondary sort column", Value: "requested"},
			&cli.BoolFlag{Name: "reversed", Usage: "Reverse the sort order"},
			&cli.IntFlag{Name: "limit", Usage: "Show at most this many requests (0 for all)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			filter, err := listFilterFromFlags(c)
			if err != nil {
				return err
			}
			e, err := setupEnv(c, false)
			if err != nil {
				return err
			}

			rows, err := e.client.Admin().List(ctx, filter)
			if err != nil {
				return err
			}
			rows, err = search.SortRequests(rows, search.SortOptions{
				Order:       c.String("order"),
				SecondOrder: c.String("second-order"),
				Reversed:    c.Bool("reversed"),
				Limit:       c.Int("limit"),
			})
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				fmt.Fprintln(e.stdout, metaStyle.Render("no search requests found"))
				return nil
			}
			fmt.Fprintln(e.stdout, renderRequestTable(rows))
			return nil
		},
	}
}

func listFilterFromFlags(c *cli.Command) (search.ListFilter, error) {
	f := search.ListFilter{SearchType: c.String("search-type")}
	if c.IsSet("active") {
		v := c.Bool("active")
		f.Active = &v
	}
	if c.IsSet("error-condition") {
		v := c.Bool("error-condition")
		f.ErrorCondition = &v
	}
	for _, name := range []string{"start", "end"} {
		if !c.IsSet(name) {
			continue
		}
		ts, err := search.ParseTimestamp(c.String(name))
		if err != nil {
			return f, fmt.Errorf("--%s: %w", name, err)
		}
		if name == "start" {
			f.Start = &ts
		} else {
			f.End = &ts
		}
	}
	intFlag := func(name string) *int64 {
		if !c.IsSet(name) {
			return nil
		}
		v := int64(c.Int(name))
		return &v
	}
	f.FileSize = intFlag("file-size")
	f.ResultCount = intFlag("result-count")
	f.QueryDuration = intFlag("query-duration")
	return f, f.Validate()
}

func renderRequestTable(rows []search.RequestSummary) string {
	optional := func(p *int64, format func(int64) string) string {
		if p == nil {
			return "-"
		}
		return format(*p)
	}
	kib := func(n int64) string { return formatBytes(n * 1024) }

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			r.RequestID,
			r.SearchType,
			strconv.FormatBool(r.Active),
			r.Requested.UTC().Format(time.DateTime),
			optional(r.ResultCount, formatNumber),
			optional(r.FileSize, kib),
			optional(r.QueryDuration, formatMillis),
			strconv.FormatBool(r.ErrorCondition),
			r.IPAddress,
		})
	}
	return renderTable(
		[]string{"REQUEST", "TYPE", "ACTIVE", "REQUESTED", "RESULTS", "SIZE", "DURATION", "ERROR", "IP"},
		table,
	)
}

func adminDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a search request and its results on the server (administrators only)",
		ArgsUsage: "REQUEST_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "keep-history",
				Usage: "Keep the local history entry",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("a request id is required")
			}
			e, err := setupEnv(c, false)
			if err != nil {
				return err
			}
			if err := e.client.Admin().Delete(ctx, id); err != nil {
				return err
			}
			if !c.Bool("keep-history") {
				if store := e.openHistory(); store != nil {
					if err := store.Delete(ctx, id); err != nil && !errors.Is(err, history.ErrNotFound) {
						fmt.Fprintln(e.stderr, metaStyle.Render("warning: "+err.Error()))
					}
					_ = store.Close()
				}
			}
			fmt.Fprintf(e.stdout, "Deleted %s\n", id)
			return nil
		},
	}
}
