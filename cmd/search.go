package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/aurorax/pkg/history"
	"github.com/rubiojr/aurorax/pkg/search"
)

// SearchCommand creates the search command with one subcommand per domain
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Submit a search, wait for it and download the results",
		Commands: []*cli.Command{
			searchDomainCommand("conjunctions", "Search for conjunctions between instruments and locations"),
			searchDomainCommand("ephemeris", "Search ephemeris records"),
			searchDomainCommand("data-products", "Search data products such as keograms and movies"),
		},
	}
}

func searchDomainCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "query",
				Aliases:  []string{"q"},
				Usage:    "JSON query document (\"-\" reads stdin)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "Submit and print the request id without waiting",
			},
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
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print progress events to stderr",
			},
			pollIntervalFlag(),
			timeoutFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			drv, err := driverFor(name)
			if err != nil {
				return err
			}
			return runSearch(ctx, c, drv)
		},
	}
}

func runSearch(ctx context.Context, c *cli.Command, drv driver) error {
	query, err := readQueryFile(c.String("query"))
	if err != nil {
		return err
	}
	format, err := readResponseFormat(c.String("response-format"))
	if err != nil {
		return err
	}

	e, err := setupEnv(c, c.Bool("verbose"))
	if err != nil {
		return err
	}
	defer e.close()

	h, err := drv.New(e.client, query, search.JobOptions{ResponseFormat: format})
	if err != nil {
		return err
	}

	store := e.openHistory()
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	ctx, cancel := withTimeout(ctx, c)
	defer cancel()

	if err := h.Submit(ctx); err != nil {
		return fmt.Errorf("submitting %s search: %w", drv.Name(), err)
	}
	e.record(ctx, store, h)

	if c.Bool("no-wait") {
		fmt.Fprintln(e.stdout, h.ID())
		return nil
	}

	if err := h.Wait(ctx); err != nil {
		e.record(context.WithoutCancel(ctx), store, h)
		return fmt.Errorf("waiting for %s: %w", h.ID(), err)
	}
	e.record(ctx, store, h)

	switch h.State() {
	case search.Errored, search.Cancelled:
		fmt.Fprintln(e.stderr, renderStatus(h))
		summary := ""
		if st := h.LastStatus(); st != nil {
			summary = st.LastLog()
		}
		return &search.SearchFailedError{RequestID: h.ID(), Summary: summary}
	}

	return fetchAndWrite(ctx, e, store, h, c.String("output"))
}

// fetchAndWrite downloads the results of a completed handle, caches them
// in the journal and writes them out.
func fetchAndWrite(ctx context.Context, e *env, store *history.Store, h handle, output string) error {
	if err := h.GetData(ctx); err != nil {
		return fmt.Errorf("retrieving results for %s: %w", h.ID(), err)
	}
	payload, err := h.Results()
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if store != nil {
		if err := store.SaveResults(ctx, h.ID(), payload); err != nil {
			fmt.Fprintln(e.stderr, metaStyle.Render("warning: "+err.Error()))
		}
	}
	if err := writeResults(e.stdout, output, payload); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(e.stderr, "%s results written to %s\n", formatNumber(int64(h.Count())), output)
	}
	return nil
}
