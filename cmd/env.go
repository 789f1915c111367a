package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/aurorax/pkg/config"
	"github.com/rubiojr/aurorax/pkg/history"
	"github.com/rubiojr/aurorax/pkg/log"
	"github.com/rubiojr/aurorax/pkg/progress"
	"github.com/rubiojr/aurorax/pkg/search"
)

// env is what every command needs after flag parsing.
type env struct {
	cfg    *config.Config
	client *search.Client
	stdout io.Writer
	stderr io.Writer

	hub  *progress.Hub
	done chan struct{}
}

// setupEnv loads the configuration named by --config and builds a search
// client. With verbose set, progress events are printed to stderr until
// close is called.
func setupEnv(c *cli.Command, verbose bool) (*env, error) {
	root := c.Root()
	if root.Bool("debug") {
		log.SetGlobalDebug(true)
	}

	cfg, err := config.LoadConfig(root.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	e := &env{cfg: cfg, stdout: root.Writer, stderr: root.ErrWriter}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}

	var opts []search.Option
	if c.IsSet("poll-interval") {
		opts = append(opts, search.WithPollInterval(c.Duration("poll-interval")))
	}
	if verbose {
		e.hub = progress.NewHub(64)
		e.done = make(chan struct{})
		_, events := e.hub.Register()
		go e.printEvents(events)
		opts = append(opts, search.WithNotifier(e.hub))
	}
	e.client = search.NewClientFromConfig(cfg, opts...)
	return e, nil
}

func (e *env) printEvents(events <-chan progress.Event) {
	defer close(e.done)
	for ev := range events {
		fmt.Fprintln(e.stderr, metaStyle.Render(formatEvent(ev)))
	}
}

func (e *env) close() {
	if e.hub == nil {
		return
	}
	e.hub.Close()
	<-e.done
	e.hub = nil
}

// openHistory opens the journal. Failures are logged and yield nil so a
// broken journal never blocks a search.
func (e *env) openHistory() *history.Store {
	store, err := history.Open(e.cfg.HistoryDBPath())
	if err != nil {
		log.ForService("cmd").Warnf("history disabled: %v", err)
		return nil
	}
	return store
}

func (e *env) record(ctx context.Context, store *history.Store, h handle) {
	if store == nil || h.ID() == "" {
		return
	}
	if err := store.Record(ctx, h.Entry()); err != nil {
		log.ForService("cmd").Warnf("recording %s: %v", h.ID(), err)
	}
}

// withTimeout applies --timeout when set.
func withTimeout(ctx context.Context, c *cli.Command) (context.Context, context.CancelFunc) {
	if d := c.Duration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func readQueryFile(path string) (search.RawQuery, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("query file %s is not valid JSON", path)
	}
	return search.RawQuery(data), nil
}

func readResponseFormat(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readInput(path)
	if err != nil {
		return nil, fmt.Errorf("reading response format: %w", err)
	}
	var format any
	if err := json.Unmarshal(data, &format); err != nil {
		return nil, fmt.Errorf("parsing response format %s: %w", path, err)
	}
	return format, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeResults writes payload to path, or to w when path is empty.
func writeResults(w io.Writer, path string, payload []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(w, string(payload))
		return err
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

func pollIntervalFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "poll-interval",
		Usage: "Interval between status checks (defaults to the configured poll_interval)",
	}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Give up waiting after this long (0 waits forever)",
	}
}

func domainFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "domain",
		Aliases:  []string{"d"},
		Usage:    "Search type: conjunctions, ephemeris or data-products",
		Required: true,
	}
}
