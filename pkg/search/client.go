package search

import (
	"strings"
	"time"

	"github.com/rubiojr/aurorax/pkg/api"
	"github.com/rubiojr/aurorax/pkg/config"
	"github.com/rubiojr/aurorax/pkg/progress"
)

const (
	DefaultPollInterval      = config.DefaultPollInterval
	DefaultFirstPollInterval = config.DefaultFirstPollInterval
)

// Client bundles the transport and polling settings shared by every job
// created from it. Several clients with different settings can coexist in
// one process.
type Client struct {
	transport         api.Transport
	baseURL           string
	pollInterval      time.Duration
	firstPollInterval time.Duration
	notifier          progress.Notifier
}

type Option func(*Client)

// WithPollInterval sets the interval between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithFirstPollInterval sets the delay before the second status fetch of a
// wait. Zero disables the shortcut and uses the poll interval throughout.
func WithFirstPollInterval(d time.Duration) Option {
	return func(c *Client) { c.firstPollInterval = d }
}

// WithNotifier routes progress events to n.
func WithNotifier(n progress.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// NewClient creates a search client on top of transport. baseURL is the
// API root the domain endpoints are joined to.
func NewClient(transport api.Transport, baseURL string, opts ...Option) *Client {
	c := &Client{
		transport:         transport,
		baseURL:           strings.TrimRight(baseURL, "/"),
		pollInterval:      DefaultPollInterval,
		firstPollInterval: DefaultFirstPollInterval,
		notifier:          progress.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.notifier == nil {
		c.notifier = progress.Discard
	}
	return c
}

// NewClientFromConfig wires an api.Client and the configured poll
// intervals.
func NewClientFromConfig(cfg *config.Config, opts ...Option) *Client {
	base := []Option{
		WithPollInterval(cfg.PollInterval.Duration),
		WithFirstPollInterval(cfg.FirstPollInterval.Duration),
	}
	return NewClient(api.NewClientFromConfig(cfg), cfg.APIBaseURL, append(base, opts...)...)
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Transport returns the underlying transport.
func (c *Client) Transport() api.Transport {
	return c.transport
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Poller returns a status poller using the client's settings.
func (c *Client) Poller() *Poller {
	return &Poller{
		Transport:     c.transport,
		Interval:      c.pollInterval,
		FirstInterval: c.firstPollInterval,
		Notifier:      c.notifier,
	}
}

// Retriever returns a result retriever bound to the client's transport.
func (c *Client) Retriever() *Retriever {
	return &Retriever{Transport: c.transport}
}

// Admin returns the privileged request listing service.
func (c *Client) Admin() *AdminService {
	return &AdminService{client: c}
}
