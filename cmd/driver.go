package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rubiojr/aurorax/pkg/history"
	"github.com/rubiojr/aurorax/pkg/search"
	"github.com/rubiojr/aurorax/pkg/search/conjunctions"
	"github.com/rubiojr/aurorax/pkg/search/dataproducts"
	"github.com/rubiojr/aurorax/pkg/search/ephemeris"
)

// handle is the record-type independent view of a search job the commands
// work with.
type handle interface {
	ID() string
	State() search.State
	RequestURL() string
	LastStatus() *search.StatusDocument
	Summary() search.Summary
	Logs() []search.LogEntry
	Submit(ctx context.Context) error
	FetchStatus(ctx context.Context) (*search.StatusDocument, error)
	Wait(ctx context.Context) error
	Cancel(ctx context.Context, block bool) (*search.CancelResult, error)
	GetData(ctx context.Context) error
	Describe(ctx context.Context) (string, error)

	// Results marshals the downloaded results.
	Results() ([]byte, error)
	// Count is the number of downloaded results.
	Count() int
	Entry() history.Entry
}

type jobHandle[T any] struct {
	*search.Job[T]
}

func (h jobHandle[T]) Results() ([]byte, error) {
	if raw := h.RawData(); raw != nil {
		return json.MarshalIndent(raw, "", "  ")
	}
	data := h.Data()
	if data == nil {
		data = []T{}
	}
	return json.MarshalIndent(data, "", "  ")
}

func (h jobHandle[T]) Count() int {
	if raw := h.RawData(); raw != nil {
		return len(raw)
	}
	return len(h.Data())
}

func (h jobHandle[T]) Entry() history.Entry {
	return history.Snapshot(h.Job)
}

// driver builds handles for one search domain.
type driver interface {
	Name() string
	New(c *search.Client, q search.QueryBuilder, opts search.JobOptions) (handle, error)
	Resume(c *search.Client, id string, opts search.JobOptions) handle
	Describe(ctx context.Context, c *search.Client, q search.QueryBuilder) (string, error)
}

type domainDriver[T any] struct {
	domain search.Domain[T]
}

func (d domainDriver[T]) Name() string { return d.domain.Name }

func (d domainDriver[T]) New(c *search.Client, q search.QueryBuilder, opts search.JobOptions) (handle, error) {
	job, err := search.NewJob(c, d.domain, q, opts)
	if err != nil {
		return nil, err
	}
	return jobHandle[T]{job}, nil
}

func (d domainDriver[T]) Resume(c *search.Client, id string, opts search.JobOptions) handle {
	return jobHandle[T]{search.Resume(c, d.domain, id, opts)}
}

func (d domainDriver[T]) Describe(ctx context.Context, c *search.Client, q search.QueryBuilder) (string, error) {
	return search.Describe(ctx, c, d.domain, q)
}

var drivers = map[string]driver{
	"conjunctions":  domainDriver[conjunctions.Conjunction]{conjunctions.Domain},
	"ephemeris":     domainDriver[ephemeris.Ephemeris]{ephemeris.Domain},
	"data-products": domainDriver[dataproducts.DataProduct]{dataproducts.Domain},
}

// driverFor accepts the CLI names plus the API path and describe spellings.
func driverFor(name string) (driver, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "conjunction":
		key = "conjunctions"
	case "data_products", "dataproducts", "data-product", "data_product":
		key = "data-products"
	}
	if d, ok := drivers[key]; ok {
		return d, nil
	}
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	slices.Sort(names)
	return nil, fmt.Errorf("unknown search domain %q, expected one of %s", name, strings.Join(names, ", "))
}
