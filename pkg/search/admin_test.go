package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rubiojr/aurorax/pkg/apitest"
)

func TestAdminList(t *testing.T) {
	srv := apitest.New(t)
	srv.AdminKey = "test-key"
	srv.AddRequest("ephemeris", json.RawMessage(`{}`), apitest.Script{CompleteAfter: 1})
	srv.AddRequest("conjunctions", json.RawMessage(`{}`), apitest.Script{CompleteAfter: 1})

	admin := newTestClient(t, srv).Admin()
	rows, err := admin.List(context.Background(), ListFilter{SearchType: "conjunction"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].SearchType != "conjunction" || !rows[0].Active {
		t.Errorf("rows = %+v", rows)
	}
	if rows[0].Requested.IsZero() {
		t.Error("requested timestamp not decoded")
	}
}

func TestAdminListUnauthorized(t *testing.T) {
	srv := apitest.New(t)
	srv.AdminKey = "another-key"

	_, err := newTestClient(t, srv).Admin().List(context.Background(), ListFilter{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdminListInvalidType(t *testing.T) {
	srv := apitest.New(t)
	_, err := newTestClient(t, srv).Admin().List(context.Background(), ListFilter{SearchType: "conjunctions"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(srv.Calls()) != 0 {
		t.Error("invalid filter reached the server")
	}
}

func TestListFilterParams(t *testing.T) {
	active, failed := true, false
	size, count, duration := int64(10), int64(20), int64(30)
	start := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	f := ListFilter{
		SearchType:     "ephemeris",
		Active:         &active,
		Start:          &start,
		FileSize:       &size,
		ResultCount:    &count,
		QueryDuration:  &duration,
		ErrorCondition: &failed,
	}

	want := url.Values{
		"search_type":     {"ephemeris"},
		"active":          {"true"},
		"start":           {"2024-05-01T12:30:00"},
		"file_size":       {"10"},
		"result_count":    {"20"},
		"query_duration":  {"30"},
		"error_condition": {"false"},
	}
	if got := f.Params(); got.Encode() != want.Encode() {
		t.Errorf("params = %s, want %s", got.Encode(), want.Encode())
	}
	if len(ListFilter{}.Params()) != 0 {
		t.Error("empty filter should send no parameters")
	}
}

func TestAdminDelete(t *testing.T) {
	srv := apitest.New(t)
	srv.AdminKey = "test-key"
	id := srv.AddRequest("ephemeris", json.RawMessage(`{}`), apitest.Script{})
	admin := newTestClient(t, srv).Admin()

	if err := admin.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if req, _ := srv.Request(id); !req.Deleted {
		t.Error("request not deleted")
	}
	err := admin.Delete(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if srv.CountCalls(http.MethodDelete, "/api/v1/utils/admin/search_requests/") != 2 {
		t.Error("unexpected delete call count")
	}
}

func int64p(v int64) *int64 { return &v }

func TestSortRequests(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []RequestSummary{
		{RequestID: "a", SearchType: "ephemeris", Requested: Timestamp{t0.Add(2 * time.Hour)}, FileSize: int64p(300)},
		{RequestID: "b", SearchType: "conjunction", Requested: Timestamp{t0}, FileSize: nil},
		{RequestID: "c", SearchType: "conjunction", Requested: Timestamp{t0.Add(time.Hour)}, FileSize: int64p(100)},
	}

	ids := func(rs []RequestSummary) string {
		s := ""
		for _, r := range rs {
			s += r.RequestID
		}
		return s
	}

	tests := []struct {
		opts SortOptions
		want string
	}{
		{SortOptions{}, "bca"},
		{SortOptions{Reversed: true}, "acb"},
		{SortOptions{Order: "search_type", SecondOrder: "requested"}, "bca"},
		{SortOptions{Order: "search_type", SecondOrder: "requested", Reversed: true}, "acb"},
		{SortOptions{Order: "file_size"}, "bca"},
		{SortOptions{Limit: 2}, "bc"},
		{SortOptions{Limit: 10}, "bca"},
	}
	for _, tt := range tests {
		got, err := SortRequests(rows, tt.opts)
		if err != nil {
			t.Fatalf("%+v: %v", tt.opts, err)
		}
		if ids(got) != tt.want {
			t.Errorf("%+v: got %s, want %s", tt.opts, ids(got), tt.want)
		}
	}
	if ids(rows) != "abc" {
		t.Error("input slice was modified")
	}

	if _, err := SortRequests(rows, SortOptions{Order: "color"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown column: %v", err)
	}
}
