package conjunctions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rubiojr/aurorax/pkg/api"
	"github.com/rubiojr/aurorax/pkg/apitest"
	"github.com/rubiojr/aurorax/pkg/search"
)

func TestRunThroughServer(t *testing.T) {
	srv := apitest.New(t)
	srv.NextScript = func(string, json.RawMessage) apitest.Script {
		return apitest.Script{
			CompleteAfter: 2,
			Results: []map[string]any{{
				"conjunction_type": "nbtrace",
				"start":            "2020-01-01T00:16:00",
				"end":              "2020-01-01T00:24:00",
				"min_distance":     120.5,
				"max_distance":     298.1,
				"closest_epoch":    "2020-01-01T00:20:00",
				"farthest_epoch":   "2020-01-01T00:16:00",
				"data_sources": []any{
					map[string]any{"program": "themis-asi", "platform": "gillam"},
					map[string]any{"program": "swarm", "platform": "swarma"},
				},
				"events": []any{
					map[string]any{
						"conjunction_type": "nbtrace",
						"start":            "2020-01-01T00:16:00",
						"end":              "2020-01-01T00:20:00",
						"min_distance":     120.5,
						"max_distance":     250.0,
					},
				},
			}},
		}
	}

	transport := api.NewClient(api.Options{BaseURL: srv.URL})
	c := search.NewClient(transport, srv.URL,
		search.WithPollInterval(5*time.Millisecond), search.WithFirstPollInterval(time.Millisecond))

	q := &Query{
		Start:     testStart,
		End:       testEnd,
		Ground:    []Criteria{{Programs: []string{"themis-asi"}}},
		Space:     []Criteria{{Programs: []string{"swarm"}}},
		Distances: map[string]float64{"ground1-space1": 300},
	}
	job, err := search.Run(context.Background(), c, Domain, q, search.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.State() != search.Completed {
		t.Fatalf("state = %s", job.State())
	}

	req, ok := srv.Request(job.ID())
	if !ok {
		t.Fatalf("server has no request %s", job.ID())
	}
	var sent map[string]any
	if err := json.Unmarshal(req.Query, &sent); err != nil {
		t.Fatal(err)
	}
	distances := sent["max_distances"].(map[string]any)
	if distances["ground1-space1"] != float64(300) {
		t.Errorf("max_distances = %v", distances)
	}

	data := job.Data()
	if len(data) != 1 {
		t.Fatalf("got %d conjunctions, want 1", len(data))
	}
	conj := data[0]
	wantStart := time.Date(2020, 1, 1, 0, 16, 0, 0, time.UTC)
	if !conj.Start.Equal(wantStart) || !conj.End.Equal(wantStart.Add(8*time.Minute)) {
		t.Errorf("window = %v - %v", conj.Start, conj.End)
	}
	if conj.Duration() != 8*time.Minute {
		t.Errorf("duration = %v", conj.Duration())
	}
	if len(conj.Events) != 1 {
		t.Fatalf("got %d events", len(conj.Events))
	}
	if ev := conj.Events[0]; !ev.Start.Equal(wantStart) || !ev.End.Equal(wantStart.Add(4*time.Minute)) {
		t.Errorf("event window = %v - %v", ev.Start, ev.End)
	}
	if len(conj.DataSources) != 2 || conj.DataSources[1].Program != "swarm" {
		t.Errorf("data sources = %+v", conj.DataSources)
	}
}
