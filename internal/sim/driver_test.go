package sim

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/scenario"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

// lineScenario is the five-node path a-b-c-d-e with one ISP covering
// everything.
func lineScenario(t *testing.T, slots int, bandwidth float64) *scenario.Scenario {
	t.Helper()
	raw := fmt.Sprintf(`
run:
  seed: 7
  requests: 100
  arrival_rate: 10
  holding_time_mean: 30s
  default_policy: first_fit
spectrum:
  slots_per_link: %d
  slot_capacity: 12.5
routing:
  k: 2
traffic:
  bandwidths: [%v]
topology:
  nodes: [a, b, c, d, e]
  links:
    - {a: a, b: b, distance_km: 100}
    - {a: b, b: c, distance_km: 100}
    - {a: c, b: d, distance_km: 100}
    - {a: d, b: e, distance_km: 100}
isps:
  - id: 1
    nodes: [a, b, c, d, e]
    primary_policy: first_fit
`, slots, bandwidth)
	s, err := scenario.Parse([]byte(raw))
	require.NoError(t, err)
	return s
}

func TestGenerousSpectrumNeverBlocks(t *testing.T) {
	d, err := New(lineScenario(t, 512, 100))
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Created)
	assert.Equal(t, 100, res.Accepted)
	assert.Equal(t, 0, res.Blocked)
	assert.Zero(t, res.BlockingRate)
	assert.Len(t, res.Records, 100)
	assert.NotEmpty(t, res.RunID)
}

func TestScarceSpectrumBlocksAndRateIsMonotonic(t *testing.T) {
	d, err := New(lineScenario(t, 1, 25))
	require.NoError(t, err)
	low, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, low.Created)
	assert.Equal(t, low.Created, low.Accepted+low.Blocked)
	assert.Greater(t, low.Blocked, 0)

	// Higher offered bandwidth on the same single-slot grid cannot
	// block less.
	d, err = New(lineScenario(t, 1, 200))
	require.NoError(t, err)
	high, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, high.BlockingRate, low.BlockingRate)
}

func TestRunsAreDeterministicForSeed(t *testing.T) {
	run := func() *Result {
		d, err := New(lineScenario(t, 8, 50))
		require.NoError(t, err)
		res, err := d.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	first := run()
	second := run()

	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Fatalf("records differ between identical runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Blocked, second.Blocked)
	assert.NotEqual(t, first.RunID, second.RunID)
}

const plannedScenario = `
spectrum:
  slots_per_link: 8
  slot_capacity: 12.5
routing:
  k: 2
topology:
  nodes: [n1, n2, n3, n4]
  links:
    - {a: n1, b: n2, distance_km: 100}
    - {a: n2, b: n3, distance_km: 100}
    - {a: n3, b: n4, distance_km: 100}
    - {a: n4, b: n1, distance_km: 100}
requests:
  - {id: 1, src: n2, dst: n3, bandwidth: 25, holding_time: 1h, offset: 0s}
  - {id: 2, src: n1, dst: n4, bandwidth: 25, holding_time: 1h, offset: 10s}
disaster:
  start: 1m
  duration: 10m
  epicenter: n2
  activations:
    - {kind: link, a: n2, b: n3, offset: 0s}
`

func TestPlannedRequestsAndDisasterEndToEnd(t *testing.T) {
	s, err := scenario.Parse([]byte(plannedScenario))
	require.NoError(t, err)

	d, err := New(s)
	require.NoError(t, err)
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Rerouted)

	byID := map[int64]model.Record{}
	for _, rec := range res.Records {
		byID[rec.ID] = rec
	}

	hit := byID[1]
	assert.True(t, hit.AffectedByDisaster)
	assert.False(t, hit.Blocked)
	// Rerouted the long way around the ring.
	assert.Equal(t, []string{"n2", "n1", "n4", "n3"}, hit.Path)

	clear := byID[2]
	assert.False(t, clear.AffectedByDisaster)
	assert.Equal(t, []string{"n1", "n4"}, clear.Path)
	assert.Equal(t, d.origin.Add(10*time.Second), clear.CreatedAt)
}

func TestUncoveredPairSurfacesConfigurationError(t *testing.T) {
	raw := `
spectrum:
  slots_per_link: 8
  slot_capacity: 12.5
routing:
  k: 2
topology:
  nodes: [a, b, c]
  links:
    - {a: a, b: b, distance_km: 100}
    - {a: b, b: c, distance_km: 100}
isps:
  - id: 1
    nodes: [a, b]
    primary_policy: subnet
requests:
  - {id: 1, src: a, dst: c, src_isp: 1, bandwidth: 25, holding_time: 10s, offset: 0s}
`
	s, err := scenario.Parse([]byte(raw))
	require.NoError(t, err)

	d, err := New(s)
	require.NoError(t, err)
	_, err = d.Run(context.Background())
	require.Error(t, err)
}

const feedbackScenario = `
run:
  seed: 3
  requests: 200
  arrival_rate: 20
  holding_time_mean: 10s
  default_policy: first_fit
spectrum:
  slots_per_link: 4
  slot_capacity: 12.5
routing:
  k: 2
traffic:
  bandwidths: [25, 50]
topology:
  nodes: [a, b, c, d]
  links:
    - {a: a, b: b, distance_km: 100}
    - {a: b, b: c, distance_km: 100}
    - {a: c, b: d, distance_km: 100}
feedback:
  window: 30s
  interval: 5s
  max_proportion: 0.9
  partition_a: [a, b]
  partition_b: [c, d]
`

func TestFeedbackValveKeepsAccountingClosed(t *testing.T) {
	s, err := scenario.Parse([]byte(feedbackScenario))
	require.NoError(t, err)

	d, err := New(s)
	require.NoError(t, err)
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 200, res.Created)
	assert.Equal(t, res.Created, res.Accepted+res.Blocked)
	for _, rec := range res.Records {
		if rec.Blocked {
			assert.Empty(t, rec.Path)
			assert.Equal(t, model.NoSlot, rec.SlotStart)
		} else {
			assert.NotEmpty(t, rec.Path)
		}
	}
}

const migrationScenario = `
run:
  seed: 11
  requests: 20
  arrival_rate: 1
  holding_time_mean: 20s
  default_policy: first_fit
spectrum:
  slots_per_link: 64
  slot_capacity: 12.5
routing:
  k: 2
traffic:
  bandwidths: [25]
topology:
  nodes: [a, b, c, d]
  links:
    - {a: a, b: b, distance_km: 100}
    - {a: b, b: c, distance_km: 100}
    - {a: a, b: d, distance_km: 100}
    - {a: d, b: c, distance_km: 100}
isps:
  - id: 1
    nodes: [a, b, c, d]
    primary_policy: first_fit
    disaster_policy: disaster_aware
    datacenter:
      source: a
      destination: c
      reaction_time: 5s
      target_bandwidth: 100
      throughput: 50
disaster:
  start: 2m
  duration: 5m
  epicenter: b
  activations:
    - {kind: node, node: b, offset: 0s}
`

func TestMigrationRunsToCompletionBeforeDisaster(t *testing.T) {
	s, err := scenario.Parse([]byte(migrationScenario))
	require.NoError(t, err)

	d, err := New(s)
	require.NoError(t, err)
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Contains(t, res.MigrationCompletion, 1)
	assert.Equal(t, 100.0, res.MigrationCompletion[1])

	migrated := 0
	for _, rec := range res.Records {
		if rec.IsMigration {
			migrated++
			assert.Equal(t, "a", rec.Src)
			assert.Equal(t, "c", rec.Dst)
			// Disaster-aware routing steers clear of the epicenter.
			assert.Equal(t, []string{"a", "d", "c"}, rec.Path)
		}
	}
	assert.Greater(t, migrated, 0)
	assert.Equal(t, res.Created, res.Accepted+res.Blocked)
}

func TestRunEmitsRootSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	d, err := New(lineScenario(t, 512, 100))
	require.NoError(t, err)
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "simulation.run", span.Name)
	assert.Contains(t, span.Attributes, attribute.String("run.id", res.RunID))
	assert.Contains(t, span.Attributes, attribute.Int("run.requests_created", res.Created))
	assert.Contains(t, span.Attributes, attribute.Int("run.requests_blocked", res.Blocked))
}

const tiedArrivalScenario = `
spectrum:
  slots_per_link: 8
  slot_capacity: 12.5
routing:
  k: 2
topology:
  nodes: [n1, n2, n3, n4]
  links:
    - {a: n1, b: n2, distance_km: 100}
    - {a: n2, b: n3, distance_km: 100}
    - {a: n3, b: n4, distance_km: 100}
    - {a: n4, b: n1, distance_km: 100}
requests:
  - {id: 1, src: n2, dst: n3, bandwidth: 25, holding_time: 1h, offset: 1m}
disaster:
  start: 1m
  duration: 10m
  epicenter: n2
  activations:
    - {kind: link, a: n2, b: n3, offset: 0s}
`

// An arrival that shares its instant with a link failure routes first
// and is then torn down and rerouted, instead of seeing the link
// already down.
func TestArrivalTiedWithFailureRoutesFirst(t *testing.T) {
	s, err := scenario.Parse([]byte(tiedArrivalScenario))
	require.NoError(t, err)

	d, err := New(s)
	require.NoError(t, err)
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.False(t, rec.Blocked)
	assert.True(t, rec.AffectedByDisaster)
	assert.Equal(t, []string{"n2", "n1", "n4", "n3"}, rec.Path)
	assert.Equal(t, 1, res.Rerouted)
}
