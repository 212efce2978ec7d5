package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&model.Request{ID: 1}))
	assert.Error(t, r.Register(&model.Request{ID: 1}))
	require.NoError(t, r.Register(&model.Request{ID: 2}))
	assert.Len(t, r.Requests(), 2)
}

func TestTotalsRescansTerminalStatuses(t *testing.T) {
	r := NewRegistry()
	reqs := []*model.Request{
		{ID: 1, Status: model.StatusAccepted},
		{ID: 2, Status: model.StatusBlocked},
		{ID: 3, Status: model.StatusAccepted},
	}
	for _, req := range reqs {
		require.NoError(t, r.Register(req))
	}

	created, accepted, blocked, pending := r.Totals()
	assert.Equal(t, 3, created)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, blocked)
	assert.Equal(t, 0, pending)
	assert.NoError(t, r.CheckClosed())
}

func TestCheckClosedFlagsPendingRequests(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&model.Request{ID: 1, Status: model.StatusPending}))
	assert.Error(t, r.CheckClosed())
}

func TestRecordsPreserveCreationOrderAndAllocation(t *testing.T) {
	r := NewRegistry()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	req := &model.Request{
		ID:          7,
		Src:         "a",
		Dst:         "c",
		Bandwidth:   100,
		HoldingTime: time.Minute,
		Status:      model.StatusAccepted,
		Path:        []string{"a", "b", "c"},
		SlotStart:   2,
		SlotEnd:     5,
		DistanceKm:  200,
		CreatedAt:   created,
		DeallocAt:   created.Add(time.Minute),
	}
	require.NoError(t, r.Register(&model.Request{ID: 3, Status: model.StatusBlocked, SlotStart: model.NoSlot, SlotEnd: model.NoSlot}))
	require.NoError(t, r.Register(req))

	recs := r.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].ID)
	assert.True(t, recs[0].Blocked)
	assert.Equal(t, 0, recs[0].SlotsUsed)

	assert.Equal(t, int64(7), recs[1].ID)
	assert.False(t, recs[1].Blocked)
	assert.Equal(t, 4, recs[1].SlotsUsed)
	assert.Equal(t, []string{"a", "b", "c"}, recs[1].Path)
	assert.Equal(t, 3, recs[1].PathLength)
}
