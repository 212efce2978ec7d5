package model

import "time"

// Record is the flat per-request output row produced at the end of a
// run. Serialization (CSV, JSON) is the caller's responsibility; the
// engine only guarantees one record per request ever created, in
// request-ID order.
type Record struct {
	ID                 int64
	Src                string
	Dst                string
	SrcISP             int
	DstISP             int
	Bandwidth          float64
	Class              int
	HoldingTime        time.Duration
	IsMigration        bool
	Blocked            bool
	AffectedByDisaster bool
	SlotsUsed          int
	// Path is the ordered node list of the final allocation, empty for
	// blocked requests.
	Path       []string
	PathLength int
	// SlotStart/SlotEnd delimit the allocated window, NoSlot when none.
	SlotStart  int
	SlotEnd    int
	CreatedAt  time.Time
	DeallocAt  time.Time
	DistanceKm float64
}

// RecordOf flattens a finished request into its output row.
func RecordOf(r *Request) Record {
	path := make([]string, len(r.Path))
	copy(path, r.Path)
	return Record{
		ID:                 r.ID,
		Src:                r.Src,
		Dst:                r.Dst,
		SrcISP:             r.SrcISP,
		DstISP:             r.DstISP,
		Bandwidth:          r.Bandwidth,
		Class:              r.Class,
		HoldingTime:        r.HoldingTime,
		IsMigration:        r.IsMigration,
		Blocked:            r.Status == StatusBlocked,
		AffectedByDisaster: r.AffectedByDisaster,
		SlotsUsed:          r.SlotsUsed(),
		Path:               path,
		PathLength:         len(path),
		SlotStart:          r.SlotStart,
		SlotEnd:            r.SlotEnd,
		CreatedAt:          r.CreatedAt,
		DeallocAt:          r.DeallocAt,
		DistanceKm:         r.DistanceKm,
	}
}
