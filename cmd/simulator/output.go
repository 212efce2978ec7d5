package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/sim"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

var csvHeader = []string{
	"id", "src", "dst", "src_isp", "dst_isp",
	"bandwidth", "class", "holding_time_s", "is_migration",
	"blocked", "affected_by_disaster",
	"slots_used", "slot_start", "slot_end",
	"path", "path_length", "distance_km",
	"created_at", "dealloc_at",
}

func writeRecords(w io.Writer, format string, res *sim.Result) error {
	switch format {
	case "csv":
		return writeCSV(w, res.Records)
	case "json":
		return writeJSON(w, res)
	default:
		return fmt.Errorf("unknown output format %q (want csv or json)", format)
	}
}

func writeCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Src,
			r.Dst,
			strconv.Itoa(r.SrcISP),
			strconv.Itoa(r.DstISP),
			strconv.FormatFloat(r.Bandwidth, 'f', -1, 64),
			strconv.Itoa(r.Class),
			strconv.FormatFloat(r.HoldingTime.Seconds(), 'f', -1, 64),
			strconv.FormatBool(r.IsMigration),
			strconv.FormatBool(r.Blocked),
			strconv.FormatBool(r.AffectedByDisaster),
			strconv.Itoa(r.SlotsUsed),
			strconv.Itoa(r.SlotStart),
			strconv.Itoa(r.SlotEnd),
			strings.Join(r.Path, "|"),
			strconv.Itoa(r.PathLength),
			strconv.FormatFloat(r.DistanceKm, 'f', -1, 64),
			r.CreatedAt.Format(time.RFC3339Nano),
			formatDeallocAt(r),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDeallocAt(r model.Record) string {
	if r.DeallocAt.IsZero() {
		return ""
	}
	return r.DeallocAt.Format(time.RFC3339Nano)
}

// writeJSON emits the whole result, records included, as one document.
func writeJSON(w io.Writer, res *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
