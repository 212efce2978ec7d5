package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/scenario"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/sim"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/model"
)

func TestWriteCSVRecords(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &sim.Result{
		RunID: "test-run",
		Records: []model.Record{
			{
				ID: 1, Src: "a", Dst: "c", SrcISP: 1, DstISP: 1,
				Bandwidth: 100, HoldingTime: 90 * time.Second,
				SlotsUsed: 2, SlotStart: 0, SlotEnd: 1,
				Path: []string{"a", "b", "c"}, PathLength: 3, DistanceKm: 200,
				CreatedAt: created, DeallocAt: created.Add(90 * time.Second),
			},
			{
				ID: 2, Src: "c", Dst: "a", Bandwidth: 50,
				HoldingTime: 30 * time.Second, Blocked: true,
				SlotStart: model.NoSlot, SlotEnd: model.NoSlot,
				CreatedAt: created,
			},
		},
	}

	var buf bytes.Buffer
	if err := writeRecords(&buf, "csv", res); err != nil {
		t.Fatalf("writeRecords csv error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parse csv error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}
	if len(rows[0]) != len(csvHeader) {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), len(csvHeader))
	}
	if rows[1][0] != "1" || rows[1][14] != "a|b|c" || rows[1][9] != "false" {
		t.Fatalf("unexpected accepted row: %v", rows[1])
	}
	if rows[2][9] != "true" || rows[2][14] != "" || rows[2][18] != "" {
		t.Fatalf("unexpected blocked row: %v", rows[2])
	}
}

func TestWriteJSONResult(t *testing.T) {
	res := &sim.Result{
		RunID:   "json-run",
		Records: []model.Record{{ID: 7, Src: "a", Dst: "b"}},
		Created: 1, Accepted: 1,
	}

	var buf bytes.Buffer
	if err := writeRecords(&buf, "json", res); err != nil {
		t.Fatalf("writeRecords json error: %v", err)
	}

	var got sim.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("re-parse json error: %v", err)
	}
	if got.RunID != "json-run" || len(got.Records) != 1 || got.Records[0].ID != 7 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestWriteRecordsRejectsUnknownFormat(t *testing.T) {
	if err := writeRecords(&bytes.Buffer{}, "xml", &sim.Result{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// TestIntegration_RunScenarioFile loads a scenario from disk, runs it
// to completion, and writes the records, the same path the run command
// takes.
func TestIntegration_RunScenarioFile(t *testing.T) {
	raw := `
run:
  seed: 1
  requests: 25
  arrival_rate: 5
  holding_time_mean: 10s
  default_policy: first_fit
spectrum:
  slots_per_link: 32
  slot_capacity: 12.5
routing:
  k: 2
traffic:
  bandwidths: [25, 100]
topology:
  nodes: [a, b, c]
  links:
    - {a: a, b: b, distance_km: 100}
    - {a: b, b: c, distance_km: 100}
isps:
  - id: 1
    nodes: [a, b, c]
    primary_policy: first_fit
`
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	scn, err := scenario.Load(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	driver, err := sim.New(scn)
	if err != nil {
		t.Fatalf("build driver: %v", err)
	}
	res, err := driver.Run(t.Context())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Created != 25 || len(res.Records) != 25 {
		t.Fatalf("expected 25 records, got created=%d records=%d", res.Created, len(res.Records))
	}

	var buf bytes.Buffer
	if err := writeRecords(&buf, "csv", res); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parse csv: %v", err)
	}
	if len(rows) != 26 {
		t.Fatalf("expected 26 csv rows, got %d", len(rows))
	}
}
