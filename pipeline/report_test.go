package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/types"
)

func sampleResult() *ReleaseResult {
	return &ReleaseResult{
		ReleaseID: "rel-1",
		Version:   "v1.2.3",
		Outcome:   types.OutcomeSuccess,
		Message:   "release complete",
		Gate:      true,
		Duration:  90 * time.Second,
		Jobs: map[string]*JobResult{
			"windows": {Platform: "windows", Status: types.StatusSuccess},
			"linux":   {Platform: "linux", Status: types.StatusSuccess},
		},
		FanIn: &FanInResult{Channels: []ChannelResult{
			{Channel: "linux", Status: types.StatusSuccess},
			{Channel: "windows", Status: types.StatusSuccess},
		}},
	}
}

func TestBuildReleaseReport(t *testing.T) {
	c := metrics.NewCollector("rel-1", "v1.2.3", "fs")
	c.IncBuildSucceeded()
	c.IncBuildSucceeded()

	report := BuildReleaseReport(sampleResult(), c.Snapshot())

	if report.ExitCode != ExitCodeSuccess {
		t.Errorf("ExitCode = %d", report.ExitCode)
	}
	if report.DurationMs != 90_000 {
		t.Errorf("DurationMs = %d", report.DurationMs)
	}
	if len(report.Jobs) != 2 || report.Jobs[0].Platform != "linux" {
		t.Errorf("jobs not sorted by platform: %+v", report.Jobs)
	}
	if len(report.Channels) != 2 {
		t.Errorf("channels = %+v", report.Channels)
	}
	if report.Metrics.BuildsSucceeded != 2 {
		t.Errorf("metrics not embedded: %+v", report.Metrics)
	}
	if report.ToolVersion != types.ToolVersion {
		t.Errorf("ToolVersion = %q", report.ToolVersion)
	}
}

func TestWriteReleaseReport_File(t *testing.T) {
	report := BuildReleaseReport(sampleResult(), metrics.Snapshot{})
	path := filepath.Join(t.TempDir(), "report.json")

	if err := WriteReleaseReport(report, path); err != nil {
		t.Fatalf("WriteReleaseReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded ReleaseReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.ReleaseID != "rel-1" || decoded.Version != "v1.2.3" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteReleaseReport_EmptyPath(t *testing.T) {
	if err := WriteReleaseReport(&ReleaseReport{}, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWriteReleaseReportTo(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReleaseReportTo(BuildReleaseReport(sampleResult(), metrics.Snapshot{}), &buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		t.Error("report output missing trailing newline")
	}
}
