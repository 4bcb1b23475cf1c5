package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/types"
)

// ReleaseReport is the structured JSON report written by --report.
type ReleaseReport struct {
	ReleaseID  string              `json:"release_id"`
	Version    string              `json:"version"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ExitCode   int                 `json:"exit_code"`
	DurationMs int64               `json:"duration_ms"`

	DistributionEnabled bool            `json:"distribution_enabled"`
	Jobs                []*JobResult    `json:"jobs"`
	Channels            []ChannelResult `json:"channels,omitempty"`

	Metrics *metrics.Snapshot `json:"metrics"`

	ToolVersion string `json:"tool_version"`
}

// BuildReleaseReport composes a ReleaseReport from a run result and a
// metrics snapshot. Jobs are ordered by platform for stable output.
func BuildReleaseReport(result *ReleaseResult, snap metrics.Snapshot) *ReleaseReport {
	jobs := make([]*JobResult, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Platform < jobs[k].Platform })

	report := &ReleaseReport{
		ReleaseID:           result.ReleaseID,
		Version:             result.Version.String(),
		Outcome:             result.Outcome,
		Message:             result.Message,
		ExitCode:            result.ExitCode(),
		DurationMs:          result.Duration.Milliseconds(),
		DistributionEnabled: result.Gate,
		Jobs:                jobs,
		Metrics:             &snap,
		ToolVersion:         types.ToolVersion,
	}
	if result.FanIn != nil {
		report.Channels = result.FanIn.Channels
	}
	return report
}

// WriteReleaseReport writes the report as JSON to path.
// "-" writes to stderr so stdout stays clean for rendered results.
func WriteReleaseReport(report *ReleaseReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		return writeReleaseReportTo(report, os.Stderr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report to %s: %w", path, err)
	}
	return nil
}

// writeReleaseReportTo writes report JSON to any writer (for testing).
func writeReleaseReportTo(report *ReleaseReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
