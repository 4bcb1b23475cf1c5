package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/slipway-dev/slipway/cli/config"
	"github.com/slipway-dev/slipway/cli/render"
	"github.com/slipway-dev/slipway/journal"
)

// HistoryEntry is the thin run slice rendered by history.
type HistoryEntry struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Outcome  string `json:"outcome"`
	Started  string `json:"started_at"`
	Duration string `json:"duration"`
	Jobs     string `json:"jobs"`
}

// HistoryCommand returns the history command.
// History reads the run journal; it never executes work.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent release runs from the journal",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Journal database path (overrides config)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to return",
				Value: 20,
			},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for history command", 1)
	}

	path := c.String("journal")
	if path == "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return cli.Exit("no journal configured (set journal.path in slipway.yaml or pass --journal)", 1)
	}

	j, err := journal.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), 1)
	}
	defer func() { _ = j.Close() }()

	runs, err := j.Recent(c.Context, c.Int("limit"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("read journal: %v", err), 1)
	}

	return r.Render(historyEntries(runs))
}

// historyEntries flattens run records into renderable rows.
func historyEntries(runs []journal.RunRecord) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, HistoryEntry{
			ID:       run.ID,
			Version:  run.Version.String(),
			Outcome:  string(run.Outcome),
			Started:  run.StartedAt.Format("2006-01-02 15:04:05"),
			Duration: run.FinishedAt.Sub(run.StartedAt).String(),
			Jobs:     summarizeJobs(run.Jobs),
		})
	}
	return entries
}

// summarizeJobs renders per-platform statuses as "linux:success windows:failure".
func summarizeJobs(jobs []journal.JobRecord) string {
	parts := make([]string, 0, len(jobs))
	for _, job := range jobs {
		parts = append(parts, fmt.Sprintf("%s:%s", job.Platform, job.Status))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
