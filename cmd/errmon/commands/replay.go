package commands

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// ReplayFile is the input of the replay command.
type ReplayFile struct {
	Events []ReplayEvent `yaml:"events"`
}

// ReplayEvent describes one or more identical errors. At is the offset from
// the start of the replay; events are replayed in At order.
type ReplayEvent struct {
	errmon.ErrorDescriptor `yaml:",inline"`

	Context  string         `yaml:"context"`
	At       time.Duration  `yaml:"at"`
	Repeat   int            `yaml:"repeat"`
	Spacing  time.Duration  `yaml:"spacing"`
	Metadata map[string]any `yaml:"metadata"`
}

// ReplayReport is what replay prints.
type ReplayReport struct {
	Recorded   int                        `yaml:"recorded" json:"recorded"`
	Duration   time.Duration              `yaml:"duration" json:"duration"`
	Statistics errmon.ErrorStatistics     `yaml:"statistics" json:"statistics"`
	Health     *errmon.SystemHealthReport `yaml:"health,omitempty" json:"health,omitempty"`
	Alerts     []ReplayAlert              `yaml:"alerts" json:"alerts"`
}

// ReplayAlert is an alert raised during the replay.
type ReplayAlert struct {
	Type    errmon.AlertType `yaml:"type" json:"type"`
	At      time.Duration    `yaml:"at" json:"at"`
	Message string           `yaml:"message" json:"message"`
}

type replayOptions struct {
	format string
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a YAML list of errors through the monitor",
		Long: `Replay feeds the errors listed in a YAML file through a fresh monitor on a
simulated clock and prints the resulting statistics, health and alerts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format (text, yaml, json)")
	return cmd
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions, path string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	var file ReplayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse replay file %s: %w", path, err)
	}

	logger, closeLogger, err := buildLogger(root.log, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	defer closeLogger()

	report, err := Replay(cmd.Context(), cfg, logger, file)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), opts.format, report)
}

type scheduled struct {
	at    time.Duration
	err   error
	event ReplayEvent
}

// Replay records every event of file on a monitor whose clock starts at the
// current time and advances to each event's offset.
func Replay(ctx context.Context, cfg errmon.Config, logger errmon.Logger, file ReplayFile) (ReplayReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var queue []scheduled
	for i, e := range file.Events {
		err, invalid := e.Build()
		if invalid != nil {
			return ReplayReport{}, fmt.Errorf("event %d: %w", i, invalid)
		}
		if e.Context == "" {
			e.Context = "replay"
		}
		for n := range max(e.Repeat, 1) {
			queue = append(queue, scheduled{at: e.At + time.Duration(n)*e.Spacing, err: err, event: e})
		}
	}
	slices.SortStableFunc(queue, func(a, b scheduled) int {
		return cmp.Compare(a.at, b.at)
	})

	start := time.Now()
	offset := time.Duration(0)
	clock := func() time.Time { return start.Add(offset) }

	var alerts []ReplayAlert
	m := errmon.New(cfg,
		errmon.WithLogger(logger),
		errmon.WithClock(clock),
		errmon.WithAlertNotifier(func(a errmon.Alert) {
			alerts = append(alerts, ReplayAlert{Type: a.Type, At: a.TriggeredAt.Sub(start), Message: a.Message})
		}),
	)
	if err := m.Initialize(); err != nil {
		return ReplayReport{}, err
	}
	defer m.Dispose()

	for _, s := range queue {
		offset = s.at
		var recordOpts []errmon.RecordOption
		if len(s.event.Metadata) > 0 {
			recordOpts = append(recordOpts, errmon.WithMetadata(s.event.Metadata))
		}
		if err := m.RecordError(ctx, s.err, s.event.Context, recordOpts...); err != nil {
			return ReplayReport{}, err
		}
	}

	stats, err := m.ErrorStatistics()
	if err != nil {
		return ReplayReport{}, err
	}
	report := ReplayReport{
		Recorded:   len(queue),
		Duration:   offset,
		Statistics: stats,
		Alerts:     alerts,
	}
	if cfg.EnableHealthMonitoring {
		health, err := m.HealthReport()
		if err != nil {
			return ReplayReport{}, err
		}
		report.Health = &health
	}
	return report, nil
}

func writeReport(w io.Writer, format string, report ReplayReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return writeReportText(w, report)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeReportText(w io.Writer, report ReplayReport) error {
	stats := report.Statistics
	var b strings.Builder

	fmt.Fprintf(&b, "Replayed %s error(s) over %s\n\n", humanize.Comma(int64(report.Recorded)), report.Duration)

	fmt.Fprintln(&b, "Statistics:")
	fmt.Fprintf(&b, "  Errors (long window)  : %s\n", humanize.Comma(int64(stats.TotalErrors24h)))
	fmt.Fprintf(&b, "  Errors (short window) : %s\n", humanize.Comma(int64(stats.TotalErrors1h)))
	fmt.Fprintf(&b, "  Unique error types    : %d\n", stats.UniqueErrorTypes)

	if len(stats.CategoryBreakdown) > 0 {
		fmt.Fprintln(&b, "\nCategories:")
		for _, c := range errmon.Categories {
			if n := stats.CategoryBreakdown[c]; n > 0 {
				fmt.Fprintf(&b, "  %-16s %s\n", c, humanize.Comma(int64(n)))
			}
		}
	}

	if len(stats.TopErrors) > 0 {
		fmt.Fprintln(&b, "\nTop errors:")
		for _, e := range stats.TopErrors {
			fmt.Fprintf(&b, "  %-40s %6s  last seen %s\n", e.ErrorKey,
				humanize.Comma(int64(e.Count)),
				humanize.RelTime(e.LastSeen, stats.GeneratedAt, "before end", "after end"))
		}
	}

	if report.Health != nil {
		h := report.Health
		fmt.Fprintln(&b, "\nHealth:")
		fmt.Fprintf(&b, "  Score      : %d/%d\n", h.HealthScore, errmon.MaxHealthScore)
		fmt.Fprintf(&b, "  Healthy    : %t\n", h.IsHealthy)
		fmt.Fprintf(&b, "  Cascading  : %t\n", h.Cascading.IsCascadingFailure)
		if h.Patterns.TotalErrors > 0 {
			fmt.Fprintf(&b, "  Dominant   : %s / %s\n", h.Patterns.MostCommonCategory, h.Patterns.MostCommonSeverity)
		}
		if h.System != nil {
			fmt.Fprintf(&b, "  Memory     : %s\n", humanize.IBytes(uint64(h.System.MemoryBytes)))
		}
	}

	fmt.Fprintln(&b, "\nAlerts:")
	if len(report.Alerts) == 0 {
		fmt.Fprintln(&b, "  none")
	}
	for _, a := range report.Alerts {
		fmt.Fprintf(&b, "  [+%s] %s\n", a.At, a.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
