package cmd

import (
	"fmt"
	"os"
	"time"

	"senior-connect/internal/evaluator"
	"senior-connect/internal/replay"
	"senior-connect/internal/state"

	"github.com/spf13/cobra"
)

var (
	// replayTail 最后一条记录之后继续推进的虚拟时间
	replayTail time.Duration
	// replayVerbose 同时输出日志记录
	replayVerbose bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording.jsonl>",
	Short: "Feed a recorded event stream through the correlator on a virtual clock.",
	Long: `Each line of the recording is a JSON object:

  {"at":"2025-03-04T08:00:00Z","topic":"senior_connect/sensors/door","payload":{...}}

Events are decoded exactly as they would be from the bus and the escalation
ticker runs on the recording's clock. Emitted alerts are printed to stdout.
No sinks are contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()

		out := cmd.OutOrStdout()
		printer := replay.NewPrinter(out, replayVerbose)
		eval := evaluator.NewEvaluator(cfg.Rules, state.NewStore(), printer, log)

		res, err := replay.NewPlayer(eval, cfg.Correlator.TickInterval, replayTail, log).Play(cmd.Context(), f)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%d lines, %d events routed, %d retained, %d malformed, %d ticks (%s .. %s)\n",
			res.Lines, res.Routed, res.Retained, res.Malformed, res.Ticks,
			res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339))
		fmt.Fprintf(out, "%d alerts, %d log records, %d images\n", len(printer.Alerts()), printer.LogCount(), printer.CaptureCount())
		return nil
	},
}

//nolint:gochecknoinits // cobra 约定
func init() {
	replayCmd.Flags().DurationVar(&replayTail, "tail", 2*time.Minute, "virtual time to keep ticking after the last record")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "print log records as well as alerts")
}
