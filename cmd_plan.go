package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"narrator/models"
	"narrator/services"
	"narrator/utils"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags renderFlags
	var durations string

	cmd := &cobra.Command{
		Use:   "plan [job.toml]",
		Short: "Print the timeline and filter graph without rendering",
		Long: "Plan lays out a job using estimated speaking times, or the durations\n" +
			"given with --durations, and prints the resulting timeline, audio mix\n" +
			"and filter graph. No external tool is run.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if flags.output == "" {
				flags.output = "plan.mp4"
			}
			if flags.footage == "" && cfg.BackgroundFootage == "" {
				flags.footage = "footage.mp4"
			}
			job, err := loadRenderJob(cfg, args, flags)
			if err != nil {
				return err
			}

			tp := services.NewTextProcessor(0)
			opts := jobOptions(job, tp)
			measured, err := planDurations(opts.Lines, durations, tp)
			if err != nil {
				return err
			}

			assets := make([]models.LineAsset, len(opts.Lines))
			for i, line := range opts.Lines {
				assets[i] = models.LineAsset{
					LineIndex: line.Index,
					ImagePath: filepath.Join("$WORKSPACE", fmt.Sprintf("subtitle_%d.png", line.Index)),
					VoicePath: filepath.Join("$WORKSPACE", fmt.Sprintf("subtitle_%d.mp3", line.Index)),
				}
			}

			plan, err := services.NewRenderJob(opts, measured, assets, cfg.AudioSampleRate)
			if err != nil {
				return err
			}
			writePlan(cmd.OutOrStdout(), plan, opts.Lines)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.text, "text", "", "Narration text, split into lines")
	cmd.Flags().StringVar(&flags.footage, "footage", "", "Background footage")
	cmd.Flags().StringVar(&durations, "durations", "", "Comma-separated clip durations in seconds, one per line")

	return cmd
}

// planDurations parses explicit durations, or estimates them from word
// counts when none are given.
func planDurations(lines []models.Line, explicit string, tp *services.TextProcessor) ([]services.ProbedDuration, error) {
	out := make([]services.ProbedDuration, len(lines))
	if strings.TrimSpace(explicit) == "" {
		for i, line := range lines {
			out[i] = services.ProbedDuration{LineIndex: line.Index, Seconds: tp.EstimateDuration(line.Text)}
		}
		return out, nil
	}

	parts := strings.Split(explicit, ",")
	if len(parts) != len(lines) {
		return nil, fmt.Errorf("got %d durations for %d lines", len(parts), len(lines))
	}
	for i, p := range parts {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("duration %d: %w", i+1, err)
		}
		out[i] = services.ProbedDuration{LineIndex: lines[i].Index, Seconds: seconds}
	}
	return out, nil
}

func writePlan(w io.Writer, job models.RenderJob, lines []models.Line) {
	text := make(map[int]string, len(lines))
	for _, l := range lines {
		text[l.Index] = l.Text
	}

	tw := newTable(
		column{title: "Line", numeric: true},
		column{title: "Start", numeric: true},
		column{title: "End", numeric: true},
		column{title: "Frames", numeric: true},
		column{title: "At"},
		column{title: "Text", wrap: 48},
	)
	for i, e := range job.Timeline.Entries {
		fallback := ""
		if e.Fallback {
			fallback = " (silent)"
		}
		tw.AppendRow(table.Row{
			e.LineIndex,
			e.StartFrame,
			e.EndFrame,
			e.DurationFrames,
			utils.FormatSRTTimestamp(job.Timeline.StartSeconds(i)),
			text[e.LineIndex] + fallback,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", job.Timeline.TotalFrames, utils.FormatSRTTimestamp(job.Timeline.Seconds()), ""})
	fmt.Fprintln(w, tw.Render())

	fmt.Fprintf(w, "Total: %d frames at %g fps (%ss)\n", job.Timeline.TotalFrames, job.FPS, utils.FormatSeconds(job.Timeline.Seconds()))
	fmt.Fprintf(w, "Voice inserts: %d, music tracks: %d\n", len(job.Audio.VoiceInserts), len(job.Audio.MusicBed.Tracks))
	fmt.Fprintf(w, "\nVideo filter graph:\n%s\n", utils.SerializeFilterChain(job.Graph.Video))
	if len(job.Graph.Music.Stages) > 0 {
		fmt.Fprintf(w, "\nMusic filter graph:\n%s\n", utils.SerializeFilterChain(job.Graph.Music))
	}
}
