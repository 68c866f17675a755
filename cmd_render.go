package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"narrator/config"
	"narrator/logging"
	"narrator/services"
)

type renderFlags struct {
	output   string
	text     string
	title    string
	footage  string
	keywords string
	srt      bool
	publish  bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [job.toml]",
		Short: "Render a video from a job manifest or inline text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := loadRenderJob(cfg, args, flags)
			if err != nil {
				return err
			}

			opts := jobOptions(job, services.NewTextProcessor(0))
			opts.WriteSubtitles = flags.srt

			composer, err := newComposer(cfg, ctx.logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.NewComponentLogger(ctx.logger, "render")
			result, err := composer.Render(runCtx, opts, func(step string, percent int) {
				logger.Info(step, logging.Int("progress", percent))
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rendered %s (%d frames, %.2fs)\n", result.OutputPath, result.Timeline.TotalFrames, result.Timeline.Seconds())
			if result.SubtitlePath != "" {
				fmt.Fprintf(out, "Subtitles %s\n", result.SubtitlePath)
			}
			if len(result.Fallbacks) > 0 {
				fmt.Fprintf(out, "Lines rendered without voice: %v\n", result.Fallbacks)
			}

			if flags.publish || cfg.PublishAfterRender {
				pub, err := authorizedPublisher(runCtx, cfg, ctx.logger, cmd.InOrStdin(), out)
				if err != nil {
					return err
				}
				title := opts.Title
				if title == "" {
					title = flags.title
				}
				uploaded, err := pub.Upload(runCtx, result.OutputPath, services.VideoMetadata{
					Title:      title,
					CategoryID: cfg.YouTubeCategoryID,
					Privacy:    cfg.YouTubePrivacy,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Published https://youtu.be/%s\n", uploaded.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output video path (inline mode)")
	cmd.Flags().StringVar(&flags.text, "text", "", "Narration text, split into lines (inline mode)")
	cmd.Flags().StringVar(&flags.title, "title", "", "Video title")
	cmd.Flags().StringVar(&flags.footage, "footage", "", "Background footage (inline mode)")
	cmd.Flags().StringVar(&flags.keywords, "keywords", "", "Stock footage search keywords (inline mode)")
	cmd.Flags().BoolVar(&flags.srt, "srt", false, "Write an .srt file next to the output")
	cmd.Flags().BoolVar(&flags.publish, "publish", false, "Upload the finished video to YouTube")

	return cmd
}

// loadRenderJob reads the manifest named in args, or builds one from flags.
func loadRenderJob(cfg *config.Config, args []string, flags renderFlags) (config.JobFile, error) {
	if len(args) == 1 {
		job, err := config.LoadJobFile(args[0], cfg)
		if err != nil {
			return config.JobFile{}, err
		}
		if job.Title == "" {
			job.Title = flags.title
		}
		return job, nil
	}

	if flags.text == "" {
		return config.JobFile{}, errors.New("pass a job manifest or --text")
	}
	job := config.JobFile{
		Output: flags.output,
		Title:  flags.title,
		Text:   flags.text,
		Background: config.JobBackground{
			Footage:       flags.footage,
			StockKeywords: flags.keywords,
		},
	}
	job.ApplyDefaults(cfg)
	if err := job.Validate(); err != nil {
		return config.JobFile{}, err
	}
	return job, nil
}
