package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"narrator/config"
	"narrator/logging"
	"narrator/services"
)

func newRedditCommand(ctx *commandContext) *cobra.Command {
	var timeFrame string
	var count int
	var renderTo string

	cmd := &cobra.Command{
		Use:   "reddit <subreddit>",
		Short: "List a subreddit's top posts, optionally rendering the first one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := services.NewRedditSource(ctx.logger)
			posts, err := source.TopPosts(cmd.Context(), args[0], timeFrame, count)
			if err != nil {
				return err
			}

			tw := newTable(
				column{title: "#", numeric: true},
				column{title: "Title", wrap: 60},
				column{title: "Author"},
				column{title: "Chars", numeric: true},
				column{title: "URL"},
			)
			for i, p := range posts {
				tw.AppendRow(table.Row{i + 1, p.Title, p.Author, len(p.Body), p.URL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())

			if renderTo == "" {
				return nil
			}
			if len(posts) == 0 {
				return errors.New("nothing to render")
			}
			return renderPost(cmd, ctx, cfg, posts[0], renderTo)
		},
	}

	cmd.Flags().StringVarP(&timeFrame, "time", "t", services.TimeFrameDay, "Time frame: all, year, month, week, day, hour")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of posts")
	cmd.Flags().StringVar(&renderTo, "render", "", "Render the top post to this path")

	return cmd
}

func renderPost(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, post services.Post, output string) error {
	abs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	job := config.JobFile{Output: abs, Title: post.Title}
	job.ApplyDefaults(cfg)
	if err := job.Validate(); err != nil {
		return err
	}

	tp := services.NewTextProcessor(0)
	opts := jobOptions(job, tp)
	opts.Lines = tp.PostLines(post.Title, post.Body)
	opts.WriteSubtitles = true

	composer, err := newComposer(cfg, ctx.logger)
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger(ctx.logger, "render")
	result, err := composer.Render(cmd.Context(), opts, func(step string, percent int) {
		logger.Info(step, logging.Int("progress", percent))
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", result.OutputPath)
	return nil
}
