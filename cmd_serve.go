package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"narrator/config"
	"narrator/handlers"
	"narrator/logging"
	"narrator/models"
	"narrator/services"
	"narrator/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the render job API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobs, err := store.Open(cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer jobs.Close()

			composer, err := newComposer(cfg, logger)
			if err != nil {
				return err
			}

			h := handlers.NewVideoHandler(runCtx, cfg, composer, jobs, nil, logger)
			if cfg.PublishAfterRender {
				// The server cannot prompt; the token must already exist.
				pub, err := authorizedPublisher(runCtx, cfg, logger, strings.NewReader(""), cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("publishing enabled but not authorized, run `narrator auth`: %w", err)
				}
				h.WithPublisher(pub)
			}

			if cfg.ScheduleCron != "" {
				scheduler, err := newScheduler(runCtx, cfg, h, services.NewRedditSource(logger), logger)
				if err != nil {
					return err
				}
				scheduler.Start()
				defer scheduler.Stop()
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           handlers.NewRouter(cfg, h, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server", logging.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-runCtx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			h.Wait()
			return nil
		},
	}
}

// postSource lists top posts of a subreddit.
type postSource interface {
	TopPosts(ctx context.Context, subreddit, timeFrame string, count int) ([]services.Post, error)
}

// jobSubmitter accepts render requests.
type jobSubmitter interface {
	SubmitRequest(ctx context.Context, req models.RenderRequest) (string, error)
}

// newScheduler renders the subreddit's current top post on every tick of
// SCHEDULE_CRON.
func newScheduler(ctx context.Context, cfg *config.Config, jobs jobSubmitter, posts postSource, logger *slog.Logger) (*cron.Cron, error) {
	if cfg.ScheduleSubreddit == "" {
		return nil, errors.New("SCHEDULE_CRON requires SCHEDULE_SUBREDDIT")
	}
	logger = logging.NewComponentLogger(logger, "scheduler")

	c := cron.New()
	_, err := c.AddFunc(cfg.ScheduleCron, func() {
		jobID, err := scheduledCompilation(ctx, cfg, jobs, posts)
		if err != nil {
			logger.Error("scheduled render failed", logging.Error(err))
			return
		}
		logger.Info("scheduled render submitted", logging.String("job_id", jobID))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_CRON %q: %w", cfg.ScheduleCron, err)
	}
	return c, nil
}

func scheduledCompilation(ctx context.Context, cfg *config.Config, jobs jobSubmitter, posts postSource) (string, error) {
	found, err := posts.TopPosts(ctx, cfg.ScheduleSubreddit, cfg.ScheduleTimeFrame, 1)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no posts in r/%s", cfg.ScheduleSubreddit)
	}
	post := found[0]
	lines := services.NewTextProcessor(0).PostLines(post.Title, post.Body)
	return jobs.SubmitRequest(ctx, models.RenderRequest{
		Title: post.Title,
		Lines: lo.Map(lines, func(l models.Line, _ int) string { return l.Text }),
	})
}
