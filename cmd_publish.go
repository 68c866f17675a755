package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"narrator/handlers"
	"narrator/services"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var meta services.VideoMetadata

	cmd := &cobra.Command{
		Use:   "publish <video>",
		Short: "Upload a rendered video to YouTube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if meta.Title == "" {
				meta.Title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if meta.Privacy == "" {
				meta.Privacy = cfg.YouTubePrivacy
			}
			if meta.CategoryID == "" {
				meta.CategoryID = cfg.YouTubeCategoryID
			}

			pub, err := authorizedPublisher(cmd.Context(), cfg, ctx.logger, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			res, err := pub.Upload(cmd.Context(), args[0], meta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded https://youtu.be/%s (%s)\n", res.ID, res.Status.PrivacyStatus)
			return nil
		},
	}

	cmd.Flags().StringVar(&meta.Title, "title", "", "Video title (defaults to the file name)")
	cmd.Flags().StringVar(&meta.Description, "description", "", "Video description")
	cmd.Flags().StringVar(&meta.Privacy, "privacy", "", "public, unlisted or private")
	cmd.Flags().StringVar(&meta.CategoryID, "category", "", "YouTube category id")
	cmd.Flags().StringSliceVar(&meta.Tags, "tag", nil, "Tag (repeatable)")

	return cmd
}

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize YouTube uploads and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := authorizedPublisher(cmd.Context(), cfg, ctx.logger, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized, token stored at %s\n", cfg.YouTubeTokenPath)
			return nil
		},
	}
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the job API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			token, err := handlers.GenerateToken(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 7*24*time.Hour, "Token lifetime")

	return cmd
}
