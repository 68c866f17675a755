package main

import (
	"fmt"
	"os/exec"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"narrator/config"
)

type toolCheck struct {
	name   string
	binary string
	path   string
	err    error
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external media tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := checkTools(cfg, exec.LookPath)

			tw := newTable(column{title: "Tool"}, column{title: "Binary"}, column{title: "Path"}, column{title: "Status"})
			missing := 0
			for _, c := range checks {
				status, path := "ok", c.path
				if c.err != nil {
					status, path = "missing", "-"
					missing++
				}
				tw.AppendRow(table.Row{c.name, c.binary, path, status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())

			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			return nil
		},
	}
}

func checkTools(cfg *config.Config, lookPath func(string) (string, error)) []toolCheck {
	tools := []struct{ name, binary string }{
		{"ffmpeg", cfg.FFmpegBin},
		{"ffprobe", cfg.FFprobeBin},
		{"sox", cfg.SoxBin},
	}
	checks := make([]toolCheck, 0, len(tools))
	for _, t := range tools {
		path, err := lookPath(t.binary)
		checks = append(checks, toolCheck{name: t.name, binary: t.binary, path: path, err: err})
	}
	return checks
}
