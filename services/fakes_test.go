package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"narrator/utils"
)

// recordingRunner records every command and creates its declared output
// file, unless exitFor reports a non-zero exit for it.
type recordingRunner struct {
	mu       sync.Mutex
	commands []utils.Command
	exitFor  func(cmd utils.Command) int
	stdout   func(cmd utils.Command) string
}

func (r *recordingRunner) Run(_ context.Context, cmd utils.Command) (utils.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.exitFor != nil {
		if code := r.exitFor(cmd); code != 0 {
			return utils.Result{ExitCode: code, Stderr: "simulated failure"}, nil
		}
	}
	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, []byte(cmd.Name), 0o644); err != nil {
			return utils.Result{}, err
		}
	}
	res := utils.Result{}
	if r.stdout != nil {
		res.Stdout = r.stdout(cmd)
	}
	return res, nil
}

func (r *recordingRunner) recorded() []utils.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]utils.Command(nil), r.commands...)
}

// fakeImages writes a placeholder file per request.
type fakeImages struct {
	mu       sync.Mutex
	requests []ImageRequest
	failOn   string
}

func (f *fakeImages) Render(_ context.Context, req ImageRequest, outPath string) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failOn != "" && req.Text == f.failOn {
		return errors.New("rasterizer rejected text")
	}
	return os.WriteFile(outPath, []byte("png"), 0o644)
}

// fakeSpeech writes the requested text as the clip contents.
type fakeSpeech struct {
	mu       sync.Mutex
	requests []SpeechRequest
	failOn   string
}

func (f *fakeSpeech) Synthesize(_ context.Context, req SpeechRequest, outPath string) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failOn != "" && req.Text == f.failOn {
		return errors.New("speech service unavailable")
	}
	return os.WriteFile(outPath, []byte(req.Text), 0o644)
}

// fakeProber maps clip base names to durations. Missing names fail.
type fakeProber map[string]float64

func (f fakeProber) Probe(_ context.Context, path string) (float64, error) {
	d, ok := f[filepath.Base(path)]
	if !ok {
		return 0, ErrNoVoiceClip
	}
	return d, nil
}

func soxCommands(cmds []utils.Command) []utils.Command {
	var out []utils.Command
	for _, c := range cmds {
		if c.Name == "sox" {
			out = append(out, c)
		}
	}
	return out
}

func pipeInputs(cmd utils.Command) []string {
	var out []string
	for _, a := range cmd.Args {
		if strings.HasPrefix(a, "|") {
			out = append(out, a)
		}
	}
	return out
}
