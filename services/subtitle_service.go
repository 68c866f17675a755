package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"narrator/logging"
	"narrator/utils"
)

// SubtitleRenderer rasterizes subtitle lines to transparent PNGs. Fonts are
// parsed once and registered under ids from an explicit generator.
type SubtitleRenderer struct {
	ids    utils.IDGenerator
	logger *slog.Logger

	mu    sync.Mutex
	fonts map[string]registeredFont
}

type registeredFont struct {
	family string
	font   *opentype.Font
}

// NewSubtitleRenderer creates a renderer.
func NewSubtitleRenderer(ids utils.IDGenerator, logger *slog.Logger) *SubtitleRenderer {
	if ids == nil {
		ids = &utils.SequenceGenerator{}
	}
	return &SubtitleRenderer{
		ids:    ids,
		logger: logging.NewComponentLogger(logger, "subtitles"),
		fonts:  make(map[string]registeredFont),
	}
}

// RegisterFont loads the font at path, or the built-in Go font for an empty
// path, and returns its family id. Repeated calls reuse the registration.
func (r *SubtitleRenderer) RegisterFont(path string) (string, error) {
	rf, err := r.font(path)
	if err != nil {
		return "", err
	}
	return rf.family, nil
}

func (r *SubtitleRenderer) font(path string) (registeredFont, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rf, ok := r.fonts[path]; ok {
		return rf, nil
	}

	data := goregular.TTF
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return registeredFont{}, fmt.Errorf("read font: %w", err)
		}
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return registeredFont{}, fmt.Errorf("parse font %s: %w", path, err)
	}

	rf := registeredFont{family: r.ids.NewID("font"), font: parsed}
	r.fonts[path] = rf
	r.logger.Debug("font registered",
		logging.String("family", rf.family),
		logging.String("path", path),
	)
	return rf, nil
}

// Render word-wraps req.Text to req.MaxWidth and draws each line centered.
// The canvas is MaxWidth wide and lines*size + ceil(size/2) tall.
func (r *SubtitleRenderer) Render(ctx context.Context, req ImageRequest, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.MaxWidth <= 0 {
		return fmt.Errorf("max width must be positive, got %d", req.MaxWidth)
	}
	size := req.Style.FontSize
	if size <= 0 {
		return fmt.Errorf("font size must be positive, got %g", size)
	}
	fill, err := parseHexColor(req.Style.Color)
	if err != nil {
		return err
	}

	rf, err := r.font(req.Style.FontPath)
	if err != nil {
		return err
	}
	// Faces keep glyph caches and are not safe for concurrent use.
	face, err := opentype.NewFace(rf.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	lines := wrapText(req.Text, req.MaxWidth, func(s string) int {
		return font.MeasureString(face, s).Ceil()
	})

	width := req.MaxWidth
	height := int(float64(len(lines))*size + math.Ceil(size/2))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	d := &font.Drawer{Dst: img, Src: image.NewUniform(fill), Face: face}
	for i, line := range lines {
		advance := d.MeasureString(line)
		d.Dot = fixed.Point26_6{
			X: fixed.I(width)/2 - advance/2,
			Y: fixed.Int26_6(float64(i+1) * size * 64),
		}
		d.DrawString(line)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// wrapText greedily packs space-separated words into lines narrower than
// maxWidth. A single word wider than maxWidth gets a line of its own.
func wrapText(text string, maxWidth int, measure func(string) int) []string {
	words := strings.Split(text, " ")
	lines := []string{}
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate) < maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch strings.ToLower(s) {
	case "", "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case "black":
		return color.NRGBA{A: 255}, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
