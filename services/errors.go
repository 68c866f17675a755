package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTimeline is returned by mixing and rendering when there is
	// nothing to compose.
	ErrEmptyTimeline = errors.New("timeline has no entries")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("fps must be positive")
	// ErrNoVoiceClip marks a clip that probed as empty, silent, or unreadable.
	ErrNoVoiceClip = errors.New("voice clip has no measurable duration")
	// ErrMissingInput is returned when a file the render depends on is absent.
	ErrMissingInput = errors.New("required input file is missing")
)

// Asset kinds reported by AssetError.
const (
	AssetKindImage = "image"
	AssetKindVoice = "voice"
)

// AssetError reports a failed collaborator request for one line.
type AssetError struct {
	LineIndex int
	Kind      string
	Err       error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("line %d: %s asset failed: %v", e.LineIndex, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
