package datasource

import (
	"context"
	"time"

	"github.com/leefowlercu/flapboard/internal/board"
)

// PaletteService derives the six color-bar tiles from the time of day. The
// right edge of the frame shifts through the day like ambient lighting.
type PaletteService struct {
	now func() time.Time
}

// PaletteOption configures the PaletteService.
type PaletteOption func(*PaletteService)

// WithPaletteClock overrides the time source. Used by tests.
func WithPaletteClock(now func() time.Time) PaletteOption {
	return func(s *PaletteService) {
		s.now = now
	}
}

// NewPaletteService creates a palette service.
func NewPaletteService(opts ...PaletteOption) *PaletteService {
	s := &PaletteService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetColors returns the color-bar tiles for the current time of day.
func (s *PaletteService) GetColors(_ context.Context) ([6]int, error) {
	hour := s.now().Hour()
	switch {
	case hour >= 5 && hour < 9:
		// Dawn: warm sunrise ramp.
		return [6]int{board.CodeViolet, board.CodeRed, board.CodeOrange, board.CodeOrange, board.CodeYellow, board.CodeYellow}, nil
	case hour >= 9 && hour < 17:
		// Daytime: bright sky.
		return [6]int{board.CodeYellow, board.CodeYellow, board.CodeGreen, board.CodeGreen, board.CodeBlue, board.CodeBlue}, nil
	case hour >= 17 && hour < 21:
		// Dusk: sunset ramp.
		return [6]int{board.CodeBlue, board.CodeViolet, board.CodeViolet, board.CodeRed, board.CodeOrange, board.CodeOrange}, nil
	default:
		// Night: cool and dim.
		return [6]int{board.CodeBlack, board.CodeBlue, board.CodeBlue, board.CodeViolet, board.CodeViolet, board.CodeBlack}, nil
	}
}
