package generators

import (
	"context"

	"github.com/leefowlercu/flapboard/internal/board"
)

// DoorbellGenerator reacts to doorbell events with a fixed attention frame.
// It produces layout output so nothing downstream can delay or restyle it.
type DoorbellGenerator struct{}

// NewDoorbellGenerator creates a doorbell generator.
func NewDoorbellGenerator() *DoorbellGenerator {
	return &DoorbellGenerator{}
}

// Generate builds the attention grid: color borders around the announcement.
func (g *DoorbellGenerator) Generate(_ context.Context, _ GenerationContext) (*GeneratedContent, error) {
	var grid board.Grid

	for col := 0; col < board.Cols; col++ {
		grid[0][col] = board.CodeYellow
		grid[board.Rows-1][col] = board.CodeYellow
	}

	writeCentered(&grid, 2, "DING DONG")
	writeCentered(&grid, 3, "SOMEONE IS AT THE DOOR")

	return &GeneratedContent{
		Text:       "DING DONG SOMEONE IS AT THE DOOR",
		OutputMode: OutputLayout,
		Layout:     &grid,
		Metadata:   map[string]any{MetaGenerator: "doorbell"},
	}, nil
}

// Validate always passes; the generator has no dependencies.
func (g *DoorbellGenerator) Validate() error {
	return nil
}

func writeCentered(grid *board.Grid, row int, text string) {
	codes := board.EncodeLine(text, board.Cols)
	start := (board.Cols - len(codes)) / 2
	for i, code := range codes {
		grid[row][start+i] = code
	}
}
