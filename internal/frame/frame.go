// Package frame composes 6x22 display grids from generated text plus a
// status row carrying the date, time, weather, and color bar.
package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/datasource"
)

// Alignment positions wrapped text within a row.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Layout defaults. Text occupies the rows above the info bar; the info bar
// itself keeps its last column for the color tile.
const (
	DefaultMaxLines        = board.Rows - 1
	DefaultMaxCharsPerLine = board.Cols - 1
	infoRowWidth           = board.Cols - 1
)

// FormatOptions adjusts how text is placed on the grid.
type FormatOptions struct {
	// MaxLines caps text rows. Zero means the default.
	MaxLines int

	// MaxCharsPerLine caps glyphs per text row. Zero means the default.
	MaxCharsPerLine int

	// Align positions each line. Empty means centered.
	Align Alignment
}

func (o FormatOptions) maxLines() int {
	if o.MaxLines <= 0 || o.MaxLines > board.Rows-1 {
		return DefaultMaxLines
	}
	return o.MaxLines
}

func (o FormatOptions) maxChars() int {
	if o.MaxCharsPerLine <= 0 || o.MaxCharsPerLine > board.Cols {
		return DefaultMaxCharsPerLine
	}
	return o.MaxCharsPerLine
}

func (o FormatOptions) align() Alignment {
	switch o.Align {
	case AlignLeft, AlignRight:
		return o.Align
	default:
		return AlignCenter
	}
}

// Result is a composed grid plus any degradation warnings.
type Result struct {
	Layout   board.Grid
	Warnings []string
}

// Decorator composes display frames.
type Decorator struct {
	variant board.Variant
}

// NewDecorator creates a decorator for the given device variant.
func NewDecorator(variant board.Variant) *Decorator {
	if !variant.Valid() {
		variant = board.VariantBlack
	}
	return &Decorator{variant: variant}
}

// Decorate lays text onto rows 0..4 and writes the info bar on row 5. The
// result is always a valid 6x22 grid; content that cannot fit is truncated
// with a warning.
func (d *Decorator) Decorate(text string, at time.Time, data *datasource.ContentData, opts FormatOptions) Result {
	var result Result

	lines, warnings := wrapText(text, opts.maxChars(), opts.maxLines())
	result.Warnings = warnings

	for i, line := range lines {
		placeLine(&result.Layout, i, line, opts)
	}

	d.writeInfoRow(&result.Layout, at, data)

	if err := result.Layout.Validate(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("composed grid invalid, using minimal frame: %v", err))
		result.Layout = minimalGrid(text)
	}
	return result
}

// placeLine encodes one line into the grid row with alignment.
func placeLine(grid *board.Grid, row int, line string, opts FormatOptions) {
	codes := board.EncodeLine(line, opts.maxChars())

	var start int
	switch opts.align() {
	case AlignLeft:
		start = 0
	case AlignRight:
		start = board.Cols - len(codes)
	default:
		start = (board.Cols - len(codes)) / 2
	}

	for i, code := range codes {
		grid[row][start+i] = code
	}
}

// writeInfoRow formats "{DAY} {DATE}{MON} {HH:MM}   {ColorChar}{TEMP}{UNIT}"
// into 21 columns and sets the color-bar tile in the last column. The gap
// between the clock and the weather block absorbs width differences; when
// weather is missing the right block is omitted.
func (d *Decorator) writeInfoRow(grid *board.Grid, at time.Time, data *datasource.ContentData) {
	left := fmt.Sprintf("%s %d%s %02d:%02d",
		strings.ToUpper(at.Format("Mon")),
		at.Day(),
		strings.ToUpper(at.Format("Jan")),
		at.Hour(), at.Minute())

	var right string
	if data != nil && data.Weather != nil {
		w := data.Weather
		right = fmt.Sprintf("%s%d%s", conditionLetter(w.Condition), w.Temperature, w.UnitGlyph())
	}

	row := packInfoRow(left, right)
	codes := board.EncodeLine(row, infoRowWidth)
	for i, code := range codes {
		grid[board.Rows-1][i] = code
	}

	tile := d.variant.NeutralCode()
	if data != nil && data.ColorBar != nil {
		tile = data.ColorBar[5]
	}
	grid[board.Rows-1][board.Cols-1] = tile
}

// packInfoRow joins the clock and weather blocks into exactly infoRowWidth
// characters. The separating gap shrinks to one space before the right
// block is truncated.
func packInfoRow(left, right string) string {
	if right == "" {
		return pad(left, infoRowWidth)
	}

	gap := infoRowWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	row := left + strings.Repeat(" ", gap) + right
	if len(row) > infoRowWidth {
		row = row[:infoRowWidth]
	}
	return pad(row, infoRowWidth)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// conditionLetter maps a weather condition to its single-glyph marker.
func conditionLetter(condition string) string {
	switch condition {
	case "Sunny":
		return "G"
	case "Partly Cloudy":
		return "P"
	case "Cloudy":
		return "C"
	case "Fog":
		return "F"
	case "Drizzle":
		return "D"
	case "Rain", "Showers":
		return "R"
	case "Snow":
		return "S"
	case "Storm":
		return "T"
	default:
		return "-"
	}
}

// wrapText word-wraps text to at most maxLines lines of width glyphs.
// Overlong words are hard-split; lines beyond maxLines are dropped with a
// warning.
func wrapText(text string, width, maxLines int) ([]string, []string) {
	var lines []string
	var warnings []string

	for _, paragraph := range strings.Split(strings.TrimSpace(text), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			for len(word) > width {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				lines = append(lines, word[:width])
				word = word[width:]
			}
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}

	if len(lines) > maxLines {
		warnings = append(warnings, fmt.Sprintf("text needs %d lines, truncated to %d", len(lines), maxLines))
		lines = lines[:maxLines]
	}
	return lines, warnings
}

// minimalGrid is the catastrophic fallback: the first 22 characters of text
// on row 0 and blanks elsewhere.
func minimalGrid(text string) board.Grid {
	var grid board.Grid
	codes := board.EncodeLine(strings.ToUpper(text), board.Cols)
	copy(grid[0][:], codes)
	return grid
}
