// Package preview renders board frames as styled terminal output for the
// CLI, without needing a physical device.
package preview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leefowlercu/flapboard/internal/board"
)

// colorTiles maps color tile codes to terminal colors.
var colorTiles = map[int]lipgloss.Color{
	board.CodeRed:    lipgloss.Color("9"),
	board.CodeOrange: lipgloss.Color("208"),
	board.CodeYellow: lipgloss.Color("11"),
	board.CodeGreen:  lipgloss.Color("10"),
	board.CodeBlue:   lipgloss.Color("12"),
	board.CodeViolet: lipgloss.Color("13"),
	board.CodeWhite:  lipgloss.Color("15"),
	board.CodeBlack:  lipgloss.Color("0"),
	board.CodeFilled: lipgloss.Color("7"),
}

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	charStyle = lipgloss.NewStyle().Bold(true)
)

// RenderGrid draws one frame as a bordered block of tiles. Color tiles
// render as solid blocks; the degree sign and characters render as glyphs.
func RenderGrid(grid board.Grid) string {
	var rows []string
	for row := 0; row < board.Rows; row++ {
		var line strings.Builder
		for col := 0; col < board.Cols; col++ {
			line.WriteString(renderTile(grid[row][col]))
		}
		rows = append(rows, line.String())
	}
	return frameStyle.Render(strings.Join(rows, "\n"))
}

// renderTile draws a single tile as one cell.
func renderTile(code int) string {
	if color, ok := colorTiles[code]; ok {
		return lipgloss.NewStyle().Foreground(color).Render("█")
	}
	if code == board.CodeDegree {
		return charStyle.Render("°")
	}
	if r, ok := board.CharFor(code); ok {
		if r == ' ' {
			return " "
		}
		return charStyle.Render(string(r))
	}
	return "?"
}

// RenderText is a convenience for previewing plain text: each line becomes
// a board row, truncated to the device geometry.
func RenderText(text string) string {
	var grid board.Grid
	for i, line := range strings.Split(text, "\n") {
		if i >= board.Rows {
			break
		}
		codes := board.EncodeLine(line, board.Cols)
		copy(grid[i][:], codes)
	}
	return RenderGrid(grid)
}
