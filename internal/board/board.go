// Package board defines the split-flap display geometry and the tile code
// alphabet. Every frame the daemon produces is a 6x22 grid of tile codes;
// this package is the single authority on which codes are valid and how
// text maps onto them.
package board

import "fmt"

// Display geometry.
const (
	Rows = 6
	Cols = 22
)

// Grid is one full frame of tile codes.
type Grid [Rows][Cols]int

// Tile codes with no character glyph.
const (
	CodeBlank  = 0
	CodeDegree = 62

	// Color tiles.
	CodeRed    = 63
	CodeOrange = 64
	CodeYellow = 65
	CodeGreen  = 66
	CodeBlue   = 67
	CodeViolet = 68
	CodeWhite  = 69
	CodeBlack  = 70
	CodeFilled = 71
)

// Variant is the device background color. It decides which tile reads as
// neutral when no color-bar data is available.
type Variant string

const (
	VariantBlack Variant = "black"
	VariantWhite Variant = "white"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantBlack || v == VariantWhite
}

// NeutralCode returns the tile that blends into the device background.
func (v Variant) NeutralCode() int {
	if v == VariantWhite {
		return CodeWhite
	}
	return CodeBlank
}

// charCodes maps the printable alphabet to tile codes.
var charCodes = map[rune]int{
	' ': CodeBlank,
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'I': 9, 'J': 10, 'K': 11, 'L': 12, 'M': 13, 'N': 14, 'O': 15,
	'P': 16, 'Q': 17, 'R': 18, 'S': 19, 'T': 20, 'U': 21, 'V': 22,
	'W': 23, 'X': 24, 'Y': 25, 'Z': 26,
	'1': 27, '2': 28, '3': 29, '4': 30, '5': 31, '6': 32, '7': 33,
	'8': 34, '9': 35, '0': 36,
	'!': 37, '@': 38, '#': 39, '$': 40, '(': 41, ')': 42,
	'-': 44, '+': 46, '&': 47, '=': 48, ';': 49, ':': 50,
	'\'': 52, '"': 53, '%': 54, ',': 55, '.': 56, '/': 59, '?': 60,
	'°': CodeDegree,
}

// codeChars is the reverse mapping, built once at init.
var codeChars = func() map[int]rune {
	m := make(map[int]rune, len(charCodes))
	for r, c := range charCodes {
		m[c] = r
	}
	return m
}()

// CodeFor returns the tile code for a character. Lowercase letters are
// uppercased first.
func CodeFor(r rune) (int, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	code, ok := charCodes[r]
	return code, ok
}

// Supported reports whether r has a tile.
func Supported(r rune) bool {
	_, ok := CodeFor(r)
	return ok
}

// CharFor returns the printable character for a code, or false for color
// tiles and unknown codes.
func CharFor(code int) (rune, bool) {
	r, ok := codeChars[code]
	return r, ok
}

// ValidCode reports whether code is in the device alphabet.
func ValidCode(code int) bool {
	if _, ok := codeChars[code]; ok {
		return true
	}
	return code >= CodeRed && code <= CodeFilled
}

// EncodeLine converts text to at most width tile codes. Unsupported runes
// become blanks; text beyond width is dropped.
func EncodeLine(text string, width int) []int {
	codes := make([]int, 0, width)
	for _, r := range text {
		if len(codes) >= width {
			break
		}
		code, ok := CodeFor(r)
		if !ok {
			code = CodeBlank
		}
		codes = append(codes, code)
	}
	return codes
}

// InvalidCodeError reports an out-of-alphabet tile code in a grid.
type InvalidCodeError struct {
	Row  int
	Col  int
	Code int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid tile code %d at row %d col %d", e.Code, e.Row, e.Col)
}

// Validate checks every cell against the device alphabet.
func (g *Grid) Validate() error {
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			if !ValidCode(g[row][col]) {
				return &InvalidCodeError{Row: row, Col: col, Code: g[row][col]}
			}
		}
	}
	return nil
}
