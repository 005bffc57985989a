package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StaticGenerator is the always-available fallback: it serves lines from a
// directory of plain text files. It must register successfully at startup,
// so Validate requires at least one usable file.
type StaticGenerator struct {
	dir string
}

// NewStaticGenerator creates a static generator over the given directory.
func NewStaticGenerator(dir string) *StaticGenerator {
	return &StaticGenerator{dir: dir}
}

// Generate serves one file's content, rotating by day so the fallback does
// not show the same text forever.
func (g *StaticGenerator) Generate(_ context.Context, gctx GenerationContext) (*GeneratedContent, error) {
	files, err := g.textFiles()
	if err != nil {
		return nil, err
	}

	pick := files[gctx.Timestamp.YearDay()%len(files)]
	data, err := os.ReadFile(pick)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback file; %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("fallback file %q is empty", filepath.Base(pick))
	}

	return &GeneratedContent{
		Text:       text,
		OutputMode: OutputText,
		Metadata: map[string]any{
			MetaGenerator: "static",
			"source_file": filepath.Base(pick),
		},
	}, nil
}

// Validate requires the directory to hold at least one non-empty .txt file.
func (g *StaticGenerator) Validate() error {
	files, err := g.textFiles()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		return fmt.Errorf("fallback file unreadable; %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("fallback file %q is empty", filepath.Base(files[0]))
	}
	return nil
}

func (g *StaticGenerator) textFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(g.dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan fallback dir; %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no fallback text files in %q", g.dir)
	}
	sort.Strings(matches)
	return matches, nil
}
