package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesdx/xref/internal/store"
	"github.com/mesdx/xref/internal/symbols"
)

const (
	maxCodeChars = 100000 // Max total chars in concatenated code output
)

// codeWindow represents a contiguous range of lines in a file
type codeWindow struct {
	startLine int
	endLine   int
}

// codeBuffer accumulates numbered source lines up to maxCodeChars.
type codeBuffer struct {
	sb        strings.Builder
	truncated bool
	blocks    int
}

func (b *codeBuffer) header(h string) bool {
	if b.truncated {
		return false
	}
	if b.blocks > 0 {
		b.sb.WriteString("\n\n")
	}
	b.blocks++
	return b.write(h + "\n")
}

func (b *codeBuffer) line(n int, text string) bool {
	return b.write(fmt.Sprintf("%6d| %s\n", n, text))
}

func (b *codeBuffer) write(s string) bool {
	if b.truncated {
		return false
	}
	if b.sb.Len()+len(s) > maxCodeChars {
		if remaining := maxCodeChars - b.sb.Len(); remaining > 0 {
			b.sb.WriteString(s[:remaining])
		}
		b.sb.WriteString("\n... [truncated: output too large] ...")
		b.truncated = true
		return false
	}
	b.sb.WriteString(s)
	return true
}

func (b *codeBuffer) String() string { return b.sb.String() }

// fileCache reads each file at most once.
type fileCache struct {
	repoRoot string
	files    map[string][]string
}

func newFileCache(repoRoot string) *fileCache {
	return &fileCache{repoRoot: repoRoot, files: map[string][]string{}}
}

func (c *fileCache) lines(relPath string) ([]string, bool) {
	if lines, ok := c.files[relPath]; ok {
		return lines, lines != nil
	}
	absPath := safeJoinPath(c.repoRoot, relPath)
	if absPath == "" {
		c.files[relPath] = nil
		return nil, false
	}
	lines, err := readFileAllLines(absPath)
	if err != nil {
		c.files[relPath] = nil
		return nil, false
	}
	c.files[relPath] = lines
	return lines, true
}

// fetchDefinitionsCode prints the source of each definition, expanded
// backward over leading doc comments and decorators.
func fetchDefinitionsCode(repoRoot string, defs []store.SymbolRow) string {
	var buf codeBuffer
	cache := newFileCache(repoRoot)
	for _, def := range defs {
		if def.Location.File == "" {
			continue
		}
		fileLines, ok := cache.lines(def.Location.File)
		if !ok || def.Location.Line < 1 || def.Location.Line > len(fileLines) {
			continue
		}

		startLine := docStartLine(fileLines, def.Location.Line)
		endLine := def.Location.EndLine
		if endLine < def.Location.Line {
			endLine = def.Location.Line
		}
		if endLine > len(fileLines) {
			endLine = len(fileLines)
		}

		if !buf.header(fmt.Sprintf("--- %s:%d-%d (%s %s) ---", def.Location.File, startLine, endLine, def.Name, def.Kind)) {
			break
		}
		for line := startLine; line <= endLine; line++ {
			if !buf.line(line, fileLines[line-1]) {
				return buf.String()
			}
		}
	}
	return buf.String()
}

// fetchUsagesCode prints merged windows of linesAround lines around each
// reference, file by file in path order.
func fetchUsagesCode(repoRoot string, refs []symbols.Reference, linesAround int) string {
	byFile := make(map[string][]codeWindow)
	for _, r := range refs {
		start := r.Location.Line - linesAround
		if start < 1 {
			start = 1
		}
		byFile[r.Location.File] = append(byFile[r.Location.File], codeWindow{startLine: start, endLine: r.Location.Line + linesAround})
	}
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf codeBuffer
	cache := newFileCache(repoRoot)
	for _, path := range paths {
		fileLines, ok := cache.lines(path)
		if !ok {
			continue
		}
		for _, window := range mergeWindows(byFile[path]) {
			if window.endLine > len(fileLines) {
				window.endLine = len(fileLines)
			}
			if window.startLine > window.endLine {
				continue
			}
			if !buf.header(fmt.Sprintf("--- %s:%d-%d ---", path, window.startLine, window.endLine)) {
				return buf.String()
			}
			for line := window.startLine; line <= window.endLine; line++ {
				if !buf.line(line, fileLines[line-1]) {
					return buf.String()
				}
			}
		}
	}
	return buf.String()
}

// docStartLine walks back from declLine over comment and decorator lines.
// A blank line ends the block.
func docStartLine(lines []string, declLine int) int {
	if declLine <= 1 || declLine > len(lines) {
		return declLine
	}
	start := declLine
	for i := declLine - 2; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || !isDocLine(trimmed) {
			break
		}
		start = i + 1
	}
	return start
}

func isDocLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasSuffix(trimmed, "*/") ||
		strings.HasPrefix(trimmed, "@")
}

// mergeWindows merges overlapping or adjacent windows (no gap)
func mergeWindows(windows []codeWindow) []codeWindow {
	if len(windows) == 0 {
		return nil
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].startLine < windows[j].startLine
	})

	merged := []codeWindow{windows[0]}
	for _, curr := range windows[1:] {
		last := &merged[len(merged)-1]
		if curr.startLine <= last.endLine+1 {
			if curr.endLine > last.endLine {
				last.endLine = curr.endLine
			}
		} else {
			merged = append(merged, curr)
		}
	}
	return merged
}

// safeJoinPath joins repoRoot and relPath, rejecting path traversal. It
// returns "" for unsafe paths.
func safeJoinPath(repoRoot, relPath string) string {
	cleanRel := filepath.Clean(filepath.FromSlash(relPath))
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanRel) {
		return ""
	}

	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return ""
	}
	absPath := filepath.Join(absRoot, cleanRel)
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return ""
	}
	return absPath
}

// readFileAllLines reads all lines from a file into a slice (0-indexed slice, but conceptually 1-indexed lines)
func readFileAllLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
