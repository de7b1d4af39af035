package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

const (
	gitignoreFile    = ".gitignore"
	dockerignoreFile = ".dockerignore"
	dirName          = ".xref"
	ignorePattern    = dirName + "/"
	commentMarker    = "# xref"
)

var infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

// Confirm asks whether to add the pattern for the named tool.
type Confirm func(toolName, impact string) (bool, error)

// Prompt asks interactively with a huh confirm form.
func Prompt(toolName, impact string) (bool, error) {
	var shouldAdd bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Add %s to %s?", ignorePattern, toolName)).
				Description(fmt.Sprintf("This %s", impact)).
				Value(&shouldAdd),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("interactive prompt failed: %w", err)
	}
	return shouldAdd, nil
}

// Always answers yes without prompting.
func Always(string, string) (bool, error) { return true, nil }

// HandleIgnoreFiles offers to add .xref/ to an existing .gitignore and
// .dockerignore. Missing files are left alone.
func HandleIgnoreFiles(repoRoot string, out io.Writer, confirm Confirm) error {
	files := []struct {
		name, tool, impact string
	}{
		{gitignoreFile, "Git", "prevents committing the local scan database and outputs"},
		{dockerignoreFile, "Docker", "keeps the local scan database out of the build context"},
	}
	for _, f := range files {
		if err := handleIgnoreFile(filepath.Join(repoRoot, f.name), f.tool, f.impact, out, confirm); err != nil {
			return fmt.Errorf("failed to handle %s: %w", f.name, err)
		}
	}
	return nil
}

func handleIgnoreFile(filePath, toolName, impact string, out io.Writer, confirm Confirm) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	alreadyIgnored, err := IsIgnored(filePath)
	if err != nil {
		return fmt.Errorf("failed to check ignore file: %w", err)
	}
	if alreadyIgnored {
		return nil
	}

	shouldAdd, err := confirm(toolName, impact)
	if err != nil {
		return err
	}
	if !shouldAdd {
		fmt.Fprintf(out, "%s Skipped adding to %s\n", infoStyle.Render("→"), toolName)
		return nil
	}

	if err := addIgnoreEntry(filePath); err != nil {
		return fmt.Errorf("failed to add ignore entry: %w", err)
	}
	fmt.Fprintf(out, "✓ Added %s to %s\n", ignorePattern, toolName)
	return nil
}

// IsIgnored reports whether the ignore file already covers the .xref
// directory at the repository root. Patterns that only match a nested
// directory, like "cmd/.xref", do not count.
func IsIgnored(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversDir(line) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func coversDir(line string) bool {
	line = strings.TrimPrefix(line, "/")
	line = strings.TrimPrefix(line, "**/")
	line = strings.TrimSuffix(line, "/")
	switch line {
	case dirName, dirName + "/**", dirName + "*":
		return true
	}
	return false
}

// addIgnoreEntry appends .xref/ to the ignore file. It is idempotent.
func addIgnoreEntry(filePath string) error {
	alreadyIgnored, err := IsIgnored(filePath)
	if err != nil {
		return fmt.Errorf("failed to re-check ignore file: %w", err)
	}
	if alreadyIgnored {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var b strings.Builder
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", commentMarker, ignorePattern)
	_, err = file.WriteString(b.String())
	return err
}
