package pipeline

import (
	"strings"
)

// Section is a markdown heading section with 1-based line positions.
// StartLine is the heading line, EndLine the last line of the whole
// subtree. Content holds the section's own lines up to the first child
// heading, so nested text is never duplicated across levels.
type Section struct {
	Title     string
	Level     int
	Content   string
	StartLine int
	EndLine   int
	Children  []*Section
}

// ChunkMarkdown splits markdown into a section tree following ATX
// headings. Text before the first heading becomes a level-0 preamble
// section. Line numbers refer to the original document text.
func ChunkMarkdown(content string) []*Section {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var roots []*Section
	var stack []*Section

	closeTo := func(level, endLine int) {
		for len(stack) > 0 && stack[len(stack)-1].Level >= level {
			top := stack[len(stack)-1]
			top.EndLine = endLine
			fillContent(top, lines)
			stack = stack[:len(stack)-1]
		}
	}

	for i, line := range lines {
		level, title := headingOf(line)
		if level == 0 {
			continue
		}

		closeTo(level, i)

		section := &Section{
			Title:     title,
			Level:     level,
			StartLine: i + 1,
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, section)
		} else {
			roots = append(roots, section)
		}
		stack = append(stack, section)
	}

	closeTo(1, len(lines))

	// Text above the first heading keeps its own section
	preambleEnd := len(lines)
	if len(roots) > 0 {
		preambleEnd = roots[0].StartLine - 1
	}
	preamble := strings.TrimSpace(strings.Join(lines[:preambleEnd], "\n"))
	if preamble != "" {
		roots = append([]*Section{{
			Content:   preamble,
			StartLine: 1,
			EndLine:   preambleEnd,
		}}, roots...)
	}

	return roots
}

// fillContent sets the section text to its heading plus own body,
// stopping before the first child heading.
func fillContent(section *Section, lines []string) {
	bodyEnd := section.EndLine
	if len(section.Children) > 0 {
		bodyEnd = section.Children[0].StartLine - 1
	}
	if bodyEnd < section.StartLine {
		bodyEnd = section.StartLine
	}
	section.Content = strings.TrimRight(strings.Join(lines[section.StartLine-1:bodyEnd], "\n"), "\n ")
}

// headingOf returns the ATX heading level and title of a line, or 0
// for non-heading lines.
func headingOf(line string) (int, string) {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0, ""
	}
	return level, strings.TrimSpace(rest)
}
