package course

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/suPer8Hu/coding-arena/internal/ai"
)

const authorDirective = `You are a senior programming instructor writing material for the Coding Arena learning platform.
Write in Markdown. Use headings, short paragraphs, bullet lists and fenced code blocks tagged with their language.`

func outlineMessages(topic string, lessons int) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: authorDirective},
		{Role: ai.RoleUser, Content: fmt.Sprintf(
			"Plan a course about %q with exactly %d lessons, ordered from fundamentals to advanced practice.\n"+
				"Reply with a numbered list of lesson titles only, one per line, nothing else.", topic, lessons)},
	}
}

func lessonMessages(topic, courseTitle string, position, total int) []ai.Message {
	var ask string
	if courseTitle == "" {
		ask = fmt.Sprintf("Write a complete lesson about %q.", topic)
	} else {
		ask = fmt.Sprintf("Write lesson %d of %d, titled %q, for the course %q.", position, total, topic, courseTitle)
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: authorDirective},
		{Role: ai.RoleUser, Content: ask + "\n" +
			"Start with a level-1 heading carrying the lesson title, then: learning goals, explanation with worked code examples, " +
			"common pitfalls, a short exercise with its solution, and a recap."},
	}
}

var (
	listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*+])\s+(.+?)\s*$`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*#*\s*$`)
)

// ParseOutline extracts lesson titles from a model reply. List items are
// preferred; a reply without any list falls back to its non-empty lines.
func ParseOutline(text string, max int) []string {
	var items, lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			items = append(items, cleanTitle(m[1]))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, cleanTitle(line))
	}
	out := items
	if len(out) == 0 {
		out = lines
	}
	filtered := out[:0]
	for _, t := range out {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	if max > 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`\"'")
	return strings.TrimSpace(strings.TrimSuffix(s, ":"))
}

// TitleFromContent returns the first Markdown heading, or fallback.
func TitleFromContent(content, fallback string) string {
	if m := headingRe.FindStringSubmatch(content); m != nil {
		if t := cleanTitle(m[1]); t != "" {
			return truncate(t, 255)
		}
	}
	return truncate(fallback, 255)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// cut on a rune boundary
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
