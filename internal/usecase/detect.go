package usecase

import (
	"regexp"
	"strings"
)

// Post-turn protocol detectors. Both are pure string parsers with no side
// effects: false positives and negatives are a parser concern, never a
// controller concern. The controller runs the diagram check first and the
// question check only when no diagram was found.

// diagramPattern matches a fenced code block tagged as mermaid.
var diagramPattern = regexp.MustCompile("(?s)```mermaid\\s*\n(.*?)```")

// DetectDiagram scans finalized assistant text for an embedded diagram
// block. On a match it returns the trimmed inner diagram source.
func DetectDiagram(text string) (string, bool) {
	m := diagramPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	source := strings.TrimSpace(m[1])
	if source == "" {
		return "", false
	}
	return source, true
}

// Clarification is the parsed form of a numbered-question block.
type Clarification struct {
	Intro     string
	Questions []string
	Outro     string
}

// numberedLine matches "1. question text" or "1) question text".
var numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

// DetectNumberedQuestions scans finalized assistant text for a clarifying
// question block: a leading intro paragraph, at least two numbered question
// lines, and a trailing outro paragraph. Single numbered lines are treated
// as ordinary lists, not clarification requests.
func DetectNumberedQuestions(text string) (Clarification, bool) {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	firstQ, lastQ := -1, -1
	var questions []string
	for i, line := range lines {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			if firstQ >= 0 && lastQ >= 0 && strings.TrimSpace(line) != "" {
				// Prose after the numbered run ends the block.
				break
			}
			continue
		}
		if firstQ < 0 {
			firstQ = i
		}
		lastQ = i
		questions = append(questions, strings.TrimSpace(m[2]))
	}

	if len(questions) < 2 {
		return Clarification{}, false
	}

	intro := strings.TrimSpace(strings.Join(lines[:firstQ], "\n"))
	outro := ""
	if lastQ+1 < len(lines) {
		outro = strings.TrimSpace(strings.Join(lines[lastQ+1:], "\n"))
	}

	// A question block without any framing prose is most likely a plain
	// list answer, not a request for clarification.
	if intro == "" {
		return Clarification{}, false
	}

	return Clarification{Intro: intro, Questions: questions, Outro: outro}, true
}
