package draft

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lessonforge/lessonforge/internal/common"
)

// Level identifies the cascade stage that produced a result.
type Level int

const (
	LevelStrict Level = iota
	LevelFenced
	LevelRepaired
	LevelFields
	LevelUnparsed
)

func (l Level) String() string {
	switch l {
	case LevelStrict:
		return "strict"
	case LevelFenced:
		return "fenced"
	case LevelRepaired:
		return "repaired"
	case LevelFields:
		return "fields"
	case LevelUnparsed:
		return "unparsed"
	default:
		return "unknown"
	}
}

// Result is the outcome of the repair cascade. It always exists: parse
// problems degrade the result, they never fail it.
type Result struct {
	Items []Item `json:"items"`
	Level Level  `json:"level"`
	Note  string `json:"note,omitempty"`
}

// Degraded reports whether the raw output needed more than fence stripping.
func (r Result) Degraded() bool {
	return r.Level >= LevelRepaired
}

// Repair turns raw model output into structured items by trying each stage
// of the cascade in order and stopping at the first success. The final stage
// is total, so Repair never returns an empty result for non-empty input.
func Repair(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Level: LevelUnparsed, Note: "model returned empty output"}
	}

	if items, ok := parseStrict(trimmed); ok {
		return Result{Items: items, Level: LevelStrict}
	}

	stripped := stripFences(trimmed)
	if stripped != trimmed {
		if items, ok := parseStrict(stripped); ok {
			return Result{Items: items, Level: LevelFenced}
		}
	}

	repaired := lenientRepair(stripped)
	if repaired != stripped {
		if items, ok := parseStrict(repaired); ok {
			return Result{
				Items: items,
				Level: LevelRepaired,
				Note:  "output required lenient JSON repair",
			}
		}
	}

	if items := extractFields(stripped); len(items) > 0 {
		return Result{
			Items: items,
			Level: LevelFields,
			Note:  fmt.Sprintf("assembled %d item(s) by field extraction", len(items)),
		}
	}

	common.Logger().Warn("draft: output resisted all parsing stages", "bytes", len(raw))
	return Result{
		Items: []Item{{Title: "Unparsed model output", Prompt: trimmed, Unparsed: true}},
		Level: LevelUnparsed,
		Note:  "model output carried no parseable structure",
	}
}

// parseStrict accepts either a bare item array or an {"items": [...]}
// envelope.
func parseStrict(text string) ([]Item, bool) {
	var envelope struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Items) > 0 {
		return envelope.Items, true
	}
	var items []Item
	if err := json.Unmarshal([]byte(text), &items); err == nil && len(items) > 0 {
		return items, true
	}
	return nil, false
}

// stripFences removes a fenced code block wrapper and any prose around it.
func stripFences(text string) string {
	if start := strings.Index(text, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
		return strings.TrimSpace(text[start:])
	}
	if start := strings.Index(text, "```"); start != -1 {
		start += 3
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
		return strings.TrimSpace(text[start:])
	}
	// No fence: trim prose before the first bracket and after the last.
	first := strings.IndexAny(text, "[{")
	last := strings.LastIndexAny(text, "]}")
	if first != -1 && last > first {
		return strings.TrimSpace(text[first : last+1])
	}
	return text
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// lenientRepair fixes the malformations models produce most often: stray
// control characters, trailing commas, and unterminated brackets.
func lenientRepair(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	inString := false
	escaped := false
	var stack []rune
	for _, r := range text {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		builder.WriteRune(r)
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == r {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		builder.WriteRune('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		builder.WriteRune(stack[i])
	}
	repaired := trailingCommaRe.ReplaceAllString(builder.String(), "$1")
	return strings.TrimSpace(repaired)
}

var (
	titleRe  = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	promptRe = regexp.MustCompile(`"(?:prompt|question)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	answerRe = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// extractFields pulls each expected field out independently and zips them
// into best-effort items even when the document as a whole never parses.
func extractFields(text string) []Item {
	titles := captureAll(titleRe, text)
	prompts := captureAll(promptRe, text)
	answers := captureAll(answerRe, text)
	count := len(titles)
	if len(prompts) > count {
		count = len(prompts)
	}
	if count == 0 {
		return nil
	}
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		item := Item{}
		if i < len(titles) {
			item.Title = titles[i]
		}
		if i < len(prompts) {
			item.Prompt = prompts[i]
		}
		if i < len(answers) {
			item.Answer = answers[i]
		}
		if item.WellFormed() {
			items = append(items, item)
		}
	}
	return items
}

func captureAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, unescapeJSONString(match[1]))
	}
	return out
}

func unescapeJSONString(s string) string {
	var decoded string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &decoded); err != nil {
		return s
	}
	return decoded
}
