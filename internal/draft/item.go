package draft

import "strings"

// Item is one structured content unit proposed by the generation model: a
// quiz question, flashcard, or lesson card depending on the requested kind.
type Item struct {
	Title       string   `json:"title"`
	Prompt      string   `json:"prompt,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Explanation string   `json:"explanation,omitempty"`

	// Unparsed marks an item holding raw model output that survived no
	// parsing stage. Reviewers see it as-is and will normally reject it.
	Unparsed bool `json:"unparsed,omitempty"`
}

// WellFormed reports whether the item carries usable structured content.
func (i Item) WellFormed() bool {
	if i.Unparsed {
		return false
	}
	return strings.TrimSpace(i.Title) != "" || strings.TrimSpace(i.Prompt) != ""
}
