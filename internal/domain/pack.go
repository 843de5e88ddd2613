package domain

import "time"

// Pack is a named collection of prompt templates. Generating from a pack
// fans out into one image job per prompt.
type Pack struct {
	ID          string
	Name        string
	Description string
	CoverURL    string
	CreatedAt   time.Time
}

// PackPrompt is a single prompt template within a pack. Seq preserves the
// authored ordering.
type PackPrompt struct {
	ID     string
	PackID string
	Prompt string
	Seq    int
}
