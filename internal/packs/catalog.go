// Package packs exposes the prompt-pack catalog: named prompt collections a
// user can fan out into a batch of generations.
package packs

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"photoai/internal/domain"
)

// Entry is a pack prepared for listing: display title plus its prompts.
type Entry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Prompts     []string `json:"prompts"`
	PromptCount int      `json:"prompt_count"`
}

// Catalog provides read access to packs with display normalization.
type Catalog struct {
	repo  domain.PackRepository
	title cases.Caser
}

func NewCatalog(repo domain.PackRepository) *Catalog {
	return &Catalog{repo: repo, title: cases.Title(language.English)}
}

// List returns all packs with title-cased display names.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	packs, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("packs: list: %w", err)
	}
	entries := make([]Entry, 0, len(packs))
	for _, pack := range packs {
		prompts, err := c.repo.ListPrompts(ctx, pack.ID)
		if err != nil {
			return nil, fmt.Errorf("packs: prompts for %s: %w", pack.ID, err)
		}
		texts := make([]string, len(prompts))
		for i, p := range prompts {
			texts[i] = p.Prompt
		}
		entries = append(entries, Entry{
			ID:          pack.ID,
			Name:        pack.Name,
			Title:       c.DisplayTitle(pack.Name),
			Description: pack.Description,
			CoverURL:    pack.CoverURL,
			Prompts:     texts,
			PromptCount: len(texts),
		})
	}
	return entries, nil
}

// DisplayTitle normalizes a stored pack name for display.
func (c *Catalog) DisplayTitle(name string) string {
	return c.title.String(strings.TrimSpace(strings.ToLower(name)))
}
