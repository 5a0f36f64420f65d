package task

import (
	"context"
	"net/url"
	"strings"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/storage"
)

// AddClipping saves a text excerpt to the scrapbook.
func (c *Controller) AddClipping(ctx context.Context, ref Reference) (Item, error) {
	ref.Kind = KindClipping
	return c.Ingest(ctx, ref)
}

// AddWebReference saves a link to the scrapbook.
func (c *Controller) AddWebReference(ctx context.Context, ref Reference) (Item, error) {
	ref.Kind = KindWebRef
	return c.Ingest(ctx, ref)
}

// AddNote appends a free-text note.
func (c *Controller) AddNote(ctx context.Context, text string) (Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Item{}, ErrBlankInput
	}

	var added Item
	err := c.mutate(ctx, func(items []Item) ([]Item, error) {
		added = Item{ID: c.newID(), Kind: KindNote, Comment: text, SourceTag: "note", AddedAt: c.clock.Now().UTC()}
		return append(items, added), nil
	}, func() {
		c.emitLocked(ctx, activity.TypeNote, map[string]any{"note": text, "item_id": added.ID})
	})
	if err != nil {
		return Item{}, err
	}
	return added, nil
}

// Ingest validates an external reference and appends it to the scrapbook.
func (c *Controller) Ingest(ctx context.Context, ref Reference) (Item, error) {
	if err := ValidateReference(ref); err != nil {
		return Item{}, err
	}

	var added Item
	err := c.mutate(ctx, func(items []Item) ([]Item, error) {
		added = Item{
			ID:        c.newID(),
			Kind:      ref.Kind,
			Title:     strings.TrimSpace(ref.Title),
			Snippet:   strings.TrimSpace(ref.Snippet),
			Link:      strings.TrimSpace(ref.Link),
			SourceTag: ref.SourceTag,
			AddedAt:   c.clock.Now().UTC(),
		}
		if added.SourceTag == "" {
			added.SourceTag = string(c.session.Assignment.SystemType)
		}
		return append(items, added), nil
	}, func() {
		c.emitLocked(ctx, activity.TypeScrap, added)
	})
	if err != nil {
		return Item{}, err
	}
	return added, nil
}

// UpdateComment replaces the comment of the item at index.
func (c *Controller) UpdateComment(ctx context.Context, index int, text string) (Item, error) {
	var updated Item
	err := c.mutate(ctx, func(items []Item) ([]Item, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemNotFound
		}
		items[index].Comment = text
		updated = items[index]
		return items, nil
	}, nil)
	return updated, err
}

// RemoveItem deletes the item at index.
func (c *Controller) RemoveItem(ctx context.Context, index int) error {
	return c.mutate(ctx, func(items []Item) ([]Item, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemNotFound
		}
		return append(items[:index], items[index+1:]...), nil
	}, nil)
}

// mutate applies fn to a copy of the scrapbook, persists the result and only
// then commits it. A failed persist leaves the scrapbook unchanged. committed
// runs under the lock after a successful commit.
func (c *Controller) mutate(ctx context.Context, fn func([]Item) ([]Item, error), committed func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseActive {
		return ErrInvalidPhase
	}

	next, err := fn(cloneItems(c.scrapbook))
	if err != nil {
		return err
	}
	if c.store != nil {
		if err := storage.SetJSON(ctx, c.store, storage.KeyScrapbook, next); err != nil {
			return err
		}
	}
	c.scrapbook = next
	if committed != nil {
		committed()
	}
	return nil
}

// ValidateReference checks an ingested payload. Clippings need text; web
// references need an absolute http or https link.
func ValidateReference(ref Reference) error {
	switch ref.Kind {
	case KindClipping:
		if strings.TrimSpace(ref.Snippet) == "" && strings.TrimSpace(ref.Title) == "" {
			return ErrInvalidReference
		}
		if ref.Link != "" && !isWebLink(ref.Link) {
			return ErrInvalidReference
		}
	case KindWebRef:
		if !isWebLink(ref.Link) {
			return ErrInvalidReference
		}
	default:
		return ErrInvalidReference
	}
	return nil
}

func isWebLink(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
