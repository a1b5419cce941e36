package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// RecomputeCounts returns cats with every count recomputed from books. A
// category name no record matches gets a new record with an id from newID.
// Matching is case-insensitive and a book counts once per category. Records
// whose names differ only in case collapse into the first of them.
func RecomputeCounts(books []Book, cats []Category, newID func() string) []Category {
	out := make([]Category, 0, len(cats))
	index := make(map[string]int, len(cats))
	for _, c := range cats {
		k := foldKey(c.Name)
		if _, dup := index[k]; dup {
			continue
		}
		c.Count = 0
		index[k] = len(out)
		out = append(out, c)
	}

	for _, b := range books {
		seen := make(map[string]bool, len(b.Categories))
		for _, name := range b.Categories {
			name = cleanName(name)
			if name == "" {
				continue
			}
			k := foldKey(name)
			if seen[k] {
				continue
			}
			seen[k] = true

			i, ok := index[k]
			if !ok {
				out = append(out, Category{ID: newID(), Name: name})
				i = len(out) - 1
				index[k] = i
			}
			out[i].Count++
		}
	}
	return out
}

// updateCatalog runs fn over books and categories and recomputes the counts
// in the same write.
func (lm *LibraryManager) updateCatalog(ctx context.Context, op string, fn func(*Snapshot) error) error {
	return lm.store.Update(ctx, op, func(s *Snapshot) error {
		if err := fn(s); err != nil {
			return err
		}
		s.Categories = RecomputeCounts(s.Books, s.Categories, lm.newID)
		return nil
	}, KindBooks, KindCategories)
}

// RecomputeCounts recounts every category from the stored books.
func (lm *LibraryManager) RecomputeCounts(ctx context.Context) ([]Category, error) {
	if _, err := lm.gate.Authorize(ctx, ActionRecountCategory, ""); err != nil {
		return nil, err
	}
	err := lm.updateCatalog(ctx, string(ActionRecountCategory), func(*Snapshot) error { return nil })
	if err != nil {
		return nil, err
	}
	return lm.ListCategories(ctx)
}

// AddCategory creates a category. It returns false, and changes nothing,
// when a category with the same name in any case already exists.
func (lm *LibraryManager) AddCategory(ctx context.Context, name string) (bool, error) {
	op := string(ActionCreateCategory)
	if _, err := lm.gate.Authorize(ctx, ActionCreateCategory, ""); err != nil {
		return false, err
	}
	name = cleanName(name)
	if name == "" {
		return false, validationError(op, "category name is required")
	}

	created := false
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		for _, c := range s.Categories {
			if sameName(c.Name, name) {
				return nil
			}
		}
		s.Categories = append(s.Categories, Category{ID: lm.newID(), Name: name})
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		lm.log.Info("category created", zap.String("name", name))
	}
	return created, nil
}

// DeleteCategory removes a category and strips its name from every book.
func (lm *LibraryManager) DeleteCategory(ctx context.Context, id string) error {
	op := string(ActionDeleteCategory)
	if _, err := lm.gate.Authorize(ctx, ActionDeleteCategory, ""); err != nil {
		return err
	}

	var name string
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		i := slices.IndexFunc(s.Categories, func(c Category) bool { return c.ID == id })
		if i < 0 {
			return notFoundError(op, "category %s not found", id)
		}
		name = s.Categories[i].Name
		s.Categories = slices.Delete(s.Categories, i, i+1)
		for j := range s.Books {
			s.Books[j].Categories = slices.DeleteFunc(s.Books[j].Categories, func(n string) bool {
				return sameName(n, name)
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	lm.log.Info("category deleted", zap.String("category_id", id), zap.String("name", name))
	return nil
}

// ListCategories returns every category sorted by name.
func (lm *LibraryManager) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := lm.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	slices.SortFunc(cats, func(a, b Category) int {
		return strings.Compare(foldKey(a.Name), foldKey(b.Name))
	})
	return cats, nil
}
