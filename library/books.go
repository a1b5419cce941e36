package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// BookInput holds the descriptive fields of a book. Lending fields are
// managed by Borrow and Return only.
type BookInput struct {
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	ISBN       string   `json:"isbn,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	Year       string   `json:"year,omitempty"`
	Cover      string   `json:"cover,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	OLID       string   `json:"olid,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (in BookInput) clean() BookInput {
	return BookInput{
		Title:      cleanName(in.Title),
		Author:     cleanName(in.Author),
		ISBN:       strings.TrimSpace(in.ISBN),
		Publisher:  cleanName(in.Publisher),
		Year:       strings.TrimSpace(in.Year),
		Cover:      strings.TrimSpace(in.Cover),
		Notes:      strings.TrimSpace(in.Notes),
		OLID:       strings.TrimSpace(in.OLID),
		Categories: cleanCategories(in.Categories),
	}
}

func (in BookInput) validate(op string) error {
	if in.Title == "" || in.Author == "" {
		return validationError(op, "title and author are required")
	}
	return nil
}

func (in BookInput) applyTo(b *Book) {
	b.Title = in.Title
	b.Author = in.Author
	b.ISBN = in.ISBN
	b.Publisher = in.Publisher
	b.Year = in.Year
	b.Cover = in.Cover
	b.Notes = in.Notes
	b.OLID = in.OLID
	b.Categories = in.Categories
}

// InputOf returns the descriptive fields of b.
func InputOf(b Book) BookInput {
	return BookInput{
		Title:      b.Title,
		Author:     b.Author,
		ISBN:       b.ISBN,
		Publisher:  b.Publisher,
		Year:       b.Year,
		Cover:      b.Cover,
		Notes:      b.Notes,
		OLID:       b.OLID,
		Categories: b.Categories,
	}
}

// CreateBook adds an available book to the catalog.
func (lm *LibraryManager) CreateBook(ctx context.Context, in BookInput) (Book, error) {
	op := string(ActionCreateBook)
	if _, err := lm.gate.Authorize(ctx, ActionCreateBook, ""); err != nil {
		return Book{}, err
	}
	in = in.clean()
	if err := in.validate(op); err != nil {
		return Book{}, err
	}

	b := Book{ID: lm.newID(), AddedDate: lm.clock.Now(), Status: StatusAvailable}
	in.applyTo(&b)
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		s.Books = append(s.Books, b)
		return nil
	})
	if err != nil {
		return Book{}, err
	}
	lm.log.Info("book created", zap.String("book_id", b.ID), zap.String("title", b.Title))
	return b, nil
}

// UpdateBook replaces the descriptive fields of a book. Its lending state
// is left as it is.
func (lm *LibraryManager) UpdateBook(ctx context.Context, id string, in BookInput) (Book, error) {
	op := string(ActionEditBook)
	if _, err := lm.gate.Authorize(ctx, ActionEditBook, ""); err != nil {
		return Book{}, err
	}
	in = in.clean()
	if err := in.validate(op); err != nil {
		return Book{}, err
	}

	var out Book
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		b := findBook(s.Books, id)
		if b == nil {
			return notFoundError(op, "book %s not found", id)
		}
		in.applyTo(b)
		out = *b
		return nil
	})
	if err != nil {
		return Book{}, err
	}
	lm.log.Info("book updated", zap.String("book_id", id))
	return out, nil
}

// DeleteBook removes a book, borrowed or not.
func (lm *LibraryManager) DeleteBook(ctx context.Context, id string) error {
	op := string(ActionDeleteBook)
	if _, err := lm.gate.Authorize(ctx, ActionDeleteBook, ""); err != nil {
		return err
	}
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		i := slices.IndexFunc(s.Books, func(b Book) bool { return b.ID == id })
		if i < 0 {
			return notFoundError(op, "book %s not found", id)
		}
		s.Books = slices.Delete(s.Books, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	lm.log.Info("book deleted", zap.String("book_id", id))
	return nil
}

// GetBook returns one book.
func (lm *LibraryManager) GetBook(ctx context.Context, id string) (Book, error) {
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	b := findBook(books, id)
	if b == nil {
		return Book{}, notFoundError("get book", "book %s not found", id)
	}
	return *b, nil
}

// BookFilter narrows ListBooks. Zero fields match everything.
type BookFilter struct {
	Query    string // case-insensitive substring of title, author or ISBN
	Category string // case-insensitive category name
	Status   Status
}

func (f BookFilter) match(b Book) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Category != "" && !slices.ContainsFunc(b.Categories, func(n string) bool { return sameName(n, f.Category) }) {
		return false
	}
	if q := foldKey(f.Query); q != "" {
		if !strings.Contains(foldKey(b.Title), q) &&
			!strings.Contains(foldKey(b.Author), q) &&
			!strings.Contains(foldKey(b.ISBN), q) {
			return false
		}
	}
	return true
}

// ListBooks returns the books matching f, most recently added first.
func (lm *LibraryManager) ListBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if f.match(b) {
			out = append(out, b)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(books []Book) {
	slices.SortStableFunc(books, func(a, b Book) int {
		return b.AddedDate.Compare(a.AddedDate)
	})
}

// ImportBooks adds every book whose title and author are not already in
// the catalog. Imported books get new ids and are available. Rows without a
// title or author are skipped. It returns the number of books added.
func (lm *LibraryManager) ImportBooks(ctx context.Context, books []Book) (int, error) {
	return lm.importCatalog(ctx, books, false)
}

// ReplaceCatalog removes every book and category and imports books in their
// place, as one write. Loans on removed books go with them.
func (lm *LibraryManager) ReplaceCatalog(ctx context.Context, books []Book) (int, error) {
	return lm.importCatalog(ctx, books, true)
}

func (lm *LibraryManager) importCatalog(ctx context.Context, books []Book, replace bool) (int, error) {
	op := string(ActionImportBooks)
	if _, err := lm.gate.Authorize(ctx, ActionImportBooks, ""); err != nil {
		return 0, err
	}

	imported, removed := 0, 0
	err := lm.updateCatalog(ctx, op, func(s *Snapshot) error {
		imported, removed = 0, 0
		if replace {
			removed = len(s.Books)
			s.Books, s.Categories = []Book{}, []Category{}
		}
		seen := make(map[string]bool, len(s.Books)+len(books))
		for _, b := range s.Books {
			seen[titleAuthorKey(b.Title, b.Author)] = true
		}
		now := lm.clock.Now()
		for _, src := range books {
			in := InputOf(src).clean()
			if in.validate(op) != nil {
				continue
			}
			k := titleAuthorKey(in.Title, in.Author)
			if seen[k] {
				continue
			}
			seen[k] = true

			b := Book{ID: lm.newID(), AddedDate: src.AddedDate, Status: StatusAvailable}
			if b.AddedDate.IsZero() {
				b.AddedDate = now
			}
			in.applyTo(&b)
			s.Books = append(s.Books, b)
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if replace {
		lm.log.Info("catalog replaced", zap.Int("removed", removed), zap.Int("imported", imported), zap.Int("offered", len(books)))
	} else {
		lm.log.Info("books imported", zap.Int("imported", imported), zap.Int("offered", len(books)))
	}
	return imported, nil
}

func titleAuthorKey(title, author string) string {
	return foldKey(title) + "\x00" + foldKey(author)
}

// ExportLibrary returns the book and category collections.
func (lm *LibraryManager) ExportLibrary(ctx context.Context) (LibraryData, error) {
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return LibraryData{}, fmt.Errorf("export: %w", err)
	}
	cats, err := lm.store.ListCategories(ctx)
	if err != nil {
		return LibraryData{}, fmt.Errorf("export: %w", err)
	}
	return LibraryData{Books: nonNil(books), Categories: nonNil(cats)}, nil
}
