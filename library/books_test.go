package library

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBook(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)
	loginAdmin(t, mgr)

	got, err := mgr.CreateBook(ctx, BookInput{
		Title:      "  Dune ",
		Author:     "Frank Herbert",
		ISBN:       " 9780441013593 ",
		Categories: []string{"Sci-Fi", "sci-fi", "", "Classics"},
	})
	require.NoError(t, err)
	want := Book{
		Title:      "Dune",
		Author:     "Frank Herbert",
		ISBN:       "9780441013593",
		Categories: []string{"Sci-Fi", "Classics"},
		AddedDate:  clock.Now(),
		Status:     StatusAvailable,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Book{}, "ID")); diff != "" {
		t.Fatalf("created book mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, got.ID)

	_, err = mgr.CreateBook(ctx, BookInput{Title: "No author"})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestUpdateBookKeepsLendingState(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "Old")
	borrowed, err := mgr.Borrow(ctx, b.ID)
	require.NoError(t, err)

	got, err := mgr.UpdateBook(ctx, b.ID, BookInput{Title: "New", Author: "Someone", Notes: "signed"})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "signed", got.Notes)
	assert.Equal(t, StatusBorrowed, got.Status)
	assert.Equal(t, borrowed.BorrowedBy, got.BorrowedBy)
	assert.Equal(t, borrowed.DueDate, got.DueDate)
	assert.Equal(t, b.AddedDate, got.AddedDate)

	_, err = mgr.UpdateBook(ctx, "missing", BookInput{Title: "T", Author: "A"})
	assert.True(t, IsNotFound(err), "got %v", err)
	checkInvariants(t, mgr)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "Gone")

	require.NoError(t, mgr.DeleteBook(ctx, b.ID))
	_, err := mgr.GetBook(ctx, b.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(mgr.DeleteBook(ctx, b.ID)))
}

func TestListBooksFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)
	loginAdmin(t, mgr)

	dune := mustCreateBook(t, mgr, "Dune", "Sci-Fi")
	clock.Advance(time.Hour)
	emma := mustCreateBook(t, mgr, "Emma", "Classics")
	clock.Advance(time.Hour)
	hyperion := mustCreateBook(t, mgr, "Hyperion", "sci-fi")

	ids := func(bs []Book) []string {
		out := []string{}
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}

	all, err := mgr.ListBooks(ctx, BookFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{hyperion.ID, emma.ID, dune.ID}, ids(all))

	sf, err := mgr.ListBooks(ctx, BookFilter{Category: "SCI-FI"})
	require.NoError(t, err)
	assert.Equal(t, []string{hyperion.ID, dune.ID}, ids(sf))

	q, err := mgr.ListBooks(ctx, BookFilter{Query: "author of em"})
	require.NoError(t, err)
	assert.Equal(t, []string{emma.ID}, ids(q))

	_, err = mgr.Borrow(ctx, dune.ID)
	require.NoError(t, err)
	avail, err := mgr.ListBooks(ctx, BookFilter{Status: StatusAvailable})
	require.NoError(t, err)
	assert.Equal(t, []string{hyperion.ID, emma.ID}, ids(avail))
}

func TestImportBooksDedupes(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)
	loginAdmin(t, mgr)
	mustCreateBook(t, mgr, "Dune")

	by := "someone"
	due := clock.Now()
	n, err := mgr.ImportBooks(ctx, []Book{
		{Title: "dune", Author: "author of dune"},
		{Title: "Emma", Author: "Jane Austen", Categories: []string{"Classics"}, Status: StatusBorrowed, BorrowedBy: &by, DueDate: &due},
		{Title: "Emma", Author: "Jane Austen"},
		{Title: "", Author: "Nobody"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	books, _ := mgr.ListBooks(ctx, BookFilter{Query: "emma"})
	require.Len(t, books, 1)
	assert.Equal(t, StatusAvailable, books[0].Status)
	assert.Nil(t, books[0].BorrowedBy)
	assert.Nil(t, books[0].DueDate)
	checkInvariants(t, mgr)

	cats, _ := mgr.ListCategories(ctx)
	require.Len(t, cats, 1)
	assert.Equal(t, "Classics", cats[0].Name)
	assert.Equal(t, 1, cats[0].Count)
}

func TestReplaceCatalog(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	dune := mustCreateBook(t, mgr, "Dune", "Sci-Fi")
	_, err := mgr.Borrow(ctx, dune.ID)
	require.NoError(t, err)

	n, err := mgr.ReplaceCatalog(ctx, []Book{
		{Title: "Emma", Author: "Jane Austen", Categories: []string{"Classics"}},
		{Title: "emma", Author: "jane austen"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	books, err := mgr.ListBooks(ctx, BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)

	cats, err := mgr.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Classics", cats[0].Name)
	assert.Equal(t, 1, cats[0].Count)
	checkInvariants(t, mgr)
}

func TestReplaceCatalogRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	mustCreateBook(t, mgr, "Dune", "Sci-Fi")
	require.NoError(t, mgr.Logout(ctx))

	_, err := mgr.ReplaceCatalog(ctx, nil)
	assert.True(t, IsAuth(err), "logged out: got %v", err)

	registerAndLogin(t, mgr, "alice")
	_, err = mgr.ReplaceCatalog(ctx, nil)
	assert.True(t, IsAuth(err), "member: got %v", err)

	data, err := mgr.ExportLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, data.Books, 1)
	require.Len(t, data.Categories, 1)
	assert.Equal(t, 1, data.Categories[0].Count)
}

func TestExportLibrary(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	empty, err := mgr.ExportLibrary(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty.Books)
	assert.NotNil(t, empty.Categories)

	loginAdmin(t, mgr)
	mustCreateBook(t, mgr, "Dune", "Sci-Fi")
	data, err := mgr.ExportLibrary(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Books, 1)
	assert.Len(t, data.Categories, 1)
}
