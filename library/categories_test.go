package library

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeCountsPure(t *testing.T) {
	books := []Book{
		{Categories: []string{"Sci-Fi", "Classics"}},
		{Categories: []string{"sci-fi", "SCI-FI"}},
		{Categories: []string{"Poetry", " "}},
		{},
	}
	cats := []Category{
		{ID: "c1", Name: "Sci-Fi", Count: 99},
		{ID: "c2", Name: "Empty", Count: 4},
	}
	got := RecomputeCounts(books, cats, seqIDs())
	want := []Category{
		{ID: "c1", Name: "Sci-Fi", Count: 2},
		{ID: "c2", Name: "Empty", Count: 0},
		{ID: "id-1", Name: "Classics", Count: 1},
		{ID: "id-2", Name: "Poetry", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("RecomputeCounts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 99, cats[0].Count, "input must not be modified")
}

func TestRecomputeCountsCollapsesCaseDuplicates(t *testing.T) {
	books := []Book{
		{Categories: []string{"sci-fi"}},
		{Categories: []string{"SCI-FI", "Poetry"}},
	}
	cats := []Category{
		{ID: "c1", Name: "Sci-Fi", Count: 1},
		{ID: "c2", Name: "Poetry"},
		{ID: "c3", Name: "sci-fi", Count: 1},
	}
	got := RecomputeCounts(books, cats, seqIDs())
	want := []Category{
		{ID: "c1", Name: "Sci-Fi", Count: 2},
		{ID: "c2", Name: "Poetry", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("RecomputeCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestAddCategory(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)

	created, err := mgr.AddCategory(ctx, "Poetry")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = mgr.AddCategory(ctx, "  POETRY ")
	require.NoError(t, err)
	assert.False(t, created, "case-insensitive duplicate must be a no-op")

	_, err = mgr.AddCategory(ctx, "   ")
	assert.True(t, IsValidation(err), "got %v", err)

	cats, err := mgr.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Poetry", cats[0].Name)
}

func TestBookMutationsKeepCountsFresh(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)

	a := mustCreateBook(t, mgr, "A", "Sci-Fi", "Classics")
	mustCreateBook(t, mgr, "B", "sci-fi")
	checkInvariants(t, mgr)

	_, err := mgr.UpdateBook(ctx, a.ID, BookInput{Title: "A", Author: "X", Categories: []string{"Classics"}})
	require.NoError(t, err)
	checkInvariants(t, mgr)

	require.NoError(t, mgr.DeleteBook(ctx, a.ID))
	checkInvariants(t, mgr)

	cats, _ := mgr.ListCategories(ctx)
	counts := map[string]int{}
	for _, c := range cats {
		counts[c.Name] = c.Count
	}
	assert.Equal(t, map[string]int{"Classics": 0, "Sci-Fi": 1}, counts)
}

func TestDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)

	a := mustCreateBook(t, mgr, "A", "Sci-Fi", "Classics")
	b := mustCreateBook(t, mgr, "B", "sci-fi")
	cats, _ := mgr.ListCategories(ctx)
	var sciFi Category
	for _, c := range cats {
		if c.Name == "Sci-Fi" {
			sciFi = c
		}
	}
	require.Equal(t, 2, sciFi.Count)

	require.NoError(t, mgr.DeleteCategory(ctx, sciFi.ID))

	got, _ := mgr.GetBook(ctx, a.ID)
	assert.Equal(t, []string{"Classics"}, got.Categories)
	got, _ = mgr.GetBook(ctx, b.ID)
	assert.Empty(t, got.Categories)

	cats, _ = mgr.ListCategories(ctx)
	for _, c := range cats {
		assert.NotEqual(t, sciFi.ID, c.ID)
		assert.NotEqual(t, "sci-fi", foldKey(c.Name))
	}
	checkInvariants(t, mgr)

	assert.True(t, IsNotFound(mgr.DeleteCategory(ctx, sciFi.ID)))
}

func TestRecountRepairsDrift(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	mustCreateBook(t, mgr, "A", "Sci-Fi")

	// Corrupt the stored count the way a skipped recount would.
	require.NoError(t, ReplaceAll(ctx, mgr.store, []Category{{ID: "c", Name: "Sci-Fi", Count: 7}}))

	cats, err := mgr.RecomputeCounts(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, 1, cats[0].Count)

	// Stored records that differ only in case end up as one.
	require.NoError(t, ReplaceAll(ctx, mgr.store, []Category{
		{ID: "c", Name: "Sci-Fi", Count: 1},
		{ID: "d", Name: "SCI-FI", Count: 0},
	}))
	cats, err = mgr.RecomputeCounts(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "c", cats[0].ID)
	assert.Equal(t, 1, cats[0].Count)
	checkInvariants(t, mgr)
}

func TestListCategoriesSorted(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	for _, n := range []string{"poetry", "Drama", "classics"} {
		_, err := mgr.AddCategory(ctx, n)
		require.NoError(t, err)
	}
	cats, err := mgr.ListCategories(ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range cats {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"classics", "Drama", "poetry"}, names)
}
