package openlibrary

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management/library"
)

func titles(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func TestRecommendMergesAndFilters(t *testing.T) {
	c := fakeCatalog(t, map[string]any{
		"/subjects/science_fiction.json": map[string]any{"works": []map[string]any{
			{"key": "/works/A", "title": "Foundation", "authors": []map[string]string{{"name": "Isaac Asimov"}}},
			{"key": "/works/B", "title": "Dune"},
			{"key": "/works/C", "title": "Hyperion"},
		}},
		"/search.json": map[string]any{"docs": []map[string]any{
			{"key": "/works/D", "title": "Children of Dune", "author_name": []string{"Frank Herbert"}},
			{"key": "/works/E", "title": "FOUNDATION"},
		}},
		"/works/OL1W.json":         map[string]any{"key": "/works/OL1W"},
		"/works/OL1W/related.json": map[string]any{"works": []map[string]any{{"key": "/works/F", "title": "Dune Messiah"}}},
	})
	seed := library.Book{Title: "Dune", Author: "Frank Herbert", OLID: "/works/OL1W", Categories: []string{"Science Fiction"}}
	owned := []library.Book{seed, {Title: "hyperion"}}

	recs, err := c.Recommend(context.Background(), seed, owned)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foundation", "Children of Dune", "Dune Messiah"}, titles(recs))
	assert.Equal(t, SourceSubject, recs[0].Source)
	assert.Equal(t, "Isaac Asimov", recs[0].Authors)
	assert.Equal(t, SourceAuthor, recs[1].Source)
	assert.Equal(t, SourceWork, recs[2].Source)
}

func TestRecommendToleratesPartialFailure(t *testing.T) {
	c := fakeCatalog(t, map[string]any{
		"/subjects/poetry.json": http.StatusInternalServerError,
		"/search.json":          map[string]any{"docs": []map[string]any{{"key": "/works/X", "title": "Ariel"}}},
	})
	seed := library.Book{Title: "Collected Poems", Author: "Sylvia Plath", Categories: []string{"Poetry"}}

	recs, err := c.Recommend(context.Background(), seed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ariel"}, titles(recs))
}

func TestRecommendFailsWhenEveryLookupFails(t *testing.T) {
	c := fakeCatalog(t, map[string]any{})
	seed := library.Book{Title: "T", Author: "A", Categories: []string{"x"}}

	_, err := c.Recommend(context.Background(), seed, nil)
	assert.Error(t, err)
}

func TestRecommendWithNothingToGoOn(t *testing.T) {
	c := fakeCatalog(t, map[string]any{})
	recs, err := c.Recommend(context.Background(), library.Book{Title: "Untitled"}, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
