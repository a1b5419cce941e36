package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"library-management/library"
)

const recommendLimit = 10

// Source tells which lookup produced a recommendation.
type Source string

const (
	SourceSubject Source = "subject"
	SourceAuthor  Source = "author"
	SourceWork    Source = "work"
)

// Recommendation is a book suggested for a seed book.
type Recommendation struct {
	Title            string `json:"title"`
	Authors          string `json:"authors"`
	CoverID          int    `json:"cover_id,omitempty"`
	Key              string `json:"key"`
	FirstPublishYear int    `json:"first_publish_year,omitempty"`
	Source           Source `json:"source"`
	Via              string `json:"via"` // the subject, author or title it came from
}

// Recommend suggests books related to seed by its first category, its
// author and, when it has an Open Library key, its related works. The
// three lookups run concurrently. Suggestions are merged in that order,
// duplicate titles are dropped, and so are the seed itself and any title
// already in owned. Recommend fails only when every lookup it ran failed.
func (c *Client) Recommend(ctx context.Context, seed library.Book, owned []library.Book) ([]Recommendation, error) {
	type lookup struct {
		run  func(context.Context) ([]Recommendation, error)
		recs []Recommendation
		err  error
	}
	var lookups []*lookup

	if len(seed.Categories) > 0 {
		subject := seed.Categories[0]
		lookups = append(lookups, &lookup{run: func(ctx context.Context) ([]Recommendation, error) {
			works, err := c.BySubject(ctx, subject, recommendLimit)
			return fromWorks(works, SourceSubject, subject), err
		}})
	}
	if seed.Author != "" {
		lookups = append(lookups, &lookup{run: func(ctx context.Context) ([]Recommendation, error) {
			docs, err := c.SearchAuthor(ctx, seed.Author, recommendLimit)
			return fromDocs(docs, seed.Author), err
		}})
	}
	if seed.OLID != "" {
		lookups = append(lookups, &lookup{run: func(ctx context.Context) ([]Recommendation, error) {
			w, err := c.Work(ctx, seed.OLID)
			if err != nil {
				return nil, err
			}
			key := w.WorkKey()
			if key == "" {
				return nil, nil
			}
			works, err := c.Related(ctx, key)
			return fromWorks(works, SourceWork, seed.Title), err
		}})
	}
	if len(lookups) == 0 {
		return nil, nil
	}

	// Lookups report their own errors so one failure does not cancel the
	// others.
	var g errgroup.Group
	for _, l := range lookups {
		g.Go(func() error {
			l.recs, l.err = l.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []Recommendation
		errs   []error
	)
	for _, l := range lookups {
		if l.err != nil {
			errs = append(errs, l.err)
			c.log.Warn("recommendation lookup failed", zap.Error(l.err))
			continue
		}
		merged = append(merged, l.recs...)
	}
	if len(errs) == len(lookups) {
		return nil, fmt.Errorf("recommend: %w", errors.Join(errs...))
	}
	return filterRecommendations(merged, seed, owned), nil
}

func filterRecommendations(recs []Recommendation, seed library.Book, owned []library.Book) []Recommendation {
	fold := cases.Fold()
	key := func(s string) string { return fold.String(strings.TrimSpace(s)) }

	skip := make(map[string]bool, len(owned)+1)
	skip[key(seed.Title)] = true
	for _, b := range owned {
		skip[key(b.Title)] = true
	}

	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		k := key(r.Title)
		if k == "" || skip[k] {
			continue
		}
		skip[k] = true
		out = append(out, r)
	}
	return out
}

func fromWorks(works []SubjectWork, src Source, via string) []Recommendation {
	out := make([]Recommendation, 0, len(works))
	for _, w := range works {
		out = append(out, Recommendation{
			Title:            w.Title,
			Authors:          joinOr(names(w.Authors), "Unknown"),
			CoverID:          w.CoverID,
			Key:              w.Key,
			FirstPublishYear: w.FirstPublishYear,
			Source:           src,
			Via:              via,
		})
	}
	return out
}

func fromDocs(docs []Doc, author string) []Recommendation {
	out := make([]Recommendation, 0, len(docs))
	for _, d := range docs {
		out = append(out, Recommendation{
			Title:            d.Title,
			Authors:          joinOr(d.AuthorName, "Unknown"),
			CoverID:          d.CoverID,
			Key:              d.Key,
			FirstPublishYear: d.FirstPublishYear,
			Source:           SourceAuthor,
			Via:              author,
		})
	}
	return out
}
