package openlibrary

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"library-management/library"
)

// CoverURL returns the medium cover image URL for an Open Library cover id.
func CoverURL(id int) string {
	if id <= 0 {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", id)
}

// Doc is one search.json result.
type Doc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	CoverID          int      `json:"cover_i"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Subject          []string `json:"subject"`
}

const maxImportedSubjects = 5

// ToBook maps the search result to a catalog entry ready for import.
func (d Doc) ToBook() library.Book {
	b := library.Book{
		Title:     d.Title,
		Author:    joinOr(d.AuthorName, "Unknown"),
		Cover:     CoverURL(d.CoverID),
		OLID:      d.Key,
		Status:    library.StatusAvailable,
		ISBN:      first(d.ISBN),
		Publisher: first(d.Publisher),
	}
	if d.FirstPublishYear > 0 {
		b.Year = strconv.Itoa(d.FirstPublishYear)
	}
	subjects := d.Subject
	if len(subjects) > maxImportedSubjects {
		subjects = subjects[:maxImportedSubjects]
	}
	b.Categories = append([]string(nil), subjects...)
	return b
}

// SearchResult is the search.json response.
type SearchResult struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

// Text is a field Open Library sends either as a plain string or as
// {"type": "/type/text", "value": "..."}.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = Text(obj.Value)
	return nil
}

// KeyRef is a {"key": "..."} reference.
type KeyRef struct {
	Key string `json:"key"`
}

// Work is a work or edition record, as returned for a key such as
// /works/OL45804W or /books/OL7353617M.
type Work struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description Text     `json:"description"`
	Subjects    []string `json:"subjects"`
	Covers      []int    `json:"covers"`
	Authors     []struct {
		Author KeyRef `json:"author"`
	} `json:"authors"`
	Works []KeyRef `json:"works"` // set on editions only
}

// WorkKey is the key of the work w belongs to: w itself for a work, the
// first listed work for an edition.
func (w Work) WorkKey() string {
	if len(w.Works) > 0 {
		return w.Works[0].Key
	}
	if strings.HasPrefix(w.Key, "/works/") {
		return w.Key
	}
	return ""
}

// Named is a {"name": "..."} entry.
type Named struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Edition is the jscmd=data view of an edition, as returned by ByISBN.
type Edition struct {
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Authors     []Named `json:"authors"`
	Publishers  []Named `json:"publishers"`
	PublishDate string  `json:"publish_date"`
	Subjects    []Named `json:"subjects"`
	Cover       struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
}

// ToBook maps the edition to a catalog entry ready for import.
func (e Edition) ToBook(isbn string) library.Book {
	b := library.Book{
		Title:  e.Title,
		Author: joinOr(names(e.Authors), "Unknown"),
		ISBN:   isbn,
		Year:   e.PublishDate,
		Cover:  e.Cover.Medium,
		OLID:   e.Key,
		Status: library.StatusAvailable,
	}
	if len(e.Publishers) > 0 {
		b.Publisher = e.Publishers[0].Name
	}
	subjects := names(e.Subjects)
	if len(subjects) > maxImportedSubjects {
		subjects = subjects[:maxImportedSubjects]
	}
	b.Categories = subjects
	return b
}

// Subject is one entry of subjects.json.
type Subject struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	WorkCount int    `json:"work_count"`
}

// SubjectWork is one work listed under a subject, or a related work.
type SubjectWork struct {
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Authors          []Named `json:"authors"`
	CoverID          int     `json:"cover_id"`
	FirstPublishYear int     `json:"first_publish_year"`
}

func names(ns []Named) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Name)
	}
	return out
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func joinOr(s []string, fallback string) string {
	if len(s) == 0 {
		return fallback
	}
	return strings.Join(s, ", ")
}
