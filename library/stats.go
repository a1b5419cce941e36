package library

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// MonthCount is the number of books added in one calendar month.
type MonthCount struct {
	Month time.Time `json:"month"` // first instant of the month, UTC
	Count int       `json:"count"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	TotalBooks      int          `json:"totalBooks"`
	TotalUsers      int          `json:"totalUsers"`
	TotalCategories int          `json:"totalCategories"`
	Admins          int          `json:"admins"`
	Borrowed        int          `json:"borrowed"`
	Overdue         int          `json:"overdue"`
	UsersByRole     map[Role]int `json:"usersByRole"`
	TopCategories   []Category   `json:"topCategories"`
	AddedPerMonth   []MonthCount `json:"addedPerMonth"`
}

const (
	topCategories = 5
	statMonths    = 6
	recentBooks   = 5
)

// AdminStatistics summarizes the whole library.
func (lm *LibraryManager) AdminStatistics(ctx context.Context) (AdminStats, error) {
	op := string(ActionViewStatistics)
	if _, err := lm.gate.Authorize(ctx, ActionViewStatistics, ""); err != nil {
		return AdminStats{}, err
	}
	users, err := lm.store.ListUsers(ctx)
	if err != nil {
		return AdminStats{}, fmt.Errorf("%s: %w", op, err)
	}
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return AdminStats{}, fmt.Errorf("%s: %w", op, err)
	}
	cats, err := lm.store.ListCategories(ctx)
	if err != nil {
		return AdminStats{}, fmt.Errorf("%s: %w", op, err)
	}

	now := lm.clock.Now()
	st := AdminStats{
		TotalBooks:      len(books),
		TotalUsers:      len(users),
		TotalCategories: len(cats),
		UsersByRole:     map[Role]int{RoleUser: 0, RoleAdmin: 0},
		TopCategories:   TopCategories(cats, topCategories),
		AddedPerMonth:   AddedPerMonth(books, now, statMonths),
	}
	for _, u := range users {
		st.UsersByRole[u.Role]++
	}
	st.Admins = st.UsersByRole[RoleAdmin]
	for _, b := range books {
		switch b.LoanState(now, lm.dueSoon) {
		case LoanNone:
		case LoanOverdue:
			st.Borrowed++
			st.Overdue++
		default:
			st.Borrowed++
		}
	}
	return st, nil
}

// TopCategories returns the n categories with the highest counts, highest
// first. Categories with no books are left out.
func TopCategories(cats []Category, n int) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Category) int { return b.Count - a.Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// AddedPerMonth counts books by the month they were added, for the n
// calendar months ending with the month of now, oldest first.
func AddedPerMonth(books []Book, now time.Time, n int) []MonthCount {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthCount, n)
	for i := range out {
		out[i].Month = first.AddDate(0, i-n+1, 0)
	}
	for _, b := range books {
		added := b.AddedDate.UTC()
		for i := range out {
			if added.Year() == out[i].Month.Year() && added.Month() == out[i].Month.Month() {
				out[i].Count++
				break
			}
		}
	}
	return out
}

// MemberStats is the member dashboard summary.
type MemberStats struct {
	TotalBooks      int    `json:"totalBooks"`
	TotalCategories int    `json:"totalCategories"`
	RecentBooks     []Book `json:"recentBooks"`
	Loans           []Loan `json:"loans"`
}

// MemberSummary summarizes the catalog and the acting user's loans.
func (lm *LibraryManager) MemberSummary(ctx context.Context) (MemberStats, error) {
	loans, err := lm.BorrowedBooks(ctx)
	if err != nil {
		return MemberStats{}, err
	}
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return MemberStats{}, fmt.Errorf("member summary: %w", err)
	}

	distinct := make(map[string]bool)
	for _, b := range books {
		for _, n := range b.Categories {
			distinct[foldKey(n)] = true
		}
	}
	total := len(books)
	sortNewestFirst(books)
	if len(books) > recentBooks {
		books = books[:recentBooks]
	}
	return MemberStats{
		TotalBooks:      total,
		TotalCategories: len(distinct),
		RecentBooks:     nonNil(books),
		Loans:           nonNil(loans),
	}, nil
}
