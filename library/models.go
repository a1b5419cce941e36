package library

import "time"

// Role is the authorization level of a user. Every user has exactly one.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Status is the lending state of a book.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBorrowed  Status = "borrowed"
	// StatusReserved is part of the stored vocabulary but no operation moves
	// a book into or out of it.
	StatusReserved Status = "reserved"
)

// User is a registered account as persisted under the "users" key.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"` // digest, never the plain password
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity returns the user without its password digest.
func (u User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Identity is a User stripped of its password digest. The session holds one
// and read operations hand these out instead of Users.
type Identity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Book is a catalog entry as persisted under the "books" key.
type Book struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	ISBN       string     `json:"isbn,omitempty"`
	Publisher  string     `json:"publisher,omitempty"`
	Year       string     `json:"year,omitempty"`
	Cover      string     `json:"cover,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	OLID       string     `json:"olid,omitempty"` // Open Library key, e.g. /works/OL45804W
	Categories []string   `json:"categories"`
	AddedDate  time.Time  `json:"addedDate"`
	Status     Status     `json:"status"`
	BorrowedBy *string    `json:"borrowedBy"`
	DueDate    *time.Time `json:"dueDate"`
}

// Category is a named tag with a denormalized count of the books carrying it.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Settings are the library-wide preferences persisted under
// "librarySettings".
type Settings struct {
	LibraryName     string `json:"libraryName"`
	ItemsPerPage    int    `json:"itemsPerPage"`
	CatalogEndpoint string `json:"catalogEndpoint"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		LibraryName:     "Library Manager",
		ItemsPerPage:    20,
		CatalogEndpoint: "https://openlibrary.org",
	}
}

// LibraryData is the export format: the book and category collections.
type LibraryData struct {
	Books      []Book     `json:"books"`
	Categories []Category `json:"categories"`
}
