package library

import "context"

// Session is the single active identity of a store. It is persisted under
// the "currentUser" key so it survives between process runs, the way a
// browser keeps its local storage between page loads.
type Session struct {
	store *Store
}

// NewSession returns the session persisted in store.
func NewSession(store *Store) *Session {
	return &Session{store: store}
}

// Current returns the logged-in identity, or nil when logged out.
func (s *Session) Current(ctx context.Context) (*Identity, error) {
	return s.store.loadSession(ctx)
}

func (s *Session) set(ctx context.Context, id Identity) error {
	return s.store.saveSession(ctx, &id)
}

func (s *Session) clear(ctx context.Context) error {
	return s.store.saveSession(ctx, nil)
}

// refresh re-syncs the denormalized copy if u is the logged-in user.
func (s *Session) refresh(ctx context.Context, u User) error {
	cur, err := s.Current(ctx)
	if err != nil || cur == nil || cur.ID != u.ID {
		return err
	}
	return s.set(ctx, u.Identity())
}

// clearIf logs out if userID is the logged-in user.
func (s *Session) clearIf(ctx context.Context, userID string) error {
	cur, err := s.Current(ctx)
	if err != nil || cur == nil || cur.ID != userID {
		return err
	}
	return s.clear(ctx)
}
