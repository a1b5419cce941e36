package library

import (
	"context"
	"fmt"
)

// Action is a guarded operation. Its string form doubles as the Op of the
// errors it produces.
type Action string

const (
	ActionCreateBook      Action = "create book"
	ActionEditBook        Action = "edit book"
	ActionDeleteBook      Action = "delete book"
	ActionImportBooks     Action = "import books"
	ActionCreateCategory  Action = "create category"
	ActionDeleteCategory  Action = "delete category"
	ActionRecountCategory Action = "recount categories"
	ActionCreateUser      Action = "create user"
	ActionListUsers       Action = "list users"
	ActionChangeRole      Action = "change role"
	ActionDeleteUser      Action = "delete user"
	ActionViewStatistics  Action = "view statistics"
	ActionUpdateSettings  Action = "update settings"
	ActionBorrow          Action = "borrow"
	ActionReturn          Action = "return"
	ActionViewOwnLoans    Action = "view loans"
	ActionEditOwnProfile  Action = "edit profile"
	ActionChangeOwnPasswd Action = "change password"
)

type target int

const (
	anyTarget target = iota
	selfOnly         // target must be the actor
	othersOnly       // target must not be the actor
)

type rule struct {
	role   Role // "" means any authenticated identity
	target target
}

// rules is the authorization table. No other code decides who may do what.
var rules = map[Action]rule{
	ActionCreateBook:      {role: RoleAdmin},
	ActionEditBook:        {role: RoleAdmin},
	ActionDeleteBook:      {role: RoleAdmin},
	ActionImportBooks:     {role: RoleAdmin},
	ActionCreateCategory:  {role: RoleAdmin},
	ActionDeleteCategory:  {role: RoleAdmin},
	ActionRecountCategory: {},
	ActionCreateUser:      {role: RoleAdmin},
	ActionListUsers:       {role: RoleAdmin},
	ActionChangeRole:      {role: RoleAdmin, target: othersOnly},
	ActionDeleteUser:      {role: RoleAdmin, target: othersOnly},
	ActionViewStatistics:  {role: RoleAdmin},
	ActionUpdateSettings:  {role: RoleAdmin},
	ActionBorrow:          {},
	ActionReturn:          {},
	ActionViewOwnLoans:    {},
	ActionEditOwnProfile:  {target: selfOnly},
	ActionChangeOwnPasswd: {target: selfOnly},
}

// HasRole reports whether id holds role.
func HasRole(id Identity, role Role) bool { return id.Role == role }

// Gate answers who is acting and whether they may.
type Gate struct {
	session *Session
	store   *Store
}

// NewGate returns a gate over session, resolving live user records from
// store.
func NewGate(session *Session, store *Store) *Gate {
	return &Gate{session: session, store: store}
}

// Authorize resolves the acting identity and checks it against the rule for
// action. targetUserID is the account the action is aimed at, or "" when the
// action has no account target.
//
// The session copy is only a pointer: the role is read from the live user
// record, and a session whose user no longer exists is cleared.
func (g *Gate) Authorize(ctx context.Context, action Action, targetUserID string) (Identity, error) {
	op := string(action)
	r, ok := rules[action]
	if !ok {
		return Identity{}, fmt.Errorf("authorize: no rule for action %q", action)
	}

	id, err := g.actor(ctx, op)
	if err != nil {
		return Identity{}, err
	}

	if r.role != "" && !HasRole(id, r.role) {
		return Identity{}, authError(op, "only %ss may %s", r.role, action)
	}
	switch r.target {
	case selfOnly:
		if targetUserID != id.ID {
			return Identity{}, authError(op, "only allowed on your own account")
		}
	case othersOnly:
		if targetUserID == id.ID {
			return Identity{}, authError(op, "not allowed on your own account")
		}
	}
	return id, nil
}

// actor returns the live identity of the session user.
func (g *Gate) actor(ctx context.Context, op string) (Identity, error) {
	cur, err := g.session.Current(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	if cur == nil {
		return Identity{}, authError(op, "you must be logged in")
	}

	users, err := g.store.ListUsers(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	live := findUser(users, cur.ID)
	if live == nil {
		if err := g.session.clear(ctx); err != nil {
			return Identity{}, fmt.Errorf("%s: %w", op, err)
		}
		return Identity{}, authError(op, "session user no longer exists")
	}
	return live.Identity(), nil
}

func findUser(users []User, id string) *User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}
