package library

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MinPasswordLength applies to password changes.
const MinPasswordLength = 6

const invalidCredentials = "invalid username or password"

// Register creates a user account with the user role. It does not log the
// new user in.
func (lm *LibraryManager) Register(ctx context.Context, username, email, password string) (Identity, error) {
	return lm.addUser(ctx, "register", username, email, password, RoleUser)
}

// CreateUser creates an account with the given role on behalf of an admin.
func (lm *LibraryManager) CreateUser(ctx context.Context, username, email, password string, role Role) (Identity, error) {
	if _, err := lm.gate.Authorize(ctx, ActionCreateUser, ""); err != nil {
		return Identity{}, err
	}
	if !role.Valid() {
		return Identity{}, validationError(string(ActionCreateUser), "invalid role %q", role)
	}
	return lm.addUser(ctx, string(ActionCreateUser), username, email, password, role)
}

func (lm *LibraryManager) addUser(ctx context.Context, op, username, email, password string, role Role) (Identity, error) {
	username, email = cleanName(username), cleanName(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return Identity{}, validationError(op, "username, email and password are required")
	}
	digest, err := lm.hasher.Hash(password)
	if err != nil {
		return Identity{}, err
	}

	u := User{
		ID:        lm.newID(),
		Username:  username,
		Email:     email,
		Password:  digest,
		Role:      role,
		CreatedAt: lm.clock.Now(),
	}
	err = lm.store.Update(ctx, op, func(s *Snapshot) error {
		for _, existing := range s.Users {
			if sameName(existing.Username, username) {
				return duplicateError(op, "username %q already exists", username)
			}
			if sameName(existing.Email, email) {
				return duplicateError(op, "email %q already exists", email)
			}
		}
		s.Users = append(s.Users, u)
		return nil
	}, KindUsers)
	if err != nil {
		return Identity{}, err
	}
	lm.log.Info("user created", zap.String("user_id", u.ID), zap.String("username", u.Username), zap.String("role", string(role)))
	return u.Identity(), nil
}

// Login checks credentials and makes the user the session identity. Unknown
// usernames and wrong passwords fail with the same message.
func (lm *LibraryManager) Login(ctx context.Context, username, password string) (Identity, error) {
	const op = "login"
	username = cleanName(username)
	if username == "" || password == "" {
		return Identity{}, validationError(op, "username and password are required")
	}
	users, err := lm.store.ListUsers(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	var found *User
	for i := range users {
		if sameName(users[i].Username, username) {
			found = &users[i]
			break
		}
	}
	if found == nil || !lm.hasher.Verify(found.Password, password) {
		lm.log.Info("login rejected", zap.String("username", username))
		return Identity{}, authError(op, invalidCredentials)
	}

	id := found.Identity()
	if err := lm.session.set(ctx, id); err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	lm.log.Info("logged in", zap.String("user_id", id.ID))
	return id, nil
}

// Logout clears the session. Logging out while logged out is a no-op.
func (lm *LibraryManager) Logout(ctx context.Context) error {
	if err := lm.session.clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// CurrentIdentity returns the session identity, or nil when logged out.
func (lm *LibraryManager) CurrentIdentity(ctx context.Context) (*Identity, error) {
	return lm.session.Current(ctx)
}

// Actor returns the live record of the logged-in user, or an AUTH error
// when nobody is logged in.
func (lm *LibraryManager) Actor(ctx context.Context) (Identity, error) {
	return lm.gate.actor(ctx, "current user")
}

// UpdateEmail changes the email of userID, which must be the acting user.
func (lm *LibraryManager) UpdateEmail(ctx context.Context, userID, email string) (Identity, error) {
	op := string(ActionEditOwnProfile)
	if _, err := lm.gate.Authorize(ctx, ActionEditOwnProfile, userID); err != nil {
		return Identity{}, err
	}
	email = cleanName(email)
	if email == "" {
		return Identity{}, validationError(op, "email is required")
	}

	var updated User
	err := lm.store.Update(ctx, op, func(s *Snapshot) error {
		u := findUser(s.Users, userID)
		if u == nil {
			return notFoundError(op, "user %s not found", userID)
		}
		for _, other := range s.Users {
			if other.ID != userID && sameName(other.Email, email) {
				return duplicateError(op, "email %q already exists", email)
			}
		}
		u.Email = email
		updated = *u
		return nil
	}, KindUsers)
	if err != nil {
		return Identity{}, err
	}
	if err := lm.session.refresh(ctx, updated); err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated.Identity(), nil
}

// ChangePassword replaces the password of userID, which must be the acting
// user, after checking the current one.
func (lm *LibraryManager) ChangePassword(ctx context.Context, userID, current, next string) error {
	op := string(ActionChangeOwnPasswd)
	if _, err := lm.gate.Authorize(ctx, ActionChangeOwnPasswd, userID); err != nil {
		return err
	}
	if len([]rune(next)) < MinPasswordLength {
		return validationError(op, "new password must be at least %d characters long", MinPasswordLength)
	}
	digest, err := lm.hasher.Hash(next)
	if err != nil {
		return err
	}

	return lm.store.Update(ctx, op, func(s *Snapshot) error {
		u := findUser(s.Users, userID)
		if u == nil {
			return notFoundError(op, "user %s not found", userID)
		}
		if !lm.hasher.Verify(u.Password, current) {
			return authError(op, "current password is incorrect")
		}
		u.Password = digest
		return nil
	}, KindUsers)
}

// ChangeRole sets the role of another user.
func (lm *LibraryManager) ChangeRole(ctx context.Context, userID string, role Role) (Identity, error) {
	op := string(ActionChangeRole)
	if _, err := lm.gate.Authorize(ctx, ActionChangeRole, userID); err != nil {
		return Identity{}, err
	}
	if !role.Valid() {
		return Identity{}, validationError(op, "invalid role %q", role)
	}

	var updated User
	err := lm.store.Update(ctx, op, func(s *Snapshot) error {
		u := findUser(s.Users, userID)
		if u == nil {
			return notFoundError(op, "user %s not found", userID)
		}
		u.Role = role
		updated = *u
		return nil
	}, KindUsers)
	if err != nil {
		return Identity{}, err
	}
	if err := lm.session.refresh(ctx, updated); err != nil {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	lm.log.Info("role changed", zap.String("user_id", userID), zap.String("role", string(role)))
	return updated.Identity(), nil
}

// DeleteUser removes another user's account. Books they hold stay borrowed
// in their name.
func (lm *LibraryManager) DeleteUser(ctx context.Context, userID string) error {
	op := string(ActionDeleteUser)
	if _, err := lm.gate.Authorize(ctx, ActionDeleteUser, userID); err != nil {
		return err
	}
	err := lm.store.Update(ctx, op, func(s *Snapshot) error {
		kept := s.Users[:0]
		for _, u := range s.Users {
			if u.ID != userID {
				kept = append(kept, u)
			}
		}
		if len(kept) == len(s.Users) {
			return notFoundError(op, "user %s not found", userID)
		}
		s.Users = kept
		return nil
	}, KindUsers)
	if err != nil {
		return err
	}
	if err := lm.session.clearIf(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	lm.log.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// ListUsers returns every account without password digests.
func (lm *LibraryManager) ListUsers(ctx context.Context) ([]Identity, error) {
	if _, err := lm.gate.Authorize(ctx, ActionListUsers, ""); err != nil {
		return nil, err
	}
	users, err := lm.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ActionListUsers, err)
	}
	out := make([]Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return out, nil
}
