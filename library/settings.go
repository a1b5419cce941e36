package library

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const maxItemsPerPage = 200

// Settings returns the stored library settings, or the defaults.
func (lm *LibraryManager) Settings(ctx context.Context) (Settings, error) {
	return lm.store.loadSettings(ctx)
}

// UpdateSettings validates and stores new settings.
func (lm *LibraryManager) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	op := string(ActionUpdateSettings)
	if _, err := lm.gate.Authorize(ctx, ActionUpdateSettings, ""); err != nil {
		return Settings{}, err
	}
	s.LibraryName = cleanName(s.LibraryName)
	s.CatalogEndpoint = strings.TrimRight(strings.TrimSpace(s.CatalogEndpoint), "/")
	if s.LibraryName == "" {
		return Settings{}, validationError(op, "library name is required")
	}
	if s.ItemsPerPage < 1 || s.ItemsPerPage > maxItemsPerPage {
		return Settings{}, validationError(op, "items per page must be between 1 and %d", maxItemsPerPage)
	}
	if u, err := url.Parse(s.CatalogEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Settings{}, validationError(op, "catalog endpoint must be an http(s) URL")
	}
	if err := lm.store.saveSettings(ctx, s); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// ResetSettings restores the default settings.
func (lm *LibraryManager) ResetSettings(ctx context.Context) (Settings, error) {
	if _, err := lm.gate.Authorize(ctx, ActionUpdateSettings, ""); err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	if err := lm.store.saveSettings(ctx, s); err != nil {
		return Settings{}, fmt.Errorf("reset settings: %w", err)
	}
	return s, nil
}
