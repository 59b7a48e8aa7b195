package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/browser"
)

// StorageState is the serialized authentication state of a browser context:
// every cookie plus the localStorage contents of each visited origin. The
// JSON layout matches the de-facto storage-state format, so a state exported
// from another automation tool restores cleanly here and vice versa.
type StorageState struct {
	Cookies []browser.Cookie `json:"cookies"`
	Origins []OriginState    `json:"origins"`
}

// OriginState carries the localStorage entries of a single origin.
type OriginState struct {
	Origin       string      `json:"origin"`
	LocalStorage []StateItem `json:"localStorage"`
}

// StateItem is a single localStorage key/value pair.
type StateItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionStore persists the storage state for one service under
// google_auth_<service>.json, matching the session files users may already
// have from earlier deployments.
type SessionStore struct {
	dir     string
	service string
	logger  *zap.Logger
}

// NewSessionStore creates a store for the given service in dir.
func NewSessionStore(dir, service string, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		dir:     dir,
		service: strings.ToLower(service),
		logger:  logger.With(zap.String("service", service)),
	}
}

// Path returns the session file path.
func (s *SessionStore) Path() string {
	return filepath.Join(s.dir, fmt.Sprintf("google_auth_%s.json", s.service))
}

// IsValid reports whether a usable session file exists. A file that is
// missing, unreadable, or does not carry a cookies key is treated as absent
// rather than as an error, so callers fall through to a fresh login.
func (s *SessionStore) IsValid() bool {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("session file is corrupted, ignoring", zap.String("path", s.Path()))
		return false
	}
	_, ok := raw["cookies"]
	return ok
}

// Load reads the stored state.
func (s *SessionStore) Load() (*StorageState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var state StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.Path(), err)
	}
	return &state, nil
}

// Save writes the state atomically so a crash mid-write never leaves a
// corrupt session file behind.
func (s *SessionStore) Save(state *StorageState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("failed to persist session file: %w", err)
	}
	s.logger.Info("session state saved",
		zap.String("path", s.Path()),
		zap.Int("cookies", len(state.Cookies)),
		zap.Int("origins", len(state.Origins)))
	return nil
}

// Clear removes the session file, forcing a fresh login next time.
func (s *SessionStore) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RestoreScript builds a script that replays the stored localStorage entries
// for whatever stored origin the page lands on. It is registered as an init
// script so the entries are present before the app's own scripts run.
func (state *StorageState) RestoreScript() string {
	if len(state.Origins) == 0 {
		return ""
	}
	payload, err := json.Marshal(state.Origins)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`(() => {
	const origins = %s;
	for (const o of origins) {
		if (window.location.origin !== o.origin) continue;
		for (const item of o.localStorage) {
			try { window.localStorage.setItem(item.name, item.value); } catch (e) {}
		}
	}
})();`, payload)
}
