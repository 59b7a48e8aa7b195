package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/config"
	"github.com/BaSui01/webbridge/types"
)

// Session owns one provider's browser page: its driver, its lifecycle
// state, and the exclusivity that keeps concurrent requests from typing
// into the same textarea.
//
// The weighted semaphore (capacity 1) is the per-provider lock. Waiters
// queue in FIFO order and honor context cancellation, so a slow turn delays
// later requests instead of failing them.
type Session struct {
	provider types.Provider
	surface  *Surface
	drv      browser.Driver
	cfg      config.ProviderConfig
	ga       *auth.GoogleAuthenticator

	state   stateMachine
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	model   types.ModelInfo // currently selected model, zero until first select

	logger *zap.Logger
}

// NewSession wires a session; Initialize must run before use.
func NewSession(surface *Surface, drv browser.Driver, cfg config.ProviderConfig, ga *auth.GoogleAuthenticator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpm := cfg.SubmitRPM
	if rpm <= 0 {
		rpm = 20
	}
	return &Session{
		provider: surface.Provider,
		surface:  surface,
		drv:      drv,
		cfg:      cfg,
		ga:       ga,
		sem:      semaphore.NewWeighted(1),
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:   logger.With(zap.String("provider", string(surface.Provider))),
	}
}

// Provider returns the session's provider.
func (s *Session) Provider() types.Provider { return s.provider }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return s.state.Current() }

// SetStateObserver registers a callback for state changes. Must be called
// before Initialize.
func (s *Session) SetStateObserver(fn func(SessionState)) {
	s.state.observer = fn
}

// Initialize brings the session from Uninitialized (or Error) to Ready:
// restore or establish the Google session, then log into the service.
// Idempotent: a session that is already Ready returns nil immediately.
func (s *Session) Initialize(ctx context.Context) error {
	if s.state.Current() == StateReady {
		return nil
	}

	if err := s.state.To(StateInitializing); err != nil {
		return err
	}

	if err := s.initialize(ctx); err != nil {
		s.state.Fail()
		return types.NewError(types.ErrAuthentication,
			fmt.Sprintf("failed to initialize %s session", s.provider)).
			WithCause(err).WithProvider(string(s.provider)).WithOp("initialize")
	}

	if err := s.state.To(StateReady); err != nil {
		return err
	}
	s.logger.Info("session ready")
	return nil
}

func (s *Session) initialize(ctx context.Context) error {
	if err := s.state.To(StateAuthenticating); err != nil {
		return err
	}

	if s.cfg.AuthMethod == "google" {
		if err := s.ensureGoogleSession(ctx); err != nil {
			return err
		}
	}

	return s.surface.Login(ctx, s.drv, s.cfg, s.logger)
}

// ensureGoogleSession restores a persisted Google session onto the driver,
// performing a fresh accounts.google.com login first when no valid session
// file exists.
func (s *Session) ensureGoogleSession(ctx context.Context) error {
	store := s.ga.Store()
	if !store.IsValid() {
		s.logger.Info("no valid google session found, performing login")
		if _, err := s.ga.Login(ctx, s.drv, s.cfg.Email, s.cfg.Password); err != nil {
			return err
		}
	}

	state, err := store.Load()
	if err != nil {
		return err
	}
	return auth.Restore(ctx, s.drv, state)
}

// Acquire takes exclusive use of the session's page and moves it to Busy.
// Blocks while another request holds the page; fails fast when the session
// is in Error.
func (s *Session) Acquire(ctx context.Context) error {
	if st := s.state.Current(); st == StateError {
		return types.NewError(types.ErrNoActiveSession,
			fmt.Sprintf("%s session is in error state and needs re-initialization", s.provider)).
			WithProvider(string(s.provider))
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	// The session may have been poisoned while this caller queued.
	if s.state.Current() == StateError {
		s.sem.Release(1)
		return types.NewError(types.ErrNoActiveSession,
			fmt.Sprintf("%s session is in error state and needs re-initialization", s.provider)).
			WithProvider(string(s.provider))
	}

	if err := s.state.To(StateBusy); err != nil {
		s.sem.Release(1)
		return err
	}
	return nil
}

// Release returns the page. failed poisons the session instead of marking
// it Ready; the page's state is unknown after a mid-turn error.
func (s *Session) Release(failed bool) {
	if failed {
		s.state.Fail()
	} else if err := s.state.To(StateReady); err != nil {
		s.logger.Warn("failed to return session to ready", zap.Error(err))
	}
	s.sem.Release(1)
}

// SelectModel switches the page to the given model. The picker is opened
// every time: model choice is per-conversation in both UIs, so a previous
// selection proves nothing about the page currently loaded. Callers must
// hold the session.
func (s *Session) SelectModel(ctx context.Context, model types.ModelInfo) error {
	if err := s.surface.SelectModel(ctx, s.drv, model); err != nil {
		return types.NewError(types.ErrSelectorNotFound,
			fmt.Sprintf("failed to select model %s", model.ID)).
			WithCause(err).WithProvider(string(s.provider)).WithOp("select_model")
	}
	s.model = model
	s.logger.Info("selected model", zap.String("model", model.ID), zap.String("display_name", model.DisplayName))
	return nil
}

// SubmitTurn rate-limits and sends one message. Callers must hold the
// session.
func (s *Session) SubmitTurn(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.surface.SubmitTurn(ctx, s.drv, text)
}

// Close releases the browser page.
func (s *Session) Close() error {
	return s.drv.Close()
}
