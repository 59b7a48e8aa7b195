package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/types"
)

// nextButtonLabels are the localized captions of Google's "Next" button.
// Accounts are served in the account's locale regardless of any Accept-Language
// header, so matching English alone breaks for most non-US accounts.
var nextButtonLabels = []string{
	"Next",       // English
	"Suivant",    // French
	"Próximo",    // Portuguese
	"Siguiente",  // Spanish
	"Weiter",     // German
	"Dalej",      // Polish
	"다음",         // Korean
	"次へ",         // Japanese
	"下一步",        // Chinese Simplified
	"Далее",      // Russian
	"Volgende",   // Dutch
	"Nästa",      // Swedish
	"Avanti",     // Italian
	"İleri",      // Turkish
	"Tiếp theo",  // Vietnamese
	"ถัดไป",      // Thai
	"التالي",     // Arabic
	"הבא",        // Hebrew
	"Berikutnya", // Indonesian
}

// continueButtonLabels are the localized captions of the OAuth consent
// "Continue" button.
var continueButtonLabels = []string{
	"Continue",     // English
	"Continuer",    // French
	"Continuar",    // Spanish/Portuguese
	"Weiter",       // German
	"Dalej",        // Polish
	"계속",           // Korean
	"続行",           // Japanese
	"继续",           // Chinese Simplified
	"Продолжить",   // Russian
	"Doorgaan",     // Dutch
	"Fortsätt",     // Swedish
	"Continua",     // Italian
	"Devam",        // Turkish
	"Tiếp tục",     // Vietnamese
	"ดำเนินการต่อ", // Thai
	"متابعة",       // Arabic
	"המשך",         // Hebrew
	"Lanjutkan",    // Indonesian
}

// buttonSelector builds an XPath union matching a button by any of the given
// captions, with Google's stable jsname attribute as a fallback.
func buttonSelector(labels []string) string {
	parts := make([]string, 0, len(labels)+1)
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf(`//button[contains(., %q)]`, label))
	}
	parts = append(parts, `//*[@jsname="LgbsSe"]`)
	return strings.Join(parts, " | ")
}

// NextButtonSelector matches the "Next" button across account locales.
func NextButtonSelector() string {
	return buttonSelector(nextButtonLabels)
}

// ContinueButtonSelector matches the consent "Continue" button across locales.
func ContinueButtonSelector() string {
	return buttonSelector(continueButtonLabels)
}

// GoogleAuthenticator performs the two-step Google login (email, then
// password) on a driver and persists the resulting storage state.
type GoogleAuthenticator struct {
	service string
	store   *SessionStore
	logger  *zap.Logger
}

// NewGoogleAuthenticator creates an authenticator for the given service.
func NewGoogleAuthenticator(service string, store *SessionStore, logger *zap.Logger) *GoogleAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleAuthenticator{
		service: service,
		store:   store,
		logger:  logger.With(zap.String("component", "google_auth"), zap.String("service", service)),
	}
}

// Store exposes the underlying session store.
func (g *GoogleAuthenticator) Store() *SessionStore { return g.store }

// Login signs into accounts.google.com on drv and saves the storage state.
// On failure it captures a screenshot before returning, since the failure
// mode is usually a changed page that only the pixels explain.
func (g *GoogleAuthenticator) Login(ctx context.Context, drv browser.Driver, email, password string) (*StorageState, error) {
	state, err := g.login(ctx, drv, email, password)
	if err != nil {
		if shotErr := drv.Screenshot(ctx, "login_error_"+strings.ToLower(g.service)); shotErr != nil {
			g.logger.Warn("failed to capture login error screenshot", zap.Error(shotErr))
		}
		return nil, types.NewError(types.ErrAuthentication, fmt.Sprintf("google login failed: %v", err)).
			WithCause(err).WithOp("login")
	}
	if err := g.store.Save(state); err != nil {
		return nil, types.NewError(types.ErrAuthentication, "failed to persist session state").
			WithCause(err).WithOp("login")
	}
	return state, nil
}

func (g *GoogleAuthenticator) login(ctx context.Context, drv browser.Driver, email, password string) (*StorageState, error) {
	g.logger.Info("navigating to login page")
	if err := drv.Navigate(ctx, "https://accounts.google.com"); err != nil {
		return nil, err
	}

	g.logger.Info("entering email")
	if err := drv.WaitVisible(ctx, `input[type="email"]`); err != nil {
		return nil, err
	}
	if err := drv.FillSlow(ctx, `input[type="email"]`, email); err != nil {
		return nil, err
	}
	if err := sleep(ctx, time.Second); err != nil {
		return nil, err
	}

	next := NextButtonSelector()
	g.logger.Info("clicking next after email")
	if err := drv.Click(ctx, next); err != nil {
		return nil, err
	}

	g.logger.Info("entering password")
	if err := drv.WaitVisible(ctx, `input[type="password"]`); err != nil {
		return nil, err
	}
	if err := drv.FillSlow(ctx, `input[type="password"]`, password); err != nil {
		return nil, err
	}
	if err := sleep(ctx, time.Second); err != nil {
		return nil, err
	}

	g.logger.Info("clicking next after password")
	if err := drv.Click(ctx, next); err != nil {
		return nil, err
	}

	g.logger.Info("waiting for login completion")
	if err := drv.WaitURL(ctx, "myaccount.google.com"); err != nil {
		return nil, err
	}
	g.logger.Info("successfully logged in")

	return CaptureState(ctx, drv)
}

// CaptureState exports the driver's cookies and the current origin's
// localStorage into a StorageState.
func CaptureState(ctx context.Context, drv browser.Driver) (*StorageState, error) {
	cookies, err := drv.Cookies(ctx)
	if err != nil {
		return nil, err
	}

	var origin string
	if err := drv.Eval(ctx, `window.location.origin`, &origin); err != nil {
		return nil, err
	}
	var items []StateItem
	err = drv.Eval(ctx, `(() => {
	const out = [];
	for (let i = 0; i < window.localStorage.length; i++) {
		const k = window.localStorage.key(i);
		out.push({name: k, value: window.localStorage.getItem(k)});
	}
	return out;
})()`, &items)
	if err != nil {
		return nil, err
	}

	state := &StorageState{Cookies: cookies}
	if len(items) > 0 {
		state.Origins = []OriginState{{Origin: origin, LocalStorage: items}}
	}
	return state, nil
}

// Restore installs a previously captured state onto drv: cookies directly,
// localStorage through an init script that runs before each document loads.
func Restore(ctx context.Context, drv browser.Driver, state *StorageState) error {
	if err := drv.SetCookies(ctx, state.Cookies); err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}
	if script := state.RestoreScript(); script != "" {
		if err := drv.AddInitScript(ctx, script); err != nil {
			return fmt.Errorf("failed to restore localStorage: %w", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
