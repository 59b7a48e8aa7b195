package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/config"
	"github.com/BaSui01/webbridge/types"
)

// Surface describes how one chat service's web UI is driven: where to log
// in, where a fresh chat lives, and the selectors for the input box, the
// response containers, and the completion marker.
//
// Surfaces are pure page knowledge; all state lives in the Session that
// owns the driver.
type Surface struct {
	Provider types.Provider

	LoginURL     string
	HomeURL      string
	HomeFragment string // URL fragment that proves a logged-in page

	InputSelector     string
	ResponseSelector  string
	CompleteSelector  string
	ModelPickerOpener string
	GoogleButton      string
}

// ClaudeSurface returns the page knowledge for claude.ai.
func ClaudeSurface() *Surface {
	return &Surface{
		Provider:          types.ProviderAnthropic,
		LoginURL:          "https://claude.ai/login",
		HomeURL:           "https://claude.ai/chat",
		HomeFragment:      "claude.ai/chat",
		InputSelector:     `textarea[placeholder="Message Claude..."]`,
		ResponseSelector:  `.claude-response`,
		CompleteSelector:  `.response-complete-indicator`,
		ModelPickerOpener: `button[aria-label="Select Model"]`,
		GoogleButton:      `//button[contains(., "Continue with Google")]`,
	}
}

// ChatGPTSurface returns the page knowledge for chat.openai.com.
func ChatGPTSurface() *Surface {
	return &Surface{
		Provider:          types.ProviderOpenAI,
		LoginURL:          "https://chat.openai.com/auth/login",
		HomeURL:           "https://chat.openai.com/",
		HomeFragment:      "chat.openai.com",
		InputSelector:     `textarea[placeholder="Send a message"]`,
		ResponseSelector:  `.markdown`,
		CompleteSelector:  `.response-complete-indicator`,
		ModelPickerOpener: `button[aria-label="Model selector"]`,
		GoogleButton:      `//button[contains(., "Continue with Google")]`,
	}
}

// Login authenticates the driver against the service, either with the
// service's own email/password form or through the Google OAuth popup.
func (s *Surface) Login(ctx context.Context, drv browser.Driver, cfg config.ProviderConfig, logger *zap.Logger) error {
	if err := drv.Navigate(ctx, s.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	switch cfg.AuthMethod {
	case "google":
		logger.Info("starting google login flow", zap.String("provider", string(s.Provider)))
		if err := s.loginGoogle(ctx, drv, logger); err != nil {
			return err
		}
	default:
		logger.Info("starting direct login", zap.String("provider", string(s.Provider)))
		if err := drv.Fill(ctx, `input[type="email"]`, cfg.Email); err != nil {
			return err
		}
		if err := drv.Fill(ctx, `input[type="password"]`, cfg.Password); err != nil {
			return err
		}
		if err := drv.Click(ctx, `button[type="submit"]`); err != nil {
			return err
		}
	}

	if err := drv.WaitURL(ctx, s.HomeFragment); err != nil {
		return fmt.Errorf("login did not reach %s: %w", s.HomeFragment, err)
	}
	logger.Info("logged in", zap.String("provider", string(s.Provider)))
	return nil
}

// loginGoogle drives the account-chooser popup the Google button opens.
func (s *Surface) loginGoogle(ctx context.Context, drv browser.Driver, logger *zap.Logger) error {
	popup, err := drv.WaitPopup(ctx, func(ctx context.Context) error {
		return drv.Click(ctx, s.GoogleButton)
	})
	if err != nil {
		return fmt.Errorf("google sign-in popup did not open: %w", err)
	}
	defer popup.Close()

	// 选择第一个已登录的 Google 账号
	if err := popup.Click(ctx, `div[role="link"]`); err != nil {
		return fmt.Errorf("failed to pick google account: %w", err)
	}

	cont := auth.ContinueButtonSelector()
	if err := popup.WaitVisible(ctx, cont); err != nil {
		return fmt.Errorf("consent screen did not appear: %w", err)
	}
	if err := popup.Click(ctx, cont); err != nil {
		return fmt.Errorf("failed to confirm consent: %w", err)
	}
	logger.Debug("google consent confirmed")
	return nil
}

// OpenChat navigates to an existing conversation.
func (s *Surface) OpenChat(ctx context.Context, drv browser.Driver, chatURL string) error {
	return drv.Navigate(ctx, chatURL)
}

// OpenNewChat navigates to a fresh conversation page.
func (s *Surface) OpenNewChat(ctx context.Context, drv browser.Driver) error {
	return drv.Navigate(ctx, s.HomeURL)
}

// SelectModel opens the model picker and chooses the given model.
func (s *Surface) SelectModel(ctx context.Context, drv browser.Driver, model types.ModelInfo) error {
	if err := drv.Click(ctx, s.ModelPickerOpener); err != nil {
		return fmt.Errorf("failed to open model picker: %w", err)
	}
	if err := drv.WaitVisible(ctx, model.PickerSelector); err != nil {
		return fmt.Errorf("model %s not present in picker: %w", model.ID, err)
	}
	if err := drv.Click(ctx, model.PickerSelector); err != nil {
		return fmt.Errorf("failed to pick model %s: %w", model.ID, err)
	}
	return nil
}

// SubmitTurn types a message, sends it, and waits for a response container
// to appear.
func (s *Surface) SubmitTurn(ctx context.Context, drv browser.Driver, text string) error {
	if err := drv.WaitVisible(ctx, s.InputSelector); err != nil {
		return fmt.Errorf("message input not available: %w", err)
	}
	if err := drv.Fill(ctx, s.InputSelector, text); err != nil {
		return fmt.Errorf("failed to type message: %w", err)
	}
	if err := drv.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := drv.WaitVisible(ctx, s.ResponseSelector); err != nil {
		return fmt.Errorf("no response appeared: %w", err)
	}
	return nil
}

// LatestResponse reads the newest response container's text.
func (s *Surface) LatestResponse(ctx context.Context, drv browser.Driver) (string, error) {
	return drv.LastText(ctx, s.ResponseSelector)
}

// ResponseComplete reports whether the completion marker is present.
func (s *Surface) ResponseComplete(ctx context.Context, drv browser.Driver) (bool, error) {
	return drv.Exists(ctx, s.CompleteSelector)
}

// AwaitTurnComplete blocks until the completion marker shows up or ctx
// expires. Used between replayed turns, where the reply content itself is
// irrelevant but the next turn must not race the current one.
func (s *Surface) AwaitTurnComplete(ctx context.Context, drv browser.Driver) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		done, err := s.ResponseComplete(ctx, drv)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
