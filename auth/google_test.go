package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/testutil"
	"github.com/BaSui01/webbridge/testutil/fixtures"
	"github.com/BaSui01/webbridge/testutil/mocks"
	"github.com/BaSui01/webbridge/types"
)

func TestButtonSelectors(t *testing.T) {
	next := auth.NextButtonSelector()
	assert.Contains(t, next, `contains(., "Next")`)
	assert.Contains(t, next, `contains(., "次へ")`)
	assert.Contains(t, next, `@jsname="LgbsSe"`)

	cont := auth.ContinueButtonSelector()
	assert.Contains(t, cont, `contains(., "Continue")`)
	assert.Contains(t, cont, `contains(., "Continuar")`)
}

func TestGoogleAuthenticator_Login(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := mocks.NewMockDriver().
		WithCookies(fixtures.SessionCookie()).
		WithEvalResult(`window.location.origin`, "https://myaccount.google.com")

	store := auth.NewSessionStore(t.TempDir(), "claude", zaptest.NewLogger(t))
	ga := auth.NewGoogleAuthenticator("claude", store, zaptest.NewLogger(t))

	state, err := ga.Login(ctx, drv, "user@example.com", "hunter2")
	require.NoError(t, err)
	require.Len(t, state.Cookies, 1)

	// 邮箱和密码都以逐字符方式输入
	assert.Equal(t, []string{"user@example.com"}, drv.FilledValues(`input[type="email"]`))
	assert.Equal(t, []string{"hunter2"}, drv.FilledValues(`input[type="password"]`))

	// 登录完成前等待跳转到账户页
	waits := drv.CallsTo("WaitURL")
	require.Len(t, waits, 1)
	assert.Equal(t, "myaccount.google.com", waits[0].Value)

	// 状态已持久化
	assert.True(t, store.IsValid())
}

func TestGoogleAuthenticator_LoginFailureTakesScreenshot(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := mocks.NewMockDriver().
		WithError("Click", errors.New("element not found"))

	store := auth.NewSessionStore(t.TempDir(), "chatgpt", nil)
	ga := auth.NewGoogleAuthenticator("chatgpt", store, zaptest.NewLogger(t))

	_, err := ga.Login(ctx, drv, "user@example.com", "hunter2")
	require.Error(t, err)
	testutil.AssertErrorCode(t, err, types.ErrAuthentication)

	shots := drv.CallsTo("Screenshot")
	require.Len(t, shots, 1)
	assert.Equal(t, "login_error_chatgpt", shots[0].Value)
	assert.False(t, store.IsValid())
}

func TestCaptureState(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := mocks.NewMockDriver().
		WithCookies(fixtures.SessionCookie()).
		WithEvalResult(`window.location.origin`, "https://claude.ai")

	state, err := auth.CaptureState(ctx, drv)
	require.NoError(t, err)
	require.Len(t, state.Cookies, 1)
	assert.Equal(t, "SID", state.Cookies[0].Name)
}

func TestRestore(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := mocks.NewMockDriver()
	state := fixtures.StorageState()

	require.NoError(t, auth.Restore(ctx, drv, state))

	cookies, err := drv.Cookies(ctx)
	require.NoError(t, err)
	assert.Len(t, cookies, 1)

	scripts := drv.CallsTo("AddInitScript")
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0].Value, "localStorage.setItem")
}
