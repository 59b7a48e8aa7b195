package bridge

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/BaSui01/webbridge/cache"
	"github.com/BaSui01/webbridge/testutil"
	"github.com/BaSui01/webbridge/testutil/mocks"
	"github.com/BaSui01/webbridge/types"
)

const opusModel = "aipi/anthropic/claude-3-opus"

func newTestManager(t *testing.T, drv *mocks.MockDriver) (*Manager, *cache.SQLStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store, err := cache.NewSQLStore(db, zaptest.NewLogger(t))
	require.NoError(t, err)

	session := NewSession(ClaudeSurface(), drv, directConfig(), nil, zaptest.NewLogger(t))
	manager := NewManager([]*Session{session}, store, zaptest.NewLogger(t))
	manager.extractor.PollInterval = time.Millisecond
	require.NoError(t, manager.Initialize(testutil.TestContext(t)))
	return manager, store
}

func claudeDriver() *mocks.MockDriver {
	surface := ClaudeSurface()
	return mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "the answer").
		WithExists(surface.CompleteSelector, true)
}

func TestManager_InitializeIdempotent(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, _ := newTestManager(t, drv)
	logins := len(drv.CallsTo("Navigate"))

	// 所有会话已就绪时重复 Initialize 是无操作
	require.NoError(t, manager.Initialize(ctx))
	assert.Len(t, drv.CallsTo("Navigate"), logins)
	assert.Equal(t, "ready", manager.States()[types.ProviderAnthropic])
}

func TestManager_CompleteNewChat(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, store := newTestManager(t, drv)

	history := types.History{types.NewUserMessage("what is 2+2?")}
	text, err := manager.Complete(ctx, opusModel, history)
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)

	// 新会话以完整历史的指纹入库
	url, ok, err := store.FindMatching(ctx,
		append(history.Clone(), types.NewUserMessage("next")), opusModel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, url, "claude.ai")

	// 单条历史没有可重放的轮次
	surface := ClaudeSurface()
	assert.Equal(t, []string{"what is 2+2?"}, drv.FilledValues(surface.InputSelector))
}

func TestManager_CompleteCacheHit(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, store := newTestManager(t, drv)

	prior := types.History{
		types.NewUserMessage("what is 2+2?"),
		types.NewAssistantMessage("4"),
	}
	require.NoError(t, store.StoreConversation(ctx, prior, opusModel, "https://claude.ai/chat/cached"))

	next := append(prior.Clone(), types.NewUserMessage("and 3+3?"))
	text, err := manager.Complete(ctx, opusModel, next)
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)

	// 命中时直接回到已有会话，只发送最新一条消息
	surface := ClaudeSurface()
	assert.Equal(t, []string{"and 3+3?"}, drv.FilledValues(surface.InputSelector))

	var navigatedToCached bool
	for _, c := range drv.CallsTo("Navigate") {
		if c.Value == "https://claude.ai/chat/cached" {
			navigatedToCached = true
		}
	}
	assert.True(t, navigatedToCached)

	// 本轮交换追加入库
	messages, err := store.Messages(ctx, cache.Fingerprint(prior, opusModel))
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "and 3+3?", messages[2].Content)
	assert.Equal(t, "the answer", messages[3].Content)
}

func TestManager_ReplaysOnlyUserTurns(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, _ := newTestManager(t, drv)

	history := types.History{
		types.NewUserMessage("first question"),
		types.NewAssistantMessage("first answer"),
		types.NewUserMessage("second question"),
		types.NewAssistantMessage("second answer"),
		types.NewUserMessage("third question"),
	}
	_, err := manager.Complete(ctx, opusModel, history)
	require.NoError(t, err)

	// 仅用户轮次按原始顺序重放，assistant 轮次从不发送
	surface := ClaudeSurface()
	assert.Equal(t,
		[]string{"first question", "second question", "third question"},
		drv.FilledValues(surface.InputSelector))
}

func TestManager_Stream(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "Hel", "Hello", "Hello there").
		WithExistsAfter(surface.CompleteSelector, 4)
	manager, _ := newTestManager(t, drv)

	ch, err := manager.Stream(ctx, opusModel, types.History{types.NewUserMessage("hi")})
	require.NoError(t, err)

	chunks := testutil.CollectStreamChunks(ch)
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.False(t, last.Unconfirmed)
	require.NoError(t, last.Err)

	var content string
	for _, c := range chunks {
		content += c.Content
	}
	assert.Equal(t, "Hello there", content)
}

func TestManager_StreamUnconfirmed(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	// 完成标记永不出现
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "partial reply")
	manager, _ := newTestManager(t, drv)
	manager.extractor.MaxStablePolls = 5

	ch, err := manager.Stream(ctx, opusModel, types.History{types.NewUserMessage("hi")})
	require.NoError(t, err)

	chunks := testutil.CollectStreamChunks(ch)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.True(t, last.Unconfirmed, "quiescence exit must be flagged, not fatal")
}

func TestManager_UnsupportedModel(t *testing.T) {
	ctx := testutil.TestContext(t)
	manager, _ := newTestManager(t, claudeDriver())

	_, err := manager.Complete(ctx, "aipi/anthropic/claude-9000", types.History{types.NewUserMessage("hi")})
	require.Error(t, err)
	testutil.AssertErrorCode(t, err, types.ErrUnsupportedModel)
}

func TestManager_RejectsEmptyHistory(t *testing.T) {
	ctx := testutil.TestContext(t)
	manager, _ := newTestManager(t, claudeDriver())

	_, err := manager.Complete(ctx, opusModel, nil)
	require.Error(t, err)
	testutil.AssertErrorCode(t, err, types.ErrInvalidRequest)
}

func TestManager_RejectsNonUserFinalMessage(t *testing.T) {
	ctx := testutil.TestContext(t)
	manager, _ := newTestManager(t, claudeDriver())

	_, err := manager.Complete(ctx, opusModel, types.History{
		types.NewUserMessage("hi"),
		types.NewAssistantMessage("hello"),
	})
	require.Error(t, err)
	testutil.AssertErrorCode(t, err, types.ErrInvalidRequest)
}

func TestManager_FailureReleasesAndPoisons(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, _ := newTestManager(t, drv)

	// 初始化完成后注入输入框故障
	drv.WithError("Fill", assertAnError())

	_, err := manager.Complete(ctx, opusModel, types.History{types.NewUserMessage("hi")})
	require.Error(t, err)

	states := manager.States()
	assert.Equal(t, "error", states[types.ProviderAnthropic])
}

func TestManager_StatesAndModels(t *testing.T) {
	manager, _ := newTestManager(t, claudeDriver())

	states := manager.States()
	assert.Equal(t, "ready", states[types.ProviderAnthropic])
	assert.NotEmpty(t, manager.Models())
}

func TestManager_ObserverSeesCacheAndReplay(t *testing.T) {
	ctx := testutil.TestContext(t)
	drv := claudeDriver()
	manager, _ := newTestManager(t, drv)

	obs := &recordingObserver{}
	manager.SetObserver(obs)

	history := types.History{
		types.NewUserMessage("a"),
		types.NewAssistantMessage("b"),
		types.NewUserMessage("c"),
	}
	_, err := manager.Complete(ctx, opusModel, history)
	require.NoError(t, err)

	assert.Equal(t, int64(1), obs.lookups.Load())
	assert.Equal(t, int64(0), obs.hits.Load())
	assert.Equal(t, int64(1), obs.replays.Load())
}

type recordingObserver struct {
	lookups, hits, replays, chunks, unconfirmed atomic.Int64
}

func (o *recordingObserver) CacheLookup(_ string, hit bool) {
	o.lookups.Add(1)
	if hit {
		o.hits.Add(1)
	}
}
func (o *recordingObserver) TurnReplayed(string)                { o.replays.Add(1) }
func (o *recordingObserver) StreamChunk(string)                 { o.chunks.Add(1) }
func (o *recordingObserver) StreamUnconfirmed(string)           { o.unconfirmed.Add(1) }
func (o *recordingObserver) SessionStateChanged(string, string) {}
