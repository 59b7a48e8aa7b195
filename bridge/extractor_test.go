package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/webbridge/testutil"
	"github.com/BaSui01/webbridge/testutil/mocks"
	"github.com/BaSui01/webbridge/types"
)

func newTestExtractor(t *testing.T) *Extractor {
	e := NewExtractor(zaptest.NewLogger(t))
	e.PollInterval = time.Millisecond
	return e
}

func TestExtractor_EmitsSuffixIncrements(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "Hel", "Hello", "Hello there").
		WithExistsAfter(surface.CompleteSelector, 4)

	var chunks []types.StreamChunk
	final, unconfirmed, err := newTestExtractor(t).Run(ctx, drv, surface, func(c types.StreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.False(t, unconfirmed)
	assert.Equal(t, "Hello there", final)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.Equal(t, " there", chunks[2].Content)

	// 增量拼接必须精确还原完整回复
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Content)
	}
	assert.Equal(t, final, joined.String())
}

func TestExtractor_NoEmptyIncrements(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	// 文本在多次轮询间保持不变
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "stable", "stable", "stable").
		WithExistsAfter(surface.CompleteSelector, 3)

	var chunks []types.StreamChunk
	final, _, err := newTestExtractor(t).Run(ctx, drv, surface, func(c types.StreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, "stable", final)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Content)
}

func TestExtractor_QuiescenceFallback(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ChatGPTSurface()
	// 完成标记永不出现
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "partial", "partial answer")

	e := newTestExtractor(t)
	e.MaxStablePolls = 5

	final, unconfirmed, err := e.Run(ctx, drv, surface, nil)
	require.NoError(t, err)
	assert.True(t, unconfirmed, "missing marker must be reported, not fatal")
	assert.Equal(t, "partial answer", final)
}

func TestExtractor_SkipsNonMonotonicSamples(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	// 第二个采样不是第一个的延续（容器瞬时重绘）
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "Hello", "Hel!", "Hello world").
		WithExistsAfter(surface.CompleteSelector, 4)

	var chunks []types.StreamChunk
	final, _, err := newTestExtractor(t).Run(ctx, drv, surface, func(c types.StreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", final)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello", chunks[0].Content)
	assert.Equal(t, " world", chunks[1].Content)
}

func TestExtractor_NilEmitCollects(t *testing.T) {
	ctx := testutil.TestContext(t)
	surface := ClaudeSurface()
	drv := mocks.NewMockDriver().
		WithText(surface.ResponseSelector, "full reply").
		WithExistsAfter(surface.CompleteSelector, 1)

	final, unconfirmed, err := newTestExtractor(t).Run(ctx, drv, surface, nil)
	require.NoError(t, err)
	assert.False(t, unconfirmed)
	assert.Equal(t, "full reply", final)
}
