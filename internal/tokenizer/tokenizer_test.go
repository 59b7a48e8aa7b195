package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator("", zaptest.NewLogger(t))

	assert.Equal(t, 0, e.Count(""))

	// tiktoken 可用时按编码计数，不可用时退化为空白分词，
	// 两种情况下非空文本的计数都必须为正
	n := e.Count("hello world, this is a token estimate")
	assert.Greater(t, n, 0)

	// 更长的文本计数不会更少
	longer := e.Count("hello world, this is a token estimate with quite a few extra words appended")
	assert.GreaterOrEqual(t, longer, n)
}

func TestEstimator_Name(t *testing.T) {
	e := NewEstimator("cl100k_base", zaptest.NewLogger(t))
	assert.Equal(t, "tiktoken[cl100k_base]", e.Name())
}

func TestEstimator_UnknownEncodingFallsBack(t *testing.T) {
	e := NewEstimator("no_such_encoding", zaptest.NewLogger(t))

	// 编码表加载失败时退化为空白分词
	assert.Equal(t, 3, e.Count("one two three"))
}
