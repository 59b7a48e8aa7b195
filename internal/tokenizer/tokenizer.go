// Package tokenizer provides token estimation for usage accounting.
// This package is internal and should not be imported by external projects.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// defaultEncoding 覆盖两侧 Web UI 背后的模型家族
const defaultEncoding = "cl100k_base"

// Estimator 基于 tiktoken 的 token 估算器
//
// 浏览器补全拿不到上游的真实用量，只能本地估算。编码表懒加载
// （首次使用时可能下载数据）；加载失败时退化为空白分词，
// usage 统计宁可粗糙也不能让补全请求失败。
type Estimator struct {
	encoding string
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewEstimator 创建指定编码的估算器，encoding 为空时使用 cl100k_base
func NewEstimator(encoding string, logger *zap.Logger) *Estimator {
	if encoding == "" {
		encoding = defaultEncoding
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		encoding: encoding,
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// init 懒加载 tiktoken 编码表
func (e *Estimator) init() error {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(e.encoding)
		if err != nil {
			e.initErr = fmt.Errorf("init tiktoken encoding %s: %w", e.encoding, err)
			e.logger.Warn("tiktoken unavailable, falling back to word counting",
				zap.Error(err))
			return
		}
		e.enc = enc
	})
	return e.initErr
}

// Count 估算文本的 token 数
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if err := e.init(); err != nil {
		return len(strings.Fields(text))
	}
	return len(e.enc.Encode(text, nil, nil))
}

// Name 返回估算器标识
func (e *Estimator) Name() string {
	return fmt.Sprintf("tiktoken[%s]", e.encoding)
}
