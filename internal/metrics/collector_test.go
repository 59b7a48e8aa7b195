package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.completionsTotal)
	assert.NotNil(t, collector.completionDuration)
	assert.NotNil(t, collector.tokensUsed)
	assert.NotNil(t, collector.sessionState)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录请求
	collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)

	// 验证指标
	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	// 再记录一次相同的请求
	collector.RecordHTTPRequest("GET", "/test", 200, 50*time.Millisecond, 512, 1024)

	// 验证计数增加
	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordCompletion(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录一次补全
	collector.RecordCompletion(
		"aipi/anthropic",
		"aipi/anthropic/claude-3-opus",
		"sync",
		"success",
		45*time.Second,
		100, // prompt tokens
		50,  // completion tokens
	)

	// 验证指标
	count := testutil.CollectAndCount(collector.completionsTotal)
	assert.Greater(t, count, 0)

	tokensCount := testutil.CollectAndCount(collector.tokensUsed)
	assert.Greater(t, tokensCount, 0)

	durationCount := testutil.CollectAndCount(collector.completionDuration)
	assert.Greater(t, durationCount, 0)
}

func TestCollector_RecordSessionState(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordSessionState("aipi/anthropic", "ready")

	// 当前状态置 1，其余状态清零
	ready := testutil.ToFloat64(collector.sessionState.WithLabelValues("aipi/anthropic", "ready"))
	assert.Equal(t, 1.0, ready)

	busy := testutil.ToFloat64(collector.sessionState.WithLabelValues("aipi/anthropic", "busy"))
	assert.Equal(t, 0.0, busy)

	// 状态转换后互斥翻转
	collector.RecordSessionState("aipi/anthropic", "busy")
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.sessionState.WithLabelValues("aipi/anthropic", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionState.WithLabelValues("aipi/anthropic", "busy")))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录缓存命中
	collector.RecordCacheHit("aipi/anthropic")

	// 记录缓存未命中
	collector.RecordCacheMiss("aipi/anthropic")

	// 验证指标
	hitCount := testutil.CollectAndCount(collector.cacheHits)
	assert.Greater(t, hitCount, 0)

	missCount := testutil.CollectAndCount(collector.cacheMisses)
	assert.Greater(t, missCount, 0)
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录数据库查询
	collector.RecordDBQuery("sqlite", "SELECT", 20*time.Millisecond)

	// 验证指标
	count := testutil.CollectAndCount(collector.dbQueryDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 更新连接池状态
	collector.RecordDBConnections("sqlite", 10, 5)

	// 验证指标
	openCount := testutil.CollectAndCount(collector.dbConnectionsOpen)
	assert.Greater(t, openCount, 0)

	idleCount := testutil.CollectAndCount(collector.dbConnectionsIdle)
	assert.Greater(t, idleCount, 0)
}

func TestCollector_Observer(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)
	obs := collector.Observer()

	obs.CacheLookup("aipi/openai", true)
	obs.CacheLookup("aipi/openai", false)
	obs.TurnReplayed("aipi/openai")
	obs.StreamChunk("aipi/openai")
	obs.StreamUnconfirmed("aipi/openai")
	obs.SessionStateChanged("aipi/openai", "busy")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("aipi/openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("aipi/openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.turnsReplayed.WithLabelValues("aipi/openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.streamChunks.WithLabelValues("aipi/openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.streamUnconfirmed.WithLabelValues("aipi/openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionState.WithLabelValues("aipi/openai", "busy")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordCompletion("aipi/openai", "aipi/openai/gpt-4", "stream", "success", 30*time.Second, 100, 50)
			collector.RecordCacheHit("aipi/openai")
			done <- true
		}(i)
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	// 验证指标被正确记录
	httpCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, httpCount, 0)

	completionCount := testutil.CollectAndCount(collector.completionsTotal)
	assert.Greater(t, completionCount, 0)

	cacheCount := testutil.CollectAndCount(collector.cacheHits)
	assert.Greater(t, cacheCount, 0)
}
