// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// sessionStates 是会话状态机的全部状态，用于互斥 Gauge 清零
var sessionStates = []string{
	"uninitialized", "initializing", "authenticating", "ready", "busy", "error",
}

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 补全指标
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	tokensUsed         *prometheus.CounterVec

	// 会话指标
	sessionState      *prometheus.GaugeVec
	turnsReplayed     *prometheus.CounterVec
	streamChunks      *prometheus.CounterVec
	streamUnconfirmed *prometheus.CounterVec

	// 会话缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 补全指标（浏览器补全远慢于 API 调用，桶上限放宽到 10 分钟）
	c.completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total number of chat completions",
		},
		[]string{"provider", "model", "mode", "status"}, // mode: sync, stream
	)

	c.completionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"provider", "model"},
	)

	c.tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total number of tokens exchanged",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 会话指标
	c.sessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current browser session state (1 for the active state)",
		},
		[]string{"provider", "state"},
	)

	c.turnsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_replayed_total",
			Help:      "Total number of prior user turns replayed into fresh chats",
		},
		[]string{"provider"},
	)

	c.streamChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of streamed text increments",
		},
		[]string{"provider"},
	)

	c.streamUnconfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_unconfirmed_total",
			Help:      "Responses that finished by quiescence instead of a completion marker",
		},
		[]string{"provider"},
	)

	// 会话缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of conversation cache hits",
		},
		[]string{"provider"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of conversation cache misses",
		},
		[]string{"provider"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 💬 补全指标记录
// =============================================================================

// RecordCompletion 记录一次聊天补全
func (c *Collector) RecordCompletion(provider, model, mode, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.completionsTotal.WithLabelValues(provider, model, mode, status).Inc()
	c.completionDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.tokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.tokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🖥️ 会话指标记录
// =============================================================================

// RecordSessionState 记录会话状态转换，同一 provider 的其余状态清零
func (c *Collector) RecordSessionState(provider, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		c.sessionState.WithLabelValues(provider, s).Set(v)
	}
}

// RecordTurnReplayed 记录一次历史轮次重放
func (c *Collector) RecordTurnReplayed(provider string) {
	c.turnsReplayed.WithLabelValues(provider).Inc()
}

// RecordStreamChunk 记录一个流式文本增量
func (c *Collector) RecordStreamChunk(provider string) {
	c.streamChunks.WithLabelValues(provider).Inc()
}

// RecordStreamUnconfirmed 记录一次静默兜底完成
func (c *Collector) RecordStreamUnconfirmed(provider string) {
	c.streamUnconfirmed.WithLabelValues(provider).Inc()
}

// =============================================================================
// 💾 会话缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(provider string) {
	c.cacheHits.WithLabelValues(provider).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(provider string) {
	c.cacheMisses.WithLabelValues(provider).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔭 桥接层观察者
// =============================================================================

// BridgeObserver 将桥接层事件转成指标记录，满足 bridge.Observer 接口
type BridgeObserver struct {
	c *Collector
}

// Observer 返回可挂到 bridge.Manager 上的观察者
func (c *Collector) Observer() *BridgeObserver {
	return &BridgeObserver{c: c}
}

func (o *BridgeObserver) CacheLookup(provider string, hit bool) {
	if hit {
		o.c.RecordCacheHit(provider)
		return
	}
	o.c.RecordCacheMiss(provider)
}

func (o *BridgeObserver) TurnReplayed(provider string)      { o.c.RecordTurnReplayed(provider) }
func (o *BridgeObserver) StreamChunk(provider string)       { o.c.RecordStreamChunk(provider) }
func (o *BridgeObserver) StreamUnconfirmed(provider string) { o.c.RecordStreamUnconfirmed(provider) }

func (o *BridgeObserver) SessionStateChanged(provider, state string) {
	o.c.RecordSessionState(provider, state)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
