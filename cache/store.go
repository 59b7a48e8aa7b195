package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/types"
)

// Store correlates message histories with browser conversation URLs.
//
// A conversation is keyed by the fingerprint of the history that created it.
// FindMatching fingerprints the incoming history minus its newest message,
// so a follow-up request whose earlier turns were served here lands back in
// the same browser chat instead of replaying the whole history.
type Store interface {
	// FindMatching returns the chat URL recorded for the history's prefix.
	// ok is false on a miss; a miss is not an error.
	FindMatching(ctx context.Context, messages types.History, model string) (url string, ok bool, err error)

	// StoreConversation records a newly created browser chat for the full
	// history that produced it.
	StoreConversation(ctx context.Context, messages types.History, model, chatURL string) error

	// UpdateConversation appends a user turn and the assistant's reply to
	// the conversation identified by chatURL and refreshes its last-used
	// time. An unknown chatURL is silently ignored: the conversation may
	// have been evicted between the lookup and the update.
	UpdateConversation(ctx context.Context, chatURL string, userMessage types.Message, response string) error

	// Evict removes conversations not used since cutoff, messages included,
	// and returns how many conversations were removed.
	Evict(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying storage.
	Close() error
}

// Sweeper periodically evicts stale conversations from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger

	// Evicted is invoked with the eviction count after each sweep that
	// removed at least one conversation. Optional.
	Evicted func(count int64)
}

// NewSweeper creates a sweeper; Run must be called to start it.
func NewSweeper(store Store, interval, maxAge time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With(zap.String("component", "cache_sweeper")),
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Eviction
// failures are logged and retried on the next tick; a flaky disk must not
// kill the sweeper for the life of the process.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	count, err := s.store.Evict(ctx, cutoff)
	if err != nil {
		s.logger.Error("conversation cleanup failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("cleaned up old conversations", zap.Int64("count", count))
		if s.Evicted != nil {
			s.Evicted(count)
		}
	}
}
