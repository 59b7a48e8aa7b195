package bridge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/types"
)

const (
	defaultPollInterval   = 100 * time.Millisecond
	defaultMaxStablePolls = 50 // 5s of unchanged output without a marker
)

// Extractor turns a growing response container into a stream of text
// increments.
//
// The page renders the reply progressively; the extractor polls the full
// text and emits only the suffix that appeared since the previous poll.
// The stream ends when the completion marker appears, or — for pages that
// never render one — after the output has been stable for MaxStablePolls
// consecutive polls. The second exit is reported as unconfirmed: the text
// is complete as far as anyone can tell, but the page never said so.
type Extractor struct {
	PollInterval   time.Duration
	MaxStablePolls int

	logger *zap.Logger
}

// NewExtractor creates an extractor with production polling bounds.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		PollInterval:   defaultPollInterval,
		MaxStablePolls: defaultMaxStablePolls,
		logger:         logger.With(zap.String("component", "stream_extractor")),
	}
}

// Run polls the surface's newest response until completion and returns the
// final text. emit receives each non-empty increment in order; pass nil to
// collect without streaming. The concatenation of all emitted increments is
// exactly the returned text.
func (e *Extractor) Run(ctx context.Context, drv browser.Driver, surface *Surface, emit func(types.StreamChunk)) (string, bool, error) {
	prev := ""
	stablePolls := 0

	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		current, err := surface.LatestResponse(ctx, drv)
		if err != nil {
			return prev, false, err
		}

		if current != prev {
			if strings.HasPrefix(current, prev) {
				stablePolls = 0
				increment := current[len(prev):]
				if emit != nil {
					emit(types.StreamChunk{Content: increment})
				}
				prev = current
			} else {
				// The container re-rendered mid-poll and briefly holds
				// text that is not a continuation. Skip the sample; the
				// next poll sees the settled text.
				e.logger.Debug("non-monotonic response sample skipped",
					zap.Int("prev_len", len(prev)),
					zap.Int("current_len", len(current)))
			}
		}

		done, err := surface.ResponseComplete(ctx, drv)
		if err != nil {
			return prev, false, err
		}
		if done {
			return prev, false, nil
		}

		stablePolls++
		if stablePolls >= e.MaxStablePolls {
			e.logger.Warn("response completion marker never appeared, assuming complete",
				zap.String("provider", string(surface.Provider)),
				zap.Int("stable_polls", stablePolls))
			return prev, true, nil
		}

		select {
		case <-ctx.Done():
			return prev, false, ctx.Err()
		case <-ticker.C:
		}
	}
}
