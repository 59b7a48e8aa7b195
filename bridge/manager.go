package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/cache"
	"github.com/BaSui01/webbridge/types"
)

// Observer receives bridge events for instrumentation. All methods are
// called synchronously on hot paths and must be cheap.
type Observer interface {
	CacheLookup(provider string, hit bool)
	TurnReplayed(provider string)
	StreamChunk(provider string)
	StreamUnconfirmed(provider string)
	SessionStateChanged(provider string, state string)
}

// nopObserver keeps the Manager free of nil checks.
type nopObserver struct{}

func (nopObserver) CacheLookup(string, bool)           {}
func (nopObserver) TurnReplayed(string)                {}
func (nopObserver) StreamChunk(string)                 {}
func (nopObserver) StreamUnconfirmed(string)           {}
func (nopObserver) SessionStateChanged(string, string) {}

// Manager exposes the two browser-driven chat services behind one
// completion API. It resolves models to provider sessions, correlates
// request histories with cached browser conversations, and replays context
// into fresh conversations when no cached one matches.
type Manager struct {
	sessions  map[types.Provider]*Session
	store     cache.Store
	extractor *Extractor
	observer  Observer
	logger    *zap.Logger
}

// NewManager assembles a manager over the given sessions and cache.
func NewManager(sessions []*Session, store cache.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions:  make(map[types.Provider]*Session, len(sessions)),
		store:     store,
		extractor: NewExtractor(logger),
		observer:  nopObserver{},
		logger:    logger.With(zap.String("component", "bridge")),
	}
	for _, session := range sessions {
		m.sessions[session.Provider()] = session
	}
	return m
}

// SetObserver registers an instrumentation sink. Call before Initialize.
func (m *Manager) SetObserver(obs Observer) {
	if obs == nil {
		return
	}
	m.observer = obs
	for _, session := range m.sessions {
		provider := string(session.Provider())
		session.SetStateObserver(func(state SessionState) {
			obs.SessionStateChanged(provider, state.String())
		})
	}
}

// Initialize logs every session in. Sessions initialize sequentially; the
// browser cannot run two interactive logins at once anyway.
func (m *Manager) Initialize(ctx context.Context) error {
	for _, session := range m.sessions {
		if err := session.Initialize(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("bridge initialized", zap.Int("sessions", len(m.sessions)))
	return nil
}

// Models lists every model the bridge can serve.
func (m *Manager) Models() []types.ModelInfo {
	return types.AllModels()
}

// States reports each session's lifecycle state, for health reporting.
func (m *Manager) States() map[types.Provider]string {
	out := make(map[types.Provider]string, len(m.sessions))
	for provider, session := range m.sessions {
		out[provider] = session.State().String()
	}
	return out
}

// session resolves a model ID to its session.
func (m *Manager) session(modelID string) (*Session, types.ModelInfo, error) {
	model, ok := types.LookupModel(modelID)
	if !ok {
		return nil, types.ModelInfo{}, types.NewError(types.ErrUnsupportedModel,
			fmt.Sprintf("unsupported model: %s", modelID))
	}
	session, ok := m.sessions[model.Provider]
	if !ok {
		return nil, types.ModelInfo{}, types.NewError(types.ErrNoActiveSession,
			fmt.Sprintf("no session configured for provider %s", model.Provider))
	}
	return session, model, nil
}

// prepared is a conversation positioned for the final turn: the page shows
// the right chat with the right model, and all prior context is present.
type prepared struct {
	session *Session
	model   types.ModelInfo
	chatURL string
	final   types.Message
}

// prepare validates the request, acquires the session, and positions the
// page. On a cache hit the existing chat is reopened; on a miss a fresh
// chat is created, stored, and the history's earlier user turns are
// replayed into it. The session is held on success; the caller must
// release it.
func (m *Manager) prepare(ctx context.Context, modelID string, messages types.History) (*prepared, error) {
	if len(messages) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "messages must not be empty")
	}
	final := messages.Last()
	if final.Role != types.RoleUser {
		return nil, types.NewError(types.ErrInvalidRequest, "last message must be a user message")
	}

	session, model, err := m.session(modelID)
	if err != nil {
		return nil, err
	}

	if err := session.Acquire(ctx); err != nil {
		return nil, err
	}

	chatURL, err := m.position(ctx, session, model, messages)
	if err != nil {
		session.Release(true)
		return nil, err
	}
	return &prepared{session: session, model: model, chatURL: chatURL, final: final}, nil
}

func (m *Manager) position(ctx context.Context, session *Session, model types.ModelInfo, messages types.History) (string, error) {
	provider := string(session.Provider())

	chatURL, hit, err := m.store.FindMatching(ctx, messages, model.ID)
	if err != nil {
		return "", err
	}
	m.observer.CacheLookup(provider, hit)

	if hit {
		m.logger.Debug("found existing chat", zap.String("chat_url", chatURL))
		if err := session.surface.OpenChat(ctx, session.drv, chatURL); err != nil {
			return "", types.NewError(types.ErrNavigationTimeout, "failed to reopen cached chat").
				WithCause(err).WithProvider(provider).WithOp("open_chat")
		}
		if err := session.SelectModel(ctx, model); err != nil {
			return "", err
		}
		return chatURL, nil
	}

	m.logger.Debug("starting new chat", zap.String("model", model.ID))
	if err := session.surface.OpenNewChat(ctx, session.drv); err != nil {
		return "", types.NewError(types.ErrNavigationTimeout, "failed to open new chat").
			WithCause(err).WithProvider(provider).WithOp("open_chat")
	}
	if err := session.SelectModel(ctx, model); err != nil {
		return "", err
	}

	chatURL, err = session.drv.CurrentURL(ctx)
	if err != nil {
		return "", err
	}
	if err := m.store.StoreConversation(ctx, messages, model.ID, chatURL); err != nil {
		return "", err
	}

	if err := m.replay(ctx, session, messages); err != nil {
		return "", err
	}
	return chatURL, nil
}

// replay sends the history's earlier user turns into a fresh chat so the
// service has the context the client believes it has. Assistant turns are
// never sent: the service regenerates its side of the conversation, and
// pasting its own prior replies at it would corrupt the dialogue structure.
func (m *Manager) replay(ctx context.Context, session *Session, messages types.History) error {
	prefix := messages.Prefix()
	if len(prefix) == 0 {
		return nil
	}

	users := prefix.UserTurns()
	if len(users) == 0 {
		return nil
	}
	m.logger.Debug("replaying prior user turns", zap.Int("turns", len(users)))

	for _, msg := range users {
		if err := session.SubmitTurn(ctx, msg.Content); err != nil {
			return types.NewError(types.ErrInternalError, "failed to replay prior turn").
				WithCause(err).WithProvider(string(session.Provider())).WithOp("replay")
		}
		if err := session.surface.AwaitTurnComplete(ctx, session.drv); err != nil {
			return types.NewError(types.ErrInternalError, "replayed turn never completed").
				WithCause(err).WithProvider(string(session.Provider())).WithOp("replay")
		}
		m.observer.TurnReplayed(string(session.Provider()))
	}
	return nil
}

// Complete serves a non-streaming completion: position, send the final
// turn, wait for the full reply, record the exchange.
func (m *Manager) Complete(ctx context.Context, modelID string, messages types.History) (string, error) {
	p, err := m.prepare(ctx, modelID, messages)
	if err != nil {
		return "", err
	}

	text, err := m.finalTurn(ctx, p, nil)
	p.session.Release(err != nil)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Stream serves a streaming completion. The returned channel carries text
// increments followed by one Done chunk and is always closed; a mid-stream
// failure arrives as a chunk with Err set.
func (m *Manager) Stream(ctx context.Context, modelID string, messages types.History) (<-chan types.StreamChunk, error) {
	p, err := m.prepare(ctx, modelID, messages)
	if err != nil {
		return nil, err
	}

	out := make(chan types.StreamChunk, 16)
	go func() {
		defer close(out)

		provider := string(p.session.Provider())
		emit := func(chunk types.StreamChunk) {
			m.observer.StreamChunk(provider)
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}

		_, err := m.finalTurn(ctx, p, emit)
		p.session.Release(err != nil)
		if err != nil {
			out <- types.StreamChunk{Err: err}
			return
		}
	}()
	return out, nil
}

// finalTurn submits the newest user message, drains the reply through the
// extractor, records the exchange, and emits the terminal chunk when
// streaming.
func (m *Manager) finalTurn(ctx context.Context, p *prepared, emit func(types.StreamChunk)) (string, error) {
	provider := string(p.session.Provider())

	if err := p.session.SubmitTurn(ctx, p.final.Content); err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to send message").
			WithCause(err).WithProvider(provider).WithOp("send_message")
	}

	text, unconfirmed, err := m.extractor.Run(ctx, p.session.drv, p.session.surface, emit)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to read response").
			WithCause(err).WithProvider(provider).WithOp("stream_response")
	}
	if unconfirmed {
		m.observer.StreamUnconfirmed(provider)
	}

	if err := m.store.UpdateConversation(ctx, p.chatURL, p.final, text); err != nil {
		// The reply is already in hand; losing the cache update costs a
		// future replay, not this request.
		m.logger.Warn("failed to record exchange in cache", zap.Error(err))
	}

	if emit != nil {
		emit(types.StreamChunk{Done: true, Unconfirmed: unconfirmed})
	}
	return text, nil
}

// Close shuts down every session and the cache.
func (m *Manager) Close() error {
	var firstErr error
	for _, session := range m.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
