package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/webbridge/types"
)

// Conversation is one cached browser chat, keyed by the fingerprint of the
// history that created it.
type Conversation struct {
	Fingerprint string    `gorm:"primaryKey;size:64" json:"fingerprint"`
	ChatURL     string    `gorm:"size:512;index:idx_chat_url" json:"chat_url"`
	Model       string    `gorm:"size:128" json:"model"`
	LastUsed    time.Time `gorm:"index:idx_last_used" json:"last_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoredMessage is one message of a cached conversation.
type StoredMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Fingerprint string    `gorm:"size:64;index:idx_msg_fingerprint" json:"fingerprint"`
	Role        string    `gorm:"size:16" json:"role"`
	Content     string    `gorm:"type:text" json:"content"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// SQLStore is a Store backed by a relational database through GORM. It works
// against SQLite, PostgreSQL, and MySQL; the driver is chosen by the caller
// when opening the *gorm.DB.
//
// Mutations and eviction serialize on an internal mutex so a sweep never
// interleaves with a store or update; lookups go through unlocked.
type SQLStore struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLStore migrates the schema and returns the store.
func NewSQLStore(db *gorm.DB, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Conversation{}, &StoredMessage{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &SQLStore{
		db:     db,
		logger: logger.With(zap.String("component", "conversation_cache")),
	}, nil
}

// FindMatching looks up the chat URL stored for the history's prefix.
func (s *SQLStore) FindMatching(ctx context.Context, messages types.History, model string) (string, bool, error) {
	fingerprint, ok := PrefixFingerprint(messages, model)
	if !ok {
		return "", false, nil
	}

	var conv Conversation
	err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("conversation lookup failed: %w", err)
	}
	return conv.ChatURL, true, nil
}

// StoreConversation records the conversation and its messages in one
// transaction. Re-storing the same fingerprint overwrites the URL; the
// browser chat it pointed at has been replaced.
func (s *SQLStore) StoreConversation(ctx context.Context, messages types.History, model, chatURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprint := Fingerprint(messages, model)
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := Conversation{
			Fingerprint: fingerprint,
			ChatURL:     chatURL,
			Model:       model,
			LastUsed:    now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_url", "model", "last_used"}),
		}).Create(&conv).Error; err != nil {
			return err
		}

		for _, msg := range messages {
			stored := StoredMessage{
				Fingerprint: fingerprint,
				Role:        string(msg.Role),
				Content:     msg.Content,
			}
			if err := tx.Create(&stored).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}

	s.logger.Debug("stored conversation",
		zap.String("fingerprint", fingerprint),
		zap.String("chat_url", chatURL),
		zap.Int("messages", len(messages)))
	return nil
}

// UpdateConversation appends the exchanged turn to the conversation holding
// chatURL. Unknown URLs are a silent no-op.
func (s *SQLStore) UpdateConversation(ctx context.Context, chatURL string, userMessage types.Message, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		err := tx.Where("chat_url = ?", chatURL).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&Conversation{}).
			Where("fingerprint = ?", conv.Fingerprint).
			Update("last_used", time.Now()).Error; err != nil {
			return err
		}

		turn := []StoredMessage{
			{Fingerprint: conv.Fingerprint, Role: string(userMessage.Role), Content: userMessage.Content},
			{Fingerprint: conv.Fingerprint, Role: string(types.RoleAssistant), Content: response},
		}
		return tx.Create(&turn).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// Evict removes conversations unused since cutoff. Messages go first, the
// conversations after, matching the foreign-key direction.
func (s *SQLStore) Evict(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []Conversation
		if err := tx.Where("last_used < ?", cutoff).Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		fingerprints := make([]string, len(stale))
		for i, conv := range stale {
			fingerprints[i] = conv.Fingerprint
		}

		if err := tx.Where("fingerprint IN ?", fingerprints).
			Delete(&StoredMessage{}).Error; err != nil {
			return err
		}
		result := tx.Where("fingerprint IN ?", fingerprints).
			Delete(&Conversation{})
		if result.Error != nil {
			return result.Error
		}
		evicted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("conversation eviction failed: %w", err)
	}
	return evicted, nil
}

// Messages returns the stored messages of a conversation in insertion order.
func (s *SQLStore) Messages(ctx context.Context, fingerprint string) (types.History, error) {
	var stored []StoredMessage
	err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("id asc").
		Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	history := make(types.History, len(stored))
	for i, m := range stored {
		history[i] = types.Message{
			Role:      types.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return history, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
