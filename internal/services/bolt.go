package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// BoltDB stores each user's conversation in its own bucket of a BoltDB file. Keys are prefixed with
// the bucket sequence so iteration returns messages in the order they were added.
type BoltDB struct {
	db *bolt.DB
}

type storedMessage struct {
	ID        string      `json:"id"`
	Role      models.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewBoltDB opens, or creates with 0600 permissions, the database file at path.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return BoltDB{db: db}, nil
}

func historyBucketName(userID string) []byte {
	return []byte(fmt.Sprintf("user-%s", userID))
}

// History returns the messages of userID in insertion order. An unknown user has an empty history.
func (b BoltDB) History(_ context.Context, userID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucketName(userID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var sm storedMessage
			if err := json.Unmarshal(v, &sm); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, models.Message{Role: sm.Role, Content: sm.Content})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage appends message to the history of userID and returns its generated ID.
func (b BoltDB) AddMessage(_ context.Context, userID string, message models.Message) (string, error) {
	if err := message.Validate(); err != nil {
		return "", err
	}

	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(historyBucketName(userID))
		if err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%020d-%s", seq, uuid.NewString())

		v, err := json.Marshal(storedMessage{
			ID:        newID,
			Role:      message.Role,
			Content:   message.Content,
			Timestamp: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put([]byte(newID), v)
	})

	return newID, err
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
