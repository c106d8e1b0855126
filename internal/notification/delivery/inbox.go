package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InboxMessage is one in-app notification.
type InboxMessage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// InboxChannel keeps the newest in-app notifications per recipient in a
// capped Redis list, newest first.
type InboxChannel struct {
	rdb  redis.Cmdable
	size int64
	now  func() time.Time
}

func NewInboxChannel(rdb redis.Cmdable, size int) *InboxChannel {
	if size <= 0 {
		size = 100
	}
	return &InboxChannel{rdb: rdb, size: int64(size), now: time.Now}
}

func inboxKey(recipientID string) string {
	return "inbox:" + recipientID
}

func (c *InboxChannel) Deliver(ctx context.Context, recipientID, title, body string) error {
	raw, err := json.Marshal(InboxMessage{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		CreatedAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode inbox message: %w", err)
	}

	key := inboxKey(recipientID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, raw)
		pipe.LTrim(ctx, key, 0, c.size-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push inbox message: %w", err)
	}
	return nil
}

// Inbox returns up to limit messages, newest first.
func (c *InboxChannel) Inbox(ctx context.Context, recipientID string, limit int) ([]InboxMessage, error) {
	if limit <= 0 || int64(limit) > c.size {
		limit = int(c.size)
	}
	items, err := c.rdb.LRange(ctx, inboxKey(recipientID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	out := make([]InboxMessage, 0, len(items))
	for _, item := range items {
		var msg InboxMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
