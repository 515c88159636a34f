package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisConfig holds connection and retention settings for RedisHistory.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password is the optional AUTH password.
	Password string
	// DB selects the logical database.
	DB int
	// MaxMessages caps the list kept per user. Zero means 200.
	MaxMessages int
	// TTL expires idle conversations. Zero means 7 days.
	TTL time.Duration
}

// RedisHistory is a ConversationStore that keeps each user's conversation
// in a Redis list, letting several server instances share history.
type RedisHistory struct {
	client      *redisv9.Client
	maxMessages int64
	ttl         time.Duration
}

// redisMessage is the JSON form of a list element.
type redisMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// OpenRedisHistory connects to Redis and verifies the connection with PING.
func OpenRedisHistory(ctx context.Context, cfg RedisConfig) (*RedisHistory, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: ping redis %s: %w", cfg.Addr, err)
	}
	return newRedisHistory(client, cfg), nil
}

func newRedisHistory(client *redisv9.Client, cfg RedisConfig) *RedisHistory {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 200
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisHistory{client: client, maxMessages: int64(maxMessages), ttl: ttl}
}

func historyKey(username string) string {
	return "climatetrack:history:" + username
}

// Append pushes a message onto the user's list, trims the list to the
// configured cap and refreshes its expiry, all in one pipeline.
func (r *RedisHistory) Append(ctx context.Context, username string, role Role, content string) error {
	payload, err := json.Marshal(redisMessage{Role: role, Content: content, CreatedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("store: marshal message: %w", err)
	}
	key := historyKey(username)
	_, err = r.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, -r.maxMessages, -1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: redis append: %w", err)
	}
	return nil
}

// Recent returns the last n messages for the user, oldest-first.
func (r *RedisHistory) Recent(ctx context.Context, username string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, historyKey(username), -int64(n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis recent: %w", err)
	}
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m redisMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("store: decode cached message: %w", err)
		}
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content, CreatedAt: time.Unix(m.CreatedAt, 0)})
	}
	return msgs, nil
}

// Ping checks the Redis connection.
func (r *RedisHistory) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: redis ping: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisHistory) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("store: redis close: %w", err)
	}
	return nil
}
