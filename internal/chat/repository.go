package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chat messages to Postgres. Persistence is best-effort:
// the room broadcasts before it stores, and a failed write is only logged by
// the caller.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

func (r *Repository) Store(ctx context.Context, msg Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, sender, content_type, content, sent_time, system)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.Sender, string(msg.ContentType), msg.Content, msg.SentTime, msg.System,
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the latest messages, oldest first,
// ready to be replayed to a joining connection.
func (r *Repository) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender, content_type, content, sent_time, system
		 FROM messages
		 ORDER BY sent_time DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var contentType string
		if err := rows.Scan(&msg.ID, &msg.Sender, &contentType, &msg.Content, &msg.SentTime, &msg.System); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ContentType = ContentType(contentType)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	// Query is newest-first so LIMIT trims the right end; replay oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
