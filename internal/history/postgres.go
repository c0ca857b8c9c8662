package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists history in two tables (conversations, messages).
// Saves are whole-list replacements inside a transaction, matching the
// key-value semantics of the other drivers; a position column preserves
// client ordering. Schema lives in migrations/ and is applied by
// cmd/migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Conversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveConversations(ctx context.Context, conversations []Conversation) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM conversations`); err != nil {
			return fmt.Errorf("clear conversations: %w", err)
		}
		for i, c := range conversations {
			_, err := tx.Exec(ctx,
				`INSERT INTO conversations (position, id, title, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				i, c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert conversation %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, role, content, created_at, streaming, error
		 FROM messages WHERE conversation_id = $1 ORDER BY position`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt, &m.Streaming, &m.Error); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveMessages(ctx context.Context, conversationID string, messages []Message) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		for i, m := range messages {
			_, err := tx.Exec(ctx,
				`INSERT INTO messages (conversation_id, position, id, role, content, created_at, streaming, error)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				conversationID, i, m.ID, m.Role, m.Content, m.CreatedAt, m.Streaming, m.Error)
			if err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
