package audit

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/odyssey-inventory/internal/platform/db"
)

// Store persists the audit trail in the audit_log table.
type Store struct {
	db db.Querier
}

// NewStore returns a Store on q.
func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Append inserts entry.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_log (product_id, action, actor, details, created_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ProductID, string(entry.Action), entry.Actor, []byte(entry.Details), entry.CreatedAt)
	return err
}

// List returns entries matching filters, newest first.
func (s *Store) List(ctx context.Context, filters Filters) ([]Entry, error) {
	query := `SELECT id, product_id, action, actor, details, created_at FROM audit_log WHERE 1=1`
	args := []any{}
	if filters.ProductID != nil {
		args = append(args, *filters.ProductID)
		query += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	if filters.Action != "" {
		args = append(args, string(filters.Action))
		query += ` AND action = $` + strconv.Itoa(len(args))
	}
	if filters.Actor != "" {
		args = append(args, filters.Actor)
		query += ` AND actor = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &action, &e.Actor, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.Details = details
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
