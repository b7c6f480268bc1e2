package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"taximeter/internal/domain"
)

// recordingQuerier captures statements instead of talking to Postgres.
type recordingQuerier struct {
	query string
	args  []any
}

func (q *recordingQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q.query = query
	q.args = args
	return nil, nil
}

func (q *recordingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (q *recordingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func TestTripRepository_SaveKeepsStoredPaidFlag(t *testing.T) {
	q := &recordingQuerier{}
	repo := &TripRepository{q: q}

	ride := &domain.CompletedRide{ID: "ride-1", EndedAt: 1000, FinalFare: 9.5}
	if err := repo.Save(context.Background(), ride); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.Contains(q.query, "ON CONFLICT (id) DO UPDATE") {
		t.Fatalf("Save should upsert, got:\n%s", q.query)
	}
	update := q.query[strings.Index(q.query, "DO UPDATE"):]
	if strings.Contains(update, "paid") {
		t.Errorf("a retried save must not overwrite the paid flag:\n%s", update)
	}
	if len(q.args) != 12 {
		t.Errorf("expected 12 arguments, got %d", len(q.args))
	}
	if paid, ok := q.args[11].(bool); !ok || paid {
		t.Errorf("new rides should be inserted unpaid, got %v", q.args[11])
	}
}
