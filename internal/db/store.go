package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/cityguide/internal/models"
)

// ErrNotFound is returned when an event id has no row.
var ErrNotFound = errors.New("event not found")

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

type ListParams struct {
	Query        string
	Venue        string
	FeaturedOnly bool
	Limit        int
	Offset       int
}

type ListResult struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

const selectCols = `id, title, description, venue, date, time, is_featured, created_at, updated_at`

// setFeaturedSQL only touches rows whose flag differs, so repeated sweeps
// leave updated_at alone.
const setFeaturedSQL = `
	UPDATE events
	SET is_featured = $1, updated_at = NOW()
	WHERE id = $2 AND is_featured IS DISTINCT FROM $1
`

func scanEvent(scan func(dest ...any) error) (models.Event, error) {
	var e models.Event
	err := scan(
		&e.ID, &e.Title, &e.Description, &e.Venue, &e.Date, &e.Time,
		&e.IsFeatured, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// buildListWhere returns the WHERE clause and args for params.
func buildListWhere(params ListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('spanish', $%d) OR title ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if v := strings.TrimSpace(params.Venue); v != "" {
		where += fmt.Sprintf(" AND venue ILIKE $%d", argIdx)
		args = append(args, v)
		argIdx++
	}
	if params.FeaturedOnly {
		where += " AND is_featured = true"
	}

	return where, args
}

func (s *EventStore) ListEvents(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	where, args := buildListWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	argIdx := len(args) + 1
	selectSQL := fmt.Sprintf("SELECT %s FROM events %s ORDER BY is_featured DESC, created_at DESC LIMIT $%d OFFSET $%d",
		selectCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	events, err := s.queryEvents(ctx, selectSQL, args...)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func (s *EventStore) ListFeaturedEvents(ctx context.Context) ([]models.Event, error) {
	sql := fmt.Sprintf("SELECT %s FROM events WHERE is_featured = true ORDER BY created_at DESC", selectCols)
	return s.queryEvents(ctx, sql)
}

func (s *EventStore) queryEvents(ctx context.Context, sql string, args ...any) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return events, nil
}

func (s *EventStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM events
		WHERE id = $1
	`, selectCols)

	e, err := scanEvent(s.pool.QueryRow(ctx, sql, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}

// SetFeatured writes the featured flag. Setting the value a row already has
// is a no-op.
func (s *EventStore) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error {
	if _, err := s.pool.Exec(ctx, setFeaturedSQL, featured, id); err != nil {
		return fmt.Errorf("set featured %s: %w", id, err)
	}
	return nil
}

// CreateEvent inserts e, assigning an id and timestamps when missing.
func (s *EventStore) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, title, description, venue, date, time, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.Title, e.Description, e.Venue, e.Date, e.Time, e.IsFeatured, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *EventStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}
