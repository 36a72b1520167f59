package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
)

// ErrChangeNotFound is returned when a notified change id has no row.
var ErrChangeNotFound = errors.New("change not found")

const changeColumns = `id, game_id, collection, op, old_row, new_row, created_at`

type changeRow struct {
	ID         int64     `db:"id"`
	GameID     uuid.UUID `db:"game_id"`
	Collection string    `db:"collection"`
	Op         string    `db:"op"`
	OldRow     []byte    `db:"old_row"`
	NewRow     []byte    `db:"new_row"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r changeRow) toChange() realtime.Change {
	return realtime.Change{
		ID:         r.ID,
		GameID:     r.GameID,
		Collection: realtime.Collection(r.Collection),
		Op:         realtime.Op(r.Op),
		Old:        r.OldRow,
		New:        r.NewRow,
		CreatedAt:  r.CreatedAt,
	}
}

// ChangeLog reads and acknowledges rows of the quiz_changes table, which the
// row triggers on the game tables append to.
type ChangeLog struct {
	pool *pgxpool.Pool
}

func NewChangeLog(pool *pgxpool.Pool) *ChangeLog {
	return &ChangeLog{pool: pool}
}

func (q *ChangeLog) FetchChangeByID(ctx context.Context, id int64) (realtime.Change, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+changeColumns+` FROM quiz_changes WHERE id = $1`, id)
	if err != nil {
		return realtime.Change{}, fmt.Errorf("failed to query change %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[changeRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return realtime.Change{}, fmt.Errorf("%w: %d", ErrChangeNotFound, id)
	}
	if err != nil {
		return realtime.Change{}, fmt.Errorf("failed to scan change %d: %w", id, err)
	}
	return row.toChange(), nil
}

// FetchUnpublished returns up to limit unpublished changes in commit order.
func (q *ChangeLog) FetchUnpublished(ctx context.Context, limit int) ([]realtime.Change, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT `+changeColumns+` FROM quiz_changes WHERE published_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished changes: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[changeRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan unpublished changes: %w", err)
	}
	changes := make([]realtime.Change, len(collected))
	for i, r := range collected {
		changes[i] = r.toChange()
	}
	return changes, nil
}

func (q *ChangeLog) MarkPublished(ctx context.Context, id int64) error {
	if _, err := q.pool.Exec(ctx, `UPDATE quiz_changes SET published_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark change %d published: %w", id, err)
	}
	return nil
}

func (q *ChangeLog) CountUnpublished(ctx context.Context) (int, error) {
	var n int
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM quiz_changes WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unpublished changes: %w", err)
	}
	return n, nil
}

// PrunePublished deletes published changes older than the retention window.
func (q *ChangeLog) PrunePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM quiz_changes WHERE published_at IS NOT NULL AND published_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to prune changes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *ChangeLog) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}
