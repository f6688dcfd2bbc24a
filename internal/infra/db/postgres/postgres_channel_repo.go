package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/metrics"
)

var _ repository.ChannelRepository = (*PostgresChannelRepo)(nil)

type PostgresChannelRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresChannelRepo(pool *pgxpool.Pool) *PostgresChannelRepo {
	return &PostgresChannelRepo{pool: pool}
}

func (r *PostgresChannelRepo) Upsert(ctx context.Context, tx repository.Tx, b *model.ChannelBinding) error {
	if b == nil || b.ChannelID == 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO channels (owner_id, channel_id, title, username, added_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (owner_id, channel_id) DO UPDATE
  SET title    = EXCLUDED.title,
      username = EXCLUDED.username
RETURNING added_at;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	var addedAt interface{}
	if !b.AddedAt.IsZero() {
		addedAt = b.AddedAt
	}
	if err := ex.QueryRow(ctx, q, b.OwnerID, b.ChannelID, b.Title, b.Username, addedAt).Scan(&b.AddedAt); err != nil {
		return wrapStoreErr("upsert channel", err)
	}
	return nil
}

func (r *PostgresChannelRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64) ([]*model.ChannelBinding, error) {
	const q = `
SELECT owner_id, channel_id, title, username, added_at
  FROM channels
 WHERE owner_id = $1
 ORDER BY title, channel_id;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, ownerID)
	if err != nil {
		return nil, wrapStoreErr("list channels", err)
	}
	defer rows.Close()

	var out []*model.ChannelBinding
	for rows.Next() {
		var b model.ChannelBinding
		if err := rows.Scan(&b.OwnerID, &b.ChannelID, &b.Title, &b.Username, &b.AddedAt); err != nil {
			return nil, wrapStoreErr("scan channel", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("list channels", err)
	}
	return out, nil
}

func (r *PostgresChannelRepo) Remove(ctx context.Context, tx repository.Tx, ownerID, channelID int64) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	ct, err := ex.Exec(ctx, `DELETE FROM channels WHERE owner_id = $1 AND channel_id = $2;`, ownerID, channelID)
	if err != nil {
		return false, wrapStoreErr("remove binding", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresChannelRepo) RefreshChannel(ctx context.Context, tx repository.Tx, channelID int64, title, username string) (int64, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	ct, err := ex.Exec(ctx, `UPDATE channels SET title = $2, username = $3 WHERE channel_id = $1;`, channelID, title, username)
	if err != nil {
		return 0, wrapStoreErr("refresh channel", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PostgresChannelRepo) RemoveChannel(ctx context.Context, tx repository.Tx, channelID int64) (int64, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	ct, err := ex.Exec(ctx, `DELETE FROM channels WHERE channel_id = $1;`, channelID)
	if err != nil {
		return 0, wrapStoreErr("remove channel", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PostgresChannelRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM channels WHERE owner_id = $1;`, ownerID).Scan(&n); err != nil {
		return 0, wrapStoreErr("count channels", err)
	}
	return n, nil
}

func (r *PostgresChannelRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM channels;`).Scan(&n); err != nil {
		return 0, wrapStoreErr("count all channels", err)
	}
	return n, nil
}

// wrapStoreErr tags driver failures as domain.ErrStoreUnavailable; context
// cancellation passes through untouched.
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.IncDBError(op)
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
