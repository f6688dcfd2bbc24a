package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/metrics"
)

var _ repository.ChannelRepository = (*ChannelRepo)(nil)

type ChannelRepo struct {
	db *DB
}

func NewChannelRepo(db *DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

func (r *ChannelRepo) Upsert(ctx context.Context, tx repository.Tx, b *model.ChannelBinding) error {
	if b == nil || b.ChannelID == 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := r.db.executor(tx)
	if err != nil {
		return err
	}
	if b.AddedAt.IsZero() {
		b.AddedAt = time.Now()
	}
	const q = `
INSERT INTO channels (owner_id, channel_id, title, username, added_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (owner_id, channel_id) DO UPDATE
  SET title = excluded.title,
      username = excluded.username;`
	if _, err := ex.ExecContext(ctx, q, b.OwnerID, b.ChannelID, b.Title, b.Username, b.AddedAt.Unix()); err != nil {
		return wrapStoreErr("upsert channel", err)
	}
	return nil
}

func (r *ChannelRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64) ([]*model.ChannelBinding, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
SELECT owner_id, channel_id, title, username, added_at
  FROM channels
 WHERE owner_id = ?
 ORDER BY title, channel_id;`, ownerID)
	if err != nil {
		return nil, wrapStoreErr("list channels", err)
	}
	defer rows.Close()

	var out []*model.ChannelBinding
	for rows.Next() {
		var (
			b       model.ChannelBinding
			addedAt int64
		)
		if err := rows.Scan(&b.OwnerID, &b.ChannelID, &b.Title, &b.Username, &addedAt); err != nil {
			return nil, wrapStoreErr("scan channel", err)
		}
		b.AddedAt = time.Unix(addedAt, 0)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("list channels", err)
	}
	return out, nil
}

func (r *ChannelRepo) Remove(ctx context.Context, tx repository.Tx, ownerID, channelID int64) (bool, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `DELETE FROM channels WHERE owner_id = ? AND channel_id = ?;`, ownerID, channelID)
	if err != nil {
		return false, wrapStoreErr("remove binding", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ChannelRepo) RefreshChannel(ctx context.Context, tx repository.Tx, channelID int64, title, username string) (int64, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, `UPDATE channels SET title = ?, username = ? WHERE channel_id = ?;`, title, username, channelID)
	if err != nil {
		return 0, wrapStoreErr("refresh channel", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *ChannelRepo) RemoveChannel(ctx context.Context, tx repository.Tx, channelID int64) (int64, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, `DELETE FROM channels WHERE channel_id = ?;`, channelID)
	if err != nil {
		return 0, wrapStoreErr("remove channel", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *ChannelRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE owner_id = ?;`, ownerID).Scan(&n); err != nil {
		return 0, wrapStoreErr("count channels", err)
	}
	return n, nil
}

func (r *ChannelRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := r.db.executor(tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels;`).Scan(&n); err != nil {
		return 0, wrapStoreErr("count all channels", err)
	}
	return n, nil
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.IncDBError(op)
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
