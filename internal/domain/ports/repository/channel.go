package repository

import (
	"context"

	"channelcast/internal/domain/model"
)

// ChannelRepository is the channel directory: which channels each owner may post into.
// Storage failures are reported wrapped in domain.ErrStoreUnavailable.
type ChannelRepository interface {
	// Upsert inserts the binding or refreshes its title and username.
	Upsert(ctx context.Context, tx Tx, b *model.ChannelBinding) error
	// ListByOwner returns the owner's bindings ordered by title.
	ListByOwner(ctx context.Context, tx Tx, ownerID int64) ([]*model.ChannelBinding, error)
	// Remove deletes one owner's binding and reports whether it existed.
	Remove(ctx context.Context, tx Tx, ownerID, channelID int64) (bool, error)
	// RefreshChannel rewrites title and username on every owner's binding of channelID.
	RefreshChannel(ctx context.Context, tx Tx, channelID int64, title, username string) (int64, error)
	// RemoveChannel deletes the channel for every owner and returns the number of rows removed.
	RemoveChannel(ctx context.Context, tx Tx, channelID int64) (int64, error)
	CountByOwner(ctx context.Context, tx Tx, ownerID int64) (int, error)
	CountAll(ctx context.Context, tx Tx) (int, error)
}
