package application

import (
	"context"

	"channelcast/internal/domain/model"
	"channelcast/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface the facade needs so tests can pass light-weight mocks.

type ChannelUseCaseIface interface {
	LinkByRef(ctx context.Context, userID int64, ref string) (*model.ChannelBinding, error)
	LinkChat(ctx context.Context, userID int64, chat model.ChatInfo, source string) (*model.ChannelBinding, error)
	HandleMembershipChange(ctx context.Context, ev model.MembershipChange) error
	List(ctx context.Context, userID int64) ([]*model.ChannelBinding, error)
}

type ComposeUseCaseIface interface {
	Start(ctx context.Context, userID int64) error
	BeginCollect(ctx context.Context, userID int64) error
	Collect(ctx context.Context, userID int64, item model.DraftItem) (int, error)
	Cancel(ctx context.Context, userID int64) error
}

type AccessUseCaseIface interface {
	Enabled() bool
	Check(ctx context.Context, userID int64) (bool, error)
	Challenge(ctx context.Context, userID int64) error
	Awaiting(ctx context.Context, userID int64) (bool, error)
	Submit(ctx context.Context, userID int64, password string) error
}

type BroadcastUseCaseIface interface {
	Prepare(ctx context.Context, userID int64) (*usecase.Plan, error)
	Execute(ctx context.Context, plan *usecase.Plan) (*usecase.Report, error)
}
