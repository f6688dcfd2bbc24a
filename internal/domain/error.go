package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrStoreUnavailable   = errors.New("store unavailable")

	// Channel linking
	ErrNotAChannel = errors.New("target is not a channel")
	ErrNotAdmin    = errors.New("bot is not an administrator of the target")

	// Delivery
	ErrTargetUnreachable = errors.New("target chat not found or unreachable")
	ErrTransientSend     = errors.New("send failed")

	// Compose / broadcast flow
	ErrNothingToPost    = errors.New("no post in progress")
	ErrEmptyDraft       = errors.New("draft is empty")
	ErrNoChannels       = errors.New("no linked channels")
	ErrNotCollecting    = errors.New("session is not collecting content")
	ErrBroadcastRunning = errors.New("a broadcast is already running")

	// Access gate
	ErrBadCredential = errors.New("wrong password")
)
