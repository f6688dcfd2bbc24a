package model

import (
	"strconv"
	"strings"
	"time"

	"channelcast/internal/domain"
)

// SharedOwner is the owner ID every binding is filed under when the bot runs
// in single-tenant mode (one channel pool for the whole deployment).
const SharedOwner int64 = 0

// ChannelBinding grants OwnerID permission to broadcast into ChannelID.
// (OwnerID, ChannelID) is unique; different owners may bind the same channel.
type ChannelBinding struct {
	OwnerID   int64
	ChannelID int64
	Title     string
	Username  string // "@handle" or empty
	AddedAt   time.Time
}

func NewChannelBinding(ownerID, channelID int64, title, username string) (*ChannelBinding, error) {
	if channelID == 0 || ownerID < 0 {
		return nil, domain.ErrInvalidArgument
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strconv.FormatInt(channelID, 10)
	}
	return &ChannelBinding{
		OwnerID:   ownerID,
		ChannelID: channelID,
		Title:     title,
		Username:  NormalizeHandle(username),
		AddedAt:   time.Now(),
	}, nil
}

// DisplayName renders "Title @handle", or "Title (id)" for private channels.
func (b *ChannelBinding) DisplayName() string {
	if b.Username != "" {
		return b.Title + " " + b.Username
	}
	return b.Title + " (" + strconv.FormatInt(b.ChannelID, 10) + ")"
}

// NormalizeHandle returns s with exactly one leading "@", or "" when s is blank.
func NormalizeHandle(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "@")
	if s == "" {
		return ""
	}
	return "@" + s
}

// ChatType mirrors the platform chat kinds the bot cares about.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// ChatInfo is the resolved metadata of a chat.
type ChatInfo struct {
	ID       int64
	Type     ChatType
	Title    string
	Username string
}

func (c ChatInfo) IsChannel() bool { return c.Type == ChatChannel }

// MemberStatus is the bot's role inside a chat.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

func (s MemberStatus) IsAdmin() bool { return s == StatusCreator || s == StatusAdministrator }
func (s MemberStatus) IsGone() bool  { return s == StatusLeft || s == StatusKicked }

// MembershipChange is a notification that the bot's own status in Chat changed.
// ActorID is the user who performed the change (0 when unknown).
type MembershipChange struct {
	Chat      ChatInfo
	ActorID   int64
	OldStatus MemberStatus
	NewStatus MemberStatus
}
