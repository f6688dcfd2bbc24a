package model

import (
	"fmt"
	"strings"

	"channelcast/internal/domain"
)

// DraftKind tags the variant held by a DraftItem.
type DraftKind string

const (
	KindText      DraftKind = "text"
	KindPhoto     DraftKind = "photo"
	KindVideo     DraftKind = "video"
	KindAnimation DraftKind = "animation"
	KindSticker   DraftKind = "sticker"
)

// DraftItem is one queued unit of content. Exactly one of Body (text) or
// MediaRef (every other kind) is set. Caption is only valid for photo and video.
type DraftItem struct {
	Kind     DraftKind `json:"kind"`
	Body     string    `json:"body,omitempty"`
	MediaRef string    `json:"media_ref,omitempty"`
	Caption  string    `json:"caption,omitempty"`
}

func NewTextItem(body string) DraftItem { return DraftItem{Kind: KindText, Body: body} }

func NewPhotoItem(ref, caption string) DraftItem {
	return DraftItem{Kind: KindPhoto, MediaRef: ref, Caption: caption}
}

func NewVideoItem(ref, caption string) DraftItem {
	return DraftItem{Kind: KindVideo, MediaRef: ref, Caption: caption}
}

func NewAnimationItem(ref string) DraftItem { return DraftItem{Kind: KindAnimation, MediaRef: ref} }

func NewStickerItem(ref string) DraftItem { return DraftItem{Kind: KindSticker, MediaRef: ref} }

func (d DraftItem) IsMedia() bool { return d.Kind != KindText }

func (d DraftItem) Validate() error {
	switch d.Kind {
	case KindText:
		if strings.TrimSpace(d.Body) == "" {
			return fmt.Errorf("%w: empty text item", domain.ErrInvalidArgument)
		}
		return nil
	case KindPhoto, KindVideo:
		if d.MediaRef == "" {
			return fmt.Errorf("%w: %s item without media", domain.ErrInvalidArgument, d.Kind)
		}
		return nil
	case KindAnimation, KindSticker:
		if d.MediaRef == "" {
			return fmt.Errorf("%w: %s item without media", domain.ErrInvalidArgument, d.Kind)
		}
		if d.Caption != "" {
			return fmt.Errorf("%w: %s item cannot carry a caption", domain.ErrInvalidArgument, d.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown draft kind %q", domain.ErrInvalidArgument, d.Kind)
	}
}
