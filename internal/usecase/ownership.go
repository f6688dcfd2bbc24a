package usecase

import "channelcast/internal/domain/model"

// Ownership decides which directory owner a Telegram user acts as.
// In single-tenant mode every user shares one channel pool.
type Ownership struct {
	SingleTenant bool
}

func (o Ownership) OwnerOf(userID int64) int64 {
	if o.SingleTenant {
		return model.SharedOwner
	}
	return userID
}
