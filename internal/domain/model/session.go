package model

import "time"

// Step is the position of a user in the compose flow.
type Step string

const (
	StepIdle               Step = "idle"
	StepAwaitingCredential Step = "awaiting_credential"
	StepCollecting         Step = "collecting"
)

// Session is the per-user compose state. It is never persisted to the
// channel directory; stores may evict it once idle.
type Session struct {
	UserID     int64       `json:"user_id"`
	Step       Step        `json:"step"`
	Draft      []DraftItem `json:"draft,omitempty"`
	Authorized bool        `json:"authorized"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func NewSession(userID int64, now time.Time) *Session {
	return &Session{UserID: userID, Step: StepIdle, UpdatedAt: now}
}

func (s *Session) Collecting() bool { return s.Step == StepCollecting }

// BeginCollecting enters the collecting step with an empty draft.
func (s *Session) BeginCollecting() {
	s.Step = StepCollecting
	s.Draft = nil
}

func (s *Session) Append(item DraftItem) { s.Draft = append(s.Draft, item) }

// Reset returns to idle and drops the draft. Authorization survives.
func (s *Session) Reset() {
	s.Step = StepIdle
	s.Draft = nil
}

func (s *Session) Touch(now time.Time) { s.UpdatedAt = now }

// Clone returns a deep copy so stores can hand out sessions without sharing the draft slice.
func (s *Session) Clone() *Session {
	cp := *s
	if s.Draft != nil {
		cp.Draft = append([]DraftItem(nil), s.Draft...)
	}
	return &cp
}
