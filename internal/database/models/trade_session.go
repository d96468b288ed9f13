package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// TradeSession is the single source of truth for one negotiation. Every
// transition is a guarded read-modify-write against this row; nothing is
// shared in process memory.
type TradeSession struct {
	bun.BaseModel `bun:"table:trade_sessions,alias:ts"`

	ID          int64         `bun:"id,pk,autoincrement" json:"id"`
	Code        string        `bun:"code,notnull,unique" json:"code"`
	InitiatorID string        `bun:"initiator_id,notnull" json:"initiator_id"`
	PartnerID   string        `bun:"partner_id,notnull,default:''" json:"partner_id,omitempty"`
	Status      SessionStatus `bun:"status,notnull" json:"status"`
	ExpiresAt   time.Time     `bun:"expires_at,notnull" json:"expires_at"`

	// Selections are itemId -> quantity, keyed as strings for JSONB.
	InitiatorSelection map[string]int64 `bun:"initiator_selection,type:jsonb" json:"initiator_selection"`
	PartnerSelection   map[string]int64 `bun:"partner_selection,type:jsonb" json:"partner_selection"`

	InitiatorAccepted bool `bun:"initiator_accepted,notnull,default:false" json:"initiator_accepted"`
	PartnerAccepted   bool `bun:"partner_accepted,notnull,default:false" json:"partner_accepted"`

	// CachedOffers is a memoized view of the last offer computation while the
	// session is active. It is overwritten on every fresh read and is never a
	// source of truth.
	CachedOffers json.RawMessage `bun:"cached_offers,type:jsonb" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Participant reports whether userID is a party to the session.
func (s *TradeSession) Participant(userID string) bool {
	return s.InitiatorID == userID || s.PartnerID == userID
}

// CounterpartOf returns the other party's id, or "" when there is none yet.
func (s *TradeSession) CounterpartOf(userID string) string {
	if s.InitiatorID == userID {
		return s.PartnerID
	}
	if s.PartnerID == userID {
		return s.InitiatorID
	}
	return ""
}

// SelectionFor returns the selection map belonging to userID.
func (s *TradeSession) SelectionFor(userID string) map[string]int64 {
	if s.InitiatorID == userID {
		return s.InitiatorSelection
	}
	return s.PartnerSelection
}
