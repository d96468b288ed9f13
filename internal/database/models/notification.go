package models

import (
	"time"

	"github.com/uptrace/bun"
)

// NotificationKind is a closed set of session side effects. Dispatch on this
// tag, never on free-form strings.
type NotificationKind string

const (
	NotifyInvited       NotificationKind = "invited"
	NotifyPartnerJoined NotificationKind = "partner_joined"
	NotifyAccepted      NotificationKind = "accepted"
	NotifyRejected      NotificationKind = "rejected"
	NotifyCompleted     NotificationKind = "completed"
	NotifyDeleted       NotificationKind = "deleted"
	NotifyMessage       NotificationKind = "message"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID          int64            `bun:"id,pk,autoincrement" json:"id"`
	UserID      string           `bun:"user_id,notnull" json:"user_id"`
	Kind        NotificationKind `bun:"kind,notnull" json:"kind"`
	SessionCode string           `bun:"session_code" json:"session_code,omitempty"`
	ActorID     string           `bun:"actor_id" json:"actor_id,omitempty"`
	Body        string           `bun:"body,type:text,default:''" json:"body,omitempty"`
	Read        bool             `bun:"read,notnull,default:false" json:"read"`
	CreatedAt   time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
