package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string `bun:"id,pk" json:"id"`
	Username string `bun:"username,notnull" json:"username"`
	APIToken string `bun:"api_token,notnull,unique" json:"-"`

	// AutoFileIncoming controls whether settlement files received stacks
	// into this user's inventory or leaves bookkeeping to them.
	AutoFileIncoming bool `bun:"auto_file_incoming,notnull,default:true" json:"auto_file_incoming"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}
