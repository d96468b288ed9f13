package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// WishEntry is a desired card, matched against counterpart offers by name
// only, independent of printing.
type WishEntry struct {
	bun.BaseModel `bun:"table:wish_entries,alias:we"`

	ID           int64            `bun:"id,pk,autoincrement" json:"id"`
	OwnerID      string           `bun:"owner_id,notnull" json:"owner_id"`
	CardName     string           `bun:"card_name,notnull" json:"card_name"`
	Priority     int              `bun:"priority,notnull,default:0" json:"priority"`
	MaxPrice     *decimal.Decimal `bun:"max_price,type:numeric(12,2)" json:"max_price,omitempty"`
	MinCondition string           `bun:"min_condition,default:''" json:"min_condition,omitempty"`
	FoilOnly     bool             `bun:"foil_only,notnull,default:false" json:"foil_only"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}
