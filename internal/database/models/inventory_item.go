package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Card conditions, best first. Rank order matters for wish constraints.
const (
	ConditionMint             = "MT"
	ConditionNearMint         = "NM"
	ConditionLightlyPlayed    = "LP"
	ConditionModeratelyPlayed = "MP"
	ConditionHeavilyPlayed    = "HP"
	ConditionDamaged          = "DMG"
)

// InventoryItem is one owned stack, unique per owner by
// (card_id, condition, language, is_alter).
type InventoryItem struct {
	bun.BaseModel `bun:"table:inventory_items,alias:ii"`

	ID                int64            `bun:"id,pk,autoincrement" json:"id"`
	OwnerID           string           `bun:"owner_id,notnull" json:"owner_id"`
	CardID            int64            `bun:"card_id,notnull" json:"card_id"`
	TotalQuantity     int64            `bun:"total_quantity,notnull,default:0" json:"total_quantity"`
	FoilQuantity      int64            `bun:"foil_quantity,notnull,default:0" json:"foil_quantity"`
	Condition         string           `bun:"condition,notnull,default:'NM'" json:"condition"`
	Language          string           `bun:"language,notnull,default:'EN'" json:"language"`
	IsAlter           bool             `bun:"is_alter,notnull,default:false" json:"is_alter"`
	TradeableQuantity int64            `bun:"tradeable_quantity,notnull,default:0" json:"tradeable_quantity"`
	AskPrice          *decimal.Decimal `bun:"ask_price,type:numeric(12,2)" json:"ask_price,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"-"`

	Card *Card `bun:"rel:belongs-to,join:card_id=id" json:"card,omitempty"`
}
