package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Card holds catalog reference data for one printing. The trade core reads
// it for names and prices; ingestion happens elsewhere.
type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID              int64           `bun:"id,pk,autoincrement" json:"id"`
	Name            string          `bun:"name,notnull" json:"name"`
	SetCode         string          `bun:"set_code,notnull" json:"set_code"`
	SetName         string          `bun:"set_name" json:"set_name"`
	CollectorNumber string          `bun:"collector_number" json:"collector_number"`
	Rarity          string          `bun:"rarity" json:"rarity"`
	PriceEur        decimal.Decimal `bun:"price_eur,type:numeric(12,2)" json:"price_eur"`
	PriceEurFoil    decimal.Decimal `bun:"price_eur_foil,type:numeric(12,2)" json:"price_eur_foil"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}
