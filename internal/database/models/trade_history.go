package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// HistoryItem is one transferred stack, frozen with the card facts and value
// that applied at the moment of settlement.
type HistoryItem struct {
	ItemID       int64           `json:"item_id"`
	CardID       int64           `json:"card_id"`
	CardName     string          `json:"card_name"`
	SetCode      string          `json:"set_code"`
	Condition    string          `json:"condition"`
	Language     string          `json:"language"`
	IsAlter      bool            `json:"is_alter"`
	Quantity     int64           `json:"quantity"`
	FoilQuantity int64           `json:"foil_quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineValue    decimal.Decimal `json:"line_value"`
}

// TradeHistory is the permanent record of what was actually exchanged. It is
// written once, inside the settlement transaction, and never recomputed.
type TradeHistory struct {
	bun.BaseModel `bun:"table:trade_history,alias:th"`

	ID             int64           `bun:"id,pk,autoincrement" json:"id"`
	SessionID      int64           `bun:"session_id,notnull" json:"session_id"`
	SessionCode    string          `bun:"session_code,notnull" json:"session_code"`
	InitiatorID    string          `bun:"initiator_id,notnull" json:"initiator_id"`
	PartnerID      string          `bun:"partner_id,notnull" json:"partner_id"`
	InitiatorItems []HistoryItem   `bun:"initiator_items,type:jsonb" json:"initiator_items"`
	PartnerItems   []HistoryItem   `bun:"partner_items,type:jsonb" json:"partner_items"`
	InitiatorValue decimal.Decimal `bun:"initiator_value,type:numeric(12,2)" json:"initiator_value"`
	PartnerValue   decimal.Decimal `bun:"partner_value,type:numeric(12,2)" json:"partner_value"`
	CompletedAt    time.Time       `bun:"completed_at,notnull,default:current_timestamp" json:"completed_at"`
}
