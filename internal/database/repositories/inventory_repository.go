package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

// InventoryRepository is the read-only snapshot reader used by the match
// engine and the settlement validator. Inventory mutation happens only inside
// the settlement transaction.
type InventoryRepository interface {
	GetTradeableByOwner(ctx context.Context, ownerID string) ([]*models.InventoryItem, error)
}

type inventoryRepository struct {
	db *bun.DB
}

func NewInventoryRepository(db *bun.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetTradeableByOwner(ctx context.Context, ownerID string) ([]*models.InventoryItem, error) {
	var items []*models.InventoryItem
	err := r.db.NewSelect().
		Model(&items).
		Relation("Card").
		Where("ii.owner_id = ? AND ii.tradeable_quantity > 0", ownerID).
		Order("ii.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tradeable items: %w", err)
	}
	return items, nil
}
