package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

type WishRepository interface {
	GetByOwnerID(ctx context.Context, ownerID string) ([]*models.WishEntry, error)
}

type wishRepository struct {
	db *bun.DB
}

func NewWishRepository(db *bun.DB) WishRepository {
	return &wishRepository{db: db}
}

func (r *wishRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*models.WishEntry, error) {
	var wishes []*models.WishEntry
	err := r.db.NewSelect().
		Model(&wishes).
		Where("owner_id = ?", ownerID).
		Order("priority DESC", "card_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wish entries: %w", err)
	}
	return wishes, nil
}
