package repositories

import (
	"context"
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

const cardCacheSize = 10000

type CardRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Card, error)
}

type cardRepository struct {
	db    *bun.DB
	cache *lru.Cache
}

func NewCardRepository(db *bun.DB) CardRepository {
	cache, _ := lru.New(cardCacheSize)
	return &cardRepository{db: db, cache: cache}
}

func (r *cardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*models.Card), nil
	}

	card := new(models.Card)
	err := r.db.NewSelect().
		Model(card).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("card not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	r.cache.Add(id, card)
	return card, nil
}

func (r *cardRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Card, error) {
	result := make(map[int64]*models.Card, len(ids))

	var missing []int64
	for _, id := range ids {
		if cached, ok := r.cache.Get(id); ok {
			result[id] = cached.(*models.Card)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	var cards []*models.Card
	err := r.db.NewSelect().
		Model(&cards).
		Where("id IN (?)", bun.In(missing)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}

	for _, card := range cards {
		result[card.ID] = card
		r.cache.Add(card.ID, card)
	}
	return result, nil
}
