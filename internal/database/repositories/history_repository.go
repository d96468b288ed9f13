package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

// HistoryRepository reads the frozen settlement records. Writing happens
// exclusively inside the settlement transaction.
type HistoryRepository interface {
	GetByID(ctx context.Context, id int64) (*models.TradeHistory, error)
	GetBySessionID(ctx context.Context, sessionID int64) (*models.TradeHistory, error)
	GetAllByUser(ctx context.Context, userID string) ([]*models.TradeHistory, error)
}

type historyRepository struct {
	db *bun.DB
}

func NewHistoryRepository(db *bun.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) GetByID(ctx context.Context, id int64) (*models.TradeHistory, error) {
	history := new(models.TradeHistory)
	err := r.db.NewSelect().
		Model(history).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("history record not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return history, nil
}

func (r *historyRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.TradeHistory, error) {
	history := new(models.TradeHistory)
	err := r.db.NewSelect().
		Model(history).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("history record not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return history, nil
}

func (r *historyRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.TradeHistory, error) {
	var records []*models.TradeHistory
	err := r.db.NewSelect().
		Model(&records).
		Where("initiator_id = ? OR partner_id = ?", userID, userID).
		Order("completed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	return records, nil
}
