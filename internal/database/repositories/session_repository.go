package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

// SessionRepository owns the trade_sessions row. All transitions are guarded
// single-statement writes so concurrent requests serialize on the database,
// not on process memory.
type SessionRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, session *models.TradeSession, ttl time.Duration) error
	GetByCode(ctx context.Context, code string) (*models.TradeSession, error)
	GetOpenByUser(ctx context.Context, userID string) ([]*models.TradeSession, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ExpireIfDue(ctx context.Context, session *models.TradeSession) (bool, error)
	Join(ctx context.Context, sessionID int64, partnerID string) (bool, error)
	UpdateSelection(ctx context.Context, sessionID int64, initiator bool, selection map[string]int64) (bool, error)
	SetAcceptance(ctx context.Context, sessionID int64, initiator bool, accepted bool) (bool, error)
	SaveCachedOffers(ctx context.Context, sessionID int64, offers json.RawMessage) error
	Delete(ctx context.Context, sessionID int64) error
	ExpireOverdue(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *bun.DB
}

func NewSessionRepository(db *bun.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) DB() *bun.DB {
	return r.db
}

func (r *sessionRepository) Create(ctx context.Context, session *models.TradeSession, ttl time.Duration) error {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(ttl)
	if session.InitiatorSelection == nil {
		session.InitiatorSelection = map[string]int64{}
	}
	if session.PartnerSelection == nil {
		session.PartnerSelection = map[string]int64{}
	}

	_, err := r.db.NewInsert().Model(session).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create trade session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByCode(ctx context.Context, code string) (*models.TradeSession, error) {
	session := new(models.TradeSession)
	err := r.db.NewSelect().
		Model(session).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (r *sessionRepository) GetOpenByUser(ctx context.Context, userID string) ([]*models.TradeSession, error) {
	var sessions []*models.TradeSession
	err := r.db.NewSelect().
		Model(&sessions).
		Where("(initiator_id = ? OR partner_id = ?) AND status IN (?)",
			userID, userID, bun.In([]models.SessionStatus{models.SessionPending, models.SessionActive})).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.TradeSession)(nil)).
		Where("code = ?", code).
		Exists(ctx)
	return exists, err
}

// ExpireIfDue lazily flips an overdue pending session to expired. The status
// guard makes concurrent attempts race benignly: only one write takes effect
// and every caller observes the expired state afterwards.
func (r *sessionRepository) ExpireIfDue(ctx context.Context, session *models.TradeSession) (bool, error) {
	if session.Status != models.SessionPending || time.Now().Before(session.ExpiresAt) {
		return false, nil
	}

	result, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set("status = ?", models.SessionExpired).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", session.ID, models.SessionPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to expire session: %w", err)
	}

	// Reflect the durable state regardless of which request won the race.
	session.Status = models.SessionExpired

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *sessionRepository) Join(ctx context.Context, sessionID int64, partnerID string) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set("partner_id = ?", partnerID).
		Set("status = ?", models.SessionActive).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ? AND (partner_id = '' OR partner_id = ?) AND expires_at > ?",
			sessionID, models.SessionPending, partnerID, time.Now()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to join session: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// UpdateSelection writes one side's selection and resets BOTH acceptance
// flags in the same statement, so a stale acceptance can never survive a
// changed offer.
func (r *sessionRepository) UpdateSelection(ctx context.Context, sessionID int64, initiator bool, selection map[string]int64) (bool, error) {
	column := "partner_selection"
	if initiator {
		column = "initiator_selection"
	}

	payload, err := json.Marshal(selection)
	if err != nil {
		return false, fmt.Errorf("failed to encode selection: %w", err)
	}

	result, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set(column+" = ?", string(payload)).
		Set("initiator_accepted = false").
		Set("partner_accepted = false").
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update selection: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *sessionRepository) SetAcceptance(ctx context.Context, sessionID int64, initiator bool, accepted bool) (bool, error) {
	column := "partner_accepted"
	if initiator {
		column = "initiator_accepted"
	}

	result, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set(column+" = ?", accepted).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to set acceptance: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *sessionRepository) SaveCachedOffers(ctx context.Context, sessionID int64, offers json.RawMessage) error {
	_, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set("cached_offers = ?", string(offers)).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cache offers: %w", err)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID int64) error {
	_, err := r.db.NewDelete().
		Model((*models.TradeSession)(nil)).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ExpireOverdue is the background sweep; lazy expiry on read remains the
// source of truth for correctness.
func (r *sessionRepository) ExpireOverdue(ctx context.Context) (int64, error) {
	result, err := r.db.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set("status = ?", models.SessionExpired).
		Set("updated_at = ?", time.Now()).
		Where("status = ? AND expires_at <= ?", models.SessionPending, time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue sessions: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
