// Package trade owns the session state machine: creation, joining,
// negotiation, acceptance, settlement, and the frozen history afterwards.
// The session row in the database is the single source of truth; every
// transition is a guarded read-modify-write.
package trade

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deckbinder/deckbinder/internal/broadcast"
	"github.com/deckbinder/deckbinder/internal/config"
	"github.com/deckbinder/deckbinder/internal/database/models"
	"github.com/deckbinder/deckbinder/internal/database/repositories"
	"github.com/deckbinder/deckbinder/internal/matching"
)

type Service struct {
	sessions      repositories.SessionRepository
	inventory     repositories.InventoryRepository
	wishes        repositories.WishRepository
	cards         repositories.CardRepository
	users         repositories.UserRepository
	history       repositories.HistoryRepository
	notifications repositories.NotificationRepository
	broadcaster   broadcast.Broadcaster
	cfg           config.TradeConfig
}

func NewService(
	sessions repositories.SessionRepository,
	inventory repositories.InventoryRepository,
	wishes repositories.WishRepository,
	cards repositories.CardRepository,
	users repositories.UserRepository,
	history repositories.HistoryRepository,
	notifications repositories.NotificationRepository,
	broadcaster broadcast.Broadcaster,
	cfg config.TradeConfig,
) *Service {
	if broadcaster == nil {
		broadcaster = broadcast.Noop{}
	}
	return &Service{
		sessions:      sessions,
		inventory:     inventory,
		wishes:        wishes,
		cards:         cards,
		users:         users,
		history:       history,
		notifications: notifications,
		broadcaster:   broadcaster,
		cfg:           cfg,
	}
}

// OfferView is what a participant sees for a session: live offers while
// negotiating, the frozen history once completed.
type OfferView struct {
	Session         *models.TradeSession `json:"session"`
	InitiatorOffers []matching.Offer     `json:"initiator_offers,omitempty"`
	PartnerOffers   []matching.Offer     `json:"partner_offers,omitempty"`
	InitiatorValue  decimal.Decimal      `json:"initiator_value"`
	PartnerValue    decimal.Decimal      `json:"partner_value"`
	History         *models.TradeHistory `json:"history,omitempty"`
}

// CreateSession starts a negotiation. With a target partner the session is
// active immediately; without one it stays pending until someone joins by
// code.
func (s *Service) CreateSession(ctx context.Context, initiatorID, partnerID string) (*models.TradeSession, error) {
	if partnerID == initiatorID && partnerID != "" {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidState)
	}

	if partnerID != "" {
		if _, err := s.users.GetByID(ctx, partnerID); err != nil {
			return nil, fmt.Errorf("%w: partner does not exist", ErrNotFound)
		}
	}

	code, err := s.generateSessionCode(ctx)
	if err != nil {
		return nil, err
	}

	session := &models.TradeSession{
		Code:        code,
		InitiatorID: initiatorID,
		PartnerID:   partnerID,
		Status:      models.SessionPending,
	}
	if partnerID != "" {
		session.Status = models.SessionActive
	}

	if err := s.sessions.Create(ctx, session, s.cfg.SessionTTL()); err != nil {
		return nil, err
	}

	if partnerID != "" {
		s.notify(ctx, partnerID, models.NotifyInvited, code, initiatorID, "")
		s.publishEvent(ctx, EventPartnerJoined, code, initiatorID, "")
	}

	slog.Info("Trade session created",
		slog.String("code", code),
		slog.String("initiator_id", initiatorID),
		slog.String("status", string(session.Status)))

	return session, nil
}

// ListOpenSessions returns the caller's pending and active sessions,
// applying lazy expiry along the way.
func (s *Service) ListOpenSessions(ctx context.Context, userID string) ([]*models.TradeSession, error) {
	sessions, err := s.sessions.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	open := sessions[:0]
	for _, session := range sessions {
		if _, err := s.sessions.ExpireIfDue(ctx, session); err != nil {
			return nil, err
		}
		if session.Status == models.SessionPending || session.Status == models.SessionActive {
			open = append(open, session)
		}
	}
	return open, nil
}

// GetSession fetches one session. Pending sessions are visible to anyone
// holding the code so a prospective partner can preview before joining;
// everything else is participants only.
func (s *Service) GetSession(ctx context.Context, userID, code string) (*models.TradeSession, error) {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionPending && !session.Participant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}
	return session, nil
}

// JoinSession moves a pending session to active. Re-joining by the assigned
// partner is a no-op success.
func (s *Service) JoinSession(ctx context.Context, userID, code string) (*models.TradeSession, error) {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionActive && session.PartnerID == userID {
		return session, nil
	}
	if userID == session.InitiatorID {
		return nil, fmt.Errorf("%w: cannot join your own session", ErrInvalidState)
	}
	if session.Status == models.SessionCompleted {
		return nil, fmt.Errorf("%w: session already completed", ErrInvalidState)
	}
	if session.Status == models.SessionExpired {
		return nil, fmt.Errorf("%w: session expired", ErrInvalidState)
	}
	if session.PartnerID != "" && session.PartnerID != userID {
		return nil, fmt.Errorf("%w: session already has a partner", ErrForbidden)
	}

	ok, err := s.sessions.Join(ctx, session.ID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race against another joiner, expiry, or deletion.
		return nil, fmt.Errorf("%w: session is no longer joinable", ErrInvalidState)
	}

	session, err = s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	s.notify(ctx, session.InitiatorID, models.NotifyPartnerJoined, code, userID, "")
	s.publishEvent(ctx, EventPartnerJoined, code, userID, "")

	slog.Info("Partner joined trade session",
		slog.String("code", code),
		slog.String("partner_id", userID))

	return session, nil
}

// ViewOffers recomputes offers against live inventory while the session is
// active, memoizing the result on the session row. Once completed the view is
// served exclusively from the frozen history; live inventory has moved on and
// would misrepresent what was exchanged.
func (s *Service) ViewOffers(ctx context.Context, userID, code string) (*OfferView, error) {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.Participant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}

	view := &OfferView{Session: session}

	switch session.Status {
	case models.SessionCompleted:
		record, err := s.history.GetBySessionID(ctx, session.ID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		view.History = record
		view.InitiatorValue = record.InitiatorValue
		view.PartnerValue = record.PartnerValue
		return view, nil

	case models.SessionActive:
		initiatorSnap, err := s.loadSnapshot(ctx, session.InitiatorID)
		if err != nil {
			return nil, err
		}
		partnerSnap, err := s.loadSnapshot(ctx, session.PartnerID)
		if err != nil {
			return nil, err
		}

		result := matching.ComputeOffers(initiatorSnap, partnerSnap)
		view.InitiatorOffers = result.OffersA
		view.PartnerOffers = result.OffersB
		view.InitiatorValue = result.TotalValueA
		view.PartnerValue = result.TotalValueB

		if cached, err := json.Marshal(result); err == nil {
			if err := s.sessions.SaveCachedOffers(ctx, session.ID, cached); err != nil {
				slog.Warn("Failed to cache offers",
					slog.String("code", code),
					slog.Any("error", err))
			}
		}
		return view, nil

	default:
		// Pending or expired: nothing to compute yet.
		return view, nil
	}
}

// UpdateSelection writes the caller's selection and resets both acceptance
// flags atomically. Malformed entries are dropped, not rejected, to tolerate
// stale client state.
func (s *Service) UpdateSelection(ctx context.Context, userID, code string, selection map[string]int64) (*models.TradeSession, error) {
	session, err := s.activeSessionFor(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	clean := make(map[string]int64, len(selection))
	for key, qty := range selection {
		if qty <= 0 {
			continue
		}
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			continue
		}
		clean[key] = qty
	}

	ok, err := s.sessions.UpdateSelection(ctx, session.ID, userID == session.InitiatorID, clean)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is no longer active", ErrInvalidState)
	}

	s.publishEvent(ctx, EventSelectionUpdated, code, userID, "")

	return s.reload(ctx, code)
}

// SetAcceptance toggles the caller's own flag only.
func (s *Service) SetAcceptance(ctx context.Context, userID, code string, accepted bool) (*models.TradeSession, error) {
	session, err := s.activeSessionFor(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	ok, err := s.sessions.SetAcceptance(ctx, session.ID, userID == session.InitiatorID, accepted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is no longer active", ErrInvalidState)
	}

	if counterpart := session.CounterpartOf(userID); counterpart != "" {
		kind := models.NotifyAccepted
		if !accepted {
			kind = models.NotifyRejected
		}
		s.notify(ctx, counterpart, kind, code, userID, "")
	}
	s.publishEvent(ctx, EventAcceptanceUpdated, code, userID, strconv.FormatBool(accepted))

	return s.reload(ctx, code)
}

// Complete settles the session. Only the initiator may trigger it, and only
// with mutual acceptance; the transfer itself is a single atomic transaction.
func (s *Service) Complete(ctx context.Context, userID, code string) (*models.TradeHistory, error) {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.Participant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}
	if userID != session.InitiatorID {
		return nil, fmt.Errorf("%w: only the initiator can complete the trade", ErrForbidden)
	}

	record, err := s.settle(ctx, session.ID, userID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, record.PartnerID, models.NotifyCompleted, code, userID, "")
	s.publishEvent(ctx, EventCompleted, code, userID, "")

	slog.Info("Trade session completed",
		slog.String("code", code),
		slog.String("initiator_id", record.InitiatorID),
		slog.String("partner_id", record.PartnerID))

	return record, nil
}

// DeleteSession removes the session row. History records survive deletion.
func (s *Service) DeleteSession(ctx context.Context, userID, code string) error {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return err
	}
	if userID != session.InitiatorID {
		return fmt.Errorf("%w: only the initiator can delete the session", ErrForbidden)
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return err
	}

	if session.PartnerID != "" {
		s.notify(ctx, session.PartnerID, models.NotifyDeleted, code, userID, "")
	}
	s.publishEvent(ctx, EventDeleted, code, userID, "")

	return nil
}

// PostMessage relays a negotiation message to the counterpart.
func (s *Service) PostMessage(ctx context.Context, userID, code, body string) error {
	session, err := s.activeSessionFor(ctx, userID, code)
	if err != nil {
		return err
	}
	if body == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidState)
	}

	if counterpart := session.CounterpartOf(userID); counterpart != "" {
		s.notify(ctx, counterpart, models.NotifyMessage, code, userID, body)
	}
	s.publishEvent(ctx, EventMessage, code, userID, body)
	return nil
}

// ListHistory returns the caller's completed trades, newest first.
func (s *Service) ListHistory(ctx context.Context, userID string) ([]*models.TradeHistory, error) {
	return s.history.GetAllByUser(ctx, userID)
}

// GetHistoryRecord fetches one frozen record; non-participants get NotFound
// rather than a hint that the record exists.
func (s *Service) GetHistoryRecord(ctx context.Context, userID string, id int64) (*models.TradeHistory, error) {
	record, err := s.history.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if record.InitiatorID != userID && record.PartnerID != userID {
		return nil, fmt.Errorf("%w: history record", ErrNotFound)
	}
	return record, nil
}

// RunExpirySweeper bulk-expires overdue pending sessions until ctx is done.
// Lazy expiry on read remains the correctness mechanism; this keeps listings
// tidy.
func (s *Service) RunExpirySweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired, err := s.sessions.ExpireOverdue(ctx)
			if err != nil {
				slog.Error("Expiry sweep failed", slog.Any("error", err))
				continue
			}
			if expired > 0 {
				slog.Info("Expired overdue trade sessions", slog.Int64("count", expired))
			}
		}
	}
}

// loadSession fetches by code and applies lazy expiry.
func (s *Service) loadSession(ctx context.Context, code string) (*models.TradeSession, error) {
	session, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if _, err := s.sessions.ExpireIfDue(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// activeSessionFor loads a session and checks the common negotiation guards:
// caller participates and the session is active.
func (s *Service) activeSessionFor(ctx context.Context, userID, code string) (*models.TradeSession, error) {
	session, err := s.loadSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.Participant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}
	if session.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, session.Status)
	}
	return session, nil
}

func (s *Service) reload(ctx context.Context, code string) (*models.TradeSession, error) {
	session, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return session, nil
}

func (s *Service) loadSnapshot(ctx context.Context, userID string) (matching.Snapshot, error) {
	items, err := s.inventory.GetTradeableByOwner(ctx, userID)
	if err != nil {
		return matching.Snapshot{}, err
	}
	wishes, err := s.wishes.GetByOwnerID(ctx, userID)
	if err != nil {
		return matching.Snapshot{}, err
	}
	return matching.Snapshot{OwnerID: userID, Items: items, Wishes: wishes}, nil
}

func (s *Service) generateSessionCode(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		var randomBytes [4]byte
		if _, err := rand.Read(randomBytes[:]); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}

		randomNum := binary.BigEndian.Uint32(randomBytes[:])
		code := fmt.Sprintf("TR%06d", randomNum%1000000)

		exists, err := s.sessions.CodeExists(ctx, code)
		if err != nil {
			lastErr = err
			continue
		}
		if !exists {
			return code, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to generate unique session code: %w", lastErr)
	}
	return "", fmt.Errorf("failed to generate unique session code")
}
