package trade

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

// settle executes the exchange as one serializable transaction: lock the
// session, re-check every guard, move both sides' stacks, write the frozen
// history record, and flip the session to completed. Any failure rolls the
// whole thing back.
func (s *Service) settle(ctx context.Context, sessionID int64, initiatorID string) (*models.TradeHistory, error) {
	tx, err := s.sessions.DB().BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session := new(models.TradeSession)
	err = tx.NewSelect().
		Model(session).
		Where("id = ?", sessionID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: session", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	// Guards re-checked under the row lock; the pre-flight checks in Complete
	// only exist for friendlier error messages.
	if session.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, session.Status)
	}
	if session.InitiatorID != initiatorID {
		return nil, fmt.Errorf("%w: only the initiator can complete the trade", ErrForbidden)
	}
	if session.PartnerID == "" {
		return nil, fmt.Errorf("%w: session has no partner", ErrInvalidState)
	}
	if !session.InitiatorAccepted || !session.PartnerAccepted {
		return nil, fmt.Errorf("%w: both parties must accept before completing", ErrInvalidState)
	}

	partner, err := s.users.GetByID(ctx, session.PartnerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	initiator, err := s.users.GetByID(ctx, session.InitiatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	initiatorItems, initiatorValue, err := s.transferSide(ctx, tx,
		session.InitiatorID, session.PartnerID, session.InitiatorSelection, partner.AutoFileIncoming)
	if err != nil {
		return nil, err
	}
	partnerItems, partnerValue, err := s.transferSide(ctx, tx,
		session.PartnerID, session.InitiatorID, session.PartnerSelection, initiator.AutoFileIncoming)
	if err != nil {
		return nil, err
	}

	record := &models.TradeHistory{
		SessionID:      session.ID,
		SessionCode:    session.Code,
		InitiatorID:    session.InitiatorID,
		PartnerID:      session.PartnerID,
		InitiatorItems: initiatorItems,
		PartnerItems:   partnerItems,
		InitiatorValue: initiatorValue,
		PartnerValue:   partnerValue,
		CompletedAt:    time.Now(),
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to write trade history: %w", err)
	}

	result, err := tx.NewUpdate().
		Model((*models.TradeSession)(nil)).
		Set("status = ?", models.SessionCompleted).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", session.ID, models.SessionActive).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: session is no longer active", ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return record, nil
}

// transferStep is the planned mutation for one selected stack: the frozen
// history line plus the giver's post-debit counts. Remaining <= 0 means the
// giver's row is deleted.
type transferStep struct {
	Item      *models.InventoryItem
	Line      models.HistoryItem
	Remaining int64
	Foil      int64
	Tradeable int64
}

// selectionQuantities sanitizes a selection map into locked-read order: ids
// sorted ascending so two settlements touching overlapping stacks cannot
// deadlock. Malformed keys and non-positive quantities are dropped.
func selectionQuantities(selection map[string]int64) ([]int64, map[int64]int64) {
	quantities := make(map[int64]int64, len(selection))
	ids := make([]int64, 0, len(selection))
	for key, qty := range selection {
		if qty <= 0 {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		quantities[id] = qty
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, quantities
}

// planTransfer validates one giver's selection against their locked stacks
// and computes every mutation up front: history lines with card facts and
// value frozen as validated, debit arithmetic with counts floored at zero,
// and the matched total. Any violation fails the whole plan; nothing is
// applied from a partial one.
func planTransfer(
	giverID string,
	ids []int64,
	quantities map[int64]int64,
	items []*models.InventoryItem,
	cards map[int64]*models.Card,
) ([]transferStep, decimal.Decimal, error) {
	byID := make(map[int64]*models.InventoryItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	steps := make([]transferStep, 0, len(ids))
	total := decimal.Zero

	for _, id := range ids {
		qty := quantities[id]
		item, ok := byID[id]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d no longer exists", ErrInvariantViolation, id)
		}
		if item.OwnerID != giverID {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d is not owned by the giver", ErrInvariantViolation, id)
		}
		if qty > item.TotalQuantity {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d has %d copies, %d selected",
				ErrInvariantViolation, id, item.TotalQuantity, qty)
		}

		card := cards[item.CardID]
		line := models.HistoryItem{
			ItemID:       item.ID,
			CardID:       item.CardID,
			Condition:    item.Condition,
			Language:     item.Language,
			IsAlter:      item.IsAlter,
			Quantity:     qty,
			FoilQuantity: minInt64(qty, item.FoilQuantity),
			UnitPrice:    decimal.Zero,
		}
		if card != nil {
			line.CardName = card.Name
			line.SetCode = card.SetCode
			if item.FoilQuantity > 0 {
				line.UnitPrice = card.PriceEurFoil
			} else {
				line.UnitPrice = card.PriceEur
			}
		}
		line.LineValue = line.UnitPrice.Mul(decimal.NewFromInt(qty)).Round(2)
		total = total.Add(line.LineValue)

		remaining := item.TotalQuantity - qty
		steps = append(steps, transferStep{
			Item:      item,
			Line:      line,
			Remaining: remaining,
			Foil:      maxInt64(0, item.FoilQuantity-qty),
			Tradeable: maxInt64(0, minInt64(item.TradeableQuantity-qty, remaining)),
		})
	}

	return steps, total.Round(2), nil
}

// transferSide moves one giver's selected stacks to the receiver. The plan is
// computed in full before any mutation, so the history record reflects the
// state that was actually validated.
func (s *Service) transferSide(
	ctx context.Context,
	tx bun.Tx,
	giverID, receiverID string,
	selection map[string]int64,
	autoFileReceiver bool,
) ([]models.HistoryItem, decimal.Decimal, error) {
	ids, quantities := selectionQuantities(selection)
	if len(ids) == 0 {
		return []models.HistoryItem{}, decimal.Zero, nil
	}

	var items []*models.InventoryItem
	err := tx.NewSelect().
		Model(&items).
		Where("ii.id IN (?)", bun.In(ids)).
		Order("ii.id ASC").
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to lock inventory items: %w", err)
	}

	cardIDs := make([]int64, 0, len(items))
	for _, item := range items {
		cardIDs = append(cardIDs, item.CardID)
	}
	cards, err := s.cards.GetByIDs(ctx, cardIDs)
	if err != nil {
		return nil, decimal.Zero, err
	}

	steps, total, err := planTransfer(giverID, ids, quantities, items, cards)
	if err != nil {
		return nil, decimal.Zero, err
	}

	history := make([]models.HistoryItem, 0, len(steps))
	for _, step := range steps {
		history = append(history, step.Line)

		if err := s.debitGiver(ctx, tx, step); err != nil {
			return nil, decimal.Zero, err
		}
		if autoFileReceiver {
			if err := s.creditReceiver(ctx, tx, step, receiverID); err != nil {
				return nil, decimal.Zero, err
			}
		}
	}

	return history, total, nil
}

// debitGiver applies one planned debit, deleting the row when it hits zero.
func (s *Service) debitGiver(ctx context.Context, tx bun.Tx, step transferStep) error {
	if step.Remaining <= 0 {
		_, err := tx.NewDelete().
			Model((*models.InventoryItem)(nil)).
			Where("id = ?", step.Item.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove emptied stack: %w", err)
		}
		return nil
	}

	_, err := tx.NewUpdate().
		Model((*models.InventoryItem)(nil)).
		Set("total_quantity = ?", step.Remaining).
		Set("foil_quantity = ?", step.Foil).
		Set("tradeable_quantity = ?", step.Tradeable).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", step.Item.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to debit stack: %w", err)
	}
	return nil
}

// creditReceiver files the received copies into the receiver's matching stack,
// creating it when none exists. New arrivals are never marked tradeable; the
// receiver lists them explicitly.
func (s *Service) creditReceiver(ctx context.Context, tx bun.Tx, step transferStep, receiverID string) error {
	now := time.Now()
	incoming := &models.InventoryItem{
		OwnerID:           receiverID,
		CardID:            step.Item.CardID,
		TotalQuantity:     step.Line.Quantity,
		FoilQuantity:      step.Line.FoilQuantity,
		Condition:         step.Item.Condition,
		Language:          step.Item.Language,
		IsAlter:           step.Item.IsAlter,
		TradeableQuantity: 0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := tx.NewInsert().
		Model(incoming).
		On("CONFLICT (owner_id, card_id, condition, language, is_alter) DO UPDATE").
		Set("total_quantity = ii.total_quantity + EXCLUDED.total_quantity").
		Set("foil_quantity = ii.foil_quantity + EXCLUDED.foil_quantity").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to credit stack: %w", err)
	}
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
