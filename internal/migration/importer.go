// Package migration imports legacy collection exports into the trade
// database. The legacy tracker stored users, inventories and wishlists as raw
// BSON collection dumps alongside a JSON card catalog.
package migration

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

type Importer struct {
	db        *bun.DB
	dataDir   string
	batchSize int
}

func NewImporter(db *bun.DB, dataDir string) *Importer {
	return &Importer{
		db:        db,
		dataDir:   dataDir,
		batchSize: 1000,
	}
}

// SetBatchSize overrides the default batch size for inserts
func (m *Importer) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// ImportAll runs the full import in dependency order: catalog first, then
// users, then the rows that reference both.
func (m *Importer) ImportAll(ctx context.Context) error {
	start := time.Now()

	if err := m.ImportCards(ctx); err != nil {
		return fmt.Errorf("card catalog import failed: %w", err)
	}
	if err := m.ImportUsers(ctx); err != nil {
		return fmt.Errorf("user import failed: %w", err)
	}
	if err := m.ImportInventory(ctx); err != nil {
		return fmt.Errorf("inventory import failed: %w", err)
	}
	if err := m.ImportWishlists(ctx); err != nil {
		return fmt.Errorf("wishlist import failed: %w", err)
	}

	slog.Info("Import completed",
		slog.String("type", "db"),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// jsonCard mirrors one entry of the legacy cards.json catalog.
type jsonCard struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	SetCode         string  `json:"set_code"`
	SetName         string  `json:"set_name"`
	CollectorNumber string  `json:"collector_number"`
	Rarity          string  `json:"rarity"`
	PriceEur        float64 `json:"price_eur"`
	PriceEurFoil    float64 `json:"price_eur_foil"`
}

// ImportCards loads cards.json into the catalog table.
func (m *Importer) ImportCards(ctx context.Context) error {
	path := filepath.Join(m.dataDir, "cards.json")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open card catalog: %w", err)
	}
	defer file.Close()

	var legacy []jsonCard
	if err := json.NewDecoder(file).Decode(&legacy); err != nil {
		return fmt.Errorf("failed to decode card catalog: %w", err)
	}

	now := time.Now()
	cards := make([]*models.Card, 0, len(legacy))
	for _, jc := range legacy {
		if jc.ID == 0 || jc.Name == "" {
			continue
		}
		cards = append(cards, &models.Card{
			ID:              jc.ID,
			Name:            jc.Name,
			SetCode:         jc.SetCode,
			SetName:         jc.SetName,
			CollectorNumber: jc.CollectorNumber,
			Rarity:          jc.Rarity,
			PriceEur:        decimal.NewFromFloat(jc.PriceEur).Round(2),
			PriceEurFoil:    decimal.NewFromFloat(jc.PriceEurFoil).Round(2),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	err = insertBatched(ctx, m.batchSize, cards, func(batch []*models.Card) *bun.InsertQuery {
		return m.db.NewInsert().
			Model(&batch).
			On("CONFLICT (id) DO UPDATE").
			Set("price_eur = EXCLUDED.price_eur").
			Set("price_eur_foil = EXCLUDED.price_eur_foil").
			Set("updated_at = EXCLUDED.updated_at")
	})
	if err != nil {
		return err
	}

	slog.Info("Imported card catalog", slog.Int("count", len(cards)))
	return nil
}

// legacyUser mirrors one document of the legacy users dump.
type legacyUser struct {
	ID       string `bson:"user_id"`
	Username string `bson:"username"`
	APIToken string `bson:"api_token"`
	AutoFile *bool  `bson:"auto_file_incoming"`
}

func (m *Importer) ImportUsers(ctx context.Context) error {
	var users []*models.User
	now := time.Now()

	err := readBSONFile(filepath.Join(m.dataDir, "users.bson"), func(doc []byte) error {
		var lu legacyUser
		if err := bson.Unmarshal(doc, &lu); err != nil {
			return err
		}
		if lu.ID == "" {
			return nil
		}
		autoFile := true
		if lu.AutoFile != nil {
			autoFile = *lu.AutoFile
		}
		users = append(users, &models.User{
			ID:               lu.ID,
			Username:         lu.Username,
			APIToken:         lu.APIToken,
			AutoFileIncoming: autoFile,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	err = insertBatched(ctx, m.batchSize, users, func(batch []*models.User) *bun.InsertQuery {
		return m.db.NewInsert().Model(&batch).On("CONFLICT (id) DO NOTHING")
	})
	if err != nil {
		return err
	}
	slog.Info("Imported users", slog.Int("count", len(users)))
	return nil
}

// legacyItem mirrors one document of the legacy inventory dump.
type legacyItem struct {
	OwnerID   string `bson:"owner_id"`
	CardID    int64  `bson:"card_id"`
	Amount    int64  `bson:"amount"`
	Foil      int64  `bson:"foil"`
	Tradeable int64  `bson:"tradeable"`
	Condition string `bson:"condition"`
	Language  string `bson:"language"`
	IsAlter   bool   `bson:"is_alter"`
}

func (m *Importer) ImportInventory(ctx context.Context) error {
	validCards, err := m.validCardIDs(ctx)
	if err != nil {
		return err
	}

	var items []*models.InventoryItem
	skipped := 0
	now := time.Now()

	err = readBSONFile(filepath.Join(m.dataDir, "inventory.bson"), func(doc []byte) error {
		var li legacyItem
		if err := bson.Unmarshal(doc, &li); err != nil {
			return err
		}
		if li.OwnerID == "" || li.Amount <= 0 {
			return nil
		}
		if !validCards[li.CardID] {
			skipped++
			return nil
		}
		condition := li.Condition
		if condition == "" {
			condition = models.ConditionNearMint
		}
		language := li.Language
		if language == "" {
			language = "EN"
		}
		tradeable := li.Tradeable
		if tradeable > li.Amount {
			tradeable = li.Amount
		}
		items = append(items, &models.InventoryItem{
			OwnerID:           li.OwnerID,
			CardID:            li.CardID,
			TotalQuantity:     li.Amount,
			FoilQuantity:      minQty(li.Foil, li.Amount),
			Condition:         condition,
			Language:          language,
			IsAlter:           li.IsAlter,
			TradeableQuantity: tradeable,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	err = insertBatched(ctx, m.batchSize, items, func(batch []*models.InventoryItem) *bun.InsertQuery {
		return m.db.NewInsert().
			Model(&batch).
			On("CONFLICT (owner_id, card_id, condition, language, is_alter) DO NOTHING")
	})
	if err != nil {
		return err
	}
	slog.Info("Imported inventory",
		slog.Int("count", len(items)),
		slog.Int("skipped_unknown_card", skipped))
	return nil
}

// legacyWish mirrors one document of the legacy wishlist dump.
type legacyWish struct {
	OwnerID      string   `bson:"owner_id"`
	CardName     string   `bson:"card_name"`
	Priority     int      `bson:"priority"`
	MaxPrice     *float64 `bson:"max_price"`
	MinCondition string   `bson:"min_condition"`
	FoilOnly     bool     `bson:"foil_only"`
}

func (m *Importer) ImportWishlists(ctx context.Context) error {
	var wishes []*models.WishEntry
	now := time.Now()

	err := readBSONFile(filepath.Join(m.dataDir, "wishlists.bson"), func(doc []byte) error {
		var lw legacyWish
		if err := bson.Unmarshal(doc, &lw); err != nil {
			return err
		}
		if lw.OwnerID == "" || lw.CardName == "" {
			return nil
		}
		entry := &models.WishEntry{
			OwnerID:      lw.OwnerID,
			CardName:     lw.CardName,
			Priority:     lw.Priority,
			MinCondition: lw.MinCondition,
			FoilOnly:     lw.FoilOnly,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if lw.MaxPrice != nil {
			price := decimal.NewFromFloat(*lw.MaxPrice).Round(2)
			entry.MaxPrice = &price
		}
		wishes = append(wishes, entry)
		return nil
	})
	if err != nil {
		return err
	}

	err = insertBatched(ctx, m.batchSize, wishes, func(batch []*models.WishEntry) *bun.InsertQuery {
		return m.db.NewInsert().Model(&batch)
	})
	if err != nil {
		return err
	}
	slog.Info("Imported wishlists", slog.Int("count", len(wishes)))
	return nil
}

func (m *Importer) validCardIDs(ctx context.Context) (map[int64]bool, error) {
	var ids []int64
	err := m.db.NewSelect().
		Model((*models.Card)(nil)).
		Column("id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load card ids: %w", err)
	}
	valid := make(map[int64]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}
	return valid, nil
}

func insertBatched[T any](ctx context.Context, batchSize int, rows []T, build func([]T) *bun.InsertQuery) error {
	for lo := 0; lo < len(rows); lo += batchSize {
		hi := lo + batchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		if _, err := build(rows[lo:hi]).Exec(ctx); err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}
	return nil
}

// readBSONFile streams length-prefixed BSON documents from a raw collection
// dump. Each document starts with an int32 little-endian length that includes
// the four length bytes themselves.
func readBSONFile(path string, processDoc func([]byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Dump file missing, skipping", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	docCount := 0

	for {
		lengthBytes := make([]byte, 4)
		_, err := io.ReadFull(reader, lengthBytes)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read document length: %w", err)
		}

		length := int32(binary.LittleEndian.Uint32(lengthBytes))
		if length <= 4 || length > 16*1024*1024 {
			return fmt.Errorf("invalid document length %d in %s", length, path)
		}

		docBytes := make([]byte, length-4)
		if _, err := io.ReadFull(reader, docBytes); err != nil {
			return fmt.Errorf("failed to read document bytes: %w", err)
		}

		fullDocBytes := append(lengthBytes, docBytes...)
		if err := processDoc(fullDocBytes); err != nil {
			slog.Warn("Skipping malformed document",
				slog.String("path", path),
				slog.Int("doc", docCount+1),
				slog.Any("error", err))
			continue
		}
		docCount++
	}

	return nil
}

func minQty(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
