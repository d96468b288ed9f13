// Package matching computes mutual-interest offers between two users'
// inventories. It is a pure function of its snapshots: no I/O, no mutation,
// identical output for identical input.
package matching

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

// Snapshot is one side's tradeable stock and wish list, with card facts
// already joined in by the reader.
type Snapshot struct {
	OwnerID string
	Items   []*models.InventoryItem
	Wishes  []*models.WishEntry
}

// Offer annotates one tradeable stack with whether the counterpart wants it.
type Offer struct {
	Item              *models.InventoryItem `json:"item"`
	IsMatch           bool                  `json:"is_match"`
	AvailableQuantity int64                 `json:"available_quantity"`
	UnitPrice         decimal.Decimal       `json:"unit_price"`
}

// Result pairs both sides' offer lists with their aggregate matched values.
type Result struct {
	OffersA     []Offer         `json:"offers_a"`
	OffersB     []Offer         `json:"offers_b"`
	TotalValueA decimal.Decimal `json:"total_value_a"`
	TotalValueB decimal.Decimal `json:"total_value_b"`
}

// ComputeOffers flags every tradeable stack of each side that the other side
// wishes for. Matching is by card name only, case-insensitive, independent of
// printing; wish condition and foil constraints are carried as data for the
// negotiating parties but do not filter the offer list.
func ComputeOffers(a, b Snapshot) Result {
	wantedByB := wantedNames(b.Wishes)
	wantedByA := wantedNames(a.Wishes)

	offersA, totalA := buildOffers(a.Items, wantedByB)
	offersB, totalB := buildOffers(b.Items, wantedByA)

	return Result{
		OffersA:     offersA,
		OffersB:     offersB,
		TotalValueA: totalA,
		TotalValueB: totalB,
	}
}

// wantedNames builds the lower-cased, de-duplicated wish-name set.
func wantedNames(wishes []*models.WishEntry) map[string]struct{} {
	names := make(map[string]struct{}, len(wishes))
	for _, w := range wishes {
		names[strings.ToLower(w.CardName)] = struct{}{}
	}
	return names
}

func buildOffers(items []*models.InventoryItem, wanted map[string]struct{}) ([]Offer, decimal.Decimal) {
	offers := make([]Offer, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		if item.TradeableQuantity <= 0 {
			continue
		}

		_, isMatch := wanted[strings.ToLower(cardName(item))]
		offer := Offer{
			Item:              item,
			IsMatch:           isMatch,
			AvailableQuantity: item.TradeableQuantity,
			UnitPrice:         UnitPrice(item),
		}
		offers = append(offers, offer)

		if isMatch {
			total = total.Add(offer.UnitPrice.Mul(decimal.NewFromInt(offer.AvailableQuantity)))
		}
	}

	sortOffers(offers)
	return offers, total.Round(2)
}

// sortOffers surfaces actionable items first: matches before non-matches,
// then alphabetical by name, then stack id for a stable order.
func sortOffers(offers []Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].IsMatch != offers[j].IsMatch {
			return offers[i].IsMatch
		}
		ni := strings.ToLower(cardName(offers[i].Item))
		nj := strings.ToLower(cardName(offers[j].Item))
		if ni != nj {
			return ni < nj
		}
		return offers[i].Item.ID < offers[j].Item.ID
	})
}

// UnitPrice picks the foil price for foil-bearing stacks, otherwise the
// normal price. Stacks without card facts are worth zero.
func UnitPrice(item *models.InventoryItem) decimal.Decimal {
	if item.Card == nil {
		return decimal.Zero
	}
	if item.FoilQuantity > 0 {
		return item.Card.PriceEurFoil
	}
	return item.Card.PriceEur
}

func cardName(item *models.InventoryItem) string {
	if item.Card == nil {
		return ""
	}
	return item.Card.Name
}
