package trade

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/broadcast"
	"github.com/deckbinder/deckbinder/internal/config"
	"github.com/deckbinder/deckbinder/internal/database/models"
)

// In-memory fakes that mirror the guarded-write semantics of the real
// repositories.

type fakeSessionRepo struct {
	sessions      map[string]*models.TradeSession
	nextID        int64
	codeExistsErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.TradeSession{}}
}

func (f *fakeSessionRepo) DB() *bun.DB { return nil }

func (f *fakeSessionRepo) Create(_ context.Context, session *models.TradeSession, ttl time.Duration) error {
	f.nextID++
	session.ID = f.nextID
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
	f.sessions[session.Code] = session
	return nil
}

func (f *fakeSessionRepo) GetByCode(_ context.Context, code string) (*models.TradeSession, error) {
	session, ok := f.sessions[code]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sql.ErrNoRows)
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) GetOpenByUser(_ context.Context, userID string) ([]*models.TradeSession, error) {
	var out []*models.TradeSession
	for _, session := range f.sessions {
		if session.InitiatorID != userID && session.PartnerID != userID {
			continue
		}
		if session.Status == models.SessionPending || session.Status == models.SessionActive {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) CodeExists(_ context.Context, code string) (bool, error) {
	if f.codeExistsErr != nil {
		return false, f.codeExistsErr
	}
	_, ok := f.sessions[code]
	return ok, nil
}

func (f *fakeSessionRepo) ExpireIfDue(_ context.Context, session *models.TradeSession) (bool, error) {
	if session.Status != models.SessionPending || time.Now().Before(session.ExpiresAt) {
		return false, nil
	}
	if stored := f.byID(session.ID); stored != nil && stored.Status == models.SessionPending {
		stored.Status = models.SessionExpired
	}
	session.Status = models.SessionExpired
	return true, nil
}

func (f *fakeSessionRepo) Join(_ context.Context, sessionID int64, partnerID string) (bool, error) {
	stored := f.byID(sessionID)
	if stored == nil || stored.Status != models.SessionPending {
		return false, nil
	}
	if stored.PartnerID != "" && stored.PartnerID != partnerID {
		return false, nil
	}
	if !time.Now().Before(stored.ExpiresAt) {
		return false, nil
	}
	stored.PartnerID = partnerID
	stored.Status = models.SessionActive
	return true, nil
}

func (f *fakeSessionRepo) UpdateSelection(_ context.Context, sessionID int64, initiator bool, selection map[string]int64) (bool, error) {
	stored := f.byID(sessionID)
	if stored == nil || stored.Status != models.SessionActive {
		return false, nil
	}
	if initiator {
		stored.InitiatorSelection = selection
	} else {
		stored.PartnerSelection = selection
	}
	stored.InitiatorAccepted = false
	stored.PartnerAccepted = false
	return true, nil
}

func (f *fakeSessionRepo) SetAcceptance(_ context.Context, sessionID int64, initiator bool, accepted bool) (bool, error) {
	stored := f.byID(sessionID)
	if stored == nil || stored.Status != models.SessionActive {
		return false, nil
	}
	if initiator {
		stored.InitiatorAccepted = accepted
	} else {
		stored.PartnerAccepted = accepted
	}
	return true, nil
}

func (f *fakeSessionRepo) SaveCachedOffers(_ context.Context, sessionID int64, offers json.RawMessage) error {
	if stored := f.byID(sessionID); stored != nil {
		stored.CachedOffers = offers
	}
	return nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, sessionID int64) error {
	for code, session := range f.sessions {
		if session.ID == sessionID {
			delete(f.sessions, code)
			return nil
		}
	}
	return nil
}

func (f *fakeSessionRepo) ExpireOverdue(context.Context) (int64, error) {
	var count int64
	for _, session := range f.sessions {
		if session.Status == models.SessionPending && !time.Now().Before(session.ExpiresAt) {
			session.Status = models.SessionExpired
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepo) byID(id int64) *models.TradeSession {
	for _, session := range f.sessions {
		if session.ID == id {
			return session
		}
	}
	return nil
}

type fakeInventoryRepo struct {
	items map[string][]*models.InventoryItem
}

func (f *fakeInventoryRepo) GetTradeableByOwner(_ context.Context, ownerID string) ([]*models.InventoryItem, error) {
	var out []*models.InventoryItem
	for _, item := range f.items[ownerID] {
		if item.TradeableQuantity > 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeWishRepo struct {
	wishes map[string][]*models.WishEntry
}

func (f *fakeWishRepo) GetByOwnerID(_ context.Context, ownerID string) ([]*models.WishEntry, error) {
	return f.wishes[ownerID], nil
}

type fakeCardRepo struct {
	cards map[int64]*models.Card
}

func (f *fakeCardRepo) GetByID(_ context.Context, id int64) (*models.Card, error) {
	card, ok := f.cards[id]
	if !ok {
		return nil, fmt.Errorf("card not found: %w", sql.ErrNoRows)
	}
	return card, nil
}

func (f *fakeCardRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*models.Card, error) {
	out := make(map[int64]*models.Card, len(ids))
	for _, id := range ids {
		if card, ok := f.cards[id]; ok {
			out[id] = card
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return user, nil
}

func (f *fakeUserRepo) GetByToken(_ context.Context, token string) (*models.User, error) {
	for _, user := range f.users {
		if user.APIToken == token {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sql.ErrNoRows)
}

type fakeHistoryRepo struct {
	records []*models.TradeHistory
}

func (f *fakeHistoryRepo) GetByID(_ context.Context, id int64) (*models.TradeHistory, error) {
	for _, record := range f.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("history record not found: %w", sql.ErrNoRows)
}

func (f *fakeHistoryRepo) GetBySessionID(_ context.Context, sessionID int64) (*models.TradeHistory, error) {
	for _, record := range f.records {
		if record.SessionID == sessionID {
			return record, nil
		}
	}
	return nil, fmt.Errorf("history record not found: %w", sql.ErrNoRows)
}

func (f *fakeHistoryRepo) GetAllByUser(_ context.Context, userID string) ([]*models.TradeHistory, error) {
	var out []*models.TradeHistory
	for _, record := range f.records {
		if record.InitiatorID == userID || record.PartnerID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	created []*models.Notification
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeNotificationRepo) GetRecentByUser(_ context.Context, userID string, _ int) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, notification := range f.created {
		if notification.UserID == userID {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkAllRead(context.Context, string) error { return nil }

type testEnv struct {
	service       *Service
	sessions      *fakeSessionRepo
	inventory     *fakeInventoryRepo
	wishes        *fakeWishRepo
	notifications *fakeNotificationRepo
	history       *fakeHistoryRepo
}

func newTestEnv() *testEnv {
	sessions := newFakeSessionRepo()
	inventory := &fakeInventoryRepo{items: map[string][]*models.InventoryItem{}}
	wishes := &fakeWishRepo{wishes: map[string][]*models.WishEntry{}}
	cards := &fakeCardRepo{cards: map[int64]*models.Card{}}
	users := &fakeUserRepo{users: map[string]*models.User{
		"alice": {ID: "alice", Username: "alice", APIToken: "tok-a", AutoFileIncoming: true},
		"bob":   {ID: "bob", Username: "bob", APIToken: "tok-b", AutoFileIncoming: true},
		"carol": {ID: "carol", Username: "carol", APIToken: "tok-c"},
	}}
	history := &fakeHistoryRepo{}
	notifications := &fakeNotificationRepo{}

	service := NewService(sessions, inventory, wishes, cards, users, history, notifications,
		broadcast.Noop{}, config.TradeConfig{SessionTTLHours: 1})

	return &testEnv{
		service:       service,
		sessions:      sessions,
		inventory:     inventory,
		wishes:        wishes,
		notifications: notifications,
		history:       history,
	}
}

func Test_Service_CreateSession(t *testing.T) {
	tests := []struct {
		name        string
		initiatorID string
		partnerID   string
		wantStatus  models.SessionStatus
		wantErr     error
	}{
		{
			name:        "open session stays pending",
			initiatorID: "alice",
			wantStatus:  models.SessionPending,
		},
		{
			name:        "targeted session is active immediately",
			initiatorID: "alice",
			partnerID:   "bob",
			wantStatus:  models.SessionActive,
		},
		{
			name:        "self target rejected",
			initiatorID: "alice",
			partnerID:   "alice",
			wantErr:     ErrInvalidState,
		},
		{
			name:        "unknown partner rejected",
			initiatorID: "alice",
			partnerID:   "nobody",
			wantErr:     ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			session, err := env.service.CreateSession(context.Background(), tt.initiatorID, tt.partnerID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CreateSession() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			if session.Status != tt.wantStatus {
				t.Errorf("CreateSession() status = %v, want %v", session.Status, tt.wantStatus)
			}
			if len(session.Code) != 8 || session.Code[:2] != "TR" {
				t.Errorf("CreateSession() code = %q, want TRnnnnnn", session.Code)
			}
		})
	}
}

func Test_Service_CreateSession_CodeLookupFailure(t *testing.T) {
	env := newTestEnv()
	lookupErr := errors.New("connection reset")
	env.sessions.codeExistsErr = lookupErr

	_, err := env.service.CreateSession(context.Background(), "alice", "")
	if !errors.Is(err, lookupErr) {
		t.Errorf("CreateSession() error = %v, want the lookup failure preserved as cause", err)
	}
}

func Test_Service_JoinSession(t *testing.T) {
	ctx := context.Background()

	t.Run("join pending session", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "")

		session, err := env.service.JoinSession(ctx, "bob", created.Code)
		if err != nil {
			t.Fatalf("JoinSession() error = %v", err)
		}
		if session.Status != models.SessionActive || session.PartnerID != "bob" {
			t.Errorf("JoinSession() = %v/%v, want active/bob", session.Status, session.PartnerID)
		}
		if len(env.notifications.created) != 1 || env.notifications.created[0].UserID != "alice" {
			t.Errorf("JoinSession() should notify the initiator, got %+v", env.notifications.created)
		}
	})

	t.Run("re-join by same partner is a no-op success", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "")
		if _, err := env.service.JoinSession(ctx, "bob", created.Code); err != nil {
			t.Fatalf("first join error = %v", err)
		}

		session, err := env.service.JoinSession(ctx, "bob", created.Code)
		if err != nil {
			t.Fatalf("re-join error = %v", err)
		}
		if session.PartnerID != "bob" {
			t.Errorf("re-join partner = %v, want bob", session.PartnerID)
		}
	})

	t.Run("initiator cannot join own session", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "")
		if _, err := env.service.JoinSession(ctx, "alice", created.Code); !errors.Is(err, ErrInvalidState) {
			t.Errorf("JoinSession() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("third party cannot displace partner", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.JoinSession(ctx, "carol", created.Code); !errors.Is(err, ErrForbidden) {
			t.Errorf("JoinSession() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("expired session rejects joins", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "")
		env.sessions.byID(created.ID).ExpiresAt = time.Now().Add(-time.Minute)

		if _, err := env.service.JoinSession(ctx, "bob", created.Code); !errors.Is(err, ErrInvalidState) {
			t.Errorf("JoinSession() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		env := newTestEnv()
		if _, err := env.service.JoinSession(ctx, "bob", "TR000000"); !errors.Is(err, ErrNotFound) {
			t.Errorf("JoinSession() error = %v, want ErrNotFound", err)
		}
	})
}

func Test_Service_UpdateSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("selection resets both acceptance flags", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.SetAcceptance(ctx, "alice", created.Code, true); err != nil {
			t.Fatalf("SetAcceptance() error = %v", err)
		}
		if _, err := env.service.SetAcceptance(ctx, "bob", created.Code, true); err != nil {
			t.Fatalf("SetAcceptance() error = %v", err)
		}

		session, err := env.service.UpdateSelection(ctx, "bob", created.Code, map[string]int64{"7": 2})
		if err != nil {
			t.Fatalf("UpdateSelection() error = %v", err)
		}
		if session.InitiatorAccepted || session.PartnerAccepted {
			t.Errorf("UpdateSelection() left acceptance flags set: %v/%v",
				session.InitiatorAccepted, session.PartnerAccepted)
		}
		if !reflect.DeepEqual(session.PartnerSelection, map[string]int64{"7": 2}) {
			t.Errorf("UpdateSelection() selection = %v", session.PartnerSelection)
		}
	})

	t.Run("malformed entries are dropped", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")

		session, err := env.service.UpdateSelection(ctx, "alice", created.Code, map[string]int64{
			"12":        3,
			"not-an-id": 1,
			"44":        0,
			"45":        -2,
		})
		if err != nil {
			t.Fatalf("UpdateSelection() error = %v", err)
		}
		want := map[string]int64{"12": 3}
		if !reflect.DeepEqual(session.InitiatorSelection, want) {
			t.Errorf("UpdateSelection() selection = %v, want %v", session.InitiatorSelection, want)
		}
	})

	t.Run("non-participant forbidden", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.UpdateSelection(ctx, "carol", created.Code, nil); !errors.Is(err, ErrForbidden) {
			t.Errorf("UpdateSelection() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("pending session rejects selection", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "")
		if _, err := env.service.UpdateSelection(ctx, "alice", created.Code, nil); !errors.Is(err, ErrInvalidState) {
			t.Errorf("UpdateSelection() error = %v, want ErrInvalidState", err)
		}
	})
}

func Test_Service_SetAcceptance(t *testing.T) {
	ctx := context.Background()

	t.Run("acceptance notifies the counterpart", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		env.notifications.created = nil

		session, err := env.service.SetAcceptance(ctx, "bob", created.Code, true)
		if err != nil {
			t.Fatalf("SetAcceptance() error = %v", err)
		}
		if !session.PartnerAccepted || session.InitiatorAccepted {
			t.Errorf("SetAcceptance() flags = %v/%v, want partner only",
				session.InitiatorAccepted, session.PartnerAccepted)
		}
		if len(env.notifications.created) != 1 {
			t.Fatalf("expected one notification, got %d", len(env.notifications.created))
		}
		got := env.notifications.created[0]
		if got.UserID != "alice" || got.Kind != models.NotifyAccepted {
			t.Errorf("notification = %v/%v, want alice/accepted", got.UserID, got.Kind)
		}
	})

	t.Run("retraction notifies as rejected", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		env.notifications.created = nil

		if _, err := env.service.SetAcceptance(ctx, "alice", created.Code, false); err != nil {
			t.Fatalf("SetAcceptance() error = %v", err)
		}
		got := env.notifications.created[len(env.notifications.created)-1]
		if got.UserID != "bob" || got.Kind != models.NotifyRejected {
			t.Errorf("notification = %v/%v, want bob/rejected", got.UserID, got.Kind)
		}
	})
}

func Test_Service_ViewOffers(t *testing.T) {
	ctx := context.Background()

	t.Run("active session computes live offers", func(t *testing.T) {
		env := newTestEnv()
		card := &models.Card{ID: 1, Name: "Lightning Bolt", PriceEur: decimal.NewFromFloat(2.50)}
		env.inventory.items["alice"] = []*models.InventoryItem{
			{ID: 10, OwnerID: "alice", CardID: 1, TotalQuantity: 4, TradeableQuantity: 4, Card: card},
		}
		env.wishes.wishes["bob"] = []*models.WishEntry{{OwnerID: "bob", CardName: "Lightning Bolt"}}

		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		view, err := env.service.ViewOffers(ctx, "alice", created.Code)
		if err != nil {
			t.Fatalf("ViewOffers() error = %v", err)
		}
		if len(view.InitiatorOffers) != 1 || !view.InitiatorOffers[0].IsMatch {
			t.Errorf("ViewOffers() initiator offers = %+v, want one match", view.InitiatorOffers)
		}
		if got := env.sessions.byID(created.ID).CachedOffers; len(got) == 0 {
			t.Error("ViewOffers() did not memoize the computation")
		}
	})

	t.Run("completed session serves the frozen record", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		env.sessions.byID(created.ID).Status = models.SessionCompleted
		env.history.records = append(env.history.records, &models.TradeHistory{
			ID:             1,
			SessionID:      created.ID,
			InitiatorID:    "alice",
			PartnerID:      "bob",
			InitiatorValue: decimal.NewFromFloat(5.00),
		})

		view, err := env.service.ViewOffers(ctx, "bob", created.Code)
		if err != nil {
			t.Fatalf("ViewOffers() error = %v", err)
		}
		if view.History == nil || !view.InitiatorValue.Equal(decimal.NewFromFloat(5.00)) {
			t.Errorf("ViewOffers() = %+v, want frozen history", view)
		}
		if view.InitiatorOffers != nil {
			t.Error("ViewOffers() computed live offers for a completed session")
		}
	})

	t.Run("non-participant forbidden", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.ViewOffers(ctx, "carol", created.Code); !errors.Is(err, ErrForbidden) {
			t.Errorf("ViewOffers() error = %v, want ErrForbidden", err)
		}
	})
}

func Test_Service_Complete_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("partner cannot complete", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.Complete(ctx, "bob", created.Code); !errors.Is(err, ErrForbidden) {
			t.Errorf("Complete() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("non-participant gets forbidden", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if _, err := env.service.Complete(ctx, "carol", created.Code); !errors.Is(err, ErrForbidden) {
			t.Errorf("Complete() error = %v, want ErrForbidden", err)
		}
	})
}

func Test_Service_DeleteSession(t *testing.T) {
	ctx := context.Background()

	t.Run("initiator deletes, partner is notified", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		env.notifications.created = nil

		if err := env.service.DeleteSession(ctx, "alice", created.Code); err != nil {
			t.Fatalf("DeleteSession() error = %v", err)
		}
		if _, err := env.service.JoinSession(ctx, "bob", created.Code); !errors.Is(err, ErrNotFound) {
			t.Errorf("session still reachable after delete: %v", err)
		}
		if len(env.notifications.created) != 1 || env.notifications.created[0].Kind != models.NotifyDeleted {
			t.Errorf("delete notification = %+v", env.notifications.created)
		}
	})

	t.Run("partner cannot delete", func(t *testing.T) {
		env := newTestEnv()
		created, _ := env.service.CreateSession(ctx, "alice", "bob")
		if err := env.service.DeleteSession(ctx, "bob", created.Code); !errors.Is(err, ErrForbidden) {
			t.Errorf("DeleteSession() error = %v, want ErrForbidden", err)
		}
	})
}

func Test_Service_PostMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	created, _ := env.service.CreateSession(ctx, "alice", "bob")
	env.notifications.created = nil

	if err := env.service.PostMessage(ctx, "alice", created.Code, "trade tonight?"); err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if len(env.notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(env.notifications.created))
	}
	got := env.notifications.created[0]
	if got.UserID != "bob" || got.Kind != models.NotifyMessage || got.Body != "trade tonight?" {
		t.Errorf("message notification = %+v", got)
	}

	if err := env.service.PostMessage(ctx, "alice", created.Code, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("PostMessage() empty body error = %v, want ErrInvalidState", err)
	}
}

func Test_Service_GetHistoryRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.history.records = append(env.history.records, &models.TradeHistory{
		ID:          1,
		InitiatorID: "alice",
		PartnerID:   "bob",
	})

	if _, err := env.service.GetHistoryRecord(ctx, "alice", 1); err != nil {
		t.Errorf("GetHistoryRecord() participant error = %v", err)
	}
	if _, err := env.service.GetHistoryRecord(ctx, "carol", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetHistoryRecord() outsider error = %v, want ErrNotFound", err)
	}
	if _, err := env.service.GetHistoryRecord(ctx, "alice", 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetHistoryRecord() missing error = %v, want ErrNotFound", err)
	}
}

func Test_Service_ListOpenSessions_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	fresh, _ := env.service.CreateSession(ctx, "alice", "")
	stale, _ := env.service.CreateSession(ctx, "alice", "")
	env.sessions.byID(stale.ID).ExpiresAt = time.Now().Add(-time.Minute)

	open, err := env.service.ListOpenSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListOpenSessions() error = %v", err)
	}
	if len(open) != 1 || open[0].Code != fresh.Code {
		t.Errorf("ListOpenSessions() = %+v, want only %s", open, fresh.Code)
	}
	if got := env.sessions.byID(stale.ID).Status; got != models.SessionExpired {
		t.Errorf("stale session status = %v, want expired", got)
	}
}
