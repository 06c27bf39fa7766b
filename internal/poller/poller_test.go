package poller

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/cache"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/lock"
	"github.com/wealthdesk/exchange-gateway/internal/mandates"
	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/internal/vault"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&types.Order{}, &types.Mandate{}, &credentials.Credential{}, &batch.RunLog{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	key := make([]byte, 32)
	rand.Read(key)
	v, err := vault.New(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// fakeStore backs the lock coordinator in memory. held simulates another
// instance owning every lock.
type fakeStore struct {
	held bool
	keys map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]string)}
}

func (s *fakeStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if s.held {
		return false, nil
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = value
	return true, nil
}

func (s *fakeStore) ReleaseIfOwner(ctx context.Context, key, value string) (bool, error) {
	if s.keys[key] == value {
		delete(s.keys, key)
		return true, nil
	}
	return false, nil
}

type fakeClient struct {
	orderRecords   []partner.OrderStatusRecord
	orderErr       error
	orderCalls     int
	mandateRecords []partner.MandateStatusRecord
	mandateErr     error
}

func (f *fakeClient) Exchange() types.Exchange { return types.ExchangeB }

func (f *fakeClient) SubmitOrder(ctx context.Context, creds partner.Credentials, req partner.OrderRequest) (*partner.OrderAck, error) {
	return nil, nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, creds partner.Credentials, op types.OrderType, id string) (*partner.Result, error) {
	return nil, nil
}

func (f *fakeClient) OrderStatuses(ctx context.Context, creds partner.Credentials, ids []string) ([]partner.OrderStatusRecord, error) {
	f.orderCalls++
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.orderRecords, nil
}

func (f *fakeClient) InitiatePayment(ctx context.Context, creds partner.Credentials, req partner.PaymentRequest) (*partner.PaymentAck, error) {
	return nil, nil
}

func (f *fakeClient) RegisterMandate(ctx context.Context, creds partner.Credentials, req partner.MandateRequest) (*partner.MandateAck, error) {
	return nil, nil
}

func (f *fakeClient) MandateStatuses(ctx context.Context, creds partner.Credentials, ids []string) ([]partner.MandateStatusRecord, error) {
	if f.mandateErr != nil {
		return nil, f.mandateErr
	}
	return f.mandateRecords, nil
}

func (f *fakeClient) Ping(ctx context.Context, creds partner.Credentials) error { return nil }

type fixture struct {
	db      *gorm.DB
	client  *fakeClient
	store   *fakeStore
	creds   *credentials.Service
	tracker *batch.Tracker
}

func newFixture(t *testing.T, advisors ...string) *fixture {
	t.Helper()
	db := testDB(t)
	client := &fakeClient{}
	clients := map[types.Exchange]partner.Client{types.ExchangeB: client}
	credsSvc := credentials.NewService(db, testVault(t), clients)

	for _, advisorID := range advisors {
		if _, err := credsSvc.Set(advisorID, types.ExchangeB, credentials.SetParams{
			MemberID:   "M001",
			LoginID:    advisorID,
			Secret:     "api-secret",
			LicenseKey: "0123456789abcdef",
		}); err != nil {
			t.Fatal(err)
		}
	}

	return &fixture{
		db:      db,
		client:  client,
		store:   newFakeStore(),
		creds:   credsSvc,
		tracker: batch.NewTracker(db),
	}
}

func (f *fixture) orderPoller() *OrderPoller {
	return NewOrderPoller(OrderPollerConfig{
		Exchange:    types.ExchangeB,
		DB:          orders.NewDatabase(f.db),
		Credentials: f.creds,
		Client:      f.client,
		Locks:       lock.NewCoordinator(f.store),
		Tracker:     f.tracker,
		Cache:       cache.NewInvalidator(nil),
	})
}

func (f *fixture) mandatePoller() *MandatePoller {
	svc := mandates.NewService(f.db, queue.NewMemory(1), f.creds, map[types.Exchange]partner.Client{types.ExchangeB: f.client}, cache.NewInvalidator(nil))
	return NewMandatePoller(MandatePollerConfig{
		Exchange:    types.ExchangeB,
		Service:     svc,
		Credentials: f.creds,
		Client:      f.client,
		Locks:       lock.NewCoordinator(f.store),
		Tracker:     f.tracker,
	})
}

func seedSubmittedOrder(t *testing.T, db *gorm.DB, advisorID, orderID, externalID string) {
	t.Helper()
	order := &types.Order{
		OrderID:         orderID,
		AdvisorID:       advisorID,
		ClientID:        "client-1",
		Exchange:        types.ExchangeB,
		OrderType:       types.OrderPurchase,
		Status:          types.OrderSubmitted,
		SchemeCode:      "GF01",
		ExternalOrderID: &externalID,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatal(err)
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestOrderPollerAppliesAllotment(t *testing.T) {
	f := newFixture(t, "adv-1")
	seedSubmittedOrder(t, f.db, "adv-1", "ord-1", "EXT-1")
	f.client.orderRecords = []partner.OrderStatusRecord{{
		ExternalOrderID: "EXT-1",
		Status:          "ALLOTMENT_DONE",
		AllottedUnits:   floatPtr(123.45),
		AllottedNAV:     floatPtr(40.5),
		AllottedAmount:  floatPtr(4999.72),
	}}

	p := f.orderPoller()
	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	var order types.Order
	if err := f.db.Where("order_id = ?", "ord-1").First(&order).Error; err != nil {
		t.Fatal(err)
	}
	if order.Status != types.OrderAllotted {
		t.Fatalf("status = %s, want ALLOTTED", order.Status)
	}
	if order.AllottedUnits == nil || *order.AllottedUnits != 123.45 {
		t.Errorf("allotted units = %v", order.AllottedUnits)
	}
	if order.AllottedAt == nil {
		t.Error("allotted_at not stamped")
	}
	if order.PartnerCode != "ALLOTMENT_DONE" {
		t.Errorf("partner code = %q", order.PartnerCode)
	}

	run, err := f.tracker.Database().LatestRun(p.Name())
	if err != nil {
		t.Fatal(err)
	}
	if run == nil || run.Status != batch.RunCompleted {
		t.Fatalf("run = %+v", run)
	}
	if run.RecordsTotal != 1 || run.RecordsSynced != 1 {
		t.Errorf("counts = %d/%d", run.RecordsTotal, run.RecordsSynced)
	}
}

func TestOrderPollerSkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t, "adv-1")
	f.store.held = true
	seedSubmittedOrder(t, f.db, "adv-1", "ord-1", "EXT-1")

	p := f.orderPoller()
	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.client.orderCalls != 0 {
		t.Errorf("no partner call expected, got %d", f.client.orderCalls)
	}

	run, _ := f.tracker.Database().LatestRun(p.Name())
	if run != nil {
		t.Errorf("skipped cycle must not log a run, got %+v", run)
	}
}

func TestOrderPollerUnknownStatusLeavesOrder(t *testing.T) {
	f := newFixture(t, "adv-1")
	seedSubmittedOrder(t, f.db, "adv-1", "ord-1", "EXT-1")
	f.client.orderRecords = []partner.OrderStatusRecord{{ExternalOrderID: "EXT-1", Status: "IN_TRANSIT"}}

	if err := f.orderPoller().Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	var order types.Order
	f.db.Where("order_id = ?", "ord-1").First(&order)
	if order.Status != types.OrderSubmitted {
		t.Errorf("status = %s, want SUBMITTED unchanged", order.Status)
	}
}

func TestOrderPollerAdvisorFailureIsIsolated(t *testing.T) {
	f := newFixture(t, "adv-1")
	// adv-2 has no credentials configured; its order counts as failed.
	seedSubmittedOrder(t, f.db, "adv-1", "ord-1", "EXT-1")
	seedSubmittedOrder(t, f.db, "adv-2", "ord-2", "EXT-2")
	f.client.orderRecords = []partner.OrderStatusRecord{{ExternalOrderID: "EXT-1", Status: "ACCEPTED"}}

	p := f.orderPoller()
	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	var order types.Order
	f.db.Where("order_id = ?", "ord-1").First(&order)
	if order.Status != types.OrderAccepted {
		t.Errorf("adv-1 order status = %s, want ACCEPTED", order.Status)
	}

	run, _ := f.tracker.Database().LatestRun(p.Name())
	if run.RecordsTotal != 2 || run.RecordsSynced != 1 || run.RecordsFailed != 1 {
		t.Errorf("counts = %d/%d/%d", run.RecordsTotal, run.RecordsSynced, run.RecordsFailed)
	}
}

func TestOrderPollerReportFailureRecordsFailedRun(t *testing.T) {
	f := newFixture(t, "adv-1")
	seedSubmittedOrder(t, f.db, "adv-1", "ord-1", "EXT-1")
	f.client.orderErr = errors.New("gateway timeout")

	p := f.orderPoller()
	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	run, _ := f.tracker.Database().LatestRun(p.Name())
	if run.RecordsFailed != 1 {
		t.Errorf("records failed = %d, want 1", run.RecordsFailed)
	}

	var order types.Order
	f.db.Where("order_id = ?", "ord-1").First(&order)
	if order.Status != types.OrderSubmitted {
		t.Errorf("status = %s, want SUBMITTED unchanged", order.Status)
	}
}

func TestMandatePollerAppliesApproval(t *testing.T) {
	f := newFixture(t, "adv-1")
	externalID := "MND-1"
	now := time.Now()
	mandate := &types.Mandate{
		MandateID:         "mnd-1",
		AdvisorID:         "adv-1",
		ClientID:          "client-1",
		Exchange:          types.ExchangeB,
		MandateType:       types.MandateENach,
		Status:            types.MandateSubmitted,
		Amount:            25000,
		ExternalMandateID: &externalID,
		SubmittedAt:       &now,
	}
	if err := f.db.Create(mandate).Error; err != nil {
		t.Fatal(err)
	}
	f.client.mandateRecords = []partner.MandateStatusRecord{{
		ExternalMandateID: "MND-1",
		Status:            "AUTH_SUCCESS",
		UMRN:              "UMRN00099",
	}}

	p := f.mandatePoller()
	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	var stored types.Mandate
	if err := f.db.Where("mandate_id = ?", "mnd-1").First(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != types.MandateApproved {
		t.Errorf("status = %s, want APPROVED", stored.Status)
	}
	if stored.UMRN != "UMRN00099" {
		t.Errorf("umrn = %q", stored.UMRN)
	}

	run, _ := f.tracker.Database().LatestRun(p.Name())
	if run == nil || run.Status != batch.RunCompleted || run.RecordsSynced != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestMapOrderStatus(t *testing.T) {
	cases := []struct {
		in   string
		want types.OrderStatus
	}{
		{"ALLOTTED", types.OrderAllotted},
		{"allotment done", types.OrderAllotted},
		{"ACCEPTED", types.OrderAccepted},
		{"VALIDATED", types.OrderAccepted},
		{"REJECTED", types.OrderRejected},
		{"CANCELLED", types.OrderCancelled},
		{"FAILED", types.OrderFailed},
		{"IN_TRANSIT", ""},
	}
	for _, c := range cases {
		if got := MapOrderStatus(c.in); got != c.want {
			t.Errorf("MapOrderStatus(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
