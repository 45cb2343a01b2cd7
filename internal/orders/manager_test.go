package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/balance"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/venue"
)

// fakeVenue lets tests script exact PlaceOrder/OrderStatus responses
// without going over the network.
type fakeVenue struct {
	placeResult venue.PlaceOrderResult
	placeErr    error
	statuses    map[string]venue.VenueOrder
	cancelErr   error
	cancelled   []string
}

func (f *fakeVenue) PlaceOrder(tokenID string, price, size decimal.Decimal, side string) (venue.PlaceOrderResult, error) {
	return f.placeResult, f.placeErr
}

func (f *fakeVenue) OrderStatus(orderID string) (venue.VenueOrder, error) {
	return f.statuses[orderID], nil
}

func (f *fakeVenue) CancelOrder(orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

func newTestManager(t *testing.T, v VenueClient, maxBuyPrice decimal.Decimal) (*Manager, *balance.Manager, *storage.ApprovalRepository) {
	t.Helper()
	dsn := t.TempDir() + "/test.db"
	store, err := storage.Open(dsn, config.BackoffConfig{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bal := balance.NewManager(decimal.NewFromInt(1000), decimal.Zero, func() (decimal.Decimal, error) {
		return decimal.NewFromInt(1000), nil
	})

	approvals := storage.NewApprovalRepository(store)
	mgr := NewManager(v, storage.NewOrderRepository(store), bal, approvals, Config{
		MaxBuyPrice: maxBuyPrice,
		Mode:        storage.ModePaper,
	})
	return mgr, bal, approvals
}

func TestSubmit_RejectsBuyAbovePriceCap(t *testing.T) {
	mgr, _, _ := newTestManager(t, &fakeVenue{}, decimal.NewFromFloat(0.95))

	_, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.99), decimal.NewFromInt(10), "threshold_cross")
	if err == nil {
		t.Fatal("expected price cap rejection")
	}
}

func TestSubmit_SellBypassesPriceCap(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1", Status: "live"}}
	mgr, _, _ := newTestManager(t, v, decimal.NewFromFloat(0.5))

	order, err := mgr.Submit("tok-a", "0xC", "SELL", decimal.NewFromFloat(0.99), decimal.NewFromInt(10), "exit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != storage.OrderLive {
		t.Fatalf("expected LIVE, got %s", order.Status)
	}
}

func TestSubmit_EmptyOrderIDTreatedAsFailure(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: ""}}
	mgr, bal, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))

	before := bal.AvailableBalance()
	_, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross")
	if err == nil {
		t.Fatal("expected error for empty order_id")
	}
	after := bal.AvailableBalance()
	if !before.Equal(after) {
		t.Fatalf("expected reservation released, before=%v after=%v", before, after)
	}
}

func TestSubmit_ReservesForBuy(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1"}}
	mgr, bal, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))

	_, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := bal.AvailableBalance(); !got.Equal(decimal.NewFromInt(995)) {
		t.Fatalf("expected available balance 995 after $5 reservation, got %v", got)
	}
}

func TestSyncStatus_PartialThenFilledReleasesReservation(t *testing.T) {
	v := &fakeVenue{
		placeResult: venue.PlaceOrderResult{OrderID: "v1"},
		statuses:    map[string]venue.VenueOrder{},
	}
	mgr, bal, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))

	order, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v.statuses["v1"] = venue.VenueOrder{Status: "live", Size: order.Size, Filled: decimal.NewFromInt(4), AvgPrice: decimal.NewFromFloat(0.5)}
	if err := mgr.SyncStatus("v1"); err != nil {
		t.Fatalf("sync partial: %v", err)
	}
	partial := bal.AvailableBalance()

	v.statuses["v1"] = venue.VenueOrder{Status: "live", Size: order.Size, Filled: decimal.NewFromInt(10), AvgPrice: decimal.NewFromFloat(0.5)}
	if err := mgr.SyncStatus("v1"); err != nil {
		t.Fatalf("sync filled: %v", err)
	}
	final := bal.AvailableBalance()

	if final.LessThanOrEqual(partial) {
		t.Fatalf("expected reservation to fully release on fill: partial=%v final=%v", partial, final)
	}
	if got, ok := mgr.Get("v1"); !ok || got.Status != storage.OrderFilled {
		t.Fatalf("expected cached order marked FILLED, got %+v ok=%v", got, ok)
	}
}

func TestSyncStatus_AcceptsBothCancelSpellings(t *testing.T) {
	for _, spelling := range []string{"CANCELED", "CANCELLED"} {
		v := &fakeVenue{
			placeResult: venue.PlaceOrderResult{OrderID: "v1"},
			statuses:    map[string]venue.VenueOrder{},
		}
		mgr, _, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))
		order, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		v.statuses["v1"] = venue.VenueOrder{Status: spelling, Size: order.Size, Filled: decimal.Zero}
		if err := mgr.SyncStatus("v1"); err != nil {
			t.Fatalf("sync cancel (%s): %v", spelling, err)
		}
		got, ok := mgr.Get("v1")
		if !ok || got.Status != storage.OrderCancelled {
			t.Fatalf("spelling %s: expected CANCELLED, got %+v ok=%v", spelling, got, ok)
		}
	}
}

func TestSubmit_ApprovalOverridesPriceCap(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1"}}
	mgr, _, approvals := newTestManager(t, v, decimal.NewFromFloat(0.5))

	if err := approvals.Create(&storage.Approval{
		TokenID:   "tok-a",
		MaxPrice:  decimal.NewFromFloat(0.99),
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create approval: %v", err)
	}

	order, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.9), decimal.NewFromInt(10), "threshold_cross")
	if err != nil {
		t.Fatalf("expected approval to override price cap, got err: %v", err)
	}
	if order.Status != storage.OrderLive {
		t.Fatalf("expected LIVE, got %s", order.Status)
	}

	active, err := approvals.ActiveForToken("tok-a")
	if err == nil || active != nil {
		t.Fatalf("expected approval consumed after use, got active=%+v err=%v", active, err)
	}
}

func TestSubmit_ApprovalDoesNotCoverPriceAboveItsMax(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1"}}
	mgr, _, approvals := newTestManager(t, v, decimal.NewFromFloat(0.5))

	if err := approvals.Create(&storage.Approval{
		TokenID:   "tok-a",
		MaxPrice:  decimal.NewFromFloat(0.7),
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create approval: %v", err)
	}

	_, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.9), decimal.NewFromInt(10), "threshold_cross")
	if err == nil {
		t.Fatal("expected price cap rejection: approval max_price does not cover requested price")
	}
}

func TestSubmit_ExpiredApprovalDoesNotOverridePriceCap(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1"}}
	mgr, _, approvals := newTestManager(t, v, decimal.NewFromFloat(0.5))

	if err := approvals.Create(&storage.Approval{
		TokenID:   "tok-a",
		MaxPrice:  decimal.NewFromFloat(0.99),
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create approval: %v", err)
	}

	_, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.9), decimal.NewFromInt(10), "threshold_cross")
	if err == nil {
		t.Fatal("expected price cap rejection: approval expired")
	}
}

func TestOutstanding_ExcludesTerminalOrders(t *testing.T) {
	v := &fakeVenue{
		placeResult: venue.PlaceOrderResult{OrderID: "v1"},
		statuses:    map[string]venue.VenueOrder{},
	}
	mgr, _, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))

	order, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mgr.Outstanding(); len(got) != 1 || got[0] != order.OrderID {
		t.Fatalf("expected [%s] outstanding, got %v", order.OrderID, got)
	}

	v.statuses[order.OrderID] = venue.VenueOrder{Status: "FILLED", Size: order.Size, Filled: order.Size, AvgPrice: decimal.NewFromFloat(0.5)}
	if err := mgr.SyncStatus(order.OrderID); err != nil {
		t.Fatalf("sync filled: %v", err)
	}

	if got := mgr.Outstanding(); len(got) != 0 {
		t.Fatalf("expected no outstanding orders after fill, got %v", got)
	}
}

func TestCancel_IsIdempotent(t *testing.T) {
	v := &fakeVenue{placeResult: venue.PlaceOrderResult{OrderID: "v1"}}
	mgr, _, _ := newTestManager(t, v, decimal.NewFromFloat(0.99))

	if _, err := mgr.Submit("tok-a", "0xC", "BUY", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), "threshold_cross"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mgr.Cancel("v1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := mgr.Cancel("v1"); err != nil {
		t.Fatalf("second cancel should also succeed (idempotent): %v", err)
	}
	if len(v.cancelled) != 2 {
		t.Fatalf("expected venue.CancelOrder called twice, got %d", len(v.cancelled))
	}
}
