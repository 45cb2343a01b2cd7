package venue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, Credentials{
		APIKey:        "key",
		APISecret:     "c2VjcmV0", // base64 of "secret"
		APIPassphrase: "pass",
		Funder:        "0xFunder",
		PrivateKeyHex: "0000000000000000000000000000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_DerivesAddressFromPrivateKey(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://example.invalid")
	if c.address == "" {
		t.Fatal("expected address derived from private key")
	}
}

func TestNewClient_BlankKeyIsReadOnly(t *testing.T) {
	t.Parallel()
	c, err := NewClient("http://example.invalid", Credentials{APIKey: "key"})
	if err != nil {
		t.Fatalf("expected blank private key to be valid: %v", err)
	}
	if c.address != "" {
		t.Fatal("expected no address without a private key")
	}
	if _, err := c.signOrderEIP712(&SignedOrder{}); err == nil {
		t.Fatal("expected signing to fail without a loaded private key")
	}
}

func TestBuildSignedOrder_BuyVsSellAmounts(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://example.invalid")

	buy, err := c.buildSignedOrder("token_1", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), SideBuy, OrderTypeGTC)
	if err != nil {
		t.Fatalf("buildSignedOrder buy: %v", err)
	}
	// maker gives USDC (size*price), taker receives shares (size), in 1e6 units
	if buy.MakerAmount != "5000000" {
		t.Fatalf("expected buy makerAmount 5000000, got %s", buy.MakerAmount)
	}
	if buy.TakerAmount != "10000000" {
		t.Fatalf("expected buy takerAmount 10000000, got %s", buy.TakerAmount)
	}
	if buy.Side != SideBuy {
		t.Fatalf("expected side BUY, got %s", buy.Side)
	}
	if buy.Signature == "" {
		t.Fatal("expected a non-empty signature")
	}

	sell, err := c.buildSignedOrder("token_1", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), SideSell, OrderTypeGTC)
	if err != nil {
		t.Fatalf("buildSignedOrder sell: %v", err)
	}
	// maker gives shares (size), taker receives USDC (size*price)
	if sell.MakerAmount != "10000000" {
		t.Fatalf("expected sell makerAmount 10000000, got %s", sell.MakerAmount)
	}
	if sell.TakerAmount != "5000000" {
		t.Fatalf("expected sell takerAmount 5000000, got %s", sell.TakerAmount)
	}
}

func TestBuildSignedOrder_UsesFunderAsMaker(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://example.invalid")
	order, err := c.buildSignedOrder("token_1", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), SideBuy, OrderTypeGTC)
	if err != nil {
		t.Fatalf("buildSignedOrder: %v", err)
	}
	if order.Maker != c.funderAddress {
		t.Fatalf("expected maker to be funder address %s, got %s", c.funderAddress, order.Maker)
	}
	if order.Signer != c.address {
		t.Fatalf("expected signer to be the EOA address %s, got %s", c.address, order.Signer)
	}
}

func TestBuildDomainSeparator_Deterministic(t *testing.T) {
	t.Parallel()
	a := buildDomainSeparator(CTFExchange, ChainID)
	b := buildDomainSeparator(CTFExchange, ChainID)
	if a != b {
		t.Fatal("expected domain separator to be deterministic for the same contract/chain")
	}

	other := buildDomainSeparator(CTFExchange, 1)
	if a == other {
		t.Fatal("expected a different chain id to produce a different domain separator")
	}
}

func TestBuildOrderStructHash_SideAffectsHash(t *testing.T) {
	t.Parallel()
	base := &SignedOrder{
		Salt: "1", Maker: "0x0000000000000000000000000000000000000001",
		Signer: "0x0000000000000000000000000000000000000001",
		Taker:  "0x0000000000000000000000000000000000000000",
		TokenID: "123", MakerAmount: "1", TakerAmount: "1",
		Expiration: "0", Nonce: "0", FeeRateBps: "0", Side: "BUY",
	}
	buyHash := buildOrderStructHash(base)

	sell := *base
	sell.Side = "SELL"
	sellHash := buildOrderStructHash(&sell)

	if buyHash == sellHash {
		t.Fatal("expected BUY and SELL struct hashes to differ")
	}
}

func TestPlaceOrder_ParsesVenueRejection(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"errorMsg": "insufficient balance"})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.PlaceOrder("token_1", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), SideBuy)
	if err == nil {
		t.Fatal("expected an error when the venue rejects the order")
	}
}

func TestPlaceOrder_ParsesAcceptedOrder(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"orderID": "ord_abc", "status": "live"})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	result, err := c.PlaceOrder("token_1", decimal.NewFromFloat(0.5), decimal.NewFromInt(10), SideBuy)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.OrderID != "ord_abc" || result.Status != "live" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestBalance_ParsesAndScalesFromMicroUSDC(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"balance": "12500000"})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	balance, err := c.Balance()
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(125)) {
		t.Fatalf("expected balance 125, got %s", balance)
	}
}

func TestBalance_EmptyStringIsZero(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"balance": ""})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	balance, err := c.Balance()
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestDoRequest_NonOKStatusIsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.OrderStatus("ord_1")
	if err == nil {
		t.Fatal("expected an error on a 500 response")
	}
}
