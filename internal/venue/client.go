// Package venue implements the signed CLOB REST client: order placement,
// cancellation, and balance reads, authenticated with EIP-712 order
// signing plus HMAC request signing. Generalized from a binary up/down
// token pair to arbitrary token_ids across multi-outcome markets.
package venue

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/pkgerr"
)

const (
	// CTFExchange is the Polymarket CTF Exchange contract used as the
	// EIP-712 verifying contract for single-outcome order signing.
	CTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	ChainID     = 137

	SigTypeEOA       = 0
	SigTypePolyProxy = 1
	SigTypeBrowser   = 2

	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderType selects the CLOB matching behavior for a submitted order.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel
	OrderTypeGTD OrderType = "GTD" // Good Till Date
	OrderTypeFOK OrderType = "FOK" // Fill or Kill
	OrderTypeFAK OrderType = "FAK" // Fill and Kill / IOC
)

// Credentials bundles the venue API key and wallet material needed to sign
// and authenticate orders.
type Credentials struct {
	APIKey        string
	APISecret     string
	APIPassphrase string
	Funder        string
	PrivateKeyHex string
}

// Client is a signed CLOB REST client over an arbitrary token universe.
type Client struct {
	baseURL       string
	privateKey    *ecdsa.PrivateKey
	address       string
	funderAddress string
	apiKey        string
	apiSecret     string
	passphrase    string
	sigType       int
	httpClient    *http.Client
}

// NewClient builds a Client from the venue base URL and credentials. A
// blank PrivateKeyHex is valid for read-only balance/order queries, but
// order signing will fail.
func NewClient(baseURL string, creds Credentials) (*Client, error) {
	sigType := SigTypePolyProxy

	c := &Client{
		baseURL:       baseURL,
		apiKey:        creds.APIKey,
		apiSecret:     creds.APISecret,
		passphrase:    creds.APIPassphrase,
		funderAddress: creds.Funder,
		sigType:       sigType,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}

	pkHex := strings.TrimPrefix(creds.PrivateKeyHex, "0x")
	if pkHex != "" {
		pk, err := crypto.HexToECDSA(pkHex)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = pk
		c.address = crypto.PubkeyToAddress(pk.PublicKey).Hex()
	}

	log.Info().Str("address", c.address).Msg("🚀 venue client initialized")
	return c, nil
}

// SignedOrder is the EIP-712 order payload submitted to the CLOB.
type SignedOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderPayload is the full order submission body.
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
}

// PlaceOrderResult is the venue's acknowledgment of a submitted order.
type PlaceOrderResult struct {
	OrderID string
	Status  string
}

// PlaceOrder signs and submits a GTC limit order for tokenID. A blank
// OrderID in the result means the submission failed at the venue even
// though the HTTP call itself succeeded — callers must treat that the
// same as a transport error.
func (c *Client) PlaceOrder(tokenID string, price, size decimal.Decimal, side string) (PlaceOrderResult, error) {
	signedOrder, err := c.buildSignedOrder(tokenID, price, size, side, OrderTypeGTC)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("build order failed: %w", err)
	}

	payload := OrderPayload{Order: *signedOrder, Owner: c.apiKey, OrderType: OrderTypeGTC}

	resp, err := c.post("/order", payload)
	if err != nil {
		return PlaceOrderResult{}, pkgerr.TransientErr("order submission failed", err)
	}

	var result struct {
		OrderID  string `json:"orderID"`
		Status   string `json:"status"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("parse response: %w", err)
	}
	if result.ErrorMsg != "" {
		return PlaceOrderResult{}, pkgerr.VenueRejectedErr(result.ErrorMsg)
	}

	return PlaceOrderResult{OrderID: result.OrderID, Status: result.Status}, nil
}

func (c *Client) buildSignedOrder(tokenID string, price, size decimal.Decimal, side string, orderType OrderType) (*SignedOrder, error) {
	maker := c.funderAddress
	if maker == "" {
		maker = c.address
	}

	usdcDecimals := decimal.NewFromInt(1_000_000)

	var makerAmount, takerAmount decimal.Decimal
	sideUpper := strings.ToUpper(side)
	if sideUpper == SideBuy {
		makerAmount = size.Mul(price).Mul(usdcDecimals).Floor()
		takerAmount = size.Mul(usdcDecimals).Floor()
	} else {
		makerAmount = size.Mul(usdcDecimals).Floor()
		takerAmount = size.Mul(price).Mul(usdcDecimals).Floor()
	}

	expiration := "0"
	if orderType == OrderTypeGTD {
		expiration = fmt.Sprintf("%d", time.Now().Add(24*time.Hour).Unix())
	}

	order := &SignedOrder{
		Salt:          generateSalt(),
		Maker:         maker,
		Signer:        c.address,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       tokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    expiration,
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideUpper,
		SignatureType: c.sigType,
	}

	signature, err := c.signOrderEIP712(order)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	order.Signature = signature
	return order, nil
}

func (c *Client) signOrderEIP712(order *SignedOrder) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	domainSeparator := buildDomainSeparator(CTFExchange, ChainID)
	orderHash := buildOrderStructHash(order)

	data := append([]byte("\x19\x01"), domainSeparator[:]...)
	data = append(data, orderHash[:]...)
	finalHash := crypto.Keccak256(data)

	sig, err := crypto.Sign(finalHash, c.privateKey)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig), nil
}

func buildDomainSeparator(contractAddr string, chainID int) [32]byte {
	domainTypeHash := crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	nameHash := crypto.Keccak256([]byte("Polymarket CTF Exchange"))
	versionHash := crypto.Keccak256([]byte("1"))

	chainIDBytes := common.LeftPadBytes(big.NewInt(int64(chainID)).Bytes(), 32)
	contractPadded := common.LeftPadBytes(common.HexToAddress(contractAddr).Bytes(), 32)

	var data []byte
	data = append(data, domainTypeHash...)
	data = append(data, nameHash...)
	data = append(data, versionHash...)
	data = append(data, chainIDBytes...)
	data = append(data, contractPadded...)

	var result [32]byte
	copy(result[:], crypto.Keccak256(data))
	return result
}

func buildOrderStructHash(order *SignedOrder) [32]byte {
	orderTypeHash := crypto.Keccak256([]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"))

	sideVal := 0
	if order.Side == "SELL" {
		sideVal = 1
	}

	var data []byte
	data = append(data, orderTypeHash...)
	data = append(data, padUint256(order.Salt)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(order.Maker).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(order.Signer).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(order.Taker).Bytes(), 32)...)
	data = append(data, padUint256(order.TokenID)...)
	data = append(data, padUint256(order.MakerAmount)...)
	data = append(data, padUint256(order.TakerAmount)...)
	data = append(data, padUint256(order.Expiration)...)
	data = append(data, padUint256(order.Nonce)...)
	data = append(data, padUint256(order.FeeRateBps)...)
	data = append(data, common.LeftPadBytes([]byte{byte(sideVal)}, 32)...)
	data = append(data, common.LeftPadBytes([]byte{byte(order.SignatureType)}, 32)...)

	var result [32]byte
	copy(result[:], crypto.Keccak256(data))
	return result
}

func padUint256(s string) []byte {
	n := new(big.Int)
	n.SetString(s, 10)
	return common.LeftPadBytes(n.Bytes(), 32)
}

func generateSalt() string {
	b := make([]byte, 32)
	rand.Read(b)
	return new(big.Int).SetBytes(b).String()
}

// VenueOrder is an order as reported back by the CLOB status/list endpoints.
type VenueOrder struct {
	ID       string          `json:"id"`
	TokenID  string          `json:"asset_id"`
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"original_size"`
	Filled   decimal.Decimal `json:"size_matched"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Side     string          `json:"side"`
	Status   string          `json:"status"`
}

// OrderStatus polls the venue for a single order's current fill state.
func (c *Client) OrderStatus(orderID string) (VenueOrder, error) {
	resp, err := c.get("/order/" + orderID)
	if err != nil {
		return VenueOrder{}, pkgerr.TransientErr("order status fetch failed", err)
	}
	var o VenueOrder
	if err := json.Unmarshal(resp, &o); err != nil {
		return VenueOrder{}, fmt.Errorf("parse order status: %w", err)
	}
	return o, nil
}

// CancelOrder cancels an existing order. The venue reporting the order
// already canceled is not surfaced as an error by callers (idempotent
// cancel is the order manager's responsibility, not this client's).
func (c *Client) CancelOrder(orderID string) error {
	_, err := c.deleteWithBody("/order", map[string]string{"orderID": orderID})
	if err != nil {
		return pkgerr.TransientErr("cancel order failed", err)
	}
	return nil
}

// Balance reads the USDC collateral balance for this venue account.
func (c *Client) Balance() (decimal.Decimal, error) {
	resp, err := c.get("/balance-allowance?asset_type=COLLATERAL&signature_type=1")
	if err != nil {
		return decimal.Zero, pkgerr.TransientErr("balance fetch failed", err)
	}
	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	if result.Balance == "" {
		return decimal.Zero, nil
	}
	raw, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Div(decimal.NewFromInt(1_000_000)), nil
}

// OpenOrders lists all venue-side live orders.
func (c *Client) OpenOrders() ([]VenueOrder, error) {
	resp, err := c.get("/orders?status=live")
	if err != nil {
		return nil, pkgerr.TransientErr("open orders fetch failed", err)
	}
	var orders []VenueOrder
	if err := json.Unmarshal(resp, &orders); err != nil {
		return nil, fmt.Errorf("parse open orders: %w", err)
	}
	return orders, nil
}

func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) post(path string, body interface{}) ([]byte, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) deleteWithBody(path string, body interface{}) ([]byte, error) {
	var jsonBody []byte
	if body != nil {
		jsonBody, _ = json.Marshal(body)
	}
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.doRequest(req)
}

func (c *Client) addHeaders(req *http.Request) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	req.Header.Set("POLY_ADDRESS", c.address)
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)

	if c.apiSecret != "" {
		message := timestamp + req.Method + req.URL.Path
		if req.Body != nil {
			bodyBytes, _ := io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			if len(bodyBytes) > 0 {
				message += string(bodyBytes)
			}
		}
		req.Header.Set("POLY_SIGNATURE", c.hmacSign(message))
	}
}

func (c *Client) hmacSign(message string) string {
	key, err := base64.URLEncoding.DecodeString(c.apiSecret)
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(c.apiSecret)
		if err != nil {
			key = []byte(c.apiSecret)
		}
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
