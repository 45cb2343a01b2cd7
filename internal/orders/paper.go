package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/venue"
)

// PaperVenue simulates immediate fills with a configurable slippage,
// standing in for venue.Client in dry-run mode. Grounded on teacher
// execution.Executor.simulateFill's slippage-and-clamp behavior.
type PaperVenue struct {
	SlippageBps int64

	orders map[string]paperOrder
}

type paperOrder struct {
	tokenID string
	price   decimal.Decimal
	size    decimal.Decimal
	side    string
}

func NewPaperVenue(slippageBps int64) *PaperVenue {
	return &PaperVenue{SlippageBps: slippageBps, orders: make(map[string]paperOrder)}
}

func (p *PaperVenue) PlaceOrder(tokenID string, price, size decimal.Decimal, side string) (venue.PlaceOrderResult, error) {
	orderID := fmt.Sprintf("PAPER_%d", time.Now().UnixNano())
	p.orders[orderID] = paperOrder{tokenID: tokenID, price: price, size: size, side: side}
	return venue.PlaceOrderResult{OrderID: orderID, Status: "matched"}, nil
}

func (p *PaperVenue) OrderStatus(orderID string) (venue.VenueOrder, error) {
	o, ok := p.orders[orderID]
	if !ok {
		return venue.VenueOrder{}, fmt.Errorf("unknown paper order %s", orderID)
	}

	slippage := decimal.NewFromInt(p.SlippageBps).Div(decimal.NewFromInt(10000))
	fillPrice := o.price
	if o.side == venue.SideBuy {
		fillPrice = o.price.Mul(decimal.NewFromInt(1).Add(slippage))
	} else {
		fillPrice = o.price.Mul(decimal.NewFromInt(1).Sub(slippage))
	}
	if fillPrice.LessThan(decimal.NewFromFloat(0.01)) {
		fillPrice = decimal.NewFromFloat(0.01)
	}
	if fillPrice.GreaterThan(decimal.NewFromFloat(0.99)) {
		fillPrice = decimal.NewFromFloat(0.99)
	}

	return venue.VenueOrder{
		ID:       orderID,
		TokenID:  o.tokenID,
		Price:    o.price,
		Size:     o.size,
		Filled:   o.size,
		AvgPrice: fillPrice,
		Side:     o.side,
		Status:   "FILLED",
	}, nil
}

func (p *PaperVenue) CancelOrder(orderID string) error {
	delete(p.orders, orderID)
	return nil
}
