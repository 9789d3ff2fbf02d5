package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase the base currency.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell the base currency.
	SideSell
)

// String returns the wire form of the side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	side, err := ParseOrderSide(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// ParseOrderSide parses "buy" or "sell" case-insensitively.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToLower(s) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return SideBuy, fmt.Errorf("unknown order side %q", s)
}

// OrderType represents the type of order to place on the exchange.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
)

// String returns the wire form of the order type.
func (t OrderType) String() string {
	return [...]string{"limit", "market"}[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	typ, err := ParseOrderType(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// ParseOrderType parses "limit" or "market" case-insensitively.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(s) {
	case "limit":
		return TypeLimit, nil
	case "market":
		return TypeMarket, nil
	}
	return TypeLimit, fmt.Errorf("unknown order type %q", s)
}

// OrderStatus represents the current state of an order.
type OrderStatus int

// Order status constants as reported by the exchange.
const (
	// StatusUnknown is used for statuses this client does not recognize.
	StatusUnknown OrderStatus = iota
	// StatusPendingCreation indicates the order was accepted but not yet booked.
	StatusPendingCreation
	// StatusOpen indicates the order rests on the book.
	StatusOpen
	// StatusPartiallyExecuted indicates the order has been partially filled.
	StatusPartiallyExecuted
	// StatusExecuted indicates the order has been completely filled.
	StatusExecuted
	// StatusCanceled indicates the order has been canceled.
	StatusCanceled
)

var orderStatusNames = [...]string{
	"unknown",
	"pending_creation",
	"open",
	"executed_partially",
	"executed_completely",
	"canceled",
}

// String returns the wire form of the order status.
func (s OrderStatus) String() string {
	return orderStatusNames[s]
}

// IsTerminal returns true if the order is in a terminal state.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusExecuted || s == StatusCanceled
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
// Unrecognized values decode to StatusUnknown.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	*s = ParseOrderStatus(strings.Trim(string(data), `"`))
	return nil
}

// ParseOrderStatus maps a wire status to an OrderStatus.
func ParseOrderStatus(s string) OrderStatus {
	s = strings.ToLower(s)
	for i, name := range orderStatusNames {
		if name == s {
			return OrderStatus(i)
		}
	}
	return StatusUnknown
}

// Balance represents the account balance of a single currency.
type Balance struct {
	// CurrencyCode is the currency symbol (e.g. "BTC", "ARS").
	CurrencyCode string `json:"currency_code"`
	// Available is the balance free for trading or withdrawal.
	Available apd.Decimal `json:"available_amount"`
	// Locked is the balance held by open orders or pending withdrawals.
	Locked apd.Decimal `json:"locked_amount"`
	// LastUpdate is when the balance last changed.
	LastUpdate time.Time `json:"last_update"`
}

// OrderBookLevel represents a single aggregated price level.
type OrderBookLevel struct {
	Price  apd.Decimal `json:"price"`
	Amount apd.Decimal `json:"amount"`
	// Count is the number of orders at this level.
	Count int64 `json:"count"`
}

// OrderBook is a level 2 snapshot. Bids are sorted by price descending and
// asks by price ascending, as delivered by the exchange.
type OrderBook struct {
	Pair      string           `json:"pair"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// Order represents an exchange order.
type Order struct {
	// ID is the exchange-assigned order identifier.
	ID string `json:"id"`
	// ExternalID is the caller-assigned identifier, if one was sent.
	ExternalID   string      `json:"external_id,omitempty"`
	Pair         string      `json:"pair"`
	Side         OrderSide   `json:"side"`
	Type         OrderType   `json:"type"`
	Status       OrderStatus `json:"status"`
	Price        apd.Decimal `json:"price"`
	Amount       apd.Decimal `json:"amount"`
	FilledAmount apd.Decimal `json:"filled_amount"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Pagination describes the position of a page within a listing.
type Pagination struct {
	CurrentPage    int `json:"current_page"`
	TotalPages     int `json:"total_pages"`
	RegistersCount int `json:"registers_count"`
}

// OrderPage is one page of the user's orders.
type OrderPage struct {
	Orders     []Order     `json:"orders"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// WithdrawalFee is the estimated fee of a withdrawal.
type WithdrawalFee struct {
	CurrencyCode string      `json:"currency_code"`
	Amount       apd.Decimal `json:"amount"`
	Network      string      `json:"network,omitempty"`
	// Extra keeps any additional fields the exchange returned.
	Extra map[string]any `json:"extra,omitempty"`
}

// Withdrawal represents a crypto withdrawal request.
type Withdrawal struct {
	ID              string      `json:"id"`
	ExternalID      string      `json:"external_id,omitempty"`
	CurrencyCode    string      `json:"currency_code"`
	Amount          apd.Decimal `json:"amount"`
	Status          string      `json:"status"`
	Destination     string      `json:"destination"`
	Network         string      `json:"network,omitempty"`
	Tag             string      `json:"tag,omitempty"`
	Memo            string      `json:"memo,omitempty"`
	TransactionHash string      `json:"transaction_hash,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// WithdrawalPage is one page of withdrawals.
type WithdrawalPage struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
	Pagination  *Pagination  `json:"pagination,omitempty"`
}

// Ticket is a short-lived token that authenticates a websocket session.
type Ticket struct {
	Value string `json:"ticket"`
}

// StreamMessage is one inbound websocket frame tagged by its topic.
type StreamMessage struct {
	// Topic is the channel or event tag of the message, empty when absent.
	Topic string `json:"topic"`
	// ID echoes the request id for subscription acknowledgements.
	ID int64 `json:"id,omitempty"`
	// Raw is the complete frame.
	Raw []byte `json:"-"`
	// ReceivedAt is the local receive time.
	ReceivedAt time.Time `json:"received_at"`
}
