package exchange

import (
	"context"

	"github.com/cockroachdb/apd/v3"

	"ripiotrade/pkg/core"
)

// Exchange is the account-level API of a spot exchange: balances, the level 2
// book, order entry, crypto withdrawals and the private stream.
type Exchange interface {
	Name() string
	Version() string
	Close() error

	GetBalances(ctx context.Context) ([]core.Balance, error)
	GetOrderBookLevel2(ctx context.Context, pair string, opts ...Option) (*core.OrderBook, error)

	GetUserOrders(ctx context.Context, filter *OrderFilter) (*core.OrderPage, error)
	CreateOrder(ctx context.Context, req *OrderRequest) (*core.Order, error)
	CancelOrder(ctx context.Context, req *CancelRequest) (*core.Order, error)

	GetWithdrawalFee(ctx context.Context, currencyCode string) (*core.WithdrawalFee, error)
	CreateWithdrawal(ctx context.Context, req *WithdrawalRequest) (*core.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*core.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter *WithdrawalFilter) (*core.WithdrawalPage, error)

	GetTicket(ctx context.Context) (*core.Ticket, error)
	Subscribe(ctx context.Context, topics ...string) (Stream, error)
}

// Stream is an open subscription. Messages is closed when the stream ends.
type Stream interface {
	Messages() <-chan core.StreamMessage
	Err() error
	Close() error
}

// OrderRequest contains the parameters of a new order.
type OrderRequest struct {
	Pair   string         `validate:"required"`
	Side   core.OrderSide `validate:"oneof=0 1"`
	Type   core.OrderType `validate:"oneof=0 1"`
	Amount apd.Decimal
	// Price is required for limit orders.
	Price      apd.Decimal
	ExternalID string `validate:"omitempty,max=64"`

	PostOnly          bool
	ImmediateOrCancel bool
	FillOrKill        bool
	// Expiration is an epoch timestamp, zero for none.
	Expiration int64 `validate:"min=0"`
}

// CancelRequest identifies the order to cancel.
type CancelRequest struct {
	OrderID string `validate:"required"`
}

// OrderFilter narrows GetUserOrders. Zero fields are not sent.
type OrderFilter struct {
	Status    string `validate:"omitempty,oneof=open executed_partially executed_completely canceled pending_creation"`
	Pair      string
	Side      string `validate:"omitempty,oneof=buy sell"`
	Type      string `validate:"omitempty,oneof=limit market"`
	StartTime string
	EndTime   string
	Limit     int `validate:"min=0"`
	Offset    int `validate:"min=0"`
}

// WithdrawalRequest contains the parameters of a crypto withdrawal.
type WithdrawalRequest struct {
	CurrencyCode string `validate:"required"`
	Amount       apd.Decimal
	Destination  string `validate:"required"`
	Network      string
	Tag          string
	Memo         string
	ExternalID   string `validate:"omitempty,max=64"`
}

// WithdrawalFilter narrows ListWithdrawals. Limit defaults to 10 when zero.
type WithdrawalFilter struct {
	CurrencyCode string
	Status       string
	FromDate     string
	ToDate       string
	Limit        int `validate:"min=0"`
	Offset       int `validate:"min=0"`
}
