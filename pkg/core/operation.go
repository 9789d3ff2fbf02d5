package core

// Operation represents a type of action that can be performed on the exchange.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpGetBalances retrieves the account balances.
	OpGetBalances Operation = iota
	// OpGetOrderBook retrieves the level 2 order book for a pair.
	OpGetOrderBook
	// OpGetUserOrders retrieves the user's orders, optionally filtered.
	OpGetUserOrders
	// OpCreateOrder submits a new order.
	OpCreateOrder
	// OpCancelOrder cancels an existing order.
	OpCancelOrder
	// OpGetWithdrawalFee estimates the withdrawal fee of a currency.
	OpGetWithdrawalFee
	// OpCreateWithdrawal requests a crypto withdrawal.
	OpCreateWithdrawal
	// OpGetWithdrawal retrieves a single withdrawal.
	OpGetWithdrawal
	// OpListWithdrawals lists withdrawals, optionally filtered.
	OpListWithdrawals
	// OpGetTicket obtains a short-lived websocket ticket.
	OpGetTicket
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "UNKNOWN"
	}
	return operationNames[o]
}

var operationNames = [...]string{
	"GET_BALANCES",
	"GET_ORDER_BOOK",
	"GET_USER_ORDERS",
	"CREATE_ORDER",
	"CANCEL_ORDER",
	"GET_WITHDRAWAL_FEE",
	"CREATE_WITHDRAWAL",
	"GET_WITHDRAWAL",
	"LIST_WITHDRAWALS",
	"GET_TICKET",
}
