package ripio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"ripiotrade/pkg/core"
)

// number holds a JSON value the exchange may send either as a number or as a
// string. Its text is kept verbatim so no precision is lost.
type number string

func (n *number) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*n = ""
		return nil
	}
	*n = number(strings.Trim(s, `"`))
	return nil
}

// timestamp accepts epoch values (seconds or milliseconds, as number or
// string) and the ISO-8601 layouts seen in responses.
type timestamp struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Values below 1e12 cannot be milliseconds of any date after 2001.
		if n < 1e12 {
			t.Time = time.Unix(n, 0).UTC()
		} else {
			t.Time = time.UnixMilli(n).UTC()
		}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}

type ripioBalance struct {
	CurrencyCode string    `json:"currency_code"`
	Available    number    `json:"available_amount"`
	Locked       number    `json:"locked_amount"`
	LastUpdate   timestamp `json:"last_update"`
}

type ripioBookLevel struct {
	Price  number `json:"price"`
	Amount number `json:"amount"`
	Count  number `json:"count"`
}

type ripioOrderBook struct {
	Pair      string           `json:"pair"`
	Bids      []ripioBookLevel `json:"bids"`
	Asks      []ripioBookLevel `json:"asks"`
	Timestamp timestamp        `json:"timestamp"`
}

type ripioOrder struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"external_id"`
	Pair         string    `json:"pair"`
	Side         string    `json:"side"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Price        number    `json:"price"`
	Amount       number    `json:"amount"`
	FilledAmount number    `json:"filled_amount"`
	CreatedAt    timestamp `json:"created_at"`
}

type ripioPagination struct {
	CurrentPage    int `json:"current_page"`
	TotalPages     int `json:"total_pages"`
	RegistersCount int `json:"registers_count"`
}

type ripioWithdrawal struct {
	ID                 string    `json:"id"`
	ExternalID         string    `json:"external_id"`
	CurrencyCode       string    `json:"currency_code"`
	Amount             number    `json:"amount"`
	Status             string    `json:"status"`
	Destination        string    `json:"destination"`
	DestinationAddress string    `json:"destination_address"`
	Network            string    `json:"network"`
	Tag                string    `json:"tag"`
	Memo               string    `json:"memo"`
	TransactionHash    string    `json:"transaction_hash"`
	CreatedAt          timestamp `json:"created_at"`
}

// numberCodec decodes untyped numbers as json.Number so extra fee fields keep
// their exact text.
var numberCodec = sonic.Config{UseNumber: true}.Froze()

// Normalizer converts Ripio payloads to canonical core types.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) NormalizeBalances(data []ripioBalance) ([]core.Balance, error) {
	balances := make([]core.Balance, len(data))
	for i, raw := range data {
		b := &balances[i]
		b.CurrencyCode = raw.CurrencyCode
		b.LastUpdate = raw.LastUpdate.Time
		if err := parseDecimal(&b.Available, string(raw.Available)); err != nil {
			return nil, fmt.Errorf("balance %s available: %w", raw.CurrencyCode, err)
		}
		if err := parseDecimal(&b.Locked, string(raw.Locked)); err != nil {
			return nil, fmt.Errorf("balance %s locked: %w", raw.CurrencyCode, err)
		}
	}
	return balances, nil
}

func (n *Normalizer) NormalizeOrderBook(data *ripioOrderBook) (*core.OrderBook, error) {
	book := &core.OrderBook{
		Pair:      data.Pair,
		Timestamp: data.Timestamp.Time,
	}
	var err error
	if book.Bids, err = normalizeLevels(data.Bids); err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	if book.Asks, err = normalizeLevels(data.Asks); err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	return book, nil
}

func normalizeLevels(raw []ripioBookLevel) ([]core.OrderBookLevel, error) {
	levels := make([]core.OrderBookLevel, len(raw))
	for i, lvl := range raw {
		if err := parseDecimal(&levels[i].Price, string(lvl.Price)); err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		if err := parseDecimal(&levels[i].Amount, string(lvl.Amount)); err != nil {
			return nil, fmt.Errorf("level %d amount: %w", i, err)
		}
		if lvl.Count != "" {
			count, err := strconv.ParseInt(string(lvl.Count), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("level %d count: %w", i, err)
			}
			levels[i].Count = count
		}
	}
	return levels, nil
}

func (n *Normalizer) NormalizeOrder(data *ripioOrder) (*core.Order, error) {
	order := &core.Order{
		ID:         data.ID,
		ExternalID: data.ExternalID,
		Pair:       data.Pair,
		Status:     core.ParseOrderStatus(data.Status),
		CreatedAt:  data.CreatedAt.Time,
	}
	if data.Side != "" {
		side, err := core.ParseOrderSide(data.Side)
		if err != nil {
			return nil, err
		}
		order.Side = side
	}
	if data.Type != "" {
		typ, err := core.ParseOrderType(data.Type)
		if err != nil {
			return nil, err
		}
		order.Type = typ
	}
	if err := parseDecimal(&order.Price, string(data.Price)); err != nil {
		return nil, fmt.Errorf("order %s price: %w", data.ID, err)
	}
	if err := parseDecimal(&order.Amount, string(data.Amount)); err != nil {
		return nil, fmt.Errorf("order %s amount: %w", data.ID, err)
	}
	if err := parseDecimal(&order.FilledAmount, string(data.FilledAmount)); err != nil {
		return nil, fmt.Errorf("order %s filled amount: %w", data.ID, err)
	}
	return order, nil
}

// NormalizeOrderPage accepts either {"orders": [...], "pagination": {...}} or
// a bare list of orders.
func (n *Normalizer) NormalizeOrderPage(data []byte) (*core.OrderPage, error) {
	var page struct {
		Orders     []ripioOrder     `json:"orders"`
		Pagination *ripioPagination `json:"pagination"`
	}
	if isArray(data) {
		if err := sonic.Unmarshal(data, &page.Orders); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
	} else if err := sonic.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}

	result := &core.OrderPage{
		Orders:     make([]core.Order, 0, len(page.Orders)),
		Pagination: normalizePagination(page.Pagination),
	}
	for i := range page.Orders {
		order, err := n.NormalizeOrder(&page.Orders[i])
		if err != nil {
			return nil, err
		}
		result.Orders = append(result.Orders, *order)
	}
	return result, nil
}

// NormalizeWithdrawalFee keeps every field other than amount and network in
// Extra.
func (n *Normalizer) NormalizeWithdrawalFee(data []byte) (*core.WithdrawalFee, error) {
	var fields map[string]any
	if err := numberCodec.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fee: %w", err)
	}
	var raw struct {
		CurrencyCode string `json:"currency_code"`
		Amount       number `json:"amount"`
		Network      string `json:"network"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal fee: %w", err)
	}

	fee := &core.WithdrawalFee{
		CurrencyCode: raw.CurrencyCode,
		Network:      raw.Network,
	}
	if err := parseDecimal(&fee.Amount, string(raw.Amount)); err != nil {
		return nil, fmt.Errorf("fee amount: %w", err)
	}
	for k, v := range fields {
		switch k {
		case "amount", "network", "currency_code":
			continue
		}
		if v == nil {
			continue
		}
		if fee.Extra == nil {
			fee.Extra = make(map[string]any)
		}
		fee.Extra[k] = v
	}
	return fee, nil
}

func (n *Normalizer) NormalizeWithdrawal(data *ripioWithdrawal) (*core.Withdrawal, error) {
	w := &core.Withdrawal{
		ID:              data.ID,
		ExternalID:      data.ExternalID,
		CurrencyCode:    data.CurrencyCode,
		Status:          data.Status,
		Destination:     data.Destination,
		Network:         data.Network,
		Tag:             data.Tag,
		Memo:            data.Memo,
		TransactionHash: data.TransactionHash,
		CreatedAt:       data.CreatedAt.Time,
	}
	if w.Destination == "" {
		w.Destination = data.DestinationAddress
	}
	if err := parseDecimal(&w.Amount, string(data.Amount)); err != nil {
		return nil, fmt.Errorf("withdrawal %s amount: %w", data.ID, err)
	}
	return w, nil
}

// NormalizeWithdrawalPage accepts either {"withdrawals": [...], "pagination":
// {...}} or a bare list. List entries that are plain strings are taken as
// withdrawal ids.
func (n *Normalizer) NormalizeWithdrawalPage(data []byte) (*core.WithdrawalPage, error) {
	var page struct {
		Withdrawals []rawItem        `json:"withdrawals"`
		Pagination  *ripioPagination `json:"pagination"`
	}
	if isArray(data) {
		if err := sonic.Unmarshal(data, &page.Withdrawals); err != nil {
			return nil, fmt.Errorf("unmarshal withdrawals: %w", err)
		}
	} else if err := sonic.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("unmarshal withdrawals: %w", err)
	}

	result := &core.WithdrawalPage{
		Withdrawals: make([]core.Withdrawal, 0, len(page.Withdrawals)),
		Pagination:  normalizePagination(page.Pagination),
	}
	for _, item := range page.Withdrawals {
		if id, ok := item.str(); ok {
			result.Withdrawals = append(result.Withdrawals, core.Withdrawal{ID: id})
			continue
		}
		var raw ripioWithdrawal
		if err := sonic.Unmarshal(item, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal withdrawal: %w", err)
		}
		w, err := n.NormalizeWithdrawal(&raw)
		if err != nil {
			return nil, err
		}
		result.Withdrawals = append(result.Withdrawals, *w)
	}
	return result, nil
}

// rawItem defers decoding of a list element.
type rawItem []byte

func (r *rawItem) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

func (r rawItem) str() (string, bool) {
	if len(r) == 0 || r[0] != '"' {
		return "", false
	}
	var s string
	if err := sonic.Unmarshal(r, &s); err != nil {
		return "", false
	}
	return s, true
}

func normalizePagination(p *ripioPagination) *core.Pagination {
	if p == nil {
		return nil
	}
	return &core.Pagination{
		CurrentPage:    p.CurrentPage,
		TotalPages:     p.TotalPages,
		RegistersCount: p.RegistersCount,
	}
}

func isArray(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func parseDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		*dest = apd.Decimal{}
		return nil
	}

	_, _, err := apd.BaseContext.SetString(dest, s)
	if err != nil {
		return fmt.Errorf("set decimal from string: %w", err)
	}

	return nil
}

// formatDecimal renders d without exponent, the way amounts are sent.
func formatDecimal(d *apd.Decimal) string {
	return d.Text('f')
}
