package ripio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"ripiotrade/pkg/core"
)

const (
	exchangeName = "ripio"
	apiVersion   = "4"

	bucketOrders      = "orders"
	bucketWithdrawals = "withdrawals"

	defaultWithdrawalLimit = 10
)

// Protocol turns operations into requests against the Ripio Trade v4 REST API
// and decodes the {"data": ...} envelope of its responses.
type Protocol struct {
	prefix string
}

var _ core.Protocol = (*Protocol)(nil)

// NewProtocol creates a protocol whose paths start with prefix, e.g. "/v4".
// The prefix is part of every signed path.
func NewProtocol(prefix string) *Protocol {
	return &Protocol{prefix: prefix}
}

func (p *Protocol) Name() string {
	return exchangeName
}

func (p *Protocol) Version() string {
	return apiVersion
}

func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpGetBalances,
		core.OpGetOrderBook,
		core.OpGetUserOrders,
		core.OpCreateOrder,
		core.OpCancelOrder,
		core.OpGetWithdrawalFee,
		core.OpCreateWithdrawal,
		core.OpGetWithdrawal,
		core.OpListWithdrawals,
		core.OpGetTicket,
	}
}

// BuildRequest constructs the unsigned request of op. Every request it returns
// requires authentication.
func (p *Protocol) BuildRequest(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	var (
		req *core.Request
		err error
	)
	switch op {
	case core.OpGetBalances:
		req = p.newRequest(http.MethodGet, "/user/balances/")
	case core.OpGetOrderBook:
		req, err = p.buildOrderBookRequest(params)
	case core.OpGetUserOrders:
		req = p.buildUserOrdersRequest(params)
	case core.OpCreateOrder:
		req, err = p.buildCreateOrderRequest(params)
	case core.OpCancelOrder:
		req, err = p.buildCancelOrderRequest(params)
	case core.OpGetWithdrawalFee:
		req, err = p.buildWithdrawalFeeRequest(params)
	case core.OpCreateWithdrawal:
		req, err = p.buildCreateWithdrawalRequest(params)
	case core.OpGetWithdrawal:
		req, err = p.buildGetWithdrawalRequest(params)
	case core.OpListWithdrawals:
		req = p.buildListWithdrawalsRequest(params)
	case core.OpGetTicket:
		req = p.newRequest(http.MethodPost, "/ticket")
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ParseResponse unwraps the data field of a 2xx body and normalizes it to the
// canonical type of op.
func (p *Protocol) ParseResponse(op core.Operation, body []byte) (any, error) {
	data, err := unwrapData(body)
	if err != nil {
		return nil, err
	}

	n := NewNormalizer()

	switch op {
	case core.OpGetBalances:
		var raw []ripioBalance
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal balances: %w", err)
		}
		return n.NormalizeBalances(raw)

	case core.OpGetOrderBook:
		var raw ripioOrderBook
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal order book: %w", err)
		}
		return n.NormalizeOrderBook(&raw)

	case core.OpGetUserOrders:
		return n.NormalizeOrderPage(data)

	case core.OpCreateOrder, core.OpCancelOrder:
		var raw ripioOrder
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		return n.NormalizeOrder(&raw)

	case core.OpGetWithdrawalFee:
		return n.NormalizeWithdrawalFee(data)

	case core.OpCreateWithdrawal, core.OpGetWithdrawal:
		var raw ripioWithdrawal
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal withdrawal: %w", err)
		}
		return n.NormalizeWithdrawal(&raw)

	case core.OpListWithdrawals:
		return n.NormalizeWithdrawalPage(data)

	case core.OpGetTicket:
		ticket := gjson.GetBytes(data, "ticket")
		if ticket.Type != gjson.String || ticket.Str == "" {
			return nil, fmt.Errorf("response has no ticket")
		}
		return &core.Ticket{Value: ticket.Str}, nil

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

func unwrapData(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid json")
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, fmt.Errorf("response has no data field")
	}
	return []byte(data.Raw), nil
}

func (p *Protocol) newRequest(method, endpoint string) *core.Request {
	return core.NewRequest(method, p.prefix+endpoint).SetRequireAuth(true)
}

func (p *Protocol) buildOrderBookRequest(params core.Params) (*core.Request, error) {
	pair, err := getRequiredStringParam(params, "pair")
	if err != nil {
		return nil, err
	}

	req := p.newRequest(http.MethodGet, "/book/orders/level-2")
	req.SetQuery("pair", pair)
	if limit := getIntParamWithDefault(params, "limit", 0); limit > 0 {
		req.SetQuery("limit", limit)
	}
	req.SetQuery("aggregation", getStringParamWithDefault(params, "aggregation", ""))

	return req, nil
}

var userOrderFilters = []string{"status", "pair", "side", "type", "start_time", "end_time", "limit", "offset"}

func (p *Protocol) buildUserOrdersRequest(params core.Params) *core.Request {
	req := p.newRequest(http.MethodGet, "/orders")
	for _, key := range userOrderFilters {
		if v, ok := params[key]; ok && !isZeroParam(v) {
			req.SetQuery(key, v)
		}
	}
	return req
}

func (p *Protocol) buildCreateOrderRequest(params core.Params) (*core.Request, error) {
	body := make(map[string]any, 10)
	for _, key := range []string{"pair", "side", "type", "amount"} {
		v, err := getRequiredStringParam(params, key)
		if err != nil {
			return nil, err
		}
		body[key] = v
	}
	for _, key := range []string{"price", "external_id"} {
		if v := getStringParamWithDefault(params, key, ""); v != "" {
			body[key] = v
		}
	}
	for _, flag := range []string{"post_only", "immediate_or_cancel", "fill_or_kill"} {
		if v, ok := params[flag].(bool); ok && v {
			body[flag] = true
		}
	}
	if exp := getIntParamWithDefault(params, "expiration", 0); exp > 0 {
		body["expiration"] = exp
	}

	req := p.newRequest(http.MethodPost, "/orders")
	req.SetBody(body)
	req.SetBucket(bucketOrders)

	return req, nil
}

func (p *Protocol) buildCancelOrderRequest(params core.Params) (*core.Request, error) {
	id, err := getRequiredStringParam(params, "id")
	if err != nil {
		return nil, err
	}

	req := p.newRequest(http.MethodDelete, "/orders")
	req.SetBody(map[string]any{"id": id})
	req.SetBucket(bucketOrders)

	return req, nil
}

func (p *Protocol) buildWithdrawalFeeRequest(params core.Params) (*core.Request, error) {
	currency, err := getRequiredStringParam(params, "currency_code")
	if err != nil {
		return nil, err
	}

	req := p.newRequest(http.MethodGet, "/withdrawals/estimate-fee/"+url.PathEscape(currency))
	req.SetBucket(bucketWithdrawals)

	return req, nil
}

func (p *Protocol) buildCreateWithdrawalRequest(params core.Params) (*core.Request, error) {
	body := make(map[string]any, 7)
	for _, key := range []string{"currency_code", "amount", "destination"} {
		v, err := getRequiredStringParam(params, key)
		if err != nil {
			return nil, err
		}
		body[key] = v
	}
	for _, key := range []string{"network", "tag", "memo", "external_id"} {
		if v := getStringParamWithDefault(params, key, ""); v != "" {
			body[key] = v
		}
	}

	req := p.newRequest(http.MethodPost, "/withdrawals")
	req.SetBody(body)
	req.SetBucket(bucketWithdrawals)

	return req, nil
}

func (p *Protocol) buildGetWithdrawalRequest(params core.Params) (*core.Request, error) {
	id, err := getRequiredStringParam(params, "id")
	if err != nil {
		return nil, err
	}

	req := p.newRequest(http.MethodGet, "/withdrawals/"+url.PathEscape(id))
	req.SetBucket(bucketWithdrawals)

	return req, nil
}

func (p *Protocol) buildListWithdrawalsRequest(params core.Params) *core.Request {
	req := p.newRequest(http.MethodGet, "/withdrawals")
	req.SetQuery("limit", getIntParamWithDefault(params, "limit", defaultWithdrawalLimit))
	req.SetQuery("offset", getIntParamWithDefault(params, "offset", 0))
	for _, key := range []string{"currency_code", "status", "from_date", "to_date"} {
		req.SetQuery(key, getStringParamWithDefault(params, key, ""))
	}
	req.SetBucket(bucketWithdrawals)
	return req
}

func getRequiredStringParam(params core.Params, key string) (string, error) {
	val, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string", key)
	}

	if str == "" {
		return "", fmt.Errorf("parameter %s cannot be empty", key)
	}

	return str, nil
}

func getStringParamWithDefault(params core.Params, key, def string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok && str != "" {
			return str
		}
	}
	return def
}

func getIntParamWithDefault(params core.Params, key string, def int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return def
}

func isZeroParam(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case int:
		return val == 0
	case int64:
		return val == 0
	}
	return false
}
