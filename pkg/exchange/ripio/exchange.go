package ripio

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ripiotrade/internal/circuitbreaker"
	httpClient "ripiotrade/internal/http"
	"ripiotrade/internal/ratelimit"
	"ripiotrade/pkg/core"
	"ripiotrade/pkg/exchange"
	"ripiotrade/pkg/signer"
)

// Exchange is a Ripio Trade client. Every call is signed with the configured
// credentials right before it is sent.
type Exchange struct {
	config     *core.Config
	httpClient *httpClient.Client
	protocol   *Protocol
	validate   *validator.Validate
	logger     zerolog.Logger
}

var _ exchange.Exchange = (*Exchange)(nil)

type Option func(*Options)

type Options struct {
	Logger     zerolog.Logger
	SignerOpts []signer.Option
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithSignerOptions passes options such as a fixed clock to the signer.
func WithSignerOptions(opts ...signer.Option) Option {
	return func(o *Options) {
		o.SignerOpts = append(o.SignerOpts, opts...)
	}
}

// New creates a client from config. Missing credentials do not fail here.
// They fail each call with *core.MissingCredentialsError before any request
// is sent.
func New(config *core.Config, opts ...Option) (*Exchange, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	clientOpts := []httpClient.Option{httpClient.WithLogger(options.Logger)}
	if config.Credentials != nil {
		clientOpts = append(clientOpts, httpClient.WithCredentials(config.Credentials, options.SignerOpts...))
	}
	if config.RateLimitEnabled {
		clientOpts = append(clientOpts, httpClient.WithRateLimiter(ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)))
	}
	if config.CircuitBreakerEnabled {
		breaker := circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		})
		logger := options.Logger
		breaker.OnStateChange(func(from, to circuitbreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		})
		clientOpts = append(clientOpts, httpClient.WithCircuitBreaker(breaker))
	}

	client, err := httpClient.NewClient(&httpClient.Config{
		BaseURL:      config.BaseURL,
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
		MaxClockSkew: config.MaxClockSkew,
	}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	return &Exchange{
		config:     config,
		httpClient: client,
		protocol:   NewProtocol(config.APIPrefix),
		validate:   validator.New(),
		logger:     options.Logger,
	}, nil
}

func (e *Exchange) Name() string {
	return e.protocol.Name()
}

func (e *Exchange) Version() string {
	return e.protocol.Version()
}

func (e *Exchange) Close() error {
	if e.httpClient != nil {
		return e.httpClient.Close()
	}
	return nil
}

// execute builds, sends and parses one operation.
func (e *Exchange) execute(ctx context.Context, op core.Operation, params core.Params) (any, error) {
	req, err := e.protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	body, err := e.httpClient.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := e.protocol.ParseResponse(op, body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", op, err)
	}
	return result, nil
}

func executeAs[T any](ctx context.Context, e *Exchange, op core.Operation, params core.Params) (T, error) {
	var zero T
	result, err := e.execute(ctx, op, params)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response type: %T", result)
	}
	return typed, nil
}

// GetBalances returns the balance of every currency in the account.
func (e *Exchange) GetBalances(ctx context.Context) ([]core.Balance, error) {
	return executeAs[[]core.Balance](ctx, e, core.OpGetBalances, nil)
}

// GetOrderBookLevel2 returns the aggregated book of pair.
func (e *Exchange) GetOrderBookLevel2(ctx context.Context, pair string, opts ...exchange.Option) (*core.OrderBook, error) {
	options := exchange.ApplyOptions(opts...)

	params := core.Params{"pair": pair}
	if options.Limit > 0 {
		params["limit"] = options.Limit
	}
	if options.Aggregation != "" {
		params["aggregation"] = options.Aggregation
	}

	return executeAs[*core.OrderBook](ctx, e, core.OpGetOrderBook, params)
}

// GetUserOrders lists the account's orders. A nil filter lists without filters.
func (e *Exchange) GetUserOrders(ctx context.Context, filter *exchange.OrderFilter) (*core.OrderPage, error) {
	params := core.Params{}
	if filter != nil {
		if err := e.validate.Struct(filter); err != nil {
			return nil, fmt.Errorf("invalid order filter: %w", err)
		}
		params["status"] = filter.Status
		params["pair"] = filter.Pair
		params["side"] = filter.Side
		params["type"] = filter.Type
		params["start_time"] = filter.StartTime
		params["end_time"] = filter.EndTime
		params["limit"] = filter.Limit
		params["offset"] = filter.Offset
	}

	return executeAs[*core.OrderPage](ctx, e, core.OpGetUserOrders, params)
}

// CreateOrder submits an order. Amount and price are sent as decimal strings.
func (e *Exchange) CreateOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Order, error) {
	if err := e.validateOrder(req); err != nil {
		return nil, err
	}

	params := core.Params{
		"pair":                req.Pair,
		"side":                req.Side.String(),
		"type":                req.Type.String(),
		"amount":              formatDecimal(&req.Amount),
		"external_id":         req.ExternalID,
		"post_only":           req.PostOnly,
		"immediate_or_cancel": req.ImmediateOrCancel,
		"fill_or_kill":        req.FillOrKill,
		"expiration":          req.Expiration,
	}
	if !req.Price.IsZero() {
		params["price"] = formatDecimal(&req.Price)
	}

	order, err := executeAs[*core.Order](ctx, e, core.OpCreateOrder, params)
	if err != nil {
		return nil, err
	}
	e.logger.Info().
		Str("order_id", order.ID).
		Str("pair", req.Pair).
		Str("side", req.Side.String()).
		Msg("order created")
	return order, nil
}

func (e *Exchange) validateOrder(req *exchange.OrderRequest) error {
	if req == nil {
		return errors.New("invalid order: nil request")
	}
	if err := e.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	if !isPositive(&req.Amount) {
		return errors.New("invalid order: amount must be positive")
	}
	if req.Type == core.TypeLimit && !isPositive(&req.Price) {
		return errors.New("invalid order: limit price must be positive")
	}
	if req.Price.Negative {
		return errors.New("invalid order: price must not be negative")
	}
	return nil
}

// CancelOrder cancels an open order by id.
func (e *Exchange) CancelOrder(ctx context.Context, req *exchange.CancelRequest) (*core.Order, error) {
	if req == nil {
		return nil, errors.New("invalid cancel: nil request")
	}
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid cancel: %w", err)
	}

	order, err := executeAs[*core.Order](ctx, e, core.OpCancelOrder, core.Params{"id": req.OrderID})
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = req.OrderID
	}
	e.logger.Info().Str("order_id", order.ID).Msg("order canceled")
	return order, nil
}

// GetWithdrawalFee estimates the network fee of withdrawing currencyCode.
func (e *Exchange) GetWithdrawalFee(ctx context.Context, currencyCode string) (*core.WithdrawalFee, error) {
	fee, err := executeAs[*core.WithdrawalFee](ctx, e, core.OpGetWithdrawalFee, core.Params{"currency_code": currencyCode})
	if err != nil {
		return nil, err
	}
	if fee.CurrencyCode == "" {
		fee.CurrencyCode = currencyCode
	}
	return fee, nil
}

// CreateWithdrawal requests a crypto withdrawal to an external address.
func (e *Exchange) CreateWithdrawal(ctx context.Context, req *exchange.WithdrawalRequest) (*core.Withdrawal, error) {
	if req == nil {
		return nil, errors.New("invalid withdrawal: nil request")
	}
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid withdrawal: %w", err)
	}
	if !isPositive(&req.Amount) {
		return nil, errors.New("invalid withdrawal: amount must be positive")
	}

	params := core.Params{
		"currency_code": req.CurrencyCode,
		"amount":        formatDecimal(&req.Amount),
		"destination":   req.Destination,
		"network":       req.Network,
		"tag":           req.Tag,
		"memo":          req.Memo,
		"external_id":   req.ExternalID,
	}

	w, err := executeAs[*core.Withdrawal](ctx, e, core.OpCreateWithdrawal, params)
	if err != nil {
		return nil, err
	}
	e.logger.Info().
		Str("withdrawal_id", w.ID).
		Str("currency", req.CurrencyCode).
		Msg("withdrawal created")
	return w, nil
}

// GetWithdrawal returns a withdrawal by id.
func (e *Exchange) GetWithdrawal(ctx context.Context, id string) (*core.Withdrawal, error) {
	return executeAs[*core.Withdrawal](ctx, e, core.OpGetWithdrawal, core.Params{"id": id})
}

// ListWithdrawals lists withdrawals, newest first as returned by the exchange.
func (e *Exchange) ListWithdrawals(ctx context.Context, filter *exchange.WithdrawalFilter) (*core.WithdrawalPage, error) {
	params := core.Params{}
	if filter != nil {
		if err := e.validate.Struct(filter); err != nil {
			return nil, fmt.Errorf("invalid withdrawal filter: %w", err)
		}
		if filter.Limit > 0 {
			params["limit"] = filter.Limit
		}
		params["offset"] = filter.Offset
		params["currency_code"] = filter.CurrencyCode
		params["status"] = filter.Status
		params["from_date"] = filter.FromDate
		params["to_date"] = filter.ToDate
	}

	return executeAs[*core.WithdrawalPage](ctx, e, core.OpListWithdrawals, params)
}

// GetTicket obtains a short-lived ticket that authorizes a stream subscription.
func (e *Exchange) GetTicket(ctx context.Context) (*core.Ticket, error) {
	return executeAs[*core.Ticket](ctx, e, core.OpGetTicket, nil)
}

func isPositive(d *apd.Decimal) bool {
	return d.Sign() > 0
}
