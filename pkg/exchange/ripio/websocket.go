package ripio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ripiotrade/internal/ws"
	"ripiotrade/pkg/exchange"
)

const (
	// wsSignPath is the path the handshake headers are signed over.
	wsSignPath = "ws"

	TopicBalance = "balance"
)

type subscribeRequest struct {
	Method string   `json:"method"`
	Topics []string `json:"topics"`
	Ticket string   `json:"ticket"`
	ID     int64    `json:"id"`
}

// Subscription is an open private stream.
type Subscription struct {
	*ws.Conn
	// RequestID is the id sent with the subscribe message. The exchange
	// echoes it in the acknowledgement.
	RequestID int64
	Topics    []string
}

var _ exchange.Stream = (*Subscription)(nil)

// Subscribe obtains a ticket, opens the websocket with signed headers and
// subscribes to topics. The first message is usually the acknowledgement.
func (e *Exchange) Subscribe(ctx context.Context, topics ...string) (exchange.Stream, error) {
	return e.subscribe(ctx, topics)
}

// SubscribeBalances subscribes to balance updates of the account.
func (e *Exchange) SubscribeBalances(ctx context.Context) (*Subscription, error) {
	return e.subscribe(ctx, []string{TopicBalance})
}

func (e *Exchange) subscribe(ctx context.Context, topics []string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("subscribe: no topics")
	}

	s, err := e.httpClient.Signer()
	if err != nil {
		return nil, err
	}

	ticket, err := e.GetTicket(ctx)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}

	signed, err := s.Sign(http.MethodGet, wsSignPath, nil)
	if err != nil {
		return nil, err
	}
	header := make(http.Header, 4)
	for k, v := range signed.Headers() {
		header.Set(k, v)
	}

	conn, err := ws.Dial(ctx, ws.Config{
		URL:              e.config.WSURL,
		Header:           header,
		HandshakeTimeout: e.config.Timeout,
	}, ws.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	req := subscribeRequest{
		Method: "subscribe",
		Topics: topics,
		Ticket: ticket.Value,
		ID:     time.Now().UnixMilli(),
	}
	if err := conn.SendJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	e.logger.Info().Strs("topics", topics).Int64("id", req.ID).Msg("subscribed")
	return &Subscription{Conn: conn, RequestID: req.ID, Topics: topics}, nil
}
