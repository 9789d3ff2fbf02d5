package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/spf13/cobra"

	"ripiotrade/pkg/core"
	"ripiotrade/pkg/exchange"
	"ripiotrade/pkg/exchange/ripio"
)

func (a *app) balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show account balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			balances, err := a.ex.GetBalances(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(balances)
		},
	}
}

func (a *app) bookCmd() *cobra.Command {
	var (
		limit       int
		aggregation string
	)
	cmd := &cobra.Command{
		Use:   "book PAIR",
		Short: "Show the level 2 order book of a pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.ex.GetOrderBookLevel2(cmd.Context(), args[0],
				exchange.WithLimit(limit), exchange.WithAggregation(aggregation))
			if err != nil {
				return err
			}
			return a.print(book)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "levels per side")
	cmd.Flags().StringVar(&aggregation, "aggregation", "", "price aggregation step")
	return cmd
}

func (a *app) ordersCmd() *cobra.Command {
	var filter exchange.OrderFilter
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.ex.GetUserOrders(cmd.Context(), &filter)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Status, "status", "", "open, executed_partially, executed_completely, canceled or pending_creation")
	f.StringVarP(&filter.Pair, "pair", "p", "", "pair, e.g. BTC_BRL")
	f.StringVar(&filter.Side, "side", "", "buy or sell")
	f.StringVar(&filter.Type, "type", "", "limit or market")
	f.StringVar(&filter.StartTime, "start-time", "", "start of the creation window")
	f.StringVar(&filter.EndTime, "end-time", "", "end of the creation window")
	f.IntVarP(&filter.Limit, "limit", "l", 0, "page size")
	f.IntVar(&filter.Offset, "offset", 0, "page offset")
	return cmd
}

func (a *app) orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create or cancel orders",
	}
	cmd.AddCommand(a.orderCreateCmd(), a.orderCancelCmd())
	return cmd
}

func (a *app) orderCreateCmd() *cobra.Command {
	var (
		side, typ, amount, price string
		req                      exchange.OrderRequest
	)
	cmd := &cobra.Command{
		Use:   "create PAIR",
		Short: "Create an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Pair = args[0]
			if req.Side, err = core.ParseOrderSide(side); err != nil {
				return err
			}
			if req.Type, err = core.ParseOrderType(typ); err != nil {
				return err
			}
			if err := setDecimal(&req.Amount, "amount", amount); err != nil {
				return err
			}
			if price != "" {
				if err := setDecimal(&req.Price, "price", price); err != nil {
					return err
				}
			}

			order, err := a.ex.CreateOrder(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.print(order)
		},
	}
	f := cmd.Flags()
	f.StringVar(&side, "side", "", "buy or sell")
	f.StringVar(&typ, "type", "limit", "limit or market")
	f.StringVar(&amount, "amount", "", "amount in base currency")
	f.StringVar(&price, "price", "", "limit price")
	f.StringVar(&req.ExternalID, "external-id", "", "client order id")
	f.BoolVar(&req.PostOnly, "post-only", false, "reject if the order would take liquidity")
	f.BoolVar(&req.ImmediateOrCancel, "ioc", false, "immediate or cancel")
	f.BoolVar(&req.FillOrKill, "fok", false, "fill or kill")
	f.Int64Var(&req.Expiration, "expiration", 0, "expiration epoch")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) orderCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.ex.CancelOrder(cmd.Context(), &exchange.CancelRequest{OrderID: args[0]})
			if err != nil {
				return err
			}
			return a.print(order)
		},
	}
}

func (a *app) withdrawalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdrawals",
		Short: "Crypto withdrawals",
	}
	cmd.AddCommand(
		a.withdrawalFeeCmd(),
		a.withdrawalListCmd(),
		a.withdrawalGetCmd(),
		a.withdrawalCreateCmd(),
	)
	return cmd
}

func (a *app) withdrawalFeeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee CURRENCY",
		Short: "Estimate the withdrawal fee of a currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := a.ex.GetWithdrawalFee(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(fee)
		},
	}
}

func (a *app) withdrawalListCmd() *cobra.Command {
	var filter exchange.WithdrawalFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List withdrawals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.ex.ListWithdrawals(cmd.Context(), &filter)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.CurrencyCode, "currency", "", "currency code")
	f.StringVar(&filter.Status, "status", "", "withdrawal status")
	f.StringVar(&filter.FromDate, "from", "", "start date")
	f.StringVar(&filter.ToDate, "to", "", "end date")
	f.IntVarP(&filter.Limit, "limit", "l", 0, "page size, 10 when unset")
	f.IntVar(&filter.Offset, "offset", 0, "page offset")
	return cmd
}

func (a *app) withdrawalGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.ex.GetWithdrawal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(w)
		},
	}
}

func (a *app) withdrawalCreateCmd() *cobra.Command {
	var (
		amount string
		req    exchange.WithdrawalRequest
	)
	cmd := &cobra.Command{
		Use:   "create CURRENCY",
		Short: "Withdraw crypto to an external address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.CurrencyCode = args[0]
			if err := setDecimal(&req.Amount, "amount", amount); err != nil {
				return err
			}
			w, err := a.ex.CreateWithdrawal(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.print(w)
		},
	}
	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "amount to withdraw")
	f.StringVar(&req.Destination, "destination", "", "destination address")
	f.StringVar(&req.Network, "network", "", "network")
	f.StringVar(&req.Tag, "tag", "", "destination tag")
	f.StringVar(&req.Memo, "memo", "", "memo")
	f.StringVar(&req.ExternalID, "external-id", "", "client withdrawal id")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func (a *app) ticketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticket",
		Short: "Obtain a websocket ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ticket, err := a.ex.GetTicket(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(ticket)
		},
	}
}

func (a *app) streamCmd() *cobra.Command {
	var (
		topics   []string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Subscribe to private topics and print every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			stream, err := a.ex.Subscribe(ctx, topics...)
			if err != nil {
				return err
			}
			defer stream.Close()

			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-stream.Messages():
					if !ok {
						return stream.Err()
					}
					if _, err := fmt.Fprintf(a.out, "%s\n", msg.Raw); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", []string{ripio.TopicBalance}, "topics to subscribe to")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long, 0 runs until interrupted")
	return cmd
}

func setDecimal(dest *apd.Decimal, name, s string) error {
	if _, _, err := dest.SetString(s); err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return nil
}
