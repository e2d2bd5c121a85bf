package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"go.uber.org/zap"

	"futures-trader/internal/order"
)

func errorsFromResult(res order.Result) error {
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return fmt.Errorf("订单状态 %s", res.Status)
}

// managementError 统一管理命令的错误归类，校验错误原样返回。
func managementError(ctx context.Context, command string, err error) error {
	switch {
	case ctx.Err() != nil:
		return ErrInterrupted
	case order.IsValidationError(err):
		return err
	default:
		return &UnavailableError{Command: command, Err: err}
	}
}

func (a *App) listOrders(ctx context.Context, symbol string) error {
	orders, err := a.gateway.OpenOrders(ctx, symbol)
	if err != nil {
		return managementError(ctx, "orders", err)
	}
	a.logger.Info("查询挂单完成", zap.String("symbol", symbol), zap.Int("count", len(orders)))

	if len(orders) == 0 {
		_, _ = fmt.Fprintln(a.out, "当前无挂单")
		return nil
	}
	return a.writeOrders(orders)
}

func (a *App) orderStatus(ctx context.Context, symbol, orderID string) error {
	res, err := a.gateway.OrderStatus(ctx, symbol, orderID)
	if err != nil {
		return managementError(ctx, "status", err)
	}
	return a.writeOrders([]order.Result{res})
}

func (a *App) cancelOrder(ctx context.Context, symbol, orderID string) error {
	res, err := a.gateway.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return managementError(ctx, "cancel", err)
	}
	a.logger.Info("撤单成功",
		zap.String("symbol", symbol),
		zap.String("order_id", orderID),
		zap.String("status", string(res.Status)),
	)
	_, _ = fmt.Fprintf(a.out, "已撤销订单 %s %s -> %s\n", symbol, orderID, res.Status)
	return nil
}

func (a *App) cancelAll(ctx context.Context, symbol string) error {
	if err := a.gateway.CancelAllOrders(ctx, symbol); err != nil {
		return managementError(ctx, "cancel-all", err)
	}
	a.logger.Info("已撤销全部挂单", zap.String("symbol", symbol))
	_, _ = fmt.Fprintf(a.out, "已撤销 %s 全部挂单\n", symbol)
	return nil
}

func (a *App) showAccount(ctx context.Context) error {
	acct, err := a.gateway.Account(ctx)
	if err != nil {
		return managementError(ctx, "account", err)
	}
	a.logger.Info("账户连接正常",
		zap.String("wallet_balance", acct.WalletBalance.String()),
		zap.String("available_balance", acct.AvailableBalance.String()),
		zap.Int("positions", len(acct.Positions)),
	)

	_, _ = fmt.Fprintf(a.out, "连接正常，账户余额: %s %s，可用: %s，未实现盈亏: %s\n",
		acct.WalletBalance, acct.Asset, acct.AvailableBalance, acct.UnrealizedPnL)
	if len(acct.Positions) == 0 {
		_, _ = fmt.Fprintln(a.out, "当前无持仓")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SYMBOL\tSIDE\tSIZE\tENTRY\tMARK\tPNL\tLEVERAGE")
	for _, p := range acct.Positions {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%sx\n",
			p.Symbol,
			p.Side,
			p.Size,
			p.EntryPrice,
			dash(p.MarkPrice.Valid, p.MarkPrice.Decimal.String()),
			p.UnrealizedPnL,
			p.Leverage,
		)
	}
	return tw.Flush()
}

func (a *App) writeOrders(orders []order.Result) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ORDER_ID\tSYMBOL\tSIDE\tTYPE\tQTY\tPRICE\tSTOP\tFILLED\tSTATUS")
	for _, o := range orders {
		req := o.Request
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderID,
			req.Symbol,
			req.Side,
			req.Kind,
			req.Quantity,
			dash(req.Price.IsPositive(), req.Price.String()),
			dash(req.StopPrice.IsPositive(), req.StopPrice.String()),
			o.ExecutedQty,
			o.Status,
		)
	}
	return tw.Flush()
}

func dash(ok bool, value string) string {
	if !ok {
		return "-"
	}
	return value
}
