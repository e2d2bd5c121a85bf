package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"futures-trader/internal/order"
)

// UsageError 表示命令或参数个数错误。
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

// Invocation 为解析完成、参数已类型化的命令。
type Invocation struct {
	Command string
	run     func(ctx context.Context, a *App) error
}

type command struct {
	name    string
	args    string
	example string
	summary string
	note    string
	min     int
	max     int
	parse   func(args []string) (func(ctx context.Context, a *App) error, error)
}

var commands = []command{
	{
		name: "market", args: "SYMBOL SIDE QUANTITY", example: "BTCUSDT BUY 0.01",
		summary: "市价单", min: 3, max: 3, parse: parseMarket,
	},
	{
		name: "limit", args: "SYMBOL SIDE QUANTITY PRICE", example: "BTCUSDT SELL 0.01 46000",
		summary: "限价单", min: 4, max: 4, parse: parseLimit,
	},
	{
		name: "stop-limit", args: "SYMBOL SIDE QUANTITY STOP_PRICE LIMIT_PRICE", example: "BTCUSDT BUY 0.01 45000 44900",
		summary: "止损限价单", min: 5, max: 5, parse: parseStopLimit,
	},
	{
		name: "oco", args: "SYMBOL SIDE QUANTITY TAKE_PROFIT_PRICE STOP_PRICE STOP_LIMIT_PRICE", example: "BTCUSDT BUY 0.01 46000 43000 43100",
		summary: "止盈 + 止损两条平仓腿", min: 6, max: 6, parse: parseOCO,
		note: "两条腿均为反向只减仓单，止损腿按独立止损限价单校验：BUY 开仓的止损腿为 SELL，要求 STOP_PRICE <= STOP_LIMIT_PRICE；" +
			"例如 oco BTCUSDT BUY 0.01 46000 43000 42900 的止损腿 stop > limit，会被拒绝",
	},
	{
		name: "twap", args: "SYMBOL SIDE TOTAL_QUANTITY NUM_ORDERS INTERVAL_SECONDS", example: "BTCUSDT BUY 0.1 10 30",
		summary: "按时间均匀拆分的市价单", min: 5, max: 5, parse: parseTWAP,
	},
	{
		name: "grid", args: "SYMBOL QUANTITY_PER_LEVEL LOWER_PRICE UPPER_PRICE LEVELS", example: "BTCUSDT 0.01 43000 47000 10",
		summary: "区间网格限价挂单", min: 5, max: 5, parse: parseGrid,
		note: "参考价只取一次；行情查询失败会按 exchange.retry 重试，最长约 max_attempts x max_delay 后才开始挂单",
	},
	{
		name: "orders", args: "[SYMBOL]", example: "BTCUSDT",
		summary: "列出当前挂单", min: 0, max: 1, parse: parseOrders,
	},
	{
		name: "cancel", args: "SYMBOL ORDER_ID", example: "BTCUSDT 123456789",
		summary: "撤销单个订单", min: 2, max: 2, parse: parseCancel,
	},
	{
		name: "cancel-all", args: "SYMBOL", example: "BTCUSDT",
		summary: "撤销交易对全部挂单", min: 1, max: 1, parse: parseCancelAll,
	},
	{
		name: "status", args: "SYMBOL ORDER_ID", example: "BTCUSDT 123456789",
		summary: "查询订单状态", min: 2, max: 2, parse: parseStatus,
	},
	{
		name: "account", args: "", example: "",
		summary: "账户余额与持仓（连接检查）", min: 0, max: 0, parse: parseAccount,
	},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (c command) usage() string {
	text := fmt.Sprintf("用法: %s\n示例: %s", c.line(c.args), c.line(c.example))
	if c.note != "" {
		text += "\n说明: " + c.note
	}
	return text
}

func (c command) line(rest string) string {
	if rest == "" {
		return "trader " + c.name
	}
	return "trader " + c.name + " " + rest
}

// Parse 将命令行参数解析为 Invocation。参数个数错误返回 UsageError，数值或方向非法返回 order.ValidationError。
func Parse(args []string) (*Invocation, error) {
	if len(args) == 0 {
		return nil, &UsageError{Reason: "缺少命令"}
	}
	name := strings.ToLower(args[0])
	cmd, ok := lookup(name)
	if !ok {
		return nil, &UsageError{Reason: fmt.Sprintf("未知命令 %q", args[0])}
	}

	params := args[1:]
	if len(params) < cmd.min || len(params) > cmd.max {
		return nil, &UsageError{Command: name, Reason: "参数个数错误\n" + cmd.usage()}
	}

	run, err := cmd.parse(params)
	if err != nil {
		return nil, err
	}
	return &Invocation{Command: name, run: run}, nil
}

// PrintUsage 输出全部命令的用法。
func PrintUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("用法: trader [-config path] [-paper] <command> args...\n\n命令:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-10s %-62s %s\n", c.name, c.args, c.summary)
	}
	b.WriteString("\n示例:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %s\n", c.line(c.example))
	}
	b.WriteString("\n说明:\n")
	for _, c := range commands {
		if c.note != "" {
			fmt.Fprintf(&b, "  %s: %s\n", c.name, c.note)
		}
	}
	_, _ = io.WriteString(w, b.String())
}

func parseSingle(kind order.Kind, args []string) (order.Request, error) {
	req := order.Request{
		Symbol: order.NormalizeSymbol(args[0]),
		Side:   order.ParseSide(args[1]),
		Kind:   kind,
	}
	var err error
	if req.Quantity, err = order.ParseDecimal("quantity", args[2]); err != nil {
		return req, err
	}
	switch kind {
	case order.KindLimit:
		if req.Price, err = order.ParseDecimal("price", args[3]); err != nil {
			return req, err
		}
	case order.KindStopLimit:
		if req.StopPrice, err = order.ParseDecimal("stop_price", args[3]); err != nil {
			return req, err
		}
		if req.Price, err = order.ParseDecimal("limit_price", args[4]); err != nil {
			return req, err
		}
	}
	return req, order.Validate(req)
}

func parseMarket(args []string) (func(context.Context, *App) error, error) {
	req, err := parseSingle(order.KindMarket, args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runSingle(ctx, req) }, nil
}

func parseLimit(args []string) (func(context.Context, *App) error, error) {
	req, err := parseSingle(order.KindLimit, args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runSingle(ctx, req) }, nil
}

func parseStopLimit(args []string) (func(context.Context, *App) error, error) {
	req, err := parseSingle(order.KindStopLimit, args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runStopLimit(ctx, req) }, nil
}

type ocoArgs struct {
	symbol     string
	side       order.Side
	quantity   decimal.Decimal
	takeProfit decimal.Decimal
	stopPrice  decimal.Decimal
	stopLimit  decimal.Decimal
}

func parseOCO(args []string) (func(context.Context, *App) error, error) {
	p := ocoArgs{symbol: order.NormalizeSymbol(args[0]), side: order.ParseSide(args[1])}
	var err error
	if p.quantity, err = order.ParseDecimal("quantity", args[2]); err != nil {
		return nil, err
	}
	if p.takeProfit, err = order.ParseDecimal("take_profit_price", args[3]); err != nil {
		return nil, err
	}
	if p.stopPrice, err = order.ParseDecimal("stop_price", args[4]); err != nil {
		return nil, err
	}
	if p.stopLimit, err = order.ParseDecimal("stop_limit_price", args[5]); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runOCO(ctx, p) }, nil
}

type twapArgs struct {
	symbol   string
	side     order.Side
	total    decimal.Decimal
	slices   int
	interval int
}

func parseTWAP(args []string) (func(context.Context, *App) error, error) {
	p := twapArgs{symbol: order.NormalizeSymbol(args[0]), side: order.ParseSide(args[1])}
	var err error
	if p.total, err = order.ParseDecimal("total_quantity", args[2]); err != nil {
		return nil, err
	}
	if p.slices, err = order.ParseInt("num_orders", args[3]); err != nil {
		return nil, err
	}
	if p.interval, err = order.ParseInt("interval_seconds", args[4]); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runTWAP(ctx, p) }, nil
}

type gridArgs struct {
	symbol   string
	quantity decimal.Decimal
	lower    decimal.Decimal
	upper    decimal.Decimal
	levels   int
}

func parseGrid(args []string) (func(context.Context, *App) error, error) {
	p := gridArgs{symbol: order.NormalizeSymbol(args[0])}
	var err error
	if p.quantity, err = order.ParseDecimal("quantity_per_level", args[1]); err != nil {
		return nil, err
	}
	if p.lower, err = order.ParseDecimal("lower_price", args[2]); err != nil {
		return nil, err
	}
	if p.upper, err = order.ParseDecimal("upper_price", args[3]); err != nil {
		return nil, err
	}
	if p.levels, err = order.ParseInt("levels", args[4]); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.runGrid(ctx, p) }, nil
}

func parseOrders(args []string) (func(context.Context, *App) error, error) {
	symbol := ""
	if len(args) == 1 {
		symbol = order.NormalizeSymbol(args[0])
		if err := order.ValidateSymbol(symbol); err != nil {
			return nil, err
		}
	}
	return func(ctx context.Context, a *App) error { return a.listOrders(ctx, symbol) }, nil
}

func parseSymbolAndID(args []string) (string, string, error) {
	symbol := order.NormalizeSymbol(args[0])
	if err := order.ValidateSymbol(symbol); err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(args[1])
	if id == "" {
		return "", "", &order.ValidationError{Field: "order_id", Value: args[1], Reason: "不能为空"}
	}
	return symbol, id, nil
}

func parseCancel(args []string) (func(context.Context, *App) error, error) {
	symbol, id, err := parseSymbolAndID(args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.cancelOrder(ctx, symbol, id) }, nil
}

func parseStatus(args []string) (func(context.Context, *App) error, error) {
	symbol, id, err := parseSymbolAndID(args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.orderStatus(ctx, symbol, id) }, nil
}

func parseCancelAll(args []string) (func(context.Context, *App) error, error) {
	symbol := order.NormalizeSymbol(args[0])
	if err := order.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *App) error { return a.cancelAll(ctx, symbol) }, nil
}

func parseAccount([]string) (func(context.Context, *App) error, error) {
	return func(ctx context.Context, a *App) error { return a.showAccount(ctx) }, nil
}
