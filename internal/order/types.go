package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteAsset 为 USDT 本位合约的计价资产后缀。
const QuoteAsset = "USDT"

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 规范化用户输入的方向，合法性由 Validate 判定。
func ParseSide(raw string) Side {
	return Side(strings.ToUpper(strings.TrimSpace(raw)))
}

// Opposite 返回反向，用于构造平仓腿。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) valid() bool {
	return s == SideBuy || s == SideSell
}

// Kind 表示订单类型。
type Kind string

const (
	KindMarket    Kind = "MARKET"
	KindLimit     Kind = "LIMIT"
	KindStopLimit Kind = "STOP_LIMIT"
)

func (k Kind) valid() bool {
	switch k {
	case KindMarket, KindLimit, KindStopLimit:
		return true
	default:
		return false
	}
}

// Status 表示订单在交易所侧的状态。
type Status string

const (
	StatusNew             Status = "NEW"
	StatusFilled          Status = "FILLED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
	StatusFailed          Status = "FAILED"
)

// Succeeded 判断订单是否被交易所受理。
func (s Status) Succeeded() bool {
	switch s {
	case "", StatusFailed, StatusRejected:
		return false
	default:
		return true
	}
}

// NormalizeSymbol 将交易对转为大写并去除空白。
func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Request 是所有组件之间传递的标准化下单请求。
// Price 与 StopPrice 为零值时视为未提供。
type Request struct {
	Symbol        string
	Side          Side
	Kind          Kind
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   string
	ReduceOnly    bool
	ClientOrderID string
}

// Result 为一次下单（或查询）的结果。
type Result struct {
	OrderID       string
	ClientOrderID string
	Request       Request
	Status        Status
	ExecutedQty   decimal.Decimal
	// AvgPrice 仅在有成交时有效。
	AvgPrice decimal.NullDecimal
	// Error 仅在 Status 为 FAILED 时有值。
	Error     string
	UpdatedAt time.Time
}

// Failed 将网关错误映射为 FAILED 结果。
func Failed(req Request, err error) Result {
	res := Result{
		ClientOrderID: req.ClientOrderID,
		Request:       req,
		Status:        StatusFailed,
		UpdatedAt:     time.Now().UTC(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Filled 判断结果是否带有成交均价。
func (r Result) Filled() bool {
	return r.AvgPrice.Valid && r.AvgPrice.Decimal.IsPositive()
}

// FillQuantity 返回用于加权的成交数量，交易所未回报成交量时退化为委托数量。
func (r Result) FillQuantity() decimal.Decimal {
	if r.ExecutedQty.IsPositive() {
		return r.ExecutedQty
	}
	return r.Request.Quantity
}
