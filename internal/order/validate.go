package order

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+` + QuoteAsset + `$`)

// ErrStopLimitRelationship 表示止损触发价与限价的方向关系不成立。
var ErrStopLimitRelationship = errors.New("stop/limit relationship")

// ValidationError 描述未通过校验的字段及其取值，发生在任何网络调用之前。
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s 校验失败: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s 校验失败 (%s): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func invalid(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsValidationError 判断错误链中是否包含 ValidationError。
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// Validate 按字段逐项校验请求，遇到第一个错误即返回。
func Validate(req Request) error {
	if err := ValidateSymbol(req.Symbol); err != nil {
		return err
	}
	if !req.Side.valid() {
		return invalid("side", string(req.Side), "必须为 BUY 或 SELL")
	}
	if !req.Kind.valid() {
		return invalid("kind", string(req.Kind), "必须为 MARKET、LIMIT 或 STOP_LIMIT")
	}
	if err := positive("quantity", req.Quantity); err != nil {
		return err
	}

	switch req.Kind {
	case KindLimit, KindStopLimit:
		if err := positive("price", req.Price); err != nil {
			return err
		}
	default:
		if !req.Price.IsZero() && !req.Price.IsPositive() {
			return invalid("price", req.Price.String(), "必须大于0")
		}
	}

	if req.Kind == KindStopLimit {
		if err := positive("stop_price", req.StopPrice); err != nil {
			return err
		}
		return ValidateStopLimit(req.Side, req.StopPrice, req.Price)
	}
	if !req.StopPrice.IsZero() && !req.StopPrice.IsPositive() {
		return invalid("stop_price", req.StopPrice.String(), "必须大于0")
	}
	return nil
}

// ValidateSymbol 校验交易对格式，例如 BTCUSDT。
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return invalid("symbol", "", "不能为空")
	}
	if !symbolPattern.MatchString(symbol) {
		return invalid("symbol", symbol, "必须为大写字母数字且以 "+QuoteAsset+" 结尾")
	}
	return nil
}

// ValidateStopLimit 校验止损限价单的价格关系：
// BUY 要求 stop >= limit，SELL 要求 stop <= limit，相等均可接受。
func ValidateStopLimit(side Side, stopPrice, limitPrice decimal.Decimal) error {
	cmp := stopPrice.Cmp(limitPrice)
	switch side {
	case SideBuy:
		if cmp < 0 {
			return &ValidationError{
				Field:  ErrStopLimitRelationship.Error(),
				Value:  fmt.Sprintf("stop=%s limit=%s", stopPrice, limitPrice),
				Reason: "BUY 止损限价单要求 stop price >= limit price",
				err:    ErrStopLimitRelationship,
			}
		}
	case SideSell:
		if cmp > 0 {
			return &ValidationError{
				Field:  ErrStopLimitRelationship.Error(),
				Value:  fmt.Sprintf("stop=%s limit=%s", stopPrice, limitPrice),
				Reason: "SELL 止损限价单要求 stop price <= limit price",
				err:    ErrStopLimitRelationship,
			}
		}
	default:
		return invalid("side", string(side), "必须为 BUY 或 SELL")
	}
	return nil
}

// ValidateTWAP 校验 TWAP 的切片数与间隔（秒）。
func ValidateTWAP(slices, intervalSeconds int) error {
	if slices <= 0 {
		return invalid("slices", strconv.Itoa(slices), "必须为正整数")
	}
	if intervalSeconds <= 0 {
		return invalid("interval", strconv.Itoa(intervalSeconds), "必须为正整数")
	}
	return nil
}

// ValidateGrid 校验网格的档位数、价格区间与单档数量。
func ValidateGrid(lower, upper decimal.Decimal, levels int, quantityPerLevel decimal.Decimal) error {
	if levels < 2 {
		return invalid("levels", strconv.Itoa(levels), "至少为2")
	}
	if err := positive("lower_price", lower); err != nil {
		return err
	}
	if err := positive("upper_price", upper); err != nil {
		return err
	}
	if !upper.GreaterThan(lower) {
		return invalid("price range", fmt.Sprintf("lower=%s upper=%s", lower, upper), "upper price 必须大于 lower price")
	}
	return positive("quantity_per_level", quantityPerLevel)
}

func positive(field string, value decimal.Decimal) error {
	if !value.IsPositive() {
		return invalid(field, value.String(), "必须大于0")
	}
	return nil
}

// ParseDecimal 解析命令行中的数值参数；NaN/Inf 等非有限值无法被解析。
func ParseDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid(field, raw, "必须为数字")
	}
	return value, nil
}

// ParseInt 解析命令行中的整数参数。
func ParseInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(field, raw, "必须为整数")
	}
	return value, nil
}
