package order

import "github.com/shopspring/decimal"

// 未配置步长或 tick 时保留的小数位。
const (
	DefaultQuantityPlaces = 8
	DefaultPricePlaces    = 8
)

// Precision 描述合约的最小下单步长与最小价格变动。
type Precision struct {
	StepSize decimal.Decimal
	TickSize decimal.Decimal
}

// FloorQuantity 将数量向下取整到步长。
func (p Precision) FloorQuantity(q decimal.Decimal) decimal.Decimal {
	if !p.StepSize.IsPositive() {
		return q.RoundFloor(DefaultQuantityPlaces)
	}
	return q.Div(p.StepSize).Floor().Mul(p.StepSize)
}

// RoundPrice 将价格四舍五入到 tick，未配置 tick 时保留 DefaultPricePlaces 位。
func (p Precision) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if !p.TickSize.IsPositive() {
		return price.Round(DefaultPricePlaces)
	}
	return price.Div(p.TickSize).Round(0).Mul(p.TickSize)
}

// PrecisionTable 按交易对查找精度，缺省时使用 Fallback。
type PrecisionTable struct {
	bySymbol map[string]Precision
	fallback Precision
}

// NewPrecisionTable 构造精度表。
func NewPrecisionTable(bySymbol map[string]Precision, fallback Precision) PrecisionTable {
	table := PrecisionTable{
		bySymbol: make(map[string]Precision, len(bySymbol)),
		fallback: fallback,
	}
	for symbol, p := range bySymbol {
		table.bySymbol[NormalizeSymbol(symbol)] = p
	}
	return table
}

// For 返回交易对对应的精度。
func (t PrecisionTable) For(symbol string) Precision {
	p, ok := t.bySymbol[NormalizeSymbol(symbol)]
	if !ok {
		return t.fallback
	}
	if !p.StepSize.IsPositive() {
		p.StepSize = t.fallback.StepSize
	}
	if !p.TickSize.IsPositive() {
		p.TickSize = t.fallback.TickSize
	}
	return p
}
