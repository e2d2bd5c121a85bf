//go:build integration
// +build integration

package exchange

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/order"
)

// 仅在设置测试网凭证时运行，挂一张远离市价的限价单后立即撤销。
func TestGatewayIntegration_TestnetRoundTrip(t *testing.T) {
	if os.Getenv("BINANCE_API_KEY") == "" || os.Getenv("BINANCE_API_SECRET") == "" {
		t.Skip("缺少 BINANCE_API_KEY/BINANCE_API_SECRET，跳过测试网测试")
	}

	for _, driver := range []string{config.DriverBinance, config.DriverCCXT} {
		t.Run(driver, func(t *testing.T) {
			cfg, err := config.Load(os.Getenv("TRADER_CONFIG"), map[string]any{
				"exchange.driver":  driver,
				"exchange.testnet": true,
			})
			if err != nil {
				t.Fatalf("加载配置失败: %v", err)
			}

			gw, err := New(cfg, nil, zap.NewNop())
			if err != nil {
				t.Fatalf("初始化网关失败: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			acct, err := gw.Account(ctx)
			if err != nil {
				t.Fatalf("查询账户失败: %v", err)
			}
			t.Logf("测试网账户余额: %s %s", acct.WalletBalance, acct.Asset)

			price, err := gw.CurrentPrice(ctx, "BTCUSDT")
			if err != nil {
				t.Fatalf("获取价格失败: %v", err)
			}

			limit := price.Mul(decimal.RequireFromString("0.8")).Round(1)
			res, err := gw.PlaceOrder(ctx, order.Request{
				Symbol:      "BTCUSDT",
				Side:        order.SideBuy,
				Kind:        order.KindLimit,
				Quantity:    decimal.RequireFromString("0.002"),
				Price:       limit,
				TimeInForce: "GTC",
			})
			if err != nil {
				t.Fatalf("下单失败: %v", err)
			}
			if res.OrderID == "" {
				t.Fatalf("订单号为空")
			}

			status, err := gw.OrderStatus(ctx, "BTCUSDT", res.OrderID)
			if err != nil {
				t.Fatalf("查询订单失败: %v", err)
			}
			if status.Status != order.StatusNew {
				t.Errorf("expected NEW, got %s", status.Status)
			}

			if _, err := gw.CancelOrder(ctx, "BTCUSDT", res.OrderID); err != nil {
				t.Fatalf("撤单失败: %v", err)
			}
		})
	}
}
