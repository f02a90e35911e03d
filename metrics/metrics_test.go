package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposure(t *testing.T) {
	m := New("test")
	m.TickProcessed(0.01)
	m.ProposalsCreated(2)
	m.OrderPlaced("buy")
	m.OrderPlaced("sell")
	m.OrderCancelled()
	m.OrderFilled("buy")
	m.MarketSkipped()
	m.SetMidPrice("ETH-USDT", 2000)
	m.SetBudgets("ETH-USDT", 10000, 2)

	body := scrape(t, m)
	assert.Contains(t, body, "test_ticks_total 1")
	assert.Contains(t, body, "test_proposals_total 2")
	assert.Contains(t, body, `test_orders_placed_total{side="buy"} 1`)
	assert.Contains(t, body, `test_orders_placed_total{side="sell"} 1`)
	assert.Contains(t, body, "test_orders_cancelled_total 1")
	assert.Contains(t, body, `test_fills_total{side="buy"} 1`)
	assert.Contains(t, body, "test_skipped_markets_total 1")
	assert.Contains(t, body, `test_mid_price{market="ETH-USDT"} 2000`)
	assert.Contains(t, body, `test_buy_budget{market="ETH-USDT"} 10000`)
	assert.Contains(t, body, `test_sell_budget{market="ETH-USDT"} 2`)
}

func TestMetricsRegistryIsolated(t *testing.T) {
	a := New("iso")
	b := New("iso") // 同名 namespace 也不会冲突，各自持有独立 registry
	a.TickProcessed(0.01)

	bodyB := scrape(t, b)
	for _, line := range strings.Split(bodyB, "\n") {
		if strings.HasPrefix(line, "iso_ticks_total ") {
			assert.Equal(t, "iso_ticks_total 0", line)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TickProcessed(0.01)
		m.ProposalsCreated(1)
		m.OrderPlaced("buy")
		m.OrderCancelled()
		m.OrderFilled("sell")
		m.MarketSkipped()
		m.SetMidPrice("ETH-USDT", 2000)
		m.SetBudgets("ETH-USDT", 1, 1)
	})
}
