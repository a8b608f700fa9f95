package engine

import (
	"context"
	"fmt"
	"time"

	"marubot/internal/broker"
	"marubot/internal/correlator"
)

// StockInfo is the decoded answer to a stock-information request.
type StockInfo struct {
	Code       string
	Name       string
	Price      float64
	Volume     int64
	ChangeRate float64
}

// DataClient issues transaction-data requests against the terminal and
// blocks until the correlated response arrives.
type DataClient struct {
	terminal broker.Terminal
	corr     *correlator.Correlator
	timeout  time.Duration
}

// NewDataClient creates a DataClient with the given per-request timeout.
func NewDataClient(terminal broker.Terminal, corr *correlator.Correlator, timeout time.Duration) *DataClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DataClient{terminal: terminal, corr: corr, timeout: timeout}
}

// StockInfo requests the current snapshot for an instrument. Malformed
// fields in the response decode to zero values rather than failing the
// whole request.
func (c *DataClient) StockInfo(ctx context.Context, code string) (StockInfo, error) {
	ticket, err := c.corr.CreateTicket(correlator.KindTR)
	if err != nil {
		return StockInfo{}, err
	}

	payload, err := c.corr.Submit(ctx, ticket, c.timeout, func(key int) error {
		return c.terminal.SendDataRequest(broker.DataRequest{
			Name:   "stock_info",
			TRCode: "opt10001",
			Params: map[string]string{"code": code},
			Key:    key,
		})
	})
	if err != nil {
		return StockInfo{}, fmt.Errorf("stock info for %s: %w", code, err)
	}

	data, ok := payload.(broker.TRData)
	if !ok {
		return StockInfo{}, fmt.Errorf("stock info for %s: unexpected payload %T", code, payload)
	}
	return StockInfo{
		Code:       data.Fields["code"],
		Name:       data.Fields["name"],
		Price:      broker.ParsePrice(data.Fields["price"]),
		Volume:     broker.ParseInt(data.Fields["volume"]),
		ChangeRate: broker.ParseFloat(data.Fields["change_rate"]),
	}, nil
}
