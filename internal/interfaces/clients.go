// Package interfaces defines contracts between fincollect components.
package interfaces

import (
	"context"
	"time"

	"github.com/tickerwell/fincollect/internal/models"
)

// MarketDataClient retrieves raw bars and descriptive info for a symbol.
// The provider is consumed as a black box; implementations live under
// internal/clients.
type MarketDataClient interface {
	// GetDailyBars returns daily bars for [from, to).
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)

	// GetIntradayBars returns minute bars for the most recent trading session.
	GetIntradayBars(ctx context.Context, symbol string) ([]models.Bar, error)

	// GetTickerInfo returns descriptive metadata for a symbol.
	GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error)
}
