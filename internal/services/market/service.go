package market

import (
	"context"
	"time"

	"github.com/tickerwell/fincollect/internal/common"
	"github.com/tickerwell/fincollect/internal/interfaces"
	"github.com/tickerwell/fincollect/internal/models"
)

// DataSource is the constant tag attached to response metadata.
const DataSource = "Yahoo Finance"

// Service is the market data gateway: it delegates to the provider client
// and normalizes bars and metadata into the response shape.
type Service struct {
	client interfaces.MarketDataClient
	logger *common.Logger

	// now is swappable for tests of the freshness policy.
	now func() time.Time
}

// NewService creates a market data service.
func NewService(client interfaces.MarketDataClient, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// FetchHistorical retrieves and normalizes price data for a ticker.
//
// With a specific date the window is that single day at daily granularity and
// rows are filtered to the requested date. Without one, minute bars for the
// most recent session are fetched; if the session's first bar does not fall on
// "today" in the ticker's local timezone the prices are suppressed rather than
// returned mislabeled as current.
//
// countryOverride, when non-empty, replaces the inferred country in the
// response and always attaches the completeness note, even when the override
// names "US". Without an override the note is attached only for non-US
// inferences.
func (s *Service) FetchHistorical(ctx context.Context, ticker string, specificDate *time.Time, countryOverride string) (*models.TickerResponse, error) {
	country := countryOverride
	if country == "" {
		country = CountryForTicker(ticker)
	}
	loc := LocationForCountry(country)

	window := WindowFor(specificDate)

	var bars []models.Bar
	var err error
	if window.Intraday {
		bars, err = s.client.GetIntradayBars(ctx, ticker)
		if err != nil {
			return nil, err
		}
		bars = s.suppressStale(ticker, bars, loc)
	} else {
		bars, err = s.client.GetDailyBars(ctx, ticker, window.From, window.To)
		if err != nil {
			return nil, err
		}
	}

	prices := make([]models.HistoricalPrice, 0, len(bars))
	for _, bar := range bars {
		local := bar.Timestamp.In(loc)
		date := local.Format(models.DateLayout)

		// A one-day daily window can still spill into neighboring sessions;
		// keep only the requested date.
		if specificDate != nil && date != specificDate.Format(models.DateLayout) {
			continue
		}

		prices = append(prices, models.HistoricalPrice{
			Date:   date,
			Time:   local.Format(models.TimeLayout),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	info, err := s.client.GetTickerInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}

	currency := info.Currency
	if currency == "" {
		currency = "USD"
	}

	metadata := map[string]interface{}{
		"name":        info.Name,
		"sector":      info.Sector,
		"industry":    info.Industry,
		"currency":    currency,
		"exchange":    info.Exchange,
		"data_source": DataSource,
	}
	if country != "US" || countryOverride != "" {
		metadata["note"] = CompletenessNote(country)
	}

	return &models.TickerResponse{
		Ticker:   ticker,
		Country:  country,
		Prices:   prices,
		Metadata: metadata,
	}, nil
}

// CompletenessNote is the metadata annotation attached for non-US tickers.
func CompletenessNote(country string) string {
	return "Data for " + country + " tickers may not be complete"
}

// suppressStale drops intraday bars when the session they belong to is not
// "today" in the ticker's local timezone. Stale data is dropped silently; the
// caller sees an empty price list, not an error.
func (s *Service) suppressStale(ticker string, bars []models.Bar, loc *time.Location) []models.Bar {
	if len(bars) == 0 {
		return bars
	}
	barDate := bars[0].Timestamp.In(loc).Format(models.DateLayout)
	today := s.now().In(loc).Format(models.DateLayout)
	if barDate != today {
		s.logger.Debug().
			Str("ticker", ticker).
			Str("bar_date", barDate).
			Str("local_today", today).
			Msg("Suppressing stale intraday prices")
		return nil
	}
	return bars
}
