// Package models defines the wire and domain types for fincollect.
package models

import "time"

// DateLayout is the calendar date format used on the wire (ISO 8601).
const DateLayout = "2006-01-02"

// TimeLayout is the time-of-day format used on the wire.
const TimeLayout = "15:04:05"

// TokenRequest is the body of a client-credential token request.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Token is a successfully issued bearer token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Bar is one raw OHLCV observation as returned by the market data provider.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// TickerInfo holds descriptive fields for a symbol.
type TickerInfo struct {
	Name     string
	Sector   string
	Industry string
	Currency string
	Exchange string
}

// HistoricalPrice is one normalized price bar. Date and Time are rendered in
// the ticker's local timezone using DateLayout and TimeLayout.
type HistoricalPrice struct {
	Date   string  `json:"date"`
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// TickerResponse is the response shape for the data-retrieval endpoints.
// Country is never blank: it carries either the caller's override or the
// resolver's inference.
type TickerResponse struct {
	Ticker   string                 `json:"ticker"`
	Country  string                 `json:"country"`
	Prices   []HistoricalPrice      `json:"prices"`
	Metadata map[string]interface{} `json:"metadata"`
}
