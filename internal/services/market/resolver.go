// Package market implements ticker resolution and historical data retrieval.
package market

import (
	"strings"
	"time"
)

// countryBySuffix maps ticker suffixes to listing countries. Tickers without
// a recognized suffix are treated as US listings.
var countryBySuffix = map[string]string{
	"KS": "South Korea",
	"T":  "Japan",
	"L":  "UK",
	"F":  "France",
	"DE": "Germany",
	"HK": "Hong Kong",
}

// timezoneByCountry maps countries to their exchange timezone.
var timezoneByCountry = map[string]string{
	"US":          "America/New_York",
	"South Korea": "Asia/Seoul",
	"Japan":       "Asia/Tokyo",
	"UK":          "Europe/London",
	"France":      "Europe/Paris",
	"Germany":     "Europe/Berlin",
	"Hong Kong":   "Asia/Hong_Kong",
}

// CountryForTicker infers the listing country from a ticker symbol's suffix.
// Total function: unknown suffixes and suffix-less tickers resolve to "US".
func CountryForTicker(ticker string) string {
	if !strings.Contains(ticker, ".") {
		return "US"
	}
	parts := strings.Split(ticker, ".")
	suffix := parts[len(parts)-1]
	if country, ok := countryBySuffix[suffix]; ok {
		return country
	}
	return "US"
}

// LocationForCountry returns the exchange timezone for a country, defaulting
// to New York for unknown countries.
func LocationForCountry(country string) *time.Location {
	name, ok := timezoneByCountry[country]
	if !ok {
		name = "America/New_York"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window describes a data-fetch window.
type Window struct {
	From     time.Time
	To       time.Time
	Intraday bool // minute bars over the most recent session
}

// WindowFor computes the fetch window for an optional specific date: a
// [date, date+1d) daily window when given, otherwise the most recent session
// at minute granularity.
func WindowFor(specificDate *time.Time) Window {
	if specificDate != nil {
		d := specificDate.Truncate(24 * time.Hour)
		return Window{From: d, To: d.AddDate(0, 0, 1)}
	}
	return Window{Intraday: true}
}
