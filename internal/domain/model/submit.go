package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValidationError reports the first descriptor rule violated by a submission.
// No record is created when validation fails.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Msg)
}

const (
	maxSymbols      = 100
	maxSymbolLength = 20
)

// SubmitRequest is the submission-side descriptor. Dates arrive as
// YYYY-MM-DD strings and Params as a raw payload decoded by kind.
type SubmitRequest struct {
	Kind     JobKind         `json:"type"`
	Symbols  []string        `json:"symbols"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Interval DataInterval    `json:"interval"`
	Vendor   DataVendor      `json:"vendor"`
	Adjusted *bool           `json:"adjusted,omitempty"`
	Params   json.RawMessage `json:"params"`
}

// Descriptor validates the request against the descriptor invariants and
// returns the typed descriptor. It fails with a *ValidationError naming the
// first violated rule. now anchors the not-in-the-future date check.
func (r *SubmitRequest) Descriptor(now time.Time) (Descriptor, error) {
	if !r.Kind.Valid() {
		return Descriptor{}, &ValidationError{Field: "type", Msg: fmt.Sprintf("unsupported job kind %q", r.Kind)}
	}
	if err := validateSymbols(r.Symbols); err != nil {
		return Descriptor{}, err
	}

	start, end, err := parseDateRange(r.Start, r.End, now)
	if err != nil {
		return Descriptor{}, err
	}

	interval := r.Interval
	if interval == "" {
		interval = IntervalOneDay
	}
	if !interval.Valid() {
		return Descriptor{}, &ValidationError{Field: "interval", Msg: fmt.Sprintf("unsupported interval %q", interval)}
	}

	vendor := r.Vendor
	if vendor == "" {
		vendor = VendorEODHD
	}
	if !vendor.Valid() {
		return Descriptor{}, &ValidationError{Field: "vendor", Msg: fmt.Sprintf("unsupported vendor %q", vendor)}
	}

	adjusted := true
	if r.Adjusted != nil {
		adjusted = *r.Adjusted
	}

	params, err := DecodeParams(r.Kind, r.Params)
	if err != nil {
		return Descriptor{}, err
	}
	if err := params.Validate(); err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		Kind:     r.Kind,
		Symbols:  r.Symbols,
		Start:    start,
		End:      end,
		Interval: interval,
		Vendor:   vendor,
		Adjusted: adjusted,
		Params:   params,
	}, nil
}

func validateSymbols(symbols []string) error {
	if len(symbols) == 0 {
		return &ValidationError{Field: "symbols", Msg: "at least one symbol is required"}
	}
	if len(symbols) > maxSymbols {
		return &ValidationError{Field: "symbols", Msg: fmt.Sprintf("at most %d symbols allowed", maxSymbols)}
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if sym == "" || len(sym) > maxSymbolLength {
			return &ValidationError{Field: "symbols", Msg: "symbol must be 1-20 characters"}
		}
		if !validSymbol(sym) {
			return &ValidationError{Field: "symbols", Msg: fmt.Sprintf("symbol %q contains invalid characters", sym)}
		}
		if _, dup := seen[sym]; dup {
			return &ValidationError{Field: "symbols", Msg: fmt.Sprintf("duplicate symbol %q", sym)}
		}
		seen[sym] = struct{}{}
	}
	return nil
}

// validSymbol accepts alphanumerics plus the separators vendors use in
// tickers (BRK.B, BTC-USD, EUR/USD).
func validSymbol(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '/':
		default:
			return false
		}
	}
	return true
}

func parseDateRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Msg: "must be a YYYY-MM-DD date"}
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end", Msg: "must be a YYYY-MM-DD date"}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end", Msg: "must be after start"}
	}
	if start.After(now) || end.After(now) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start", Msg: "date range cannot be in the future"}
	}
	return start, end, nil
}
