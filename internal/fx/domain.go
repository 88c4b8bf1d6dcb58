// Package fx converts claim amounts into a company's reporting currency
// using a third-party exchange-rate provider.
package fx

import (
	"errors"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

var (
	// ErrConversionUnavailable indicates the rate provider is unreachable or errored.
	ErrConversionUnavailable = errors.New("fx: conversion unavailable")
	// ErrInvalidCurrency indicates a malformed or unknown ISO-4217 code.
	ErrInvalidCurrency = errors.New("fx: invalid currency code")
)

// Pair is an ordered (from, to) currency pair.
type Pair struct {
	From string
	To   string
}

// Key returns the canonical cache key fragment for the pair.
func (p Pair) Key() string {
	return p.From + ":" + p.To
}

// Same reports whether both legs are the same currency.
func (p Pair) Same() bool {
	return p.From == p.To
}

// NormalizeCode upper-cases and validates an ISO-4217 currency code.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}

// Round2 rounds an amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
