// Package indicators derives support and resistance levels from a candle
// window.
package indicators

import "errors"

// MinWindow is the shortest window pivot detection accepts: one candidate
// with two neighbours on each side.
const MinWindow = 5

// ErrInsufficientData is returned for windows shorter than MinWindow.
// Callers treat it as "no signal".
var ErrInsufficientData = errors.New("insufficient data")
