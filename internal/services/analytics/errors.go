package analytics

import "errors"

var (
	// ErrDataQuality means the raw chain is below the minimum tradable
	// shape. Fatal for the cycle, not the process.
	ErrDataQuality = errors.New("snapshot below minimum tradable shape")

	// ErrInsufficientData means one expiry lacks enough valid-IV strikes.
	// Local to that expiry; sibling expiries proceed.
	ErrInsufficientData = errors.New("insufficient data for expiry")
)
