package models

// Inspection API request payloads, bound from query parameters.

type SignalsRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

type SmirkRequest struct {
	Symbol string `query:"symbol" validate:"required"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	N      int    `query:"n" default:"200" validate:"gte=1,lte=5000"`
	TF     string `query:"tf" default:"1h" validate:"oneof=1m 1h 1d"`
}
