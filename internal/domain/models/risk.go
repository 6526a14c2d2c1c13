package models

// AccountState is the caller-supplied view of the account at sizing time.
// OpenRisk is the aggregate risk of open positions as a fraction of balance;
// the sizer never reads ambient portfolio state.
type AccountState struct {
	Balance  float64
	OpenRisk float64
}

// SizingInputs records the inputs behind a computed quantity.
type SizingInputs struct {
	VolatilityProxy    float64
	RiskMultiplier     float64
	SentimentDampening float64
}

// PositionSizeDecision is the sizer's immutable output for one signal.
// Quantity is floored to the tradable unit and never rounded up: a computed
// size below the minimum unit is rejected rather than inflated.
type PositionSizeDecision struct {
	Signal         TradingSignal
	AccountBalance float64
	Quantity       float64
	RiskAmount     float64
	StopLoss       float64
	TakeProfit     float64
	Inputs         SizingInputs
}
