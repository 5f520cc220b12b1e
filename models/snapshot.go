package models

// Snapshot is everything an off-chain backend needs about one account in a
// single round trip. Amounts are base-10 strings in value units; fiat figures
// carry 8 fractional digits. Price fields are empty in fixed mode.
type Snapshot struct {
	Account  string `json:"account"`
	Balance  string `json:"balance"`
	Ether    string `json:"ether"`
	Required string `json:"required"`
	Active   bool   `json:"active"`

	FiatValue      string `json:"fiatValue,omitempty"`
	Fiat           string `json:"fiat,omitempty"`
	Price          string `json:"price,omitempty"`
	PriceUpdatedAt int64  `json:"priceUpdatedAt,omitempty"`
}

type Status struct {
	Mode        string `json:"mode"`
	Total       string `json:"total"`
	Accounts    int    `json:"accounts"`
	Minimum     string `json:"minimum"`
	MaxPriceAge string `json:"maxPriceAge,omitempty"`
	PriceSource string `json:"priceSource,omitempty"`
	Owner       string `json:"owner"`
	Paused      bool   `json:"paused"`
	SweepMode   string `json:"sweepMode"`
	Pending     int    `json:"pendingTransfers"`
}
