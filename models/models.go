package models

const (
	ACCOUNTS = "accounts"
	STORE    = "sysstores"
	EVENTS   = "events"
	CURSORS  = "cursors"
	DEPOSITS = "deposits"
)

// State is the persisted engine configuration and aggregate, kept in a single
// sysstore document keyed by symbol.
type State struct {
	Symbol    string `bson:"symbol" json:"symbol"`
	Timestamp int64  `bson:"updated" json:"updated"`

	Mode        string `bson:"mode" json:"mode"`
	Minimum     string `bson:"minimum" json:"minimum"`
	MaxPriceAge string `bson:"maxPriceAge" json:"maxPriceAge"`
	PriceSource string `bson:"priceSource" json:"priceSource"`
	Owner       string `bson:"owner" json:"owner"`
	Paused      bool   `bson:"paused" json:"paused"`
	SweepMode   string `bson:"sweepMode" json:"sweepMode"`

	Total string `bson:"total" json:"total"`
}
