package domain

// Asset is one requested (label, ticker) pair in an analysis run.
type Asset struct {
	Label  string // display label, key of the result mapping
	Ticker string // provider symbol, e.g. "AAPL" or "^GSPC"
}

// AssetClass categorizes catalog entries.
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassIndex  AssetClass = "index"
	AssetClassETF    AssetClass = "etf"
	AssetClassFX     AssetClass = "fx"
	AssetClassCrypto AssetClass = "crypto"
)

// AssetInfo is one row of the searchable asset reference catalog.
// Corresponds to the asset_catalog table in PostgreSQL.
type AssetInfo struct {
	Symbol string     // provider symbol, unique
	Name   string     // human-readable name
	Class  AssetClass // equity | index | etf | fx | crypto
}
