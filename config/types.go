package config

// Ratios are the per-hundred shares of the unit price.
type Ratios struct {
	Dbox       uint32 `toml:"Dbox"`
	Reserve    uint32 `toml:"Reserve"`
	Pool       uint32 `toml:"Pool"`
	LastPlayer uint32 `toml:"LastPlayer"`
	Team       uint32 `toml:"Team"`
	Operator   uint32 `toml:"Operator"`
	Invitor    uint32 `toml:"Invitor"`
}

// Accounts holds bech32 addresses of the system accounts. Empty entries keep
// the built-in defaults.
type Accounts struct {
	Admin      string `toml:"Admin"`
	Custody    string `toml:"Custody"`
	Reserve    string `toml:"Reserve"`
	Pool       string `toml:"Pool"`
	LastPlayer string `toml:"LastPlayer"`
	Team       string `toml:"Team"`
	Operator   string `toml:"Operator"`
}

// Bonus configures the bonus pool engine. Amounts are decimal strings in
// base units.
type Bonus struct {
	// UnitPrice is used when the node initialises the round on first start.
	UnitPrice string `toml:"UnitPrice"`
	AutoInit  bool   `toml:"AutoInit"`
	AutoStart bool   `toml:"AutoStart"`

	MinUnitPrice     string   `toml:"MinUnitPrice"`
	MaxUnitPrice     string   `toml:"MaxUnitPrice"`
	Expiration       uint32   `toml:"Expiration"`
	TickDecrement    uint32   `toml:"TickDecrement"`
	OperationBump    uint32   `toml:"OperationBump"`
	MaxLatest        uint64   `toml:"MaxLatest"`
	DefaultOpsBudget uint32   `toml:"DefaultOpsBudget"`
	MinOpsBudget     uint32   `toml:"MinOpsBudget"`
	MaxOpsBudget     uint32   `toml:"MaxOpsBudget"`
	DefaultMaxActive uint64   `toml:"DefaultMaxActive"`
	MaxPresetActive  uint64   `toml:"MaxPresetActive"`
	Ratios           Ratios   `toml:"ratios"`
	Accounts         Accounts `toml:"accounts"`
}

// API configures the HTTP API. It also serves /metrics.
type API struct {
	ListenAddress string  `toml:"ListenAddress"`
	RatePerSecond float64 `toml:"RatePerSecond"`
	Burst         int     `toml:"Burst"`
	LogRequests   bool    `toml:"LogRequests"`
	Auth          APIAuth `toml:"auth"`
}

// APIAuth enables the write routes. Bearer tokens are HMAC-signed JWTs whose
// subject is the caller's bech32 account; round administration also needs
// the "admin" scope.
type APIAuth struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
	// ClockSkew is a Go duration string. Empty means two minutes.
	ClockSkew string `toml:"ClockSkew"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	// Headers uses the OTEL "k=v,k2=v2" form.
	Headers string `toml:"Headers"`
	Metrics bool   `toml:"Metrics"`
	Traces  bool   `toml:"Traces"`
}

// GenesisAccount seeds a token balance on an empty data directory.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}
