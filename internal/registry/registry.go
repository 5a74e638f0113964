// Package registry holds the static known-address registry: exchange,
// DEX and bridge labels consulted read-only for funding enrichment, plus
// the swap-program IDs used for swap recognition. The audit core never
// writes to it.
package registry

// Entry labels a known address.
type Entry struct {
	Name     string
	Category string // exchange | dex | bridge | aggregator
}

// Known address categories.
const (
	CategoryExchange   = "exchange"
	CategoryDEX        = "dex"
	CategoryBridge     = "bridge"
	CategoryAggregator = "aggregator"
)

// Known DEX / swap program IDs. A transaction mentioning one of these
// account keys is treated as a swap by the inactivity check.
const (
	RaydiumAMMV4  = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	RaydiumCLMM   = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	PumpFun       = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	JupiterV6     = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	MeteoraDLMM   = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
)

// SwapPrograms is the set of program IDs recognized as swaps.
var SwapPrograms = map[string]struct{}{
	RaydiumAMMV4:  {},
	RaydiumCLMM:   {},
	PumpFun:       {},
	OrcaWhirlpool: {},
	JupiterV6:     {},
	MeteoraDLMM:   {},
}

// knownAddresses maps address to its label. Hot wallets and pool
// authorities seen repeatedly as funding sources in the wild.
var knownAddresses = map[string]Entry{
	// Binance
	"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": {Name: "Binance", Category: CategoryExchange},
	"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM": {Name: "Binance", Category: CategoryExchange},
	"2ojv9BAiHUrvsm9gxDe7fJSzbNZSJcxZvf8dqmWGHG8S": {Name: "Binance", Category: CategoryExchange},
	"HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH": {Name: "Binance", Category: CategoryExchange},

	// Coinbase
	"GJRs4FwHtemZ5ZE9x3FNvJ8TMwitKTh21yxdRPqn7npE": {Name: "Coinbase", Category: CategoryExchange},
	"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": {Name: "Coinbase", Category: CategoryExchange},
	"2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm": {Name: "Coinbase", Category: CategoryExchange},

	// Kraken
	"FWznbcNXWQuHTawe9RxvQ2LdCENssh12dsznf4RiouN5": {Name: "Kraken", Category: CategoryExchange},

	// OKX
	"5VCwKtCXgCJ6kit5FybXjvFnPXCrKoKwFqgq5YVe1rAS": {Name: "OKX", Category: CategoryExchange},

	// Bybit
	"AC5RDfQFmDS1deWZos921JfqscXdByf6BKHAbETSYnh7": {Name: "Bybit", Category: CategoryExchange},

	// KuCoin
	"BmFdpraQhkiDQE6SnfG5PVddTtR3GYBnCkEHAowHvPLJ": {Name: "KuCoin", Category: CategoryExchange},

	// Wormhole bridge
	"worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth": {Name: "Wormhole", Category: CategoryBridge},

	// DEX authorities and aggregators
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1": {Name: "Raydium Authority", Category: CategoryDEX},
	JupiterV6: {Name: "Jupiter", Category: CategoryAggregator},
}

// Registry answers known-address lookups. The base set is compiled in;
// extra entries may be layered on top at construction time.
type Registry struct {
	extra map[string]Entry
}

// New creates a Registry. Entries in extra shadow the compiled-in set.
func New(extra map[string]Entry) *Registry {
	return &Registry{extra: extra}
}

// Lookup returns the label for an address, if known.
func (r *Registry) Lookup(address string) (Entry, bool) {
	if r != nil && r.extra != nil {
		if e, ok := r.extra[address]; ok {
			return e, true
		}
	}
	e, ok := knownAddresses[address]
	return e, ok
}

// IsSwapProgram reports whether the account key belongs to a known DEX
// swap program.
func IsSwapProgram(key string) bool {
	_, ok := SwapPrograms[key]
	return ok
}
