package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for
// getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // start searching backwards from this signature
	Until  string // search until this signature
	Limit  int    // maximum number of signatures to return
}

// Transaction represents a Solana transaction with the metadata the audit
// needs: account keys, parsed instructions and balance deltas.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	InnerInstructions []InnerInstructionSet
	LogMessages       []string
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is one (possibly parsed) instruction.
type Instruction struct {
	Program   string             // e.g. "system", "spl-token"
	ProgramID string             `json:"programId"`
	Parsed    *ParsedInstruction // nil for non-parsed instructions
}

// ParsedInstruction carries decoded instruction data for programs the RPC
// node understands.
type ParsedInstruction struct {
	Type string                 `json:"type"` // e.g. "transfer"
	Info map[string]interface{} `json:"info"`
}

// InnerInstructionSet groups inner instructions by outer instruction index.
type InnerInstructionSet struct {
	Index        int
	Instructions []Instruction
}

// TokenBalance is a pre/post token balance entry.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       TokenAmount
}

// TokenAmount is the RPC token amount representation. Amount is the raw
// base-unit value as a string to avoid precision loss.
type TokenAmount struct {
	Amount   string
	Decimals int
}

// TokenAccount is one entry from token account listings.
type TokenAccount struct {
	Address string // token account address
	Owner   string
	Amount  string // raw base units
}

// TokenAccountsPage is one page of the cursor-based token account walk.
type TokenAccountsPage struct {
	Accounts []TokenAccount
	Cursor   string // empty when no more pages
}

// LargestAccount is one entry from getTokenLargestAccounts.
type LargestAccount struct {
	Address string // token account address
	Amount  string // raw base units
}

// TokenSupply is the getTokenSupply result.
type TokenSupply struct {
	Amount   string // raw base units
	Decimals int
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
}

// AssetPage is one page of getAssetsByOwner (DAS) results.
type AssetPage struct {
	Items []Asset
	Total int
}

// Asset is a single DAS asset entry; only the fields the audit inspects.
type Asset struct {
	ID        string
	Interface string // e.g. "FungibleToken", "V1_NFT"
}

// IsFungible reports whether the asset is a fungible token.
func (a Asset) IsFungible() bool {
	return a.Interface == "FungibleToken" || a.Interface == "FungibleAsset"
}
