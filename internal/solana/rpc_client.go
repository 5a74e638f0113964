package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-holder-audit/internal/scheduler"
)

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Client over HTTP JSON-RPC 2.0. Every call is
// routed through the scheduler: plain JSON-RPC methods through the bulk
// pool, indexer/DAS methods through the api pool.
type HTTPClient struct {
	rpcEndpoint string // bulk pool
	apiEndpoint string // api pool (indexer/DAS)
	client      *http.Client
	sched       *scheduler.Scheduler
	mainContext string
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithAPIEndpoint sets a separate endpoint for indexer/DAS methods.
// Defaults to the RPC endpoint.
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *HTTPClient) {
		c.apiEndpoint = endpoint
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Solana RPC client whose calls are arbitrated by
// the given scheduler.
func NewHTTPClient(endpoint string, sched *scheduler.Scheduler, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		rpcEndpoint: endpoint,
		apiEndpoint: endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		sched:       sched,
		mainContext: "audit",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tagged returns a copy of the client whose calls are counted under the
// given main observability context. Tagging never affects scheduling.
func (c *HTTPClient) Tagged(mainContext string) *HTTPClient {
	clone := *c
	clone.mainContext = mainContext
	return &clone
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error. Never retried.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one scheduled JSON-RPC call. The scheduler owns retry and
// backoff; each attempt here is a single round trip returning typed
// errors the scheduler can classify.
func (c *HTTPClient) call(ctx context.Context, pool scheduler.Pool, method string, params interface{}, result interface{}) error {
	endpoint := c.rpcEndpoint
	if pool == scheduler.PoolAPI {
		endpoint = c.apiEndpoint
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return c.sched.Do(ctx, pool, c.mainContext, method, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", scheduler.ErrTransient, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read response: %v", scheduler.ErrTransient, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return scheduler.ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("%w: unmarshal result: %v", ErrMalformedResponse, err)
			}
		}

		return nil
	})
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, scheduler.PoolBulk, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetTransaction retrieves a jsonParsed transaction by signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getTransactionResult
	if err := c.call(ctx, scheduler.PoolBulk, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		meta := &TransactionMeta{
			Err:          result.Meta.Err,
			Fee:          result.Meta.Fee,
			PreBalances:  result.Meta.PreBalances,
			PostBalances: result.Meta.PostBalances,
			LogMessages:  result.Meta.LogMessages,
		}
		meta.PreTokenBalances = convertTokenBalances(result.Meta.PreTokenBalances)
		meta.PostTokenBalances = convertTokenBalances(result.Meta.PostTokenBalances)
		for _, inner := range result.Meta.InnerInstructions {
			meta.InnerInstructions = append(meta.InnerInstructions, InnerInstructionSet{
				Index:        inner.Index,
				Instructions: convertInstructions(inner.Instructions),
			})
		}
		tx.Meta = meta
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys:  accountKeyStrings(result.Transaction.Message.AccountKeys),
			Instructions: convertInstructions(result.Transaction.Message.Instructions),
		}
	}

	return tx, nil
}

type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}            `json:"err"`
	Fee               uint64                 `json:"fee"`
	PreBalances       []uint64               `json:"preBalances"`
	PostBalances      []uint64               `json:"postBalances"`
	PreTokenBalances  []rawTokenBalance      `json:"preTokenBalances"`
	PostTokenBalances []rawTokenBalance      `json:"postTokenBalances"`
	InnerInstructions []rawInnerInstructions `json:"innerInstructions"`
	LogMessages       []string               `json:"logMessages"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys  []rawAccountKey  `json:"accountKeys"`
	Instructions []rawInstruction `json:"instructions"`
}

// rawAccountKey accepts both the plain-string and jsonParsed object forms.
type rawAccountKey struct {
	Pubkey string
}

func (k *rawAccountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Pubkey = s
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	k.Pubkey = obj.Pubkey
	return nil
}

type rawInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

type rawInnerInstructions struct {
	Index        int              `json:"index"`
	Instructions []rawInstruction `json:"instructions"`
}

type rawTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	} `json:"uiTokenAmount"`
}

func accountKeyStrings(keys []rawAccountKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Pubkey
	}
	return out
}

func convertTokenBalances(raw []rawTokenBalance) []TokenBalance {
	out := make([]TokenBalance, len(raw))
	for i, b := range raw {
		out[i] = TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount: TokenAmount{
				Amount:   b.UITokenAmount.Amount,
				Decimals: b.UITokenAmount.Decimals,
			},
		}
	}
	return out
}

func convertInstructions(raw []rawInstruction) []Instruction {
	out := make([]Instruction, len(raw))
	for i, ins := range raw {
		conv := Instruction{
			Program:   ins.Program,
			ProgramID: ins.ProgramID,
		}
		if len(ins.Parsed) > 0 {
			// Parsed is a plain string for some programs; only the object
			// form carries transfer details.
			var parsed ParsedInstruction
			if err := json.Unmarshal(ins.Parsed, &parsed); err == nil && parsed.Type != "" {
				conv.Parsed = &parsed
			}
		}
		out[i] = conv
	}
	return out
}

// GetTokenAccounts walks a mint's token accounts through the indexer pool.
func (c *HTTPClient) GetTokenAccounts(ctx context.Context, mint string, limit int, cursor string) (*TokenAccountsPage, error) {
	params := map[string]interface{}{
		"mint":  mint,
		"limit": limit,
	}
	if cursor != "" {
		params["cursor"] = cursor
	}

	var result struct {
		TokenAccounts []struct {
			Address string `json:"address"`
			Owner   string `json:"owner"`
			Amount  uint64 `json:"amount"`
		} `json:"token_accounts"`
		Cursor string `json:"cursor"`
	}
	if err := c.call(ctx, scheduler.PoolAPI, "getTokenAccounts", params, &result); err != nil {
		return nil, err
	}

	page := &TokenAccountsPage{Cursor: result.Cursor}
	for _, a := range result.TokenAccounts {
		page.Accounts = append(page.Accounts, TokenAccount{
			Address: a.Address,
			Owner:   a.Owner,
			Amount:  fmt.Sprintf("%d", a.Amount),
		})
	}
	return page, nil
}

// GetTokenLargestAccounts returns the 20 largest accounts of a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]LargestAccount, error) {
	params := []interface{}{mint}

	var result struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, scheduler.PoolBulk, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]LargestAccount, len(result.Value))
	for i, v := range result.Value {
		accounts[i] = LargestAccount{Address: v.Address, Amount: v.Amount}
	}
	return accounts, nil
}

// GetTokenSupply returns the mint's supply and decimals.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	params := []interface{}{mint}

	var result struct {
		Value struct {
			Amount   string `json:"amount"`
			Decimals int    `json:"decimals"`
		} `json:"value"`
	}
	if err := c.call(ctx, scheduler.PoolBulk, "getTokenSupply", params, &result); err != nil {
		return nil, err
	}
	if result.Value.Amount == "" {
		return nil, fmt.Errorf("%w: empty token supply for %s", ErrMalformedResponse, mint)
	}

	return &TokenSupply{Amount: result.Value.Amount, Decimals: result.Value.Decimals}, nil
}

// GetAccountInfo retrieves account info. Returns (nil, nil) if the account
// does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	params := []interface{}{
		address,
		map[string]interface{}{"encoding": "base64"},
	}

	var result struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"` // [base64_data, encoding]
			Executable bool     `json:"executable"`
		} `json:"value"`
	}
	if err := c.call(ctx, scheduler.PoolBulk, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
	}
	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}
	return info, nil
}

// GetBalance returns the account's lamport balance.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	params := []interface{}{address}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, scheduler.PoolBulk, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetAssetsByOwner pages through the owner's assets via the indexer pool.
func (c *HTTPClient) GetAssetsByOwner(ctx context.Context, owner string, page, limit int) (*AssetPage, error) {
	params := map[string]interface{}{
		"ownerAddress": owner,
		"page":         page,
		"limit":        limit,
	}

	var result struct {
		Total int `json:"total"`
		Items []struct {
			ID        string `json:"id"`
			Interface string `json:"interface"`
		} `json:"items"`
	}
	if err := c.call(ctx, scheduler.PoolAPI, "getAssetsByOwner", params, &result); err != nil {
		return nil, err
	}

	out := &AssetPage{Total: result.Total}
	for _, item := range result.Items {
		out.Items = append(out.Items, Asset{ID: item.ID, Interface: item.Interface})
	}
	return out, nil
}
