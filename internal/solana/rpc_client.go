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
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
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
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
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

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetParsedTransaction retrieves a transaction with jsonParsed encoding,
// exposing decoded inner instructions.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getParsedTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &ParsedTransaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		meta := &ParsedMeta{Err: result.Meta.Err}
		for _, set := range result.Meta.InnerInstructions {
			inner := InnerInstructionSet{Index: set.Index}
			for _, ix := range set.Instructions {
				parsed := ParsedInstruction{
					Program:   ix.Program,
					ProgramID: ix.ProgramID,
				}
				if ix.Parsed != nil {
					detail := &ParsedInstructionDetail{
						Type: ix.Parsed.Type,
						Info: ParsedInstructionInfo{
							Account:   ix.Parsed.Info.Account,
							Mint:      ix.Parsed.Info.Mint,
							Authority: ix.Parsed.Info.Authority,
							Amount:    ix.Parsed.Info.Amount,
						},
					}
					if ix.Parsed.Info.TokenAmount != nil {
						detail.Info.TokenAmount = &TokenAmount{
							Amount:   ix.Parsed.Info.TokenAmount.Amount,
							Decimals: ix.Parsed.Info.TokenAmount.Decimals,
						}
					}
					parsed.Parsed = detail
				}
				inner.Instructions = append(inner.Instructions, parsed)
			}
			meta.InnerInstructions = append(meta.InnerInstructions, inner)
		}
		tx.Meta = meta
	}

	return tx, nil
}

// getParsedTransactionResult is the raw RPC response for getTransaction
// with jsonParsed encoding.
type getParsedTransactionResult struct {
	Slot      int64           `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Meta      *parsedMetaJSON `json:"meta"`
}

type parsedMetaJSON struct {
	Err               interface{}         `json:"err"`
	InnerInstructions []innerInstrSetJSON `json:"innerInstructions"`
}

type innerInstrSetJSON struct {
	Index        int               `json:"index"`
	Instructions []parsedInstrJSON `json:"instructions"`
}

type parsedInstrJSON struct {
	Program   string               `json:"program"`
	ProgramID string               `json:"programId"`
	Parsed    *parsedInstrBodyJSON `json:"parsed"`
}

type parsedInstrBodyJSON struct {
	Type string              `json:"type"`
	Info parsedInstrInfoJSON `json:"info"`
}

// UnmarshalJSON tolerates the non-object "parsed" shape the node returns
// for instructions it cannot decode.
func (p *parsedInstrBodyJSON) UnmarshalJSON(data []byte) error {
	type alias parsedInstrBodyJSON
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		// Some instructions carry a bare string here; treat as undecoded.
		*p = parsedInstrBodyJSON{}
		return nil
	}
	*p = parsedInstrBodyJSON(a)
	return nil
}

type parsedInstrInfoJSON struct {
	Account     string           `json:"account"`
	Mint        string           `json:"mint"`
	Authority   string           `json:"authority"`
	Amount      string           `json:"amount"`
	TokenAmount *tokenAmountJSON `json:"tokenAmount"`
}

type tokenAmountJSON struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// GetProgramAccounts lists accounts owned by a program with an optional
// memcmp filter on the account data.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID string, filter *MemcmpFilter) ([]ProgramAccount, error) {
	config := map[string]interface{}{
		"encoding": "base64",
	}
	if filter != nil {
		config["filters"] = []interface{}{
			map[string]interface{}{
				"memcmp": map[string]interface{}{
					"offset": filter.Offset,
					"bytes":  filter.Bytes,
				},
			},
		}
	}

	params := []interface{}{programID, config}

	var result []getProgramAccountsResult
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]ProgramAccount, 0, len(result))
	for _, r := range result {
		acc := ProgramAccount{
			Pubkey: r.Pubkey,
			Owner:  r.Account.Owner,
		}
		if len(r.Account.Data) >= 1 {
			acc.Data = r.Account.Data[0]
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

// getProgramAccountsResult is the raw RPC response item for getProgramAccounts.
type getProgramAccountsResult struct {
	Pubkey  string                   `json:"pubkey"`
	Account getProgramAccountDetails `json:"account"`
}

type getProgramAccountDetails struct {
	Data  []string `json:"data"` // [base64_data, encoding]
	Owner string   `json:"owner"`
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}
