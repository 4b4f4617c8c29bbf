package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dex-market-bot/internal/market"
)

// Client talks to a swap-aggregator HTTP API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new aggregator API client
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.NewError(market.CodeNetwork, "dex."+method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return market.NewError(market.CodeNetwork, "dex."+method+" "+path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return market.Errorf(market.CodeNetwork, "dex."+method+" "+path,
			"unexpected status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

// GetQuote fetches a priced route for the pair and amount
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, maxSlippageBps int) (*Quote, error) {
	query := url.Values{}
	query.Set("inputMint", inputMint)
	query.Set("outputMint", outputMint)
	query.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	query.Set("slippageBps", strconv.Itoa(maxSlippageBps))

	var quote Quote
	if err := c.doRequest(ctx, http.MethodGet, "/v1/quote", query, nil, &quote); err != nil {
		return nil, err
	}
	quote.MaxSlippageBps = maxSlippageBps
	quote.FetchedAt = time.Now()
	return &quote, nil
}

// SubmitSwap submits the quoted route for execution by the given wallet
func (c *Client) SubmitSwap(ctx context.Context, quote *Quote, walletPubkey string) (*TradeResult, error) {
	payload := map[string]interface{}{
		"inputMint":   quote.InputMint,
		"outputMint":  quote.OutputMint,
		"inAmount":    quote.InAmount,
		"route":       quote.Route,
		"slippageBps": quote.MaxSlippageBps,
		"wallet":      walletPubkey,
	}

	var result TradeResult
	if err := c.doRequest(ctx, http.MethodPost, "/v1/swap", nil, payload, &result); err != nil {
		return nil, err
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now()
	}
	return &result, nil
}

// GetOrderBook fetches a resting-order snapshot for the pair
func (c *Client) GetOrderBook(ctx context.Context, inputMint, outputMint string) (*OrderBookSnapshot, error) {
	query := url.Values{}
	query.Set("inputMint", inputMint)
	query.Set("outputMint", outputMint)

	var snapshot OrderBookSnapshot
	if err := c.doRequest(ctx, http.MethodGet, "/v1/orderbook", query, nil, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}
	return &snapshot, nil
}

// GetBalance fetches the wallet's quote-currency balance
func (c *Client) GetBalance(ctx context.Context, walletPubkey string) (float64, error) {
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/balance/"+walletPubkey, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
