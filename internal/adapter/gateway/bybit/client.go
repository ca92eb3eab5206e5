package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/iller75/BybitMover/internal/domain"
)

const (
	MainnetRestURL = "https://api.bybit.com"
	TestnetRestURL = "https://api-testnet.bybit.com"

	defaultRecvWindow = "5000"
)

const (
	pathWalletBalance     = "/v5/account/wallet-balance"
	pathPositionList      = "/v5/position/list"
	pathUniversalTransfer = "/v5/asset/transfer/universal-transfer"
)

// APIError is a non-zero retCode returned by the venue.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Msg)
}

// HTTPStatusError is a non-200 HTTP response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("bybit: http %d: %s", e.StatusCode, e.Body)
}

// Client is a signed Bybit V5 REST client bound to one API key.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow string
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *Retrier
	now        func() time.Time
}

// NewClient creates a client for credential. limiter and retrier may be
// shared between clients; a nil limiter disables client-side throttling and a
// nil retrier disables retries.
func NewClient(credential domain.Credential, baseURL string, httpClient *http.Client, limiter *rate.Limiter, retrier *Retrier) *Client {
	if baseURL == "" {
		baseURL = MainnetRestURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		apiKey:     credential.APIKey,
		apiSecret:  credential.APISecret,
		baseURL:    baseURL,
		recvWindow: defaultRecvWindow,
		httpClient: httpClient,
		limiter:    limiter,
		retrier:    retrier,
		now:        time.Now,
	}
}

func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// get performs a signed GET, retrying transient failures.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	op := func() error {
		return c.do(ctx, http.MethodGet, path, query.Encode(), nil, out)
	}
	if c.retrier == nil {
		return op()
	}
	return c.retrier.Retry(ctx, op)
}

// post performs a signed POST. It is never retried.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "", data, out)
}

func (c *Client) do(ctx context.Context, method, path, query string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	payload := timestamp + c.apiKey + c.recvWindow
	if method == http.MethodGet {
		payload += query
	} else {
		payload += string(body)
	}

	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-SIGN", c.sign(payload))
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var envelope struct {
		RetCode int             `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if envelope.RetCode != 0 {
		return &APIError{Code: envelope.RetCode, Msg: envelope.RetMsg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// WalletBalance returns the total wallet balance of the unified account in coin.
func (c *Client) WalletBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")
	query.Set("coin", coin)

	var result struct {
		List []struct {
			TotalWalletBalance string `json:"totalWalletBalance"`
		} `json:"list"`
	}
	if err := c.get(ctx, pathWalletBalance, query, &result); err != nil {
		return decimal.Zero, err
	}

	if len(result.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit: empty wallet balance list")
	}

	balance, err := decimal.NewFromString(result.List[0].TotalWalletBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse totalWalletBalance %q: %w", result.List[0].TotalWalletBalance, err)
	}
	return balance, nil
}

// LinearPositions returns every open linear position settled in coin,
// following the pagination cursor.
func (c *Client) LinearPositions(ctx context.Context, coin string) ([]domain.Position, error) {
	var positions []domain.Position
	cursor := ""

	for {
		query := url.Values{}
		query.Set("category", "linear")
		query.Set("settleCoin", coin)
		query.Set("limit", "200")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				PositionValue string `json:"positionValue"`
			} `json:"list"`
			NextPageCursor string `json:"nextPageCursor"`
		}
		if err := c.get(ctx, pathPositionList, query, &result); err != nil {
			return nil, err
		}

		for _, p := range result.List {
			value := decimal.Zero
			if p.PositionValue != "" {
				v, err := decimal.NewFromString(p.PositionValue)
				if err != nil {
					return nil, fmt.Errorf("parse positionValue %q for %s: %w", p.PositionValue, p.Symbol, err)
				}
				value = v
			}
			positions = append(positions, domain.Position{Symbol: p.Symbol, Value: value})
		}

		if result.NextPageCursor == "" || result.NextPageCursor == cursor {
			return positions, nil
		}
		cursor = result.NextPageCursor
	}
}

// UniversalTransferParams is the body of a universal transfer.
type UniversalTransferParams struct {
	TransferID      string `json:"transferId"`
	Coin            string `json:"coin"`
	Amount          string `json:"amount"`
	FromMemberID    any    `json:"fromMemberId"`
	ToMemberID      any    `json:"toMemberId"`
	FromAccountType string `json:"fromAccountType"`
	ToAccountType   string `json:"toAccountType"`
}

// UniversalTransfer moves funds between member accounts and returns the
// venue-assigned transfer id.
func (c *Client) UniversalTransfer(ctx context.Context, params UniversalTransferParams) (string, error) {
	var result struct {
		TransferID string `json:"transferId"`
	}
	if err := c.post(ctx, pathUniversalTransfer, params, &result); err != nil {
		return "", err
	}
	return result.TransferID, nil
}
