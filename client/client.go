package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"

	"github.com/mezonai/lpfarm/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CallerHeader must match the header the farm API reads the caller from
const CallerHeader = "X-Caller"

type Config struct {
	Endpoint string
	// Caller is the address mutating requests act as.
	Caller  string
	Timeout time.Duration
}

type FarmClient struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*FarmClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FarmClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// WithCaller returns a client sharing the connection pool but acting as caller
func (c *FarmClient) WithCaller(caller string) *FarmClient {
	cfg := c.cfg
	cfg.Caller = caller
	return &FarmClient{cfg: cfg, http: c.http}
}

func (c *FarmClient) Caller() string {
	return c.cfg.Caller
}

func (c *FarmClient) AddPool(ctx context.Context, weight uint64, stakeAsset string, massUpdate bool) (*types.Receipt, error) {
	req := addPoolRequest{Weight: weight, StakeAsset: stakeAsset, MassUpdate: massUpdate}
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, "/pools", req, &out))
}

func (c *FarmClient) SetPool(ctx context.Context, poolID uint64, weight uint64, massUpdate bool) (*types.Receipt, error) {
	req := setPoolRequest{Weight: weight, MassUpdate: massUpdate}
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPut, fmt.Sprintf("/pools/%d", poolID), req, &out))
}

func (c *FarmClient) SetRewardRate(ctx context.Context, rate *uint256.Int, massUpdate bool) (*types.Receipt, error) {
	req := setRateRequest{Rate: rate.Dec(), MassUpdate: massUpdate}
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPut, "/vault/rate", req, &out))
}

func (c *FarmClient) Fund(ctx context.Context, amount *uint256.Int) (*types.Receipt, error) {
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, "/vault/fund", amountRequest{Amount: amount.Dec()}, &out))
}

func (c *FarmClient) Deposit(ctx context.Context, poolID uint64, amount *uint256.Int) (*types.Receipt, error) {
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, fmt.Sprintf("/pools/%d/deposit", poolID), amountRequest{Amount: amount.Dec()}, &out))
}

func (c *FarmClient) Withdraw(ctx context.Context, poolID uint64, amount *uint256.Int) (*types.Receipt, error) {
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, fmt.Sprintf("/pools/%d/withdraw", poolID), amountRequest{Amount: amount.Dec()}, &out))
}

func (c *FarmClient) Harvest(ctx context.Context, poolID uint64) (*types.Receipt, error) {
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, fmt.Sprintf("/pools/%d/harvest", poolID), nil, &out))
}

func (c *FarmClient) EmergencyWithdraw(ctx context.Context, poolID uint64) (*types.Receipt, error) {
	var out types.Receipt
	return result(&out, c.do(ctx, http.MethodPost, fmt.Sprintf("/pools/%d/emergency-withdraw", poolID), nil, &out))
}

func (c *FarmClient) GetPools(ctx context.Context) ([]*types.Pool, error) {
	var out []*types.Pool
	if err := c.do(ctx, http.MethodGet, "/pools", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FarmClient) GetPool(ctx context.Context, poolID uint64) (*types.Pool, error) {
	var out types.Pool
	return result(&out, c.do(ctx, http.MethodGet, fmt.Sprintf("/pools/%d", poolID), nil, &out))
}

func (c *FarmClient) GetPosition(ctx context.Context, poolID uint64, user string) (*Position, error) {
	var out Position
	return result(&out, c.do(ctx, http.MethodGet, fmt.Sprintf("/pools/%d/positions/%s", poolID, url.PathEscape(user)), nil, &out))
}

func (c *FarmClient) PendingReward(ctx context.Context, poolID uint64, user string) (*Pending, error) {
	var out Pending
	return result(&out, c.do(ctx, http.MethodGet, fmt.Sprintf("/pools/%d/pending/%s", poolID, url.PathEscape(user)), nil, &out))
}

func (c *FarmClient) GetVault(ctx context.Context) (*Vault, error) {
	var out Vault
	return result(&out, c.do(ctx, http.MethodGet, "/vault", nil, &out))
}

func (c *FarmClient) GetBalance(ctx context.Context, asset, addr string) (*Balance, error) {
	var out Balance
	path := fmt.Sprintf("/assets/%s/balances/%s", url.PathEscape(asset), url.PathEscape(addr))
	return result(&out, c.do(ctx, http.MethodGet, path, nil, &out))
}

// AdvanceClock moves a manually clocked farm forward. Owner only.
func (c *FarmClient) AdvanceClock(ctx context.Context, steps uint64) (*Status, error) {
	var out Status
	return result(&out, c.do(ctx, http.MethodPost, "/clock/advance", advanceRequest{Steps: steps}, &out))
}

func (c *FarmClient) GetStatus(ctx context.Context) (*Status, error) {
	var out Status
	return result(&out, c.do(ctx, http.MethodGet, "/status", nil, &out))
}

func result[T any](out *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FarmClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.Endpoint, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Caller != "" {
		req.Header.Set(CallerHeader, c.cfg.Caller)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
