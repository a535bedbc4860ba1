package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rebate-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// ErrUnreachable covers transport failures and any reply whose status is
// not "success".
var ErrUnreachable = errors.New("trading platform unreachable")

const statusSuccess = "success"

// AccountState is the balance triple the platform reports for a login.
type AccountState struct {
	MetaLogin int64
	Balance   decimal.Decimal
	Credit    decimal.Decimal
	Equity    decimal.Decimal
}

type UserInfo struct {
	AccountState
	Name     string
	Group    string
	Leverage int
}

type TradeRequest struct {
	MetaLogin int64
	Type      models.TransactionType
	Amount    decimal.Decimal
	Comment   string
}

type TradeResult struct {
	AccountState
	Ticket string
}

type response struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
	Credit   decimal.Decimal `json:"credit"`
	Equity   decimal.Decimal `json:"equity"`
	Ticket   string          `json:"ticket,omitempty"`
	Name     string          `json:"name,omitempty"`
	Group    string          `json:"group,omitempty"`
	Leverage int             `json:"leverage,omitempty"`
}

type Service struct {
	baseUrl    string
	apiKey     string
	httpClient http.Client
	limiter    *rate.Limiter
}

func NewService(cfg models.PlatformConfig) (*Service, error) {
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("platform base url cannot be empty")
	}

	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		baseUrl:    strings.TrimRight(cfg.BaseUrl, "/"),
		apiKey:     cfg.ApiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (s *Service) do(ctx context.Context, method, path string, body any) (*response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("unable to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseUrl+path, reader)
	if err != nil {
		return nil, fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		zap.L().Warn("Platform request failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: http %d with unreadable body: %v", ErrUnreachable, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Status != statusSuccess {
		zap.L().Warn("Platform returned failure",
			zap.String("path", path),
			zap.Int("http_status", resp.StatusCode),
			zap.String("status", out.Status),
			zap.String("message", out.Message))
		return nil, fmt.Errorf("%w: status %q: %s", ErrUnreachable, out.Status, out.Message)
	}
	return &out, nil
}

func loginPath(metaLogin int64, suffix string) string {
	return "/users/" + strconv.FormatInt(metaLogin, 10) + suffix
}

func (r *response) state(metaLogin int64) AccountState {
	return AccountState{MetaLogin: metaLogin, Balance: r.Balance, Credit: r.Credit, Equity: r.Equity}
}

// GetUser fetches the current balance triple for a login.
func (s *Service) GetUser(ctx context.Context, metaLogin int64) (*AccountState, error) {
	resp, err := s.do(ctx, http.MethodGet, loginPath(metaLogin, ""), nil)
	if err != nil {
		return nil, err
	}
	state := resp.state(metaLogin)
	return &state, nil
}

func (s *Service) GetUserInfo(ctx context.Context, metaLogin int64) (*UserInfo, error) {
	resp, err := s.do(ctx, http.MethodGet, loginPath(metaLogin, "/info"), nil)
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		AccountState: resp.state(metaLogin),
		Name:         resp.Name,
		Group:        resp.Group,
		Leverage:     resp.Leverage,
	}, nil
}

// CreateTrade posts a balance or credit operation and returns the ticket
// with the post-trade balances.
func (s *Service) CreateTrade(ctx context.Context, trade TradeRequest) (*TradeResult, error) {
	zap.L().Info("Creating platform trade",
		zap.Int64("meta_login", trade.MetaLogin),
		zap.String("type", string(trade.Type)),
		zap.String("amount", trade.Amount.String()))

	resp, err := s.do(ctx, http.MethodPost, "/trades", map[string]any{
		"login":   trade.MetaLogin,
		"type":    string(trade.Type),
		"amount":  trade.Amount.String(),
		"comment": trade.Comment,
	})
	if err != nil {
		return nil, err
	}
	return &TradeResult{AccountState: resp.state(trade.MetaLogin), Ticket: resp.Ticket}, nil
}

func (s *Service) UpdateLeverage(ctx context.Context, metaLogin int64, leverage int) error {
	_, err := s.do(ctx, http.MethodPost, loginPath(metaLogin, "/leverage"), map[string]any{"leverage": leverage})
	return err
}

func (s *Service) UpdateAccountGroup(ctx context.Context, metaLogin int64, group string) error {
	_, err := s.do(ctx, http.MethodPost, loginPath(metaLogin, "/group"), map[string]any{"group": group})
	return err
}

func (s *Service) UpdateMasterPassword(ctx context.Context, metaLogin int64, password string) error {
	_, err := s.do(ctx, http.MethodPost, loginPath(metaLogin, "/password/master"), map[string]any{"password": password})
	return err
}

func (s *Service) UpdateInvestorPassword(ctx context.Context, metaLogin int64, password string) error {
	_, err := s.do(ctx, http.MethodPost, loginPath(metaLogin, "/password/investor"), map[string]any{"password": password})
	return err
}
