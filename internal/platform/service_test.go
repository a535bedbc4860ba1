package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rebate-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(models.PlatformConfig{
		BaseUrl:        server.URL,
		ApiKey:         "secret",
		RequestTimeout: 5 * time.Second,
		RatePerSecond:  100,
		Burst:          10,
	})
	require.NoError(t, err)
	return svc
}

func TestGetUser(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/81001", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"status":"success","balance":"100.50","credit":20,"equity":"120.50"}`))
	})

	state, err := svc.GetUser(context.Background(), 81001)
	require.NoError(t, err)
	assert.Equal(t, int64(81001), state.MetaLogin)
	assert.True(t, state.Balance.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, state.Credit.Equal(decimal.NewFromInt(20)))
	assert.True(t, state.Equity.Equal(decimal.RequireFromString("120.5")))
}

func TestCreateTrade(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trades", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "balance_in", body["type"])
		assert.Equal(t, "25", body["amount"])

		_, _ = w.Write([]byte(`{"status":"success","ticket":"T-77","balance":"125","credit":"0","equity":"125"}`))
	})

	result, err := svc.CreateTrade(context.Background(), TradeRequest{
		MetaLogin: 81001,
		Type:      models.TypeBalanceIn,
		Amount:    decimal.NewFromInt(25),
		Comment:   "rebate transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, "T-77", result.Ticket)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(125)))
}

func TestNonSuccessStatusIsUnreachable(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"login not found"}`))
	})

	_, err := svc.GetUserInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)

	err = svc.UpdateLeverage(context.Background(), 1, 500)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestServerErrorIsUnreachable(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	_, err := svc.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	svc, err := NewService(models.PlatformConfig{BaseUrl: url, RequestTimeout: time.Second})
	require.NoError(t, err)

	_, err = svc.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestAccountMaintenanceCalls(t *testing.T) {
	var paths []string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	ctx := context.Background()
	require.NoError(t, svc.UpdateAccountGroup(ctx, 5, "real\\standard"))
	require.NoError(t, svc.UpdateMasterPassword(ctx, 5, "m"))
	require.NoError(t, svc.UpdateInvestorPassword(ctx, 5, "i"))
	assert.Equal(t, []string{"/users/5/group", "/users/5/password/master", "/users/5/password/investor"}, paths)
}

func TestNewService_RequiresBaseUrl(t *testing.T) {
	_, err := NewService(models.PlatformConfig{})
	assert.Error(t, err)
}
