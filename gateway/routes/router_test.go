package routes

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"bonuschain/core/events"
	"bonuschain/core/node"
	"bonuschain/crypto"
	"bonuschain/gateway/middleware"
	"bonuschain/native/bonus"
	"bonuschain/storage"
)

func newTestAPI(t *testing.T) (http.Handler, *node.Node, [20]byte) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	n, err := node.New(db, node.Config{
		Token:  node.Token{Symbol: "BNX", Name: "Bonus Token", Decimals: 18},
		Params: bonus.DefaultParams(),
	})
	require.NoError(t, err)

	obs, err := middleware.NewObservability(middleware.ObservabilityConfig{Registerer: prometheus.NewRegistry()}, nil)
	require.NoError(t, err)
	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: testSecret, Issuer: "bonusd"}, nil)
	require.NoError(t, err)
	handler, err := New(Config{
		Node:          n,
		Observability: obs,
		Authenticator: auth,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"accounts": {RatePerSecond: 1, Burst: 1},
		}, nil),
	})
	require.NoError(t, err)
	return handler, n, crypto.AccountFromSeed("api/ray")
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), out))
	}
	return res.Code
}

const testSecret = "routes-test-secret"

func bearer(t *testing.T, account [20]byte, scope string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": crypto.FormatAccount(account),
		"iss": "bonusd",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if scope != "" {
		claims["scope"] = scope
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func post(t *testing.T, h http.Handler, path, token, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if out != nil && res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), out))
	}
	return res.Code
}

func TestRoundNotFoundBeforeInit(t *testing.T) {
	h, _, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, get(t, h, "/healthz", nil))
	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/round", nil))
	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/slots/abc", nil))
}

func TestRoundSlotAndAccountViews(t *testing.T) {
	h, n, ray := newTestAPI(t)
	admin := bonus.DefaultParams().Accounts.Admin
	require.NoError(t, n.Genesis([]node.Allocation{{Account: ray, Amount: big.NewInt(1000)}}))
	_, err := n.Apply(context.Background(), "init", func(e *bonus.Engine) error {
		if err := e.Init(admin, big.NewInt(100)); err != nil {
			return err
		}
		if err := e.SetStatus(admin, bonus.RoundStatusRunning); err != nil {
			return err
		}
		_, err := e.Create(ray, nil)
		return err
	})
	require.NoError(t, err)

	var round roundResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v1/round", &round))
	require.Equal(t, "running", round.Status)
	require.Equal(t, "100", round.UnitPrice)
	require.Equal(t, uint64(1), round.AllSlotsCount)
	require.Len(t, round.Pools, len(bonus.PoolRoles()))

	var slot slotResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v1/slots/0", &slot))
	require.Equal(t, crypto.FormatAccount(ray), slot.Owner)
	require.Equal(t, "active", slot.Status)
	require.Nil(t, slot.Invitor)
	require.Len(t, slot.ID, 66)
	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/slots/7", nil))

	var latest []latestEntry
	require.Equal(t, http.StatusOK, get(t, h, "/v1/round/latest", &latest))
	require.Len(t, latest, 1)

	var account accountResponse
	path := "/v1/accounts/" + crypto.FormatAccount(ray)
	require.Equal(t, http.StatusOK, get(t, h, path, &account))
	require.Equal(t, "900", account.Balance)
	require.Equal(t, "BNX", account.Symbol)
	require.Equal(t, uint8(18), account.Decimals)
	require.Equal(t, uint64(1), account.SlotCount)
	require.NotNil(t, account.Player)
	require.Equal(t, "active", account.Player.Status)

	// The accounts group allows a burst of one.
	require.Equal(t, http.StatusTooManyRequests, get(t, h, path, nil))
}

func TestAuthenticatedCalls(t *testing.T) {
	h, n, ray := newTestAPI(t)
	admin := bonus.DefaultParams().Accounts.Admin
	require.NoError(t, n.Genesis([]node.Allocation{{Account: ray, Amount: big.NewInt(1000)}}))
	adminToken := bearer(t, admin, middleware.ScopeAdmin)
	rayToken := bearer(t, ray, "")

	require.Equal(t, http.StatusUnauthorized, post(t, h, "/v1/admin/init", "", `{"unitPrice":"100"}`, nil))
	require.Equal(t, http.StatusForbidden, post(t, h, "/v1/admin/init", rayToken, `{"unitPrice":"100"}`, nil))
	// The admin scope alone is not enough: the subject must be the admin account.
	rayAsAdmin := bearer(t, ray, middleware.ScopeAdmin)
	require.Equal(t, http.StatusForbidden, post(t, h, "/v1/admin/init", rayAsAdmin, `{"unitPrice":"100"}`, nil))

	require.Equal(t, http.StatusOK, post(t, h, "/v1/admin/init", adminToken, `{"unitPrice":"100"}`, nil))
	require.Equal(t, http.StatusBadRequest, post(t, h, "/v1/admin/status", adminToken, `{"status":"sideways"}`, nil))
	require.Equal(t, http.StatusOK, post(t, h, "/v1/admin/status", adminToken, `{"status":"running"}`, nil))
	require.Equal(t, http.StatusOK, post(t, h, "/v1/admin/ops-budget", adminToken, `{"budget":40}`, nil))
	require.Equal(t, http.StatusConflict, post(t, h, "/v1/admin/ops-budget", adminToken, `{"budget":1}`, nil))

	var created callResponse
	require.Equal(t, http.StatusOK, post(t, h, "/v1/calls/create", rayToken, "", &created))
	require.NotNil(t, created.Slot)
	require.Equal(t, crypto.FormatAccount(ray), created.Slot.Owner)
	require.Equal(t, uint64(0), created.Slot.CreatePosition)
	require.NotEmpty(t, created.Events)
	require.Equal(t, events.TypeBonusSlotCreated, created.Events[0].Type)

	var opened callResponse
	require.Equal(t, http.StatusOK, post(t, h, "/v1/calls/open", rayToken, `{"id":"`+created.Slot.ID+`"}`, &opened))
	require.Nil(t, opened.Slot)
	require.NotEmpty(t, opened.Events)
	var slot slotResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v1/slots/0", &slot))
	require.NotEqual(t, "active", slot.Status)
	require.Equal(t, http.StatusConflict, post(t, h, "/v1/calls/open", rayToken, `{"index":0}`, nil))
	require.Equal(t, http.StatusBadRequest, post(t, h, "/v1/calls/open", rayToken, `{"id":"0x01","index":0}`, nil))

	playerPath := "/v1/admin/players/" + crypto.FormatAccount(ray) + "/status"
	require.Equal(t, http.StatusOK, post(t, h, playerPath, adminToken, `{"status":"forbidden"}`, nil))
	var account accountResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v1/accounts/"+crypto.FormatAccount(ray), &account))
	require.Equal(t, "forbidden", account.Player.Status)

	require.Equal(t, http.StatusOK, post(t, h, "/v1/admin/max-active", adminToken, `{"count":5}`, nil))
	require.Equal(t, http.StatusOK, post(t, h, "/v1/admin/status", adminToken, `{"status":"paused"}`, nil))
	var round roundResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v1/round", &round))
	require.Equal(t, "paused", round.Status)
	require.Equal(t, uint32(40), round.OpsBudget)
	require.Equal(t, http.StatusConflict, post(t, h, "/v1/calls/create", rayToken, "", nil))
}
