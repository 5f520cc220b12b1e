package api

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubiq/go-ubiq/v3/common"
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/models"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type nopTransfer struct{}

func (nopTransfer) SendValue(context.Context, common.Address, *big.Int) error { return nil }

type fakeEventLog struct {
	limits []int64
}

func (f *fakeEventLog) LatestEvents(ctx context.Context, limit int64) ([]*models.Event, error) {
	f.limits = append(f.limits, limit)
	return []*models.Event{{Type: "Deposited", Account: alice.Hex(), Amount: "7"}}, nil
}

func (f *fakeEventLog) AccountEvents(ctx context.Context, account common.Address, limit int64) ([]*models.Event, error) {
	f.limits = append(f.limits, limit)
	return []*models.Event{{Type: "Activated", Account: account.Hex()}}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, cfg *Config) (*gin.Engine, *engine.Engine, *fakeEventLog) {
	t.Helper()

	e, err := engine.New(&engine.Config{Mode: "fixed", Minimum: "100", Owner: owner.Hex()}, nopTransfer{}, nil, log.New())
	require.NoError(t, err)

	evs := &fakeEventLog{}
	router, err := NewApiServer(e, evs, cfg, log.New()).Router()
	require.NoError(t, err)

	return router, e, evs
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRestStatus(t *testing.T) {
	router, e, _ := newRouter(t, &Config{})
	require.NoError(t, e.Deposit(context.Background(), alice, big.NewInt(150)))

	w := get(router, "/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "fixed", status.Mode)
	assert.Equal(t, "150", status.Total)
	assert.Equal(t, 1, status.Accounts)
	assert.Equal(t, owner.Hex(), status.Owner)
}

func TestRestAccount(t *testing.T) {
	router, e, _ := newRouter(t, &Config{})
	require.NoError(t, e.Deposit(context.Background(), alice, big.NewInt(150)))

	w := get(router, "/v1/account/"+alice.Hex())
	require.Equal(t, http.StatusOK, w.Code)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "150", snap.Balance)
	assert.Equal(t, "100", snap.Required)
	assert.True(t, snap.Active)

	w = get(router, "/v1/active/"+alice.Hex())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", strings.TrimSpace(w.Body.String()))

	w = get(router, "/v1/balance/"+alice.Hex())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"0x96"`, strings.TrimSpace(w.Body.String()))

	w = get(router, "/v1/required")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"0x64"`, strings.TrimSpace(w.Body.String()))
}

func TestRestErrors(t *testing.T) {
	router, _, _ := newRouter(t, &Config{})

	w := get(router, "/v1/account/not-an-address")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = get(router, "/v1/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestEvents(t *testing.T) {
	router, _, evs := newRouter(t, &Config{})

	w := get(router, "/v1/events/5000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Deposited")

	w = get(router, "/v1/accountevents/"+alice.Hex()+"/0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Activated")

	assert.Equal(t, []int64{maxEventLimit, defaultEventLimit}, evs.limits)
}

func TestJSONRPC(t *testing.T) {
	router, _, _ := newRouter(t, &Config{})

	w := post(router, `{"jsonrpc":"2.0","id":1,"method":"stake_isActive","params":["`+alice.Hex()+`"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Result bool `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Result)
}

func TestOperatorNamespace(t *testing.T) {
	deposit := `{"jsonrpc":"2.0","id":1,"method":"operator_deposit","params":["` + alice.Hex() + `","0x96"]}`

	router, e, _ := newRouter(t, &Config{})
	w := post(router, deposit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, "0", e.BalanceOf(alice).String())

	router, e, _ = newRouter(t, &Config{Operator: true})
	w = post(router, deposit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "error")
	assert.Equal(t, "150", e.BalanceOf(alice).String())

	w = post(router, `{"jsonrpc":"2.0","id":2,"method":"operator_pause","params":["`+alice.Hex()+`"]}`)
	assert.Contains(t, w.Body.String(), engine.ErrOwnerOnly.Error())

	w = post(router, `{"jsonrpc":"2.0","id":3,"method":"operator_pause","params":["`+owner.Hex()+`"]}`)
	assert.NotContains(t, w.Body.String(), "error")
	assert.True(t, e.Paused())
}
