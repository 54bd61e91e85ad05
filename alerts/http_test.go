package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAPI(t *testing.T, prices map[string]string) (*Book, *httptest.Server) {
	t.Helper()

	book := NewBook()
	api := NewAPI(book, &fakeSource{prices: prices}, time.Second, zap.NewNop())
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)
	return book, ts
}

func postAlert(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(ts.URL+"/alerts", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIAdd(t *testing.T) {
	t.Parallel()

	book, ts := newTestAPI(t, map[string]string{"BNB/USDT": "650"})

	resp := postAlert(t, ts, `{"user_id":"u1","notify_target":"chan-1","symbol":"bnb","target_price":"700"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view RuleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "BNB/USDT", view.Symbol)
	assert.Equal(t, "700", view.TargetPrice)
	assert.Equal(t, string(DirectionAbove), view.Direction)

	require.Equal(t, 1, book.Len())
	assert.Equal(t, view.ID, book.ListByUser("u1")[0].ID)
}

func TestAPIAddRejectsBadInput(t *testing.T) {
	t.Parallel()

	book, ts := newTestAPI(t, map[string]string{"BNB/USDT": "650"})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing user", `{"symbol":"bnb","target_price":"700"}`},
		{"missing symbol", `{"user_id":"u1","target_price":"700"}`},
		{"bad price", `{"user_id":"u1","symbol":"bnb","target_price":"lots"}`},
		{"negative price", `{"user_id":"u1","symbol":"bnb","target_price":"-5"}`},
	}
	for _, tt := range tests {
		resp := postAlert(t, ts, tt.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.name)
	}
	assert.Equal(t, 0, book.Len())
}

func TestAPIAddPriceUnavailable(t *testing.T) {
	t.Parallel()

	book, ts := newTestAPI(t, nil)

	resp := postAlert(t, ts, `{"user_id":"u1","symbol":"bnb","target_price":"700"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "BNB/USDT")
	assert.Equal(t, 0, book.Len())
}

func TestAPIListAndClear(t *testing.T) {
	t.Parallel()

	book, ts := newTestAPI(t, nil)
	book.Add("u1", "chan-1", "BNB/USDT", d("700"), d("650"))
	book.Add("u1", "chan-1", "BTC/USDT", d("45000"), d("50000"))
	book.Add("u2", "chan-2", "ETH/USDT", d("3000"), d("2500"))

	resp, err := http.Get(ts.URL + "/alerts?user=u1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []RuleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "BNB/USDT", views[0].Symbol)
	assert.Equal(t, "BTC/USDT", views[1].Symbol)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/alerts?user=u1", nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer dresp.Body.Close()
	require.Equal(t, http.StatusOK, dresp.StatusCode)

	var cleared ClearResponse
	require.NoError(t, json.NewDecoder(dresp.Body).Decode(&cleared))
	assert.Equal(t, 2, cleared.Removed)
	assert.Empty(t, book.ListByUser("u1"))
	assert.Len(t, book.ListByUser("u2"), 1)
}

func TestAPIRequiresUser(t *testing.T) {
	t.Parallel()

	_, ts := newTestAPI(t, nil)

	resp, err := http.Get(ts.URL + "/alerts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIMethodNotAllowed(t *testing.T) {
	t.Parallel()

	_, ts := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/alerts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
