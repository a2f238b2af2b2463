package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	app "github.com/DFY-Network/pawnshop_layer/internal/app"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
)

const (
	admin     = "admin"
	owner     = "alice"
	evaluator = "eve"
	feeToken  = "DFY"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Application, *ledger.MemoryFungible) {
	t.Helper()
	ctx := context.Background()

	fun := ledger.NewMemoryFungible()
	nft := ledger.NewMemoryNonFungible()

	application, err := app.New(app.Stores{}, app.Ledgers{Fungible: fun, NonFungible: nft}, nil)
	require.NoError(t, err)

	require.NoError(t, application.Hub.Bootstrap(ctx, admin))
	_, err = application.Hub.SetFeeWallet(ctx, admin, "treasury")
	require.NoError(t, err)
	_, err = application.Hub.SetFeeSchedule(ctx, admin, hub.FeeSchedule{
		FeeToken:      feeToken,
		EvaluationFee: decimal.NewFromInt(10),
		MintingFee:    decimal.NewFromInt(15),
	})
	require.NoError(t, err)
	_, err = application.Hub.AcceptEvaluator(ctx, admin, evaluator)
	require.NoError(t, err)

	fun.Mint(ctx, feeToken, owner, decimal.NewFromInt(1000))
	fun.Approve(ctx, feeToken, owner, app.EngineAccount, decimal.NewFromInt(1000))

	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv, application, fun
}

func doJSON(t *testing.T, method, url, caller string, payload, out interface{}) int {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body map[string]string
	status := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil, &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestAssetLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var created struct {
		ID     string
		Status string
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/assets", owner, map[string]string{
		"content_id":          "ipfs://content",
		"collection_address":  "0xcollection",
		"collection_standard": "nft-721",
		"declared_value":      "500",
		"fee_token":           feeToken,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "open", created.Status)

	var apt struct {
		ID     string
		Status string
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/assets/"+created.ID+"/appointments", owner, map[string]string{
		"evaluator": evaluator,
	}, &apt)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "open", apt.Status)

	status = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+apt.ID+"/accept", evaluator, nil, nil)
	require.Equal(t, http.StatusOK, status)

	var eval struct {
		ID     string
		Status string
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+apt.ID+"/evaluate", evaluator, map[string]string{
		"appraised_value": "300",
	}, &eval)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "evaluated", eval.Status)

	status = doJSON(t, http.MethodPost, srv.URL+"/evaluations/"+eval.ID+"/accept", owner, nil, nil)
	require.Equal(t, http.StatusOK, status)

	var minted struct {
		Status     string
		ExternalID string
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/evaluations/"+eval.ID+"/mint", evaluator, map[string]string{}, &minted)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "minted", minted.Status)
	require.NotEmpty(t, minted.ExternalID)
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Unknown resources read as 404.
	status := doJSON(t, http.MethodGet, srv.URL+"/assets/999", "", nil, nil)
	require.Equal(t, http.StatusNotFound, status)

	var created struct{ ID string }
	status = doJSON(t, http.MethodPost, srv.URL+"/assets", owner, map[string]string{
		"content_id":          "c",
		"collection_address":  "0x1",
		"collection_standard": "nft-721",
		"fee_token":           feeToken,
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	// A stranger booking an appointment is forbidden.
	status = doJSON(t, http.MethodPost, srv.URL+"/assets/"+created.ID+"/appointments", "mallory", map[string]string{
		"evaluator": evaluator,
	}, nil)
	require.Equal(t, http.StatusForbidden, status)

	// Unknown fields in the payload are a bad request.
	status = doJSON(t, http.MethodPost, srv.URL+"/assets", owner, map[string]string{
		"content_id": "c",
		"surprise":   "field",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHubConfigOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var cfg struct {
		FeeWallet string
		FeeToken  string
	}
	status := doJSON(t, http.MethodGet, srv.URL+"/hub/config", "", nil, &cfg)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "treasury", cfg.FeeWallet)

	token := feeToken
	status = doJSON(t, http.MethodPatch, srv.URL+"/hub/config", "mallory", map[string]*string{
		"fee_token": &token,
	}, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestRolesEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/hub/roles", admin, map[string]string{
		"role":    "operator",
		"account": "olive",
	}, nil)
	require.Equal(t, http.StatusNoContent, status)

	var has map[string]bool
	status = doJSON(t, http.MethodGet, srv.URL+"/hub/roles?role=operator&account=olive", "", nil, &has)
	require.Equal(t, http.StatusOK, status)
	require.True(t, has["has_role"])
}

func TestAuditEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/assets", owner, map[string]string{
		"content_id":          "c",
		"collection_address":  "0x1",
		"collection_standard": "nft-721",
		"fee_token":           feeToken,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var records []map[string]interface{}
	status = doJSON(t, http.MethodGet, srv.URL+"/audit?limit=1", "", nil, &records)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, records, 1)
	require.Equal(t, "asset_request", records[0]["entity_kind"])
}

func TestReputationEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/assets", owner, map[string]string{
		"content_id":          "c",
		"collection_address":  "0x1",
		"collection_standard": "nft-721",
		"fee_token":           feeToken,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var score struct {
		Account string
		Points  int64
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/reputation/"+owner, "", nil, &score)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(0), score.Points)
}
