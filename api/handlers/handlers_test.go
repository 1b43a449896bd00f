package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fairplaylabs/fairplay/api/handlers"
	"github.com/fairplaylabs/fairplay/api/server"
	"github.com/fairplaylabs/fairplay/ledger"
	"github.com/fairplaylabs/fairplay/ledger/memstore"
	fptesting "github.com/fairplaylabs/fairplay/utils/pkg/testing"
)

type apiHarness struct {
	router  http.Handler
	clock   *clockwork.FakeClock
	sponsor solana.PublicKey
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	log := fptesting.NewLogger()
	store, err := memstore.New(memstore.Config{Logger: log})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	ldg, err := ledger.New(ledger.Config{
		Logger: log,
		Clock:  clock,
		Store:  store,
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		Logger:     log,
		Ledger:     ldg,
		ListenAddr: "127.0.0.1:0",
		RateLimit:  rate.Inf,
	})
	require.NoError(t, err)

	return &apiHarness{
		router:  srv.Handler(),
		clock:   clock,
		sponsor: solana.NewWallet().PublicKey(),
	}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (h *apiHarness) createCampaign(t *testing.T, seed uint64, pool int64, first solana.PublicKey) {
	t.Helper()

	now := h.clock.Now().Unix()
	rec := h.do(t, http.MethodPost, "/api/campaigns", handlers.CreateCampaignRequest{
		Seed:             seed,
		CampaignID:       1,
		TotalPoolAmount:  pool,
		StartTime:        now - 3600,
		EndTime:          now + 86400,
		Authority:        h.sponsor.String(),
		FirstContributor: first.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestFairplay_API_CreateCampaign(t *testing.T) {
	t.Parallel()

	t.Run("creates a campaign and returns it", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		first := solana.NewWallet().PublicKey()
		now := h.clock.Now().Unix()

		rec := h.do(t, http.MethodPost, "/api/campaigns", handlers.CreateCampaignRequest{
			Seed:             7,
			CampaignID:       2,
			TotalPoolAmount:  1000,
			StartTime:        now - 3600,
			EndTime:          now + 86400,
			Authority:        h.sponsor.String(),
			FirstContributor: first.String(),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[handlers.CampaignResponse](t, rec)
		require.Equal(t, uint64(7), resp.Seed)
		require.Equal(t, h.sponsor.String(), resp.Sponsor)
		require.Equal(t, uint32(1), resp.NoOfContributors)
		require.NotEmpty(t, resp.Key)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		req := httptest.NewRequest(http.MethodPost, "/api/campaigns", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a negative pool", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		now := h.clock.Now().Unix()
		rec := h.do(t, http.MethodPost, "/api/campaigns", handlers.CreateCampaignRequest{
			Seed:             1,
			TotalPoolAmount:  -5,
			StartTime:        now,
			EndTime:          now + 100,
			Authority:        h.sponsor.String(),
			FirstContributor: solana.NewWallet().PublicKey().String(),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_pool", decode[handlers.ErrorResponse](t, rec).Code)
	})

	t.Run("rejects an invalid authority key", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		now := h.clock.Now().Unix()
		rec := h.do(t, http.MethodPost, "/api/campaigns", handlers.CreateCampaignRequest{
			Seed:             1,
			TotalPoolAmount:  1000,
			StartTime:        now,
			EndTime:          now + 100,
			Authority:        "not-a-key",
			FirstContributor: solana.NewWallet().PublicKey().String(),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps duplicate seeds to conflict", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		first := solana.NewWallet().PublicKey()
		h.createCampaign(t, 1, 1000, first)

		now := h.clock.Now().Unix()
		rec := h.do(t, http.MethodPost, "/api/campaigns", handlers.CreateCampaignRequest{
			Seed:             1,
			TotalPoolAmount:  500,
			StartTime:        now - 3600,
			EndTime:          now + 86400,
			Authority:        h.sponsor.String(),
			FirstContributor: first.String(),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "already_initialized", decode[handlers.ErrorResponse](t, rec).Code)
	})
}

func TestFairplay_API_Lifecycle(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	h.createCampaign(t, 1, 1000, alice)

	// Fund the vault.
	rec := h.do(t, http.MethodPost, "/api/campaigns/1/deposit", handlers.DepositRequest{
		Amount:    1000,
		Depositor: h.sponsor.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(1000), decode[handlers.DepositResponse](t, rec).VaultBalance)

	// Score both contributors.
	rec = h.do(t, http.MethodPost, "/api/campaigns/1/scores", handlers.AssignScoreRequest{
		Contributor: alice.String(), Score: 100, Invoker: h.sponsor.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/campaigns/1/scores", handlers.AssignScoreRequest{
		Contributor: bob.String(), Score: 60, Invoker: h.sponsor.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(160), decode[handlers.AssignScoreResponse](t, rec).TotalScore)

	// Compute and claim alice's share.
	rec = h.do(t, http.MethodPost, "/api/campaigns/1/scores/compute", handlers.ComputeRewardShareRequest{
		Contributor: alice.String(), Invoker: h.sponsor.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	share := decode[handlers.ComputeRewardShareResponse](t, rec).RewardShare
	require.Equal(t, uint64(625), share)

	rec = h.do(t, http.MethodPost, "/api/campaigns/1/claims", handlers.ClaimRewardRequest{
		Contributor: alice.String(), Amount: int64(share), Invoker: alice.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claim := decode[handlers.ClaimRewardResponse](t, rec)
	require.Equal(t, share, claim.Amount)
	require.NotEmpty(t, claim.ReceiptID)

	// Finalize, then reads still work.
	rec = h.do(t, http.MethodPost, "/api/campaigns/1/finalize", handlers.FinalizeRequest{
		Invoker: h.sponsor.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/campaigns/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	campaign := decode[handlers.CampaignResponse](t, rec)
	require.True(t, campaign.Finalized)
	require.Equal(t, uint64(1000-625), campaign.VaultBalance)
	require.Equal(t, uint64(1000), campaign.TotalDeposited)

	rec = h.do(t, http.MethodGet, "/api/campaigns/1/contributors/"+alice.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contrib := decode[handlers.ContributorResponse](t, rec)
	require.True(t, contrib.Claimed)
	require.Equal(t, uint64(625), contrib.RewardShare)
}

func TestFairplay_API_ErrorMapping(t *testing.T) {
	t.Parallel()

	t.Run("unknown campaign is 404", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		rec := h.do(t, http.MethodGet, "/api/campaigns/99", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "not_initialized", decode[handlers.ErrorResponse](t, rec).Code)
	})

	t.Run("unauthorized scoring is 403", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		alice := solana.NewWallet().PublicKey()
		h.createCampaign(t, 1, 1000, alice)

		rec := h.do(t, http.MethodPost, "/api/campaigns/1/scores", handlers.AssignScoreRequest{
			Contributor: alice.String(), Score: 50, Invoker: alice.String(),
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "unauthorized", decode[handlers.ErrorResponse](t, rec).Code)
	})

	t.Run("expired campaign scoring is a conflict", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		alice := solana.NewWallet().PublicKey()
		h.createCampaign(t, 1, 1000, alice)
		h.clock.Advance(48 * time.Hour)

		rec := h.do(t, http.MethodPost, "/api/campaigns/1/scores", handlers.AssignScoreRequest{
			Contributor: alice.String(), Score: 50, Invoker: h.sponsor.String(),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "campaign_expired", decode[handlers.ErrorResponse](t, rec).Code)
	})

	t.Run("claim before computation is a conflict", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		alice := solana.NewWallet().PublicKey()
		h.createCampaign(t, 1, 1000, alice)

		rec := h.do(t, http.MethodPost, "/api/campaigns/1/scores", handlers.AssignScoreRequest{
			Contributor: alice.String(), Score: 50, Invoker: h.sponsor.String(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = h.do(t, http.MethodPost, "/api/campaigns/1/claims", handlers.ClaimRewardRequest{
			Contributor: alice.String(), Amount: 500, Invoker: alice.String(),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "not_scored", decode[handlers.ErrorResponse](t, rec).Code)
	})

	t.Run("non-numeric seeds are 400", func(t *testing.T) {
		t.Parallel()

		h := newAPIHarness(t)
		rec := h.do(t, http.MethodGet, "/api/campaigns/abc", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFairplay_API_Health(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		rec := h.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestFairplay_API_RateLimit(t *testing.T) {
	t.Parallel()

	limiter := handlers.NewRateLimiter(rate.Every(time.Hour), 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 4)
	for range 4 {
		req := httptest.NewRequest(http.MethodGet, "/api/campaigns/1", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	require.Equal(t, []int{200, 200, 429, 429}, statuses)

	// A different client gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/1", nil)
	req.RemoteAddr = "10.0.0.2:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
