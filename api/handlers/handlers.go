// Package handlers exposes the ledger operations over HTTP. Identities are
// base58 public keys, seeds are decimal uint64 path parameters, and amounts
// are integer token base units. Every typed ledger failure maps to a stable
// status code and machine-readable error code.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fairplaylabs/fairplay/api/metrics"
	"github.com/fairplaylabs/fairplay/ledger"
)

type Config struct {
	Logger *slog.Logger
	Ledger *ledger.Ledger
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	return nil
}

type Handler struct {
	log    *slog.Logger
	ledger *ledger.Ledger
}

func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{log: cfg.Logger, ledger: cfg.Ledger}, nil
}

// Routes mounts the operation endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/campaigns", h.CreateCampaign)
	r.Get("/campaigns/{seed}", h.GetCampaign)
	r.Post("/campaigns/{seed}/deposit", h.Deposit)
	r.Post("/campaigns/{seed}/scores", h.AssignScore)
	r.Post("/campaigns/{seed}/scores/compute", h.ComputeRewardShare)
	r.Post("/campaigns/{seed}/claims", h.ClaimReward)
	r.Post("/campaigns/{seed}/finalize", h.Finalize)
	r.Get("/campaigns/{seed}/contributors/{identity}", h.GetContributor)
}

type CreateCampaignRequest struct {
	Seed             uint64 `json:"seed"`
	CampaignID       uint8  `json:"campaign_id"`
	TotalPoolAmount  int64  `json:"total_pool_amount"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	Authority        string `json:"authority"`
	Depositor        string `json:"depositor,omitempty"`
	FirstContributor string `json:"first_contributor"`
}

type CampaignResponse struct {
	Key              string `json:"key"`
	Seed             uint64 `json:"seed"`
	CampaignID       uint8  `json:"campaign_id"`
	Sponsor          string `json:"sponsor"`
	Depositor        string `json:"depositor,omitempty"`
	TotalPoolAmount  uint64 `json:"total_pool_amount"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	TotalScore       uint64 `json:"total_score"`
	NoOfContributors uint32 `json:"no_of_contributors"`
	Finalized        bool   `json:"finalized"`
	VaultBalance     uint64 `json:"vault_balance"`
	TotalDeposited   uint64 `json:"total_deposited"`
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.TotalPoolAmount < 0 {
		writeError(w, http.StatusBadRequest, "invalid_pool", ledger.ErrInvalidPool.Error())
		return
	}
	authority, ok := h.parseKey(w, req.Authority, "authority")
	if !ok {
		return
	}
	firstContributor, ok := h.parseKey(w, req.FirstContributor, "first_contributor")
	if !ok {
		return
	}
	var depositor solana.PublicKey
	if req.Depositor != "" {
		if depositor, ok = h.parseKey(w, req.Depositor, "depositor"); !ok {
			return
		}
	}

	campaign, err := h.ledger.InitializeCampaign(r.Context(), ledger.InitializeParams{
		Seed:             req.Seed,
		CampaignID:       req.CampaignID,
		TotalPoolAmount:  uint64(req.TotalPoolAmount),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Authority:        authority,
		Depositor:        depositor,
		FirstContributor: firstContributor,
	})
	metrics.RecordLedgerOperation(ledger.OpInitializeCampaign, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaignResponse(campaign, &ledger.Vault{}))
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	campaign, err := h.ledger.Campaign(r.Context(), seed)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	vault, err := h.ledger.Vault(r.Context(), seed)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignResponse(campaign, vault))
}

type DepositRequest struct {
	Amount    int64  `json:"amount"`
	Depositor string `json:"depositor"`
}

type DepositResponse struct {
	VaultBalance uint64 `json:"vault_balance"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount", ledger.ErrInvalidAmount.Error())
		return
	}
	depositor, ok := h.parseKey(w, req.Depositor, "depositor")
	if !ok {
		return
	}

	balance, err := h.ledger.Deposit(r.Context(), seed, uint64(req.Amount), depositor)
	metrics.RecordLedgerOperation(ledger.OpDeposit, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	metrics.DepositedTotal.Add(float64(req.Amount))

	writeJSON(w, http.StatusOK, DepositResponse{VaultBalance: balance})
}

type AssignScoreRequest struct {
	Contributor string `json:"contributor"`
	Score       int64  `json:"score"`
	Invoker     string `json:"invoker"`
}

type AssignScoreResponse struct {
	TotalScore uint64 `json:"total_score"`
}

func (h *Handler) AssignScore(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	var req AssignScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Score < 0 {
		writeError(w, http.StatusBadRequest, "score_out_of_range", ledger.ErrScoreOutOfRange.Error())
		return
	}
	contributor, ok := h.parseKey(w, req.Contributor, "contributor")
	if !ok {
		return
	}
	invoker, ok := h.parseKey(w, req.Invoker, "invoker")
	if !ok {
		return
	}

	totalScore, err := h.ledger.AssignScore(r.Context(), seed, contributor, uint64(req.Score), invoker)
	metrics.RecordLedgerOperation(ledger.OpAssignScore, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AssignScoreResponse{TotalScore: totalScore})
}

type ComputeRewardShareRequest struct {
	Contributor string `json:"contributor"`
	Invoker     string `json:"invoker"`
}

type ComputeRewardShareResponse struct {
	RewardShare uint64 `json:"reward_share"`
}

func (h *Handler) ComputeRewardShare(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	var req ComputeRewardShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	contributor, ok := h.parseKey(w, req.Contributor, "contributor")
	if !ok {
		return
	}
	invoker, ok := h.parseKey(w, req.Invoker, "invoker")
	if !ok {
		return
	}

	share, err := h.ledger.ComputeRewardShare(r.Context(), seed, contributor, invoker)
	metrics.RecordLedgerOperation(ledger.OpComputeRewardShare, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ComputeRewardShareResponse{RewardShare: share})
}

type ClaimRewardRequest struct {
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
	Invoker     string `json:"invoker"`
}

type ClaimRewardResponse struct {
	ReceiptID   uuid.UUID `json:"receipt_id"`
	Contributor string    `json:"contributor"`
	Amount      uint64    `json:"amount"`
	ClaimedAt   int64     `json:"claimed_at"`
}

func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	var req ClaimRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount", ledger.ErrInvalidAmount.Error())
		return
	}
	contributor, ok := h.parseKey(w, req.Contributor, "contributor")
	if !ok {
		return
	}
	invoker, ok := h.parseKey(w, req.Invoker, "invoker")
	if !ok {
		return
	}

	receipt, err := h.ledger.ClaimReward(r.Context(), seed, contributor, uint64(req.Amount), invoker)
	metrics.RecordLedgerOperation(ledger.OpClaimReward, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	metrics.ClaimedTotal.Add(float64(receipt.Amount))

	writeJSON(w, http.StatusOK, ClaimRewardResponse{
		ReceiptID:   receipt.ID,
		Contributor: receipt.Contributor.String(),
		Amount:      receipt.Amount,
		ClaimedAt:   receipt.ClaimedAt.Unix(),
	})
}

type FinalizeRequest struct {
	Invoker string `json:"invoker"`
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	invoker, ok := h.parseKey(w, req.Invoker, "invoker")
	if !ok {
		return
	}

	err := h.ledger.Finalize(r.Context(), seed, invoker)
	metrics.RecordLedgerOperation(ledger.OpFinalize, err)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"finalized": true})
}

type ContributorResponse struct {
	Key         string `json:"key"`
	Identity    string `json:"identity"`
	Score       uint64 `json:"score"`
	RewardShare uint64 `json:"reward_share"`
	Scored      bool   `json:"scored"`
	Claimed     bool   `json:"claimed"`
}

func (h *Handler) GetContributor(w http.ResponseWriter, r *http.Request) {
	seed, ok := h.parseSeed(w, r)
	if !ok {
		return
	}
	identity, ok := h.parseKey(w, chi.URLParam(r, "identity"), "identity")
	if !ok {
		return
	}

	contrib, err := h.ledger.Contributor(r.Context(), seed, identity)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ContributorResponse{
		Key:         contrib.Key,
		Identity:    contrib.Identity.String(),
		Score:       contrib.Score,
		RewardShare: contrib.RewardShare,
		Scored:      contrib.Scored,
		Claimed:     contrib.Claimed,
	})
}

func (h *Handler) parseSeed(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	seed, err := strconv.ParseUint(chi.URLParam(r, "seed"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "seed must be a decimal uint64")
		return 0, false
	}
	return seed, true
}

func (h *Handler) parseKey(w http.ResponseWriter, value, field string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", field+" must be a base58 public key")
		return solana.PublicKey{}, false
	}
	return key, true
}

func campaignResponse(c *ledger.Campaign, v *ledger.Vault) CampaignResponse {
	resp := CampaignResponse{
		Key:              c.Key,
		Seed:             c.Seed,
		CampaignID:       c.CampaignID,
		Sponsor:          c.Sponsor.String(),
		TotalPoolAmount:  c.TotalPoolAmount,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		TotalScore:       c.TotalScore,
		NoOfContributors: c.NoOfContributors,
		Finalized:        c.Finalized,
		VaultBalance:     v.Balance,
		TotalDeposited:   v.TotalDeposited,
	}
	if !c.Depositor.IsZero() {
		resp.Depositor = c.Depositor.String()
	}
	return resp
}
