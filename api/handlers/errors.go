package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/fairplaylabs/fairplay/ledger"
)

// ErrorResponse is the wire shape of every failure. Code carries the typed
// failure name so clients can branch without parsing messages.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatus = map[error]struct {
	status int
	code   string
}{
	ledger.ErrAlreadyInitialized:  {http.StatusConflict, "already_initialized"},
	ledger.ErrNotInitialized:      {http.StatusNotFound, "not_initialized"},
	ledger.ErrInvalidWindow:       {http.StatusBadRequest, "invalid_window"},
	ledger.ErrInvalidPool:         {http.StatusBadRequest, "invalid_pool"},
	ledger.ErrInvalidAmount:       {http.StatusBadRequest, "invalid_amount"},
	ledger.ErrUnauthorized:        {http.StatusForbidden, "unauthorized"},
	ledger.ErrScoreOutOfRange:     {http.StatusBadRequest, "score_out_of_range"},
	ledger.ErrCampaignExpired:     {http.StatusConflict, "campaign_expired"},
	ledger.ErrFinalized:           {http.StatusConflict, "finalized"},
	ledger.ErrInsufficientFunds:   {http.StatusConflict, "insufficient_funds"},
	ledger.ErrNoTotalScore:        {http.StatusConflict, "no_total_score"},
	ledger.ErrAlreadyClaimed:      {http.StatusConflict, "already_claimed"},
	ledger.ErrAmountMismatch:      {http.StatusConflict, "amount_mismatch"},
	ledger.ErrNotScored:           {http.StatusConflict, "not_scored"},
	ledger.ErrContributorNotFound: {http.StatusNotFound, "contributor_not_found"},
}

// writeLedgerError maps a typed ledger failure to its HTTP status and error
// code. Anything unmapped is an internal error and is reported to Sentry.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	for kind, m := range errorStatus {
		if errors.Is(err, kind) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	h.log.Error("handlers: internal error", "path", r.URL.Path, "error", err)
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
