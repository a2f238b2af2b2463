// Package httpapi exposes the engines over a small REST surface. Callers
// identify themselves with the X-Caller header; the engines enforce roles and
// ownership.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	app "github.com/DFY-Network/pawnshop_layer/internal/app"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/asset"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/escrow"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	"github.com/DFY-Network/pawnshop_layer/internal/app/metrics"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/hub/", h.hub)
	mux.HandleFunc("/assets", h.assets)
	mux.HandleFunc("/assets/", h.assetResources)
	mux.HandleFunc("/appointments/", h.appointmentActions)
	mux.HandleFunc("/evaluations/", h.evaluationActions)
	mux.HandleFunc("/collaterals", h.collaterals)
	mux.HandleFunc("/collaterals/", h.collateralResources)
	mux.HandleFunc("/offers/", h.offerActions)
	mux.HandleFunc("/loancontracts", h.loanContracts)
	mux.HandleFunc("/loancontracts/", h.loanContractByID)
	mux.HandleFunc("/reputation/", h.reputationResources)
	mux.HandleFunc("/audit", h.audit)
	mux.Handle("/metrics", metrics.Handler())
	return metrics.InstrumentHandler(mux)
}

func caller(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Caller"))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- hub --------------------------------------------------------------------

func (h *handler) hub(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/hub"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "contracts":
		h.hubContracts(w, r, parts[1:])
	case "config":
		h.hubConfig(w, r)
	case "fees":
		h.hubFees(w, r, parts[1:])
	case "roles":
		h.hubRoles(w, r)
	case "whitelist":
		h.hubWhitelist(w, r)
	case "evaluators":
		h.hubEvaluators(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) hubContracts(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reg, err := h.app.Hub.ContractOf(r.Context(), rest[0])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reg)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name     string `json:"name"`
			Address  string `json:"address"`
			Artifact string `json:"artifact"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		reg, err := h.app.Hub.RegisterContract(r.Context(), caller(r), payload.Name, payload.Address, payload.Artifact)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, reg)
	case http.MethodGet:
		regs, err := h.app.Hub.ListContracts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, regs)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) hubConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.app.Hub.SystemConfig(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPatch:
		var payload struct {
			FeeWallet *string `json:"fee_wallet"`
			FeeToken  *string `json:"fee_token"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var (
			cfg hub.SystemConfig
			err error
		)
		if payload.FeeWallet != nil {
			if cfg, err = h.app.Hub.SetFeeWallet(r.Context(), caller(r), *payload.FeeWallet); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		if payload.FeeToken != nil {
			if cfg, err = h.app.Hub.SetFeeToken(r.Context(), caller(r), *payload.FeeToken); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) hubFees(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		schedule, err := h.app.Hub.FeeSchedule(r.Context(), rest[0])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		FeeToken      string `json:"fee_token"`
		EvaluationFee string `json:"evaluation_fee"`
		MintingFee    string `json:"minting_fee"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evalFee, err := decimal.NewFromString(payload.EvaluationFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mintFee, err := decimal.NewFromString(payload.MintingFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	schedule, err := h.app.Hub.SetFeeSchedule(r.Context(), caller(r), hub.FeeSchedule{
		FeeToken:      payload.FeeToken,
		EvaluationFee: evalFee,
		MintingFee:    mintFee,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

func (h *handler) hubRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		role := hub.Role(strings.TrimSpace(r.URL.Query().Get("role")))
		account := strings.TrimSpace(r.URL.Query().Get("account"))
		ok, err := h.app.Hub.HasRole(r.Context(), role, account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"has_role": ok})
	case http.MethodPost:
		var payload struct {
			Role    string `json:"role"`
			Account string `json:"account"`
			Action  string `json:"action"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var err error
		switch strings.ToLower(strings.TrimSpace(payload.Action)) {
		case "", "grant":
			err = h.app.Hub.GrantRole(r.Context(), caller(r), hub.Role(payload.Role), payload.Account)
		case "revoke":
			err = h.app.Hub.RevokeRole(r.Context(), caller(r), hub.Role(payload.Role), payload.Account)
		default:
			writeError(w, http.StatusBadRequest, errors.New("action must be grant or revoke"))
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) hubWhitelist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		contract := strings.TrimSpace(r.URL.Query().Get("token_contract"))
		ok, err := h.app.Hub.IsWhitelistedCollateral(r.Context(), contract)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"whitelisted": ok})
	case http.MethodPost:
		var payload struct {
			TokenContract string `json:"token_contract"`
			Standard      string `json:"standard"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Hub.WhitelistCollateral(r.Context(), caller(r), payload.TokenContract, payload.Standard); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) hubEvaluators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recs, err := h.app.Hub.EvaluatorHistory(r.Context(), r.URL.Query().Get("account"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	case http.MethodPost:
		var payload struct {
			Account string `json:"account"`
			Action  string `json:"action"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var (
			rec hub.EvaluatorRecord
			err error
		)
		switch strings.ToLower(strings.TrimSpace(payload.Action)) {
		case "", "accept":
			rec, err = h.app.Hub.AcceptEvaluator(r.Context(), caller(r), payload.Account)
		case "remove":
			rec, err = h.app.Hub.RemoveEvaluator(r.Context(), caller(r), payload.Account)
		default:
			writeError(w, http.StatusBadRequest, errors.New("action must be accept or remove"))
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- assets -----------------------------------------------------------------

func (h *handler) assets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ContentID          string `json:"content_id"`
			CollectionAddress  string `json:"collection_address"`
			CollectionStandard string `json:"collection_standard"`
			DeclaredValue      string `json:"declared_value"`
			FeeToken           string `json:"fee_token"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		value := decimal.Zero
		if strings.TrimSpace(payload.DeclaredValue) != "" {
			parsed, err := decimal.NewFromString(payload.DeclaredValue)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			value = parsed
		}
		req, err := h.app.Evaluation.CreateAssetRequest(r.Context(), caller(r), payload.ContentID, payload.CollectionAddress, asset.CollectionStandard(payload.CollectionStandard), value, payload.FeeToken)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	case http.MethodGet:
		reqs, err := h.app.Evaluation.ListAssetRequests(r.Context(), r.URL.Query().Get("owner"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) assetResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/assets"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	assetID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		req, err := h.app.Evaluation.GetAssetRequest(r.Context(), assetID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
		return
	}

	switch parts[1] {
	case "appointments":
		switch r.Method {
		case http.MethodGet:
			apts, err := h.app.Evaluation.ListAppointments(r.Context(), assetID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, apts)
		case http.MethodPost:
			var payload struct {
				Evaluator     string `json:"evaluator"`
				ScheduledTime string `json:"scheduled_time"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			var scheduled time.Time
			if strings.TrimSpace(payload.ScheduledTime) != "" {
				parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.ScheduledTime))
				if err != nil {
					writeError(w, http.StatusBadRequest, errors.New("scheduled_time must be RFC3339 timestamp"))
					return
				}
				scheduled = parsed
			}
			apt, err := h.app.Evaluation.CreateAppointment(r.Context(), caller(r), assetID, payload.Evaluator, scheduled)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, apt)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "evaluations":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		evals, err := h.app.Evaluation.ListEvaluations(r.Context(), assetID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, evals)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) appointmentActions(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/appointments"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	appointmentID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		apt, err := h.app.Evaluation.GetAppointment(r.Context(), appointmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apt)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "accept":
		apt, err := h.app.Evaluation.AcceptAppointment(r.Context(), caller(r), appointmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apt)
	case "reject":
		apt, err := h.app.Evaluation.RejectAppointment(r.Context(), caller(r), appointmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apt)
	case "cancel":
		apt, err := h.app.Evaluation.CancelAppointment(r.Context(), caller(r), appointmentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apt)
	case "evaluate":
		var payload struct {
			AppraisedValue string `json:"appraised_value"`
			ContentID      string `json:"content_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		value, err := decimal.NewFromString(payload.AppraisedValue)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		eval, err := h.app.Evaluation.EvaluateAsset(r.Context(), caller(r), appointmentID, value, payload.ContentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, eval)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) evaluationActions(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/evaluations"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	evaluationID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		eval, err := h.app.Evaluation.GetEvaluation(r.Context(), evaluationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, eval)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "accept":
		eval, err := h.app.Evaluation.AcceptEvaluation(r.Context(), caller(r), evaluationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, eval)
	case "reject":
		eval, err := h.app.Evaluation.RejectEvaluation(r.Context(), caller(r), evaluationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, eval)
	case "mint":
		var payload struct {
			MetadataRef string `json:"metadata_ref"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		eval, err := h.app.Evaluation.CreateNftToken(r.Context(), caller(r), evaluationID, payload.MetadataRef)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, eval)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// --- lending ----------------------------------------------------------------

func (h *handler) collaterals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			TokenContract      string `json:"token_contract"`
			TokenID            string `json:"token_id"`
			TokenStandard      string `json:"token_standard"`
			TokenQuantity      int64  `json:"token_quantity"`
			ExpectedLoanAmount string `json:"expected_loan_amount"`
			LoanAsset          string `json:"loan_asset"`
			DurationQty        int64  `json:"duration_qty"`
			DurationType       string `json:"duration_type"`
			RepaymentCycleType string `json:"repayment_cycle_type"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		amount, err := decimal.NewFromString(payload.ExpectedLoanAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		col, err := h.app.Lending.PutOnPawn(r.Context(), caller(r), lending.Collateral{
			TokenContract:      payload.TokenContract,
			TokenID:            payload.TokenID,
			TokenStandard:      payload.TokenStandard,
			TokenQuantity:      payload.TokenQuantity,
			ExpectedLoanAmount: amount,
			LoanAsset:          payload.LoanAsset,
			DurationQty:        payload.DurationQty,
			DurationType:       lending.DurationType(payload.DurationType),
			RepaymentCycleType: lending.DurationType(payload.RepaymentCycleType),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, col)
	case http.MethodGet:
		cols, err := h.app.Lending.ListCollaterals(r.Context(), r.URL.Query().Get("owner"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, cols)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) collateralResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/collaterals"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	collateralID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		col, err := h.app.Lending.GetCollateral(r.Context(), collateralID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, col)
		return
	}

	switch parts[1] {
	case "offers":
		switch r.Method {
		case http.MethodGet:
			offers, err := h.app.Lending.ListOffers(r.Context(), collateralID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, offers)
		case http.MethodPost:
			var payload struct {
				RepaymentAsset     string `json:"repayment_asset"`
				LoanAmount         string `json:"loan_amount"`
				InterestRate       string `json:"interest_rate"`
				DurationDeadline   string `json:"duration_deadline"`
				LoanDurationType   string `json:"loan_duration_type"`
				RepaymentCycleType string `json:"repayment_cycle_type"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			amount, err := decimal.NewFromString(payload.LoanAmount)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			interest := decimal.Zero
			if strings.TrimSpace(payload.InterestRate) != "" {
				if interest, err = decimal.NewFromString(payload.InterestRate); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
			}
			var deadline time.Time
			if strings.TrimSpace(payload.DurationDeadline) != "" {
				parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.DurationDeadline))
				if err != nil {
					writeError(w, http.StatusBadRequest, errors.New("duration_deadline must be RFC3339 timestamp"))
					return
				}
				deadline = parsed
			}
			offer, err := h.app.Lending.CreateOffer(r.Context(), caller(r), lending.Offer{
				CollateralID:       collateralID,
				RepaymentAsset:     payload.RepaymentAsset,
				LoanAmount:         amount,
				InterestRate:       interest,
				DurationDeadline:   deadline,
				LoanDurationType:   lending.DurationType(payload.LoanDurationType),
				RepaymentCycleType: lending.DurationType(payload.RepaymentCycleType),
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, offer)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "withdraw":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		col, err := h.app.Lending.WithdrawCollateral(r.Context(), caller(r), collateralID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, col)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) offerActions(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/offers"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	offerID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		offer, err := h.app.Lending.GetOffer(r.Context(), offerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, offer)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "accept":
		lc, err := h.app.Lending.AcceptOffer(r.Context(), caller(r), offerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, lc)
	case "cancel":
		offer, err := h.app.Lending.CancelOffer(r.Context(), caller(r), offerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, offer)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) loanContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	lcs, err := h.app.Lending.ListLoanContracts(r.Context(), r.URL.Query().Get("collateral_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, lcs)
}

func (h *handler) loanContractByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/loancontracts"), "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	lc, err := h.app.Lending.GetLoanContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lc)
}

// --- reputation -------------------------------------------------------------

func (h *handler) reputationResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reputation"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	account := parts[0]

	if len(parts) == 1 {
		score, err := h.app.Reputation.Score(r.Context(), account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
		return
	}
	if parts[1] == "history" {
		acts, err := h.app.Reputation.History(r.Context(), account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, acts)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// --- audit ------------------------------------------------------------------

func (h *handler) audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records := h.app.Bus.Recent()
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		if len(records) > limit {
			records = records[len(records)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, records)
}

// --- helpers ----------------------------------------------------------------

// writeDomainError maps the engine error vocabulary onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, hub.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, hub.ErrInvalidState) || errors.Is(err, escrow.ErrAlreadySettled):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance) || errors.Is(err, ledger.ErrInsufficientAllowance):
		status = http.StatusPaymentRequired
	case errors.Is(err, hub.ErrConfigNotFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound) || errors.Is(err, escrow.ErrHoldNotFound):
		status = http.StatusNotFound
	}
	writeError(w, status, err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
