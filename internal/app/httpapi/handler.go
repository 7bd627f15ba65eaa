// Package httpapi exposes the investment engine over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/Goodisoft/vestearning/internal/app"
	"github.com/Goodisoft/vestearning/internal/app/domain/plan"
	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
	confirmationsvc "github.com/Goodisoft/vestearning/internal/app/services/confirmation"
	maturitysvc "github.com/Goodisoft/vestearning/internal/app/services/maturity"
	"github.com/Goodisoft/vestearning/internal/app/storage"
)

// handler bundles HTTP endpoints for the engine services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the engine REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := mux.NewRouter()
	r.HandleFunc("/investments", h.submitInvestment).Methods(http.MethodPost)
	r.HandleFunc("/investments", h.listInvestments).Methods(http.MethodGet)
	r.HandleFunc("/investments/{id}", h.getInvestment).Methods(http.MethodGet)
	r.HandleFunc("/investments/{id}/confirm", h.confirmInvestment).Methods(http.MethodPost)
	r.HandleFunc("/investments/{id}/cancel", h.cancelInvestment).Methods(http.MethodPost)

	r.HandleFunc("/plans", h.createPlan).Methods(http.MethodPost)
	r.HandleFunc("/plans", h.listPlans).Methods(http.MethodGet)
	r.HandleFunc("/plans/{id}", h.getPlan).Methods(http.MethodGet)

	r.HandleFunc("/users/{id}/wallet", h.getWallet).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/transactions", h.listTransactions).Methods(http.MethodGet)

	r.HandleFunc("/referral-settings", h.getReferralSettings).Methods(http.MethodGet)
	r.HandleFunc("/referral-settings", h.putReferralSettings).Methods(http.MethodPut)

	r.HandleFunc("/sweep", h.runSweep).Methods(http.MethodPost)

	return r
}

func (h *handler) submitInvestment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string  `json:"user_id"`
		PlanID string  `json:"plan_id"`
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	inv, err := h.app.Confirmation.Submit(r.Context(), payload.UserID, payload.PlanID, payload.Amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) listInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := h.app.Stores.Investments.ListInvestments(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *handler) getInvestment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Stores.Investments.GetInvestment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) confirmInvestment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Confirmation.Confirm(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) cancelInvestment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Confirmation.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string  `json:"name"`
		MinAmount     float64 `json:"min_amount"`
		MaxAmount     float64 `json:"max_amount"`
		ROIPercentage float64 `json:"roi_percentage"`
		Term          int     `json:"term"`
		TermPeriod    string  `json:"term_period"`
		Type          string  `json:"type"`
		Active        bool    `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Name == "" || payload.Term < 1 {
		writeError(w, http.StatusBadRequest, errors.New("name and a term of at least 1 are required"))
		return
	}

	created, err := h.app.Stores.Plans.CreatePlan(r.Context(), plan.Plan{
		Name:          payload.Name,
		MinAmount:     payload.MinAmount,
		MaxAmount:     payload.MaxAmount,
		ROIPercentage: payload.ROIPercentage,
		Term:          payload.Term,
		TermPeriod:    payload.TermPeriod,
		Type:          payload.Type,
		Active:        payload.Active,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.app.Stores.Plans.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *handler) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Stores.Plans.GetPlan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wlt, err := h.app.Stores.Wallets.GetWalletByUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Stores.Transactions.ListTransactions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) getReferralSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.app.Stores.Settings.GetReferralSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) putReferralSettings(w http.ResponseWriter, r *http.Request) {
	var payload referral.Settings
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, level := range payload.Levels {
		if level.Level < 1 || level.CommissionRate < 0 {
			writeError(w, http.StatusBadRequest, errors.New("levels must be >= 1 with non-negative rates"))
			return
		}
	}

	if err := h.app.Stores.Settings.SaveReferralSettings(r.Context(), payload); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// runSweep forces a maturity sweep outside the schedule, for operators
// catching up after downtime. It goes through the sweeper so the
// in-flight guard and the cross-process lock apply to forced sweeps too.
func (h *handler) runSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Sweeper.Tick(r.Context())
	if err != nil {
		if errors.Is(err, maturitysvc.ErrSweepBusy) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, confirmationsvc.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, confirmationsvc.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		// Anything unclassified is a server-side failure, not client error.
		return http.StatusInternalServerError
	}
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
