package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"papertrade/market"
)

// API exposes the book over HTTP so alerts can be registered, listed, and
// cleared while the matching loop runs. It binds to a loopback address by
// default and carries no authentication.
type API struct {
	book          *Book
	src           market.PriceSource
	lookupTimeout time.Duration
	log           *zap.Logger
	mux           *http.ServeMux
}

func NewAPI(book *Book, src market.PriceSource, lookupTimeout time.Duration, log *zap.Logger) *API {
	a := &API{
		book:          book,
		src:           src,
		lookupTimeout: lookupTimeout,
		log:           log,
	}
	a.mux = http.NewServeMux()
	a.mux.HandleFunc("/alerts", a.handleAlerts)
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// AddAlertRequest is the POST /alerts body.
type AddAlertRequest struct {
	UserID       string `json:"user_id"`
	NotifyTarget string `json:"notify_target"`
	Symbol       string `json:"symbol"`
	TargetPrice  string `json:"target_price"`
}

// RuleView is the wire form of a rule. Prices travel as strings.
type RuleView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	NotifyTarget string    `json:"notify_target"`
	Symbol       string    `json:"symbol"`
	TargetPrice  string    `json:"target_price"`
	Direction    string    `json:"direction"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClearResponse is the DELETE /alerts body.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse carries a failure back to the client.
type ErrorResponse struct {
	Error string `json:"error"`
}

func viewOf(r Rule) RuleView {
	return RuleView{
		ID:           r.ID,
		UserID:       r.UserID,
		NotifyTarget: r.NotifyTarget,
		Symbol:       r.Symbol,
		TargetPrice:  r.TargetPrice.String(),
		Direction:    string(r.Direction),
		CreatedAt:    r.CreatedAt,
	}
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleAdd(w, r)
	case http.MethodGet:
		a.handleList(w, r)
	case http.MethodDelete:
		a.handleClear(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	symbol := market.Normalize(req.Symbol)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	target, err := decimal.NewFromString(req.TargetPrice)
	if err != nil || target.LessThanOrEqual(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "target_price must be a positive number")
		return
	}

	// Direction derives from the live price, so the add fails when the
	// price source is down rather than registering a wrong-way rule.
	ctx, cancel := context.WithTimeout(r.Context(), a.lookupTimeout)
	defer cancel()
	current, err := a.src.LatestPrice(ctx, symbol)
	if err != nil {
		status := http.StatusBadGateway
		if !errors.Is(err, market.ErrUnavailable) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, "price for "+symbol+" unavailable")
		return
	}

	rule := a.book.Add(req.UserID, req.NotifyTarget, symbol, target, current)
	a.log.Info("alert registered",
		zap.String("rule_id", rule.ID),
		zap.String("user_id", rule.UserID),
		zap.String("symbol", rule.Symbol),
		zap.String("direction", string(rule.Direction)),
		zap.String("target", rule.TargetPrice.String()),
		zap.String("current", current.String()))

	writeJSON(w, http.StatusCreated, viewOf(rule))
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	rules := a.book.ListByUser(userID)
	views := make([]RuleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, viewOf(rule))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	removed := a.book.RemoveByUser(userID)
	a.log.Info("alerts cleared",
		zap.String("user_id", userID), zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, ClearResponse{Removed: removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
