package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"DexLedger/internal/core"
	"DexLedger/internal/observability"
	"DexLedger/internal/projection"
	"DexLedger/internal/query"
)

// Server exposes the ledger over HTTP/JSON. Reads go through the query
// service; mutations go straight to the exchange, which serializes them.
type Server struct {
	ex     *core.Exchange
	svc    *query.Service
	health *observability.HealthChecker
	router *mux.Router
	logger zerolog.Logger
}

func NewServer(ex *core.Exchange, svc *query.Service, health *observability.HealthChecker) *Server {
	s := &Server{
		ex:     ex,
		svc:    svc,
		health: health,
		router: mux.NewRouter(),
		logger: observability.NewLogger("server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/info", s.handleGetInfo).Methods("GET")
	api.HandleFunc("/balances/{asset}/{user}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	api.HandleFunc("/pairs/{base}/{quote}/orderbook", s.handleGetOrderBook).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/candles", s.handleGetCandles).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/accounts/{account}/orders", s.handleGetAccountOrders).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/accounts/{account}/trades", s.handleGetAccountTrades).Methods("GET")

	api.HandleFunc("/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/fill", s.handleFillOrder).Methods("POST")

	s.router.HandleFunc("/healthz", s.health.LivenessHandler).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.ReadinessHandler).Methods("GET")
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.GetInfo())
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, err := uuid.Parse(vars["user"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.svc.GetBalance(user, vars["asset"]))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	resp, err := s.svc.GetOrder(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	cursor, _ := strconv.ParseUint(r.URL.Query().Get("cursor"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := s.svc.GetEventHistory(r.Context(), cursor, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("event history query failed")
		respondError(w, http.StatusInternalServerError, "event history unavailable", "")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.GetOrderBook(pairFrom(r)))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.GetTrades(pairFrom(r)))
}

func (s *Server) handleGetCandles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.GetCandles(pairFrom(r)))
}

func (s *Server) handleGetAccountOrders(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(mux.Vars(r)["account"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.svc.GetAccountOrders(pairFrom(r), account))
}

func (s *Server) handleGetAccountTrades(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(mux.Vars(r)["account"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.svc.GetAccountTrades(pairFrom(r), account))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req FundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.ex.Deposit(req.Asset, req.User, req.Amount); err != nil {
		s.respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FundingResponse{
		Asset:   req.Asset,
		User:    req.User,
		Balance: s.ex.BalanceOf(req.Asset, req.User),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req FundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.ex.Withdraw(req.Asset, req.User, req.Amount); err != nil {
		s.respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FundingResponse{
		Asset:   req.Asset,
		User:    req.User,
		Balance: s.ex.BalanceOf(req.Asset, req.User),
	})
}

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	id, err := s.ex.MakeOrder(req.TokenGet, req.AmountGet, req.TokenGive, req.AmountGive, req.Maker)
	if err != nil {
		s.respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, OrderActionResponse{OrderID: id, Status: "open"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	var req OrderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.ex.CancelOrder(id, req.Caller); err != nil {
		s.respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderActionResponse{OrderID: id, Status: "cancelled"})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	var req OrderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.ex.FillOrder(id, req.Caller); err != nil {
		s.respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderActionResponse{OrderID: id, Status: "filled"})
}

// respondOpError maps exchange sentinel errors to HTTP status codes.
func (s *Server) respondOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "not order maker", err.Error())
	case errors.Is(err, core.ErrOrderAlreadyFilled),
		errors.Is(err, core.ErrOrderAlreadyCancelled):
		respondError(w, http.StatusConflict, "order closed", err.Error())
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrTransferRejected):
		respondError(w, http.StatusUnprocessableEntity, "insufficient funds", err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFeeDivision),
		errors.Is(err, core.ErrAmountOverflow),
		errors.Is(err, core.ErrUnknownAsset):
		respondError(w, http.StatusBadRequest, "invalid operation", err.Error())
	default:
		s.logger.Error().Err(err).Msg("unexpected operation error")
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func pairFrom(r *http.Request) projection.Pair {
	vars := mux.Vars(r)
	return projection.Pair{Base: vars["base"], Quote: vars["quote"]}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
