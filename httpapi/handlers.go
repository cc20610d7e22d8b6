package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ledger-exchange/apperr"
	"ledger-exchange/domain"
	"ledger-exchange/orderbook"
)

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "welcome to the exchange")
}

// orderView is the wire shape of one resting row, per spec.md §6: buys
// carry amount >= 0, sells amount < 0.
type orderView struct {
	LogicalTimestamp int64 `json:"logical_timestamp"`
	ParticipantID    int64 `json:"participant_id"`
	Price            int64 `json:"price"`
	Amount           int64 `json:"amount"`
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.OrderBookSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	buy, sell := orderbook.Aggregate(rows)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"buy": buy, "sell": sell},
	})
}

// tradeView is one trade-log entry, per spec.md §3's Trade Log Entry shape.
type tradeView struct {
	Type     string `json:"type"`
	BuyerID  int64  `json:"buyer_id"`
	SellerID int64  `json:"seller_id"`
	Amount   uint64 `json:"amount"`
	Price    int64  `json:"price"`
	WallTime string `json:"wall_time"`
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.Trades(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]tradeView, len(trades))
	for i, t := range trades {
		views[i] = tradeView{
			Type:     "trade",
			BuyerID:  t.BuyerID,
			SellerID: t.SellerID,
			Amount:   t.Amount,
			Price:    t.Price,
			WallTime: t.WallTime.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	acct, err := s.store.GetAccount(r.Context(), principal.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": acct.Balance, "stock": acct.Stock})
}

func (s *Server) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	rows, err := s.store.ActiveOrders(r.Context(), principal.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]orderView, len(rows))
	for i, o := range rows {
		views[i] = orderView{LogicalTimestamp: o.LogicalTimestamp, ParticipantID: o.ParticipantID, Price: o.Price, Amount: o.Amount}
	}
	writeJSON(w, http.StatusOK, views)
}

// submitRequest is the wire contract from spec.md §6's "Submit body
// contract": p/q/d/tif, validated with go-playground/validator/v10 tags.
type submitRequest struct {
	Price       int64  `json:"p" validate:"required,gt=0"`
	Quantity    uint64 `json:"q" validate:"required,gt=0"`
	Side        string `json:"d" validate:"required,oneof=buy sell"`
	TimeInForce string `json:"tif" validate:"required,oneof=GTC IOC"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "malformed request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "invalid submit request", err))
		return
	}
	side, _ := domain.ParseSide(req.Side)
	tif, _ := domain.ParseTimeInForce(req.TimeInForce)

	principal := principalFrom(r)
	result, err := s.engine.Submit(r.Context(), principal.ParticipantID, side, req.Price, req.Quantity, tif)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"logical_timestamp": result.LogicalTimestamp})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	logicalTimestamp, err := strconv.ParseInt(r.URL.Query().Get("logical_timestamp"), 10, 64)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "logical_timestamp must be an integer", err))
		return
	}
	principal := principalFrom(r)
	if err := s.engine.Cancel(r.Context(), principal.ParticipantID, logicalTimestamp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	n, err := s.engine.CancelAll(r.Context(), principal.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	password := r.URL.Query().Get("password")
	id, err := s.auth.Signup(r.Context(), name, password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"participant_id": id, "name": name})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "malformed form body", err))
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	token, err := s.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{"participant_id": principal.ParticipantID, "name": principal.Name})
}
