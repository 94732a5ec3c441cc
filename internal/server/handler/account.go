package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// AccountService is what the custody endpoints need from the service layer.
type AccountService interface {
	Transfer(ctx context.Context, signer, to domain.Address, amount uint64) error
	Faucet(ctx context.Context, signer, to domain.Address, amount uint64) error
	Balance(ctx context.Context, account domain.Address) (uint64, error)
}

// AccountHandler serves balance and value movement endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logHandler(logger, "account")}
}

type moveRequest struct {
	To     domain.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type balanceResponse struct {
	Account domain.Address `json:"account"`
	Balance uint64         `json:"balance"`
}

// Transfer moves units from the signer to another account.
// POST /api/transfers
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	from, ok := signer(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := h.accounts.Transfer(r.Context(), from, req.To, req.Amount); err != nil {
		writeServiceError(w, r, h.logger, "transfer", err)
		return
	}
	h.writeBalance(w, r, from)
}

// Faucet mints units to an account when the faucet is enabled.
// POST /api/faucet
func (h *AccountHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := h.accounts.Faucet(r.Context(), admin, req.To, req.Amount); err != nil {
		writeServiceError(w, r, h.logger, "faucet", err)
		return
	}
	h.writeBalance(w, r, req.To)
}

// Balance returns the custody balance of an account.
// GET /api/accounts/{address}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	h.writeBalance(w, r, addr)
}

func (h *AccountHandler) writeBalance(w http.ResponseWriter, r *http.Request, account domain.Address) {
	bal, err := h.accounts.Balance(r.Context(), account)
	if err != nil {
		writeServiceError(w, r, h.logger, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: bal})
}
