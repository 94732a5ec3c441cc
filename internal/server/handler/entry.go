package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// EntryService is what the entry endpoints need from the service layer.
type EntryService interface {
	EnterPool(ctx context.Context, participant, option domain.Address, amount uint64) (domain.Entry, error)
	ClaimWin(ctx context.Context, participant, pool, option, entry domain.Address) (uint64, error)
	CloseEntry(ctx context.Context, signer, pool, option, entry domain.Address) (domain.Entry, error)
	GetEntry(ctx context.Context, addr domain.Address) (domain.Entry, error)
	ListEntries(ctx context.Context, option domain.Address, opts domain.ListOpts) ([]domain.Entry, error)
	DeriveEntry(option, participant domain.Address) (domain.Address, error)
}

// EntryHandler serves entry, claim and derivation endpoints.
type EntryHandler struct {
	entries EntryService
	logger  *slog.Logger
}

// NewEntryHandler creates an EntryHandler.
func NewEntryHandler(entries EntryService, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, logger: logHandler(logger, "entry")}
}

type enterPoolRequest struct {
	Option domain.Address `json:"option"`
	Amount uint64         `json:"amount"`
}

// EnterPool wagers the signer's funds on an option.
// POST /api/entries
func (h *EntryHandler) EnterPool(w http.ResponseWriter, r *http.Request) {
	participant, ok := signer(w, r)
	if !ok {
		return
	}
	var req enterPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entry, err := h.entries.EnterPool(r.Context(), participant, req.Option, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "enter pool", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GetEntry returns one entry.
// GET /api/entries/{entry}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "entry")
	if !ok {
		return
	}
	entry, err := h.entries.GetEntry(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type listEntriesResponse struct {
	Entries []domain.Entry `json:"entries"`
}

// ListEntries pages through the entries of an option.
// GET /api/options/{option}/entries?limit=50&offset=0&since=&until=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "option")
	if !ok {
		return
	}
	entries, err := h.entries.ListEntries(r.Context(), addr, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list entries", err)
		return
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	writeJSON(w, http.StatusOK, listEntriesResponse{Entries: entries})
}

type entryRefRequest struct {
	Pool   domain.Address `json:"pool"`
	Option domain.Address `json:"option"`
	Entry  domain.Address `json:"entry"`
}

type claimResponse struct {
	Entry  domain.Address `json:"entry"`
	Amount uint64         `json:"amount"`
}

// Claim pays the signer's winning entry.
// POST /api/claims
func (h *EntryHandler) Claim(w http.ResponseWriter, r *http.Request) {
	participant, ok := signer(w, r)
	if !ok {
		return
	}
	var req entryRefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	amount, err := h.entries.ClaimWin(r.Context(), participant, req.Pool, req.Option, req.Entry)
	if err != nil {
		writeServiceError(w, r, h.logger, "claim", err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Entry: req.Entry, Amount: amount})
}

type closeEntryRequest struct {
	Pool   domain.Address `json:"pool"`
	Option domain.Address `json:"option"`
}

// CloseEntry retires the signer's entry in a resolved pool.
// POST /api/entries/{entry}/close
func (h *EntryHandler) CloseEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := signer(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r, "entry")
	if !ok {
		return
	}
	var req closeEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entry, err := h.entries.CloseEntry(r.Context(), owner, req.Pool, req.Option, addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "close entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeriveEntry computes the entry address of a participant under an option.
// GET /api/derive/entry?option=&participant=
func (h *EntryHandler) DeriveEntry(w http.ResponseWriter, r *http.Request) {
	option, ok := queryAddress(w, r, "option")
	if !ok {
		return
	}
	participant, ok := queryAddress(w, r, "participant")
	if !ok {
		return
	}
	addr, err := h.entries.DeriveEntry(option, participant)
	if err != nil {
		writeServiceError(w, r, h.logger, "derive entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Address{"entry": addr})
}
