package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// PoolService is what the pool endpoints need from the service layer.
type PoolService interface {
	CreatePool(ctx context.Context, signer domain.Address, title string, titleDigest domain.Digest, imageURL, description string) (domain.Pool, error)
	SetPaused(ctx context.Context, signer, pool domain.Address, paused bool) (domain.Pool, error)
	SetWinningOption(ctx context.Context, signer, pool, option domain.Address) (domain.Pool, error)
	CreateOption(ctx context.Context, signer, pool domain.Address, title string, digest domain.Digest) (domain.PoolOption, error)
	FundPool(ctx context.Context, signer, pool domain.Address, amount uint64, options []domain.Address) (uint64, error)
	GetPool(ctx context.Context, addr domain.Address) (domain.Pool, error)
	ListOptions(ctx context.Context, pool domain.Address) ([]domain.PoolOption, error)
	Settlement(ctx context.Context, pool domain.Address) (domain.SettlementReport, error)
	ArchivePool(ctx context.Context, pool domain.Address) (string, error)
}

// ArchiveReader loads archived settlement summaries.
type ArchiveReader interface {
	LoadSummary(ctx context.Context, pool domain.Address) (domain.ArchiveSummary, error)
}

// PoolHandler serves pool and option endpoints.
type PoolHandler struct {
	pools    PoolService
	archives ArchiveReader
	logger   *slog.Logger
}

// NewPoolHandler creates a PoolHandler. archives may be nil when cold
// storage is not configured.
func NewPoolHandler(pools PoolService, archives ArchiveReader, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{pools: pools, archives: archives, logger: logHandler(logger, "pool")}
}

type createPoolRequest struct {
	Title       string        `json:"title"`
	TitleDigest domain.Digest `json:"title_digest"`
	ImageURL    string        `json:"image_url"`
	Description string        `json:"description"`
}

type poolResponse struct {
	domain.Pool
	State     domain.PoolState `json:"state"`
	Unclaimed uint64           `json:"unclaimed"`
}

func newPoolResponse(p domain.Pool) poolResponse {
	return poolResponse{Pool: p, State: p.State(), Unclaimed: p.Unclaimed()}
}

// CreatePool records a pool at the address derived from its title digest.
// POST /api/pools
func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	var req createPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	pool, err := h.pools.CreatePool(r.Context(), admin, req.Title, req.TitleDigest, req.ImageURL, req.Description)
	if err != nil {
		writeServiceError(w, r, h.logger, "create pool", err)
		return
	}
	writeJSON(w, http.StatusCreated, newPoolResponse(pool))
}

// GetPool returns one pool with its derived state.
// GET /api/pools/{pool}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	pool, err := h.pools.GetPool(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool))
}

type setPausedRequest struct {
	IsPaused bool `json:"is_paused"`
}

// SetPaused pauses or reopens a pool.
// PUT /api/pools/{pool}/paused
func (h *PoolHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	var req setPausedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	pool, err := h.pools.SetPaused(r.Context(), admin, addr, req.IsPaused)
	if err != nil {
		writeServiceError(w, r, h.logger, "set paused", err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool))
}

type setWinnerRequest struct {
	Option domain.Address `json:"option"`
}

// SetWinner declares the winning option of a paused pool.
// PUT /api/pools/{pool}/winner
func (h *PoolHandler) SetWinner(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	var req setWinnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	pool, err := h.pools.SetWinningOption(r.Context(), admin, addr, req.Option)
	if err != nil {
		writeServiceError(w, r, h.logger, "set winner", err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool))
}

type fundPoolRequest struct {
	Amount  uint64           `json:"amount"`
	Options []domain.Address `json:"options"`
}

type fundPoolResponse struct {
	PerOption uint64 `json:"per_option"`
	Total     uint64 `json:"total"`
}

// FundPool splits an admin deposit evenly across the listed options.
// POST /api/pools/{pool}/fund
func (h *PoolHandler) FundPool(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	var req fundPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	per, err := h.pools.FundPool(r.Context(), admin, addr, req.Amount, req.Options)
	if err != nil {
		writeServiceError(w, r, h.logger, "fund pool", err)
		return
	}
	writeJSON(w, http.StatusOK, fundPoolResponse{PerOption: per, Total: per * uint64(len(req.Options))})
}

// Settlement previews every payout of a resolved pool.
// GET /api/pools/{pool}/settlement
func (h *PoolHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	report, err := h.pools.Settlement(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Archive writes the settlement record of a resolved pool to cold storage.
// POST /api/pools/{pool}/archive
func (h *PoolHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if _, ok := signer(w, r); !ok {
		return
	}
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	path, err := h.pools.ArchivePool(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "archive pool", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// ArchivedSummary returns the archived settlement record of a pool.
// GET /api/pools/{pool}/archive
func (h *PoolHandler) ArchivedSummary(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	if h.archives == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "archive storage not configured", Kind: domain.KindNotFound})
		return
	}
	summary, err := h.archives.LoadSummary(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "load archive", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createOptionRequest struct {
	Title       string        `json:"title"`
	TitleDigest domain.Digest `json:"title_digest"`
}

// CreateOption adds an outcome to a pool.
// POST /api/pools/{pool}/options
func (h *PoolHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	admin, ok := signer(w, r)
	if !ok {
		return
	}
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	var req createOptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	opt, err := h.pools.CreateOption(r.Context(), admin, addr, req.Title, req.TitleDigest)
	if err != nil {
		writeServiceError(w, r, h.logger, "create option", err)
		return
	}
	writeJSON(w, http.StatusCreated, opt)
}

type listOptionsResponse struct {
	Options []domain.PoolOption `json:"options"`
}

// ListOptions returns the options of a pool in creation order.
// GET /api/pools/{pool}/options
func (h *PoolHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "pool")
	if !ok {
		return
	}
	options, err := h.pools.ListOptions(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "list options", err)
		return
	}
	if options == nil {
		options = []domain.PoolOption{}
	}
	writeJSON(w, http.StatusOK, listOptionsResponse{Options: options})
}
