package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// MintHandler serves the history of dispatched contract writes.
type MintHandler struct {
	mints  domain.MintStore
	logger *slog.Logger
}

// NewMintHandler creates a MintHandler over the given store.
func NewMintHandler(mints domain.MintStore, logger *slog.Logger) *MintHandler {
	return &MintHandler{mints: mints, logger: logHandler(logger, "mint")}
}

type mintView struct {
	ID          string    `json:"id"`
	Wallet      string    `json:"wallet"`
	Kind        string    `json:"kind"`
	TxHash      string    `json:"tx_hash,omitempty"`
	ValueWei    string    `json:"value_wei"`
	Status      string    `json:"status"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMintView(m domain.MintRecord) mintView {
	return mintView{
		ID:          m.ID,
		Wallet:      m.Wallet,
		Kind:        string(m.Kind),
		TxHash:      m.TxHash,
		ValueWei:    m.ValueWei,
		Status:      string(m.Status),
		BlockNumber: m.BlockNumber,
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ListMints returns the writes dispatched by a wallet, newest first.
// GET /api/mints?wallet=0x...&limit=20&offset=0&since=RFC3339&until=RFC3339
func (h *MintHandler) ListMints(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}

	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.mints.ListByWallet(r.Context(), wallet, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list mints failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list mints")
		return
	}

	out := make([]mintView, 0, len(recs))
	for _, m := range recs {
		out = append(out, toMintView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"mints": out})
}

// GetMint returns one dispatched write.
// GET /api/mints/{id}
func (h *MintHandler) GetMint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.mints.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "mint not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get mint failed",
			slog.String("mint_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get mint")
		return
	}
	writeJSON(w, http.StatusOK, toMintView(rec))
}
