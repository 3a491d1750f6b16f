package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/service"
)

// SaleService defines the methods the sale handler requires from the service
// layer.
type SaleService interface {
	Update(event string) service.SaleUpdate
	Dispatch(ctx context.Context, action domain.Action) (domain.Receipt, error)
}

// SaleHandler serves the sale status and action endpoints.
type SaleHandler struct {
	sale         SaleService
	allowActions bool
	logger       *slog.Logger
}

// NewSaleHandler creates a SaleHandler. When allowActions is false the action
// endpoint answers 403 and only the read side is exposed.
func NewSaleHandler(sale SaleService, allowActions bool, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		sale:         sale,
		allowActions: allowActions,
		logger:       logHandler(logger, "sale"),
	}
}

// GetStatus returns the current status together with the derived phase and
// the intent presentation.
// GET /api/status
func (h *SaleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sale.Update(""))
}

type receiptView struct {
	TxHash         string   `json:"tx_hash,omitempty"`
	BlockNumber    uint64   `json:"block_number,omitempty"`
	GasUsed        uint64   `json:"gas_used,omitempty"`
	MintedTokenIDs []uint64 `json:"minted_token_ids,omitempty"`
}

type actionResponse struct {
	Action  domain.Action      `json:"action"`
	Receipt receiptView        `json:"receipt"`
	Update  service.SaleUpdate `json:"update"`
}

// PostAction dispatches the named action and blocks until its transaction is
// confirmed or failed.
// POST /api/actions/{action}
func (h *SaleHandler) PostAction(w http.ResponseWriter, r *http.Request) {
	if !h.allowActions {
		writeError(w, http.StatusForbidden, "actions are disabled on this server")
		return
	}
	action, ok := domain.ParseAction(r.PathValue("action"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	receipt, err := h.sale.Dispatch(r.Context(), action)
	if err != nil {
		status, msg := actionErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: action failed",
				slog.String("action", string(action)),
				slog.String("error", err.Error()),
			)
		}
		writeJSON(w, status, map[string]any{
			"error":   msg,
			"tx_hash": receipt.TxHash,
		})
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{
		Action: action,
		Receipt: receiptView{
			TxHash:         receipt.TxHash,
			BlockNumber:    receipt.BlockNumber,
			GasUsed:        receipt.GasUsed,
			MintedTokenIDs: receipt.MintedTokenIDs,
		},
		Update: h.sale.Update(""),
	})
}

// actionErrorStatus maps a dispatch error onto an HTTP status and a message
// safe to show to clients.
func actionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrActionInFlight):
		return http.StatusConflict, domain.ErrActionInFlight.Error()
	case errors.Is(err, domain.ErrActionNotOffered):
		return http.StatusConflict, domain.ErrActionNotOffered.Error()
	case errors.Is(err, domain.ErrNetworkMismatch):
		return http.StatusPreconditionFailed, domain.ErrNetworkMismatch.Error()
	case errors.Is(err, domain.ErrTxReverted):
		return http.StatusBadGateway, domain.ErrTxReverted.Error()
	case errors.Is(err, domain.ErrTxFailed):
		return http.StatusBadGateway, domain.ErrTxFailed.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "confirmation not observed yet"
	default:
		return http.StatusInternalServerError, "action failed"
	}
}
