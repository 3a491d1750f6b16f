package handler

import (
	"errors"
	"net/http"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// MetadataLookup resolves a raw token id path segment to its document.
type MetadataLookup interface {
	Lookup(raw string) (domain.TokenMetadata, error)
}

// MetadataHandler serves the token metadata the contract's tokenURI points at.
type MetadataHandler struct {
	metadata MetadataLookup
}

// NewMetadataHandler creates a MetadataHandler.
func NewMetadataHandler(metadata MetadataLookup) *MetadataHandler {
	return &MetadataHandler{metadata: metadata}
}

// GetMetadata returns the metadata document of a token.
// GET /api/metadata/{tokenId}
func (h *MetadataHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	doc, err := h.metadata.Lookup(r.PathValue("tokenId"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTokenID) {
			writeError(w, http.StatusBadRequest, "token id must be a non-negative integer")
			return
		}
		writeError(w, http.StatusInternalServerError, "metadata unavailable")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, doc)
}
