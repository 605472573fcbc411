package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"riel/internal/core"
	"riel/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate submission suppressed")
	case errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrMissingTenant),
		errors.Is(err, core.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// entryJSON is the wire shape of one ledger entry. Amounts derived
// from the text ride along so clients never re-parse.
type entryJSON struct {
	ID          int64    `json:"id"`
	TenantID    string   `json:"tenant_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Text        string   `json:"text"`
	CreatedAt   string   `json:"created_at"`
	Amounts     []string `json:"amounts"`
	Sum         string   `json:"sum"`
}

func toEntryJSON(e core.Entry) entryJSON {
	nums := core.ExtractAmounts(e.Text)
	amounts := make([]string, len(nums))
	sum := decimal.Zero
	for i, n := range nums {
		amounts[i] = n.String()
		sum = sum.Add(n)
	}
	return entryJSON{
		ID:          e.ID,
		TenantID:    e.TenantID,
		DisplayName: e.DisplayName,
		Category:    e.Category,
		Text:        e.Text,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		Amounts:     amounts,
		Sum:         sum.String(),
	}
}

func toEntryList(entries []core.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntryJSON(e)
	}
	return out
}

type categoryTotalJSON struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

type totalsJSON struct {
	Grand      string              `json:"grand"`
	ByCategory []categoryTotalJSON `json:"by_category"`
}

func toTotalsJSON(t core.Totals) totalsJSON {
	rows := make([]categoryTotalJSON, len(t.ByCategory))
	for i, ct := range t.ByCategory {
		rows[i] = categoryTotalJSON{Category: ct.Category, Total: ct.Total.String()}
	}
	return totalsJSON{Grand: t.Grand.String(), ByCategory: rows}
}
