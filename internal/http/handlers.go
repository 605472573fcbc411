package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"riel/internal/cache"
	"riel/internal/core"
	"riel/internal/export"
)

const scopeAll = "all"

// maxBodyBytes caps JSON request bodies; entries are short free text.
const maxBodyBytes = 64 << 10

type createEntryRequest struct {
	TenantID    string `json:"tenant_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.service.Store(r.Context(), req.TenantID, req.DisplayName, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateTenant(entry.TenantID)
	writeJSON(w, http.StatusCreated, toEntryJSON(entry))
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := defaultPeriod(q.Get("period"))
	category := q.Get("category")

	var (
		entries []core.Entry
		label   string
		err     error
	)
	if q.Get("scope") == scopeAll {
		entries, label, err = s.service.QueryAllTenants(r.Context(), period, category)
	} else {
		tenantID := q.Get("tenant_id")
		if tenantID == "" {
			writeServiceError(w, core.ErrMissingTenant)
			return
		}
		entries, label, err = s.service.QueryScoped(r.Context(), tenantID, period, category)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Period  string      `json:"period"`
		Label   string      `json:"label"`
		Count   int         `json:"count"`
		Entries []entryJSON `json:"entries"`
	}{period, label, len(entries), toEntryList(entries)})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := defaultPeriod(q.Get("period"))
	category := q.Get("category")
	tenantID := q.Get("tenant_id")
	all := q.Get("scope") == scopeAll
	if !all && tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}

	// The label pins the cache entry to the current window: a value
	// computed before a period rollover misses the new label's key
	// instead of being served under it.
	_, _, label, err := s.service.ResolvePeriod(period)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cacheTenant := tenantID
	if all {
		cacheTenant = scopeAll
	}
	key := cache.Key("totals", cacheTenant, period, category, label)

	totals, cached := s.totalsCache.Get(key)
	if !cached {
		var entries []core.Entry
		if all {
			entries, _, err = s.service.QueryAllTenants(r.Context(), period, category)
		} else {
			entries, _, err = s.service.QueryScoped(r.Context(), tenantID, period, category)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		totals = s.service.Totals(entries)
		s.totalsCache.Set(key, totals)
	}

	writeJSON(w, http.StatusOK, struct {
		Period string `json:"period"`
		Label  string `json:"label"`
		totalsJSON
	}{period, label, toTotalsJSON(totals)})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := core.Period(defaultPeriod(q.Get("mode")))
	category := q.Get("category")
	tenantID := q.Get("tenant_id")
	all := q.Get("scope") == scopeAll
	if !all && tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}

	points := 0
	if v := q.Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			writeError(w, http.StatusBadRequest, "points must be an integer between 1 and 90")
			return
		}
		points = n
	}

	series, err := s.service.TrendSeries(r.Context(), tenantID, all, mode, category, points)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type pointJSON struct {
		Label string `json:"label"`
		Total string `json:"total"`
	}
	out := make([]pointJSON, len(series))
	for i, p := range series {
		out[i] = pointJSON{Label: p.Label, Total: p.Total.String()}
	}
	writeJSON(w, http.StatusOK, struct {
		Mode   string      `json:"mode"`
		Points []pointJSON `json:"points"`
	}{string(mode), out})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	if tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}

	entries, err := s.service.Search(r.Context(), tenantID, q.Get("q"), q.Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Count   int         `json:"count"`
		Entries []entryJSON `json:"entries"`
	}{len(entries), toEntryList(entries)})
}

func (s *Server) handleInspectEntry(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, _, _, found, err := s.service.Inspect(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntryJSON(entry))
}

type editEntryRequest struct {
	TenantID string `json:"tenant_id"`
	Text     string `json:"text"`
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	var req editEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := s.service.Edit(r.Context(), req.TenantID, id, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	s.invalidateTenant(req.TenantID)
	entry, _, _, found, err := s.service.Inspect(r.Context(), req.TenantID, id)
	if err != nil || !found {
		// Updated but re-read failed; confirm the edit anyway.
		writeJSON(w, http.StatusOK, struct {
			Updated bool `json:"updated"`
		}{true})
		return
	}
	writeJSON(w, http.StatusOK, toEntryJSON(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}
	idStr := r.PathValue("id")

	n, err := s.service.Delete(r.Context(), tenantID, idStr)
	if err != nil {
		if strings.Contains(err.Error(), "delete target") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	s.invalidateTenant(tenantID)
	writeJSON(w, http.StatusOK, struct {
		Deleted int `json:"deleted"`
	}{n})
}

func (s *Server) handleDeleteMostRecent(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}

	n, err := s.service.Delete(r.Context(), tenantID, "most-recent")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "no entries to delete")
		return
	}
	s.invalidateTenant(tenantID)
	writeJSON(w, http.StatusOK, struct {
		Deleted int `json:"deleted"`
	}{n})
}

// handleDeleteRange bulk-deletes a tenant's period. Without
// confirm=true it only reports what would be removed.
func (s *Server) handleDeleteRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	if tenantID == "" {
		writeServiceError(w, core.ErrMissingTenant)
		return
	}
	period := defaultPeriod(q.Get("period"))
	category := q.Get("category")

	if q.Get("confirm") != "true" {
		n, label, err := s.service.CountPeriod(r.Context(), tenantID, period, category)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			WouldDelete int    `json:"would_delete"`
			Label       string `json:"label"`
			Confirm     string `json:"confirm"`
		}{n, label, "re-send with confirm=true to delete"})
		return
	}

	n, label, err := s.service.DeleteRange(r.Context(), tenantID, period, category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateTenant(tenantID)
	writeJSON(w, http.StatusOK, struct {
		Deleted int    `json:"deleted"`
		Label   string `json:"label"`
	}{n, label})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := defaultPeriod(q.Get("period"))
	category := q.Get("category")

	var (
		entries []core.Entry
		label   string
		err     error
		scope   string
	)
	if q.Get("scope") == scopeAll {
		scope = scopeAll
		entries, label, err = s.service.QueryAllTenants(r.Context(), period, category)
	} else {
		scope = q.Get("tenant_id")
		if scope == "" {
			writeServiceError(w, core.ErrMissingTenant)
			return
		}
		entries, label, err = s.service.QueryScoped(r.Context(), scope, period, category)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.csv", scope, period, label)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteCSV(w, entries, s.loc); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", r.PathValue("id"))
	}
	return id, nil
}

func defaultPeriod(period string) string {
	if period == "" {
		return string(core.Daily)
	}
	return period
}
