/*
handlers.go - HTTP handlers for the production tracker

PURPOSE:
  Exposes farms, plots, rubber types, conversion factors, versioned plans,
  daily actuals and the reports as REST endpoints. Handles HTTP
  request/response and JSON; delegates the work to the store, the
  conversion resolver and the report package.

ERROR HANDLING:
  - 400: validation errors and invalid ids (id=0 is invalid, not missing)
  - 401: missing/invalid token (auth.go)
  - 404: targeted row does not exist
  - 409: uniqueness conflicts (username, rubber-type code, moved actuals)
  - 500: everything else, logged via zap, generic JSON body

SEE ALSO:
  - dto.go: request/response shapes
  - auth.go: token endpoints and middleware
  - server.go: router wiring
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rubberfarm/production-engine/conversion"
	"github.com/rubberfarm/production-engine/planning"
	"github.com/rubberfarm/production-engine/report"
	"github.com/rubberfarm/production-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store     *sqlite.Store
	log       *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewHandler creates a handler. A nil logger is replaced with a no-op one.
func NewHandler(store *sqlite.Store, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     store,
		log:       logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// =============================================================================
// FARMS
// =============================================================================

// ListFarms returns all farms ordered by name.
// GET /api/farms
func (h *Handler) ListFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := h.store.ListFarms(r.Context())
	if err != nil {
		h.serverError(w, "Failed to list farms", err)
		return
	}

	dtos := make([]FarmDTO, 0, len(farms))
	for _, f := range farms {
		dtos = append(dtos, farmDTO(f))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFarm creates a farm.
// POST /api/farms
func (h *Handler) CreateFarm(w http.ResponseWriter, r *http.Request) {
	var req CreateFarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	id, err := h.store.CreateFarm(r.Context(), sqlite.Farm{
		Name: req.Name, AreaHa: req.AreaHa, Province: req.Province, District: req.District,
	})
	if err != nil {
		h.serverError(w, "Failed to create farm", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Created: true, Message: "saved"})
}

// =============================================================================
// PLOTS
// =============================================================================

// ListPlots returns a farm's active plots.
// GET /api/plots?farm_id=
func (h *Handler) ListPlots(w http.ResponseWriter, r *http.Request) {
	farmID, ok := queryID(r, "farm_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "farm_id is required", nil)
		return
	}

	plots, err := h.store.ListPlots(r.Context(), farmID)
	if err != nil {
		h.serverError(w, "Failed to list plots", err)
		return
	}

	dtos := make([]PlotDTO, 0, len(plots))
	for _, p := range plots {
		dtos = append(dtos, plotDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SavePlot upserts a plot by (farm_id, code).
// POST /api/plots
func (h *Handler) SavePlot(w http.ResponseWriter, r *http.Request) {
	var req SavePlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FarmID <= 0 || req.Code == "" {
		writeError(w, http.StatusBadRequest, "farm_id and code are required", nil)
		return
	}
	if req.TappingStartDate != "" && !validDate(req.TappingStartDate) {
		writeError(w, http.StatusBadRequest, "Invalid tapping_start_date format (use YYYY-MM-DD)", nil)
		return
	}

	id, err := h.store.UpsertPlot(r.Context(), sqlite.Plot{
		FarmID: req.FarmID, Code: req.Code, PlantingYear: req.PlantingYear,
		AreaHa: req.AreaHa, Clone: req.Clone, TappingStartDate: req.TappingStartDate,
	})
	if err != nil {
		h.serverError(w, "Failed to save plot", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Message: "saved"})
}

// DeletePlot hard-deletes a plot and its plan/actual rows.
// DELETE /api/plots/{id}
func (h *Handler) DeletePlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return
	}

	err := h.store.DeletePlot(r.Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plot not found", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to delete plot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RUBBER TYPES
// =============================================================================

// ListRubberTypes returns the lookup table.
// GET /api/rubber-types
func (h *Handler) ListRubberTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListRubberTypes(r.Context())
	if err != nil {
		h.serverError(w, "Failed to list rubber types", err)
		return
	}

	dtos := make([]RubberTypeDTO, 0, len(types))
	for _, rt := range types {
		dtos = append(dtos, rubberTypeDTO(rt))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRubberType adds a lookup entry.
// POST /api/rubber-types
func (h *Handler) CreateRubberType(w http.ResponseWriter, r *http.Request) {
	var req CreateRubberTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Unit == "" {
		writeError(w, http.StatusBadRequest, "code and unit are required", nil)
		return
	}

	id, err := h.store.CreateRubberType(r.Context(), sqlite.RubberType{
		Code: req.Code, Description: req.Description, Unit: req.Unit,
	})
	if errors.Is(err, sqlite.ErrDuplicateCode) {
		writeError(w, http.StatusConflict, "Rubber type code already exists", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to create rubber type", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Created: true, Message: "saved"})
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ListConversions returns factor rows, farm-specific plus system-wide when
// a farm is given.
// GET /api/conversions?farm_id=
func (h *Handler) ListConversions(w http.ResponseWriter, r *http.Request) {
	farmID := optionalQueryID(r, "farm_id")

	rows, err := h.store.ListConversions(r.Context(), farmID)
	if err != nil {
		h.serverError(w, "Failed to list conversions", err)
		return
	}

	dtos := make([]ConversionDTO, 0, len(rows))
	for _, c := range rows {
		dtos = append(dtos, ConversionDTO{
			ID: c.ID, FarmID: c.FarmID, RubberTypeID: c.RubberTypeID,
			EffectiveFrom: c.EffectiveFrom.Format("2006-01-02"),
			FactorToDry:   c.Factor.InexactFloat64(),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveConversion upserts a factor row by (farm, rubber type, effective_from).
// POST /api/conversions
func (h *Handler) SaveConversion(w http.ResponseWriter, r *http.Request) {
	var req SaveConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RubberTypeID <= 0 || req.EffectiveFrom == "" || req.FactorToDry == nil {
		writeError(w, http.StatusBadRequest, "rubber_type_id, effective_from and factor_to_dry_ton are required", nil)
		return
	}
	effective, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from format (use YYYY-MM-DD)", err)
		return
	}

	id, created, err := h.store.UpsertConversion(r.Context(), conversion.Row{
		FarmID:        req.FarmID,
		RubberTypeID:  req.RubberTypeID,
		EffectiveFrom: effective,
		Factor:        decimal.NewFromFloat(*req.FactorToDry),
	})
	if err != nil {
		h.serverError(w, "Failed to save conversion", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Created: created, Message: "saved"})
}

// ResolveConversion answers which factor applies for a rubber type, farm
// and date. Fallback picks (future-only or cross-farm) are logged.
// GET /api/conversions/resolve?rubber_type_id=&farm_id=&date=
func (h *Handler) ResolveConversion(w http.ResponseWriter, r *http.Request) {
	rubberTypeID, ok := queryID(r, "rubber_type_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "rubber_type_id is required", nil)
		return
	}
	farmID := optionalQueryID(r, "farm_id")

	asOf := time.Now().UTC()
	dateStr := r.URL.Query().Get("date")
	if dateStr != "" {
		var err error
		if asOf, err = time.Parse("2006-01-02", dateStr); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	res, found, err := h.store.ResolveFactor(r.Context(), rubberTypeID, farmID, asOf)
	if err != nil {
		h.serverError(w, "Failed to resolve factor", err)
		return
	}

	dto := ResolvedFactorDTO{
		RubberTypeID: rubberTypeID,
		FarmID:       farmID,
		Date:         asOf.Format("2006-01-02"),
	}
	if found {
		f := res.Factor.InexactFloat64()
		dto.Factor = &f
		dto.EffectiveFrom = res.EffectiveFrom.Format("2006-01-02")
		dto.Scope = string(res.Scope)
		dto.Fallback = res.Fallback
		if res.Fallback || res.Scope == conversion.ScopeAny {
			h.log.Warn("conversion factor resolved via fallback",
				zap.Int64("rubber_type_id", rubberTypeID),
				zap.String("scope", string(res.Scope)),
				zap.Bool("future_only", res.Fallback))
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PLANS
// =============================================================================

// ListPlans returns plan rows matching the query filters.
// GET /api/plans?farm_id=&period_type=&period_key=
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter := sqlite.PlanFilter{FarmID: optionalQueryID(r, "farm_id")}

	if raw := r.URL.Query().Get("period_type"); raw != "" {
		pt, err := planning.ParsePeriodType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period_type", err)
			return
		}
		filter.PeriodType = &pt
	}
	if raw := r.URL.Query().Get("period_key"); raw != "" {
		filter.PeriodKey = &raw
	}

	rows, err := h.store.ListPlans(r.Context(), filter)
	if err != nil {
		h.serverError(w, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, 0, len(rows))
	for _, p := range rows {
		dtos = append(dtos, PlanDTO{
			ID: p.ID, FarmID: p.FarmID, PlotID: p.PlotID, RubberTypeID: p.RubberTypeID,
			PeriodType: string(p.PeriodType), PeriodKey: p.PeriodKey, Version: p.Version,
			PlannedQty: p.PlannedQty.InexactFloat64(), Note: p.Note,
			FarmName: p.FarmName, RubberType: p.RubberType,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SavePlan creates or overwrites the version-1 plan of a lineage.
// POST /api/plans
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req SavePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FarmID <= 0 || req.RubberTypeID <= 0 || req.PeriodType == "" || req.PeriodKey == "" {
		writeError(w, http.StatusBadRequest, "farm_id, rubber_type_id, period_type and period_key are required", nil)
		return
	}
	pt, err := planning.ParsePeriodType(req.PeriodType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_type", err)
		return
	}
	if err := planning.ValidateKey(pt, req.PeriodKey); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_key", err)
		return
	}

	id, created, err := h.store.UpsertPlan(r.Context(), planning.Plan{
		FarmID: req.FarmID, PlotID: req.PlotID, RubberTypeID: req.RubberTypeID,
		PeriodType: pt, PeriodKey: req.PeriodKey,
		PlannedQty: decimal.NewFromFloat(req.PlannedQty), Note: req.Note,
	})
	if err != nil {
		h.serverError(w, "Failed to save plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Created: created, Message: "saved"})
}

// UpdatePlan edits planned_qty/note of one row in place. The row's version
// is untouched; use bump-version first for an audit trail.
// PUT /api/plans/{id}
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PlannedQty == nil && req.Note == nil {
		writeError(w, http.StatusBadRequest, "No updates", nil)
		return
	}

	var qty *decimal.Decimal
	if req.PlannedQty != nil {
		d := decimal.NewFromFloat(*req.PlannedQty)
		qty = &d
	}

	err := h.store.UpdatePlan(r.Context(), id, qty, req.Note)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to update plan", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// DeletePlan hard-deletes one plan row.
// DELETE /api/plans/{id}
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return
	}

	err := h.store.DeletePlan(r.Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanHistory returns the audit trail for a period scope.
// GET /api/plans/history?farm_id=&period_type=&period_key=
func (h *Handler) PlanHistory(w http.ResponseWriter, r *http.Request) {
	ptRaw := r.URL.Query().Get("period_type")
	key := r.URL.Query().Get("period_key")
	if ptRaw == "" || key == "" {
		writeError(w, http.StatusBadRequest, "period_type and period_key are required", nil)
		return
	}
	pt, err := planning.ParsePeriodType(ptRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_type", err)
		return
	}

	rows, err := h.store.PlanHistory(r.Context(), optionalQueryID(r, "farm_id"), pt, key)
	if err != nil {
		h.serverError(w, "Failed to load plan history", err)
		return
	}

	dtos := make([]PlanHistoryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, PlanHistoryDTO{
			RubberType: row.RubberType, PlotID: row.PlotID, Version: row.Version,
			PlannedQty: row.PlannedQty.InexactFloat64(), Note: row.Note,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BumpPlanVersion copies a scope's current plans to a new version.
// POST /api/plans/bump-version
func (h *Handler) BumpPlanVersion(w http.ResponseWriter, r *http.Request) {
	var req PlanScopeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, err := planScope(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	version, copied, err := h.store.BumpPlanVersion(r.Context(), scope)
	if err != nil {
		h.serverError(w, "Failed to bump plan version", err)
		return
	}

	h.log.Info("plan version bumped",
		zap.Int64("farm_id", scope.FarmID),
		zap.String("period_key", scope.PeriodKey),
		zap.Int64("version", version),
		zap.Int("copied", copied))
	writeJSON(w, http.StatusOK, BumpVersionResponse{Version: version, Copied: copied})
}

// BulkCopyPlans copies the current plans of a source scope into another
// farm and/or period.
// POST /api/plans/bulk-copy
func (h *Handler) BulkCopyPlans(w http.ResponseWriter, r *http.Request) {
	var req BulkCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	src, err := planScope(req.Src)
	if err != nil {
		writeError(w, http.StatusBadRequest, "src: "+err.Error(), nil)
		return
	}
	dstType, err := planning.ParsePeriodType(req.Dst.PeriodType)
	if err != nil || req.Dst.FarmID <= 0 || req.Dst.PeriodKey == "" {
		writeError(w, http.StatusBadRequest, "dst: farm_id, period_type and period_key are required", nil)
		return
	}
	if err := planning.ValidateKey(dstType, req.Dst.PeriodKey); err != nil {
		writeError(w, http.StatusBadRequest, "dst: invalid period_key", err)
		return
	}

	copied, err := h.store.CopyPlans(r.Context(), src, sqlite.CopyTarget{
		FarmID:     req.Dst.FarmID,
		PeriodType: dstType,
		PeriodKey:  req.Dst.PeriodKey,
		Version:    req.Dst.Version,
	})
	if err != nil {
		h.serverError(w, "Failed to copy plans", err)
		return
	}

	writeJSON(w, http.StatusOK, BulkCopyResponse{
		Copied: copied,
		To: PlanScopeDTO{
			FarmID:     req.Dst.FarmID,
			PeriodType: string(dstType),
			PeriodKey:  req.Dst.PeriodKey,
		},
	})
}

func planScope(dto PlanScopeDTO) (sqlite.PlanScope, error) {
	if dto.FarmID <= 0 || dto.PeriodType == "" || dto.PeriodKey == "" {
		return sqlite.PlanScope{}, errors.New("farm_id, period_type and period_key are required")
	}
	pt, err := planning.ParsePeriodType(dto.PeriodType)
	if err != nil {
		return sqlite.PlanScope{}, err
	}
	if err := planning.ValidateKey(pt, dto.PeriodKey); err != nil {
		return sqlite.PlanScope{}, err
	}
	return sqlite.PlanScope{
		FarmID:       dto.FarmID,
		PeriodType:   pt,
		PeriodKey:    dto.PeriodKey,
		RubberTypeID: dto.RubberTypeID,
		PlotID:       dto.PlotID,
	}, nil
}

// =============================================================================
// ACTUALS
// =============================================================================

// ListActuals returns daily entries matching the filters, newest first.
// GET /api/actuals?farm_id=&plot_id=&rubber_type_id=&date_from=&date_to=&limit=
func (h *Handler) ListActuals(w http.ResponseWriter, r *http.Request) {
	filter := sqlite.ActualFilter{
		FarmID:       optionalQueryID(r, "farm_id"),
		PlotID:       optionalQueryID(r, "plot_id"),
		RubberTypeID: optionalQueryID(r, "rubber_type_id"),
	}
	if v := r.URL.Query().Get("date_from"); v != "" {
		filter.DateFrom = &v
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		filter.DateTo = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	actuals, err := h.store.ListActuals(r.Context(), filter)
	if err != nil {
		h.serverError(w, "Failed to list actuals", err)
		return
	}

	dtos := make([]ActualDTO, 0, len(actuals))
	for _, a := range actuals {
		dtos = append(dtos, actualDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveActual upserts one daily entry by (farm, plot, rubber type, date).
// POST /api/actuals
func (h *Handler) SaveActual(w http.ResponseWriter, r *http.Request) {
	var req SaveActualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || req.FarmID <= 0 || req.RubberTypeID <= 0 {
		writeError(w, http.StatusBadRequest, "date, farm_id and rubber_type_id are required", nil)
		return
	}
	if !validDate(req.Date) {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", nil)
		return
	}

	id, created, err := h.store.UpsertActual(r.Context(), sqlite.Actual{
		FarmID: req.FarmID, PlotID: req.PlotID, RubberTypeID: req.RubberTypeID,
		Date: req.Date, Qty: decimal.NewFromFloat(req.Qty), Note: req.Note,
	})
	if err != nil {
		h.serverError(w, "Failed to save actual", err)
		return
	}

	writeJSON(w, http.StatusCreated, SavedResponse{ID: id, Created: created, Message: "saved"})
}

// UpdateActual edits qty/note/date of one entry.
// PUT /api/actuals/{id}
func (h *Handler) UpdateActual(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return
	}

	var req UpdateActualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Qty == nil && req.Note == nil && req.Date == nil {
		writeError(w, http.StatusBadRequest, "No updates", nil)
		return
	}
	if req.Date != nil && !validDate(*req.Date) {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", nil)
		return
	}

	var qty *decimal.Decimal
	if req.Qty != nil {
		d := decimal.NewFromFloat(*req.Qty)
		qty = &d
	}

	err := h.store.UpdateActual(r.Context(), id, qty, req.Note, req.Date)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Actual not found", nil)
		return
	}
	if errors.Is(err, sqlite.ErrDuplicateEntry) {
		writeError(w, http.StatusConflict, "An entry already exists for that date", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to update actual", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// DeleteActual removes one entry.
// DELETE /api/actuals/{id}
func (h *Handler) DeleteActual(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return
	}

	err := h.store.DeleteActual(r.Context(), id)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Actual not found", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to delete actual", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTS
// =============================================================================

// Dashboard returns per-rubber-type and per-plot aggregates for one day.
// GET /api/reports/dashboard?date=&farm_id=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		var err error
		if date, err = time.Parse("2006-01-02", raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	data, err := report.Dashboard(r.Context(), h.store, date, optionalQueryID(r, "farm_id"))
	if err != nil {
		h.serverError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardDTO(data))
}

// Stats returns range sums by farm and plot.
// GET /api/reports/stats?date_from=&date_to=&farm_id=
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	dateFrom := r.URL.Query().Get("date_from")
	dateTo := r.URL.Query().Get("date_to")
	if dateFrom == "" || dateTo == "" {
		writeError(w, http.StatusBadRequest, "date_from and date_to are required", nil)
		return
	}
	if !validDate(dateFrom) || !validDate(dateTo) {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", nil)
		return
	}

	data, err := report.Stats(r.Context(), h.store, dateFrom, dateTo, optionalQueryID(r, "farm_id"))
	if err != nil {
		h.serverError(w, "Failed to build stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsDTO(data))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// pathID parses the {id} URL parameter; 0 and garbage are both invalid.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id, err == nil && id > 0
}

func optionalQueryID(r *http.Request, name string) *int64 {
	if id, ok := queryID(r, name); ok {
		return &id
	}
	return nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
