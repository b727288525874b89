/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the REST surface, decoupled from the storage types.
  Quantities cross the wire as JSON numbers; internally everything is
  decimal.

NAMING CONVENTION:
  - *DTO: response types
  - *Request: request body types

VALIDATION:
  Done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/rubberfarm/production-engine/report"
	"github.com/rubberfarm/production-engine/store/sqlite"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// FarmDTO represents a farm in API responses.
type FarmDTO struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	AreaHa   float64 `json:"area_ha"`
	Province string  `json:"province,omitempty"`
	District string  `json:"district,omitempty"`
	Status   string  `json:"status"`
}

// CreateFarmRequest is the request to create a farm.
type CreateFarmRequest struct {
	Name     string  `json:"name"`
	AreaHa   float64 `json:"area_ha"`
	Province string  `json:"province"`
	District string  `json:"district"`
}

// PlotDTO represents a plot in API responses.
type PlotDTO struct {
	ID               int64   `json:"id"`
	FarmID           int64   `json:"farm_id"`
	Code             string  `json:"code"`
	PlantingYear     *int64  `json:"planting_year"`
	AreaHa           float64 `json:"area_ha"`
	Clone            string  `json:"clone,omitempty"`
	TappingStartDate string  `json:"tapping_start_date,omitempty"`
	Status           string  `json:"status"`
}

// SavePlotRequest is the request to create or overwrite a plot (upsert by
// farm_id + code).
type SavePlotRequest struct {
	FarmID           int64   `json:"farm_id"`
	Code             string  `json:"code"`
	PlantingYear     *int64  `json:"planting_year"`
	AreaHa           float64 `json:"area_ha"`
	Clone            string  `json:"clone"`
	TappingStartDate string  `json:"tapping_start_date"`
}

// RubberTypeDTO represents a rubber type.
type RubberTypeDTO struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit"`
}

// CreateRubberTypeRequest is the request to create a rubber type.
type CreateRubberTypeRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ConversionDTO represents one factor timeline row.
type ConversionDTO struct {
	ID            int64   `json:"id"`
	FarmID        *int64  `json:"farm_id"`
	RubberTypeID  int64   `json:"rubber_type_id"`
	EffectiveFrom string  `json:"effective_from"`
	FactorToDry   float64 `json:"factor_to_dry_ton"`
}

// SaveConversionRequest is the request to upsert a factor row.
type SaveConversionRequest struct {
	FarmID        *int64   `json:"farm_id"`
	RubberTypeID  int64    `json:"rubber_type_id"`
	EffectiveFrom string   `json:"effective_from"`
	FactorToDry   *float64 `json:"factor_to_dry_ton"`
}

// ResolvedFactorDTO is the answer to a resolve query.
type ResolvedFactorDTO struct {
	RubberTypeID  int64    `json:"rubber_type_id"`
	FarmID        *int64   `json:"farm_id"`
	Date          string   `json:"date"`
	Factor        *float64 `json:"factor"`
	EffectiveFrom string   `json:"effective_from,omitempty"`
	Scope         string   `json:"scope,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a plan row joined with display names.
type PlanDTO struct {
	ID           int64   `json:"id"`
	FarmID       int64   `json:"farm_id"`
	PlotID       *int64  `json:"plot_id"`
	RubberTypeID int64   `json:"rubber_type_id"`
	PeriodType   string  `json:"period_type"`
	PeriodKey    string  `json:"period_key"`
	Version      int64   `json:"version"`
	PlannedQty   float64 `json:"planned_qty"`
	Note         string  `json:"note,omitempty"`
	FarmName     string  `json:"farm_name"`
	RubberType   string  `json:"rubber_type"`
}

// SavePlanRequest creates or overwrites the version-1 plan of a lineage.
type SavePlanRequest struct {
	FarmID       int64   `json:"farm_id"`
	PlotID       *int64  `json:"plot_id"`
	RubberTypeID int64   `json:"rubber_type_id"`
	PeriodType   string  `json:"period_type"`
	PeriodKey    string  `json:"period_key"`
	PlannedQty   float64 `json:"planned_qty"`
	Note         string  `json:"note"`
}

// UpdatePlanRequest edits one plan row in place.
type UpdatePlanRequest struct {
	PlannedQty *float64 `json:"planned_qty"`
	Note       *string  `json:"note"`
}

// PlanHistoryDTO is one audit-trail entry.
type PlanHistoryDTO struct {
	RubberType string  `json:"rubber_type"`
	PlotID     *int64  `json:"plot_id"`
	Version    int64   `json:"version"`
	PlannedQty float64 `json:"planned_qty"`
	Note       string  `json:"note,omitempty"`
}

// PlanScopeDTO narrows a bump or copy to part of a farm+period lineage set.
type PlanScopeDTO struct {
	FarmID       int64  `json:"farm_id"`
	PeriodType   string `json:"period_type"`
	PeriodKey    string `json:"period_key"`
	RubberTypeID *int64 `json:"rubber_type_id"`
	PlotID       *int64 `json:"plot_id"`
}

// BumpVersionResponse reports the outcome of a bump.
type BumpVersionResponse struct {
	Version int64 `json:"version"`
	Copied  int   `json:"copied"`
}

// BulkCopyRequest copies a source scope's current plans to a destination.
type BulkCopyRequest struct {
	Src PlanScopeDTO `json:"src"`
	Dst struct {
		FarmID     int64  `json:"farm_id"`
		PeriodType string `json:"period_type"`
		PeriodKey  string `json:"period_key"`
		Version    int64  `json:"version"`
	} `json:"dst"`
}

// BulkCopyResponse reports the outcome of a copy.
type BulkCopyResponse struct {
	Copied int          `json:"copied"`
	To     PlanScopeDTO `json:"to"`
}

// =============================================================================
// ACTUALS
// =============================================================================

// ActualDTO represents one daily entry.
type ActualDTO struct {
	ID           int64   `json:"id"`
	FarmID       int64   `json:"farm_id"`
	PlotID       *int64  `json:"plot_id"`
	RubberTypeID int64   `json:"rubber_type_id"`
	Date         string  `json:"date"`
	Qty          float64 `json:"qty"`
	Source       string  `json:"source"`
	Note         string  `json:"note,omitempty"`
}

// SaveActualRequest upserts one daily entry.
type SaveActualRequest struct {
	Date         string  `json:"date"`
	FarmID       int64   `json:"farm_id"`
	PlotID       *int64  `json:"plot_id"`
	RubberTypeID int64   `json:"rubber_type_id"`
	Qty          float64 `json:"qty"`
	Note         string  `json:"note"`
}

// UpdateActualRequest edits one entry by id.
type UpdateActualRequest struct {
	Qty  *float64 `json:"qty"`
	Note *string  `json:"note"`
	Date *string  `json:"date"`
}

// =============================================================================
// REPORTS
// =============================================================================

// DashboardRowDTO is one per-rubber-type dashboard line.
type DashboardRowDTO struct {
	RubberType    string   `json:"rubber_type"`
	ActualToday   float64  `json:"actual_today"`
	ActualMTD     float64  `json:"actual_mtd"`
	PlanM         *float64 `json:"plan_m"`
	CompletionPct *float64 `json:"completion_pct"`
}

// DashboardPlotRowDTO is one per-plot dashboard line.
type DashboardPlotRowDTO struct {
	PlotID   int64  `json:"plot_id"`
	PlotCode string `json:"plot_code"`
	DashboardRowDTO
}

// FarmRefDTO is a farm picker entry.
type FarmRefDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DashboardDTO is the dashboard payload.
type DashboardDTO struct {
	Date  string                `json:"date"`
	Month string                `json:"ym"`
	Farms []FarmRefDTO          `json:"farms"`
	Rows  []DashboardRowDTO     `json:"rows"`
	Plots []DashboardPlotRowDTO `json:"plots"`
}

// StatsFarmRowDTO is a range sum per (farm, rubber type).
type StatsFarmRowDTO struct {
	FarmID       int64    `json:"farm_id"`
	FarmName     string   `json:"farm_name"`
	RubberTypeID int64    `json:"rubber_type_id"`
	RubberType   string   `json:"rubber_type"`
	ActualQty    float64  `json:"actual_qty"`
	DryQty       *float64 `json:"dry_qty"`
}

// StatsPlotRowDTO is a range sum per (plot, rubber type).
type StatsPlotRowDTO struct {
	PlotID       *int64   `json:"plot_id"`
	PlotCode     string   `json:"plot_code,omitempty"`
	RubberTypeID int64    `json:"rubber_type_id"`
	RubberType   string   `json:"rubber_type"`
	ActualQty    float64  `json:"actual_qty"`
	DryQty       *float64 `json:"dry_qty"`
}

// StatsDTO is the stats payload.
type StatsDTO struct {
	DateFrom string            `json:"date_from"`
	DateTo   string            `json:"date_to"`
	ByFarm   []StatsFarmRowDTO `json:"by_farm"`
	ByPlot   []StatsPlotRowDTO `json:"by_plot"`
}

// =============================================================================
// AUTH
// =============================================================================

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthResponse carries a fresh token and its user.
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SavedResponse acknowledges an upsert.
type SavedResponse struct {
	ID      int64  `json:"id"`
	Created bool   `json:"created"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func farmDTO(f sqlite.Farm) FarmDTO {
	return FarmDTO{ID: f.ID, Name: f.Name, AreaHa: f.AreaHa, Province: f.Province, District: f.District, Status: f.Status}
}

func plotDTO(p sqlite.Plot) PlotDTO {
	return PlotDTO{
		ID: p.ID, FarmID: p.FarmID, Code: p.Code, PlantingYear: p.PlantingYear,
		AreaHa: p.AreaHa, Clone: p.Clone, TappingStartDate: p.TappingStartDate, Status: p.Status,
	}
}

func rubberTypeDTO(rt sqlite.RubberType) RubberTypeDTO {
	return RubberTypeDTO{ID: rt.ID, Code: rt.Code, Description: rt.Description, Unit: rt.Unit}
}

func actualDTO(a sqlite.Actual) ActualDTO {
	return ActualDTO{
		ID: a.ID, FarmID: a.FarmID, PlotID: a.PlotID, RubberTypeID: a.RubberTypeID,
		Date: a.Date, Qty: a.Qty.InexactFloat64(), Source: a.Source, Note: a.Note,
	}
}

func dashboardDTO(d report.DashboardData) DashboardDTO {
	out := DashboardDTO{
		Date:  d.Date,
		Month: d.Month,
		Farms: make([]FarmRefDTO, 0, len(d.Farms)),
		Rows:  make([]DashboardRowDTO, 0, len(d.Rows)),
		Plots: make([]DashboardPlotRowDTO, 0, len(d.Plots)),
	}
	for _, f := range d.Farms {
		out.Farms = append(out.Farms, FarmRefDTO{ID: f.ID, Name: f.Name})
	}
	for _, r := range d.Rows {
		out.Rows = append(out.Rows, DashboardRowDTO{
			RubberType:    r.RubberType,
			ActualToday:   r.ActualToday.InexactFloat64(),
			ActualMTD:     r.ActualMTD.InexactFloat64(),
			PlanM:         decimalPtrToFloat(r.PlanM),
			CompletionPct: r.CompletionPct,
		})
	}
	for _, r := range d.Plots {
		out.Plots = append(out.Plots, DashboardPlotRowDTO{
			PlotID:   r.PlotID,
			PlotCode: r.PlotCode,
			DashboardRowDTO: DashboardRowDTO{
				RubberType:    r.RubberType,
				ActualToday:   r.ActualToday.InexactFloat64(),
				ActualMTD:     r.ActualMTD.InexactFloat64(),
				PlanM:         decimalPtrToFloat(r.PlanM),
				CompletionPct: r.CompletionPct,
			},
		})
	}
	return out
}

func statsDTO(s report.StatsData) StatsDTO {
	out := StatsDTO{
		DateFrom: s.DateFrom,
		DateTo:   s.DateTo,
		ByFarm:   make([]StatsFarmRowDTO, 0, len(s.ByFarm)),
		ByPlot:   make([]StatsPlotRowDTO, 0, len(s.ByPlot)),
	}
	for _, r := range s.ByFarm {
		out.ByFarm = append(out.ByFarm, StatsFarmRowDTO{
			FarmID: r.FarmID, FarmName: r.FarmName,
			RubberTypeID: r.RubberTypeID, RubberType: r.RubberType,
			ActualQty: r.Qty.InexactFloat64(), DryQty: decimalPtrToFloat(r.DryQty),
		})
	}
	for _, r := range s.ByPlot {
		out.ByPlot = append(out.ByPlot, StatsPlotRowDTO{
			PlotID: r.PlotID, PlotCode: r.PlotCode,
			RubberTypeID: r.RubberTypeID, RubberType: r.RubberType,
			ActualQty: r.Qty.InexactFloat64(), DryQty: decimalPtrToFloat(r.DryQty),
		})
	}
	return out
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
