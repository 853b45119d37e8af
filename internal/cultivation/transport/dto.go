// Package transport holds the JSON request and response shapes of the
// cultivation HTTP API.
package transport

import (
	"time"

	"cultivation_backend/internal/cultivation/domain"
)

// DateLayout is the wire format of prepared dates.
const DateLayout = "2006-01-02"

// Batches

type ProvisionBatchRequest struct {
	FarmID       string `json:"farmId" validate:"omitempty,farmid"`
	PreparedDate string `json:"preparedDate" validate:"omitempty,datetime=2006-01-02"`
	StrainCode   string `json:"strainCode" validate:"required,catalogcode"`
	SubstrateID  string `json:"substrateId" validate:"required,catalogcode"`
	BagletCount  int    `json:"bagletCount" validate:"required,min=1"`
}

type ProvisionBatchResponse struct {
	BatchID        string                 `json:"batchId"`
	FarmID         string                 `json:"farmId"`
	PreparedDate   string                 `json:"preparedDate"`
	BatchSequence  int                    `json:"batchSequence"`
	BagletIDs      []string               `json:"bagletIds"`
	PerUnitRecipe  domain.SubstrateRecipe `json:"perUnitRecipe"`
	PerBatchRecipe domain.SubstrateRecipe `json:"perBatchRecipe"`
}

type ListBatchesRequest struct {
	FarmID       string `form:"farmId" validate:"omitempty,farmid"`
	PreparedDate string `form:"preparedDate" validate:"omitempty,datetime=2006-01-02"`
	Page         int    `form:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type BatchResponse struct {
	BatchID            string    `json:"batchId"`
	FarmID             string    `json:"farmId"`
	PreparedDate       string    `json:"preparedDate"`
	BatchSequence      int       `json:"batchSequence"`
	StrainCode         string    `json:"strainCode"`
	SubstrateID        string    `json:"substrateId"`
	PlannedBagletCount int       `json:"plannedBagletCount"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
}

type BatchDetailResponse struct {
	BatchResponse
	StatusCounts  map[string]int `json:"statusCounts"`
	DerivedStatus string         `json:"derivedStatus"`
}

type BatchListResponse struct {
	Items      []BatchResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

type StatusCountsResponse struct {
	BatchID       string         `json:"batchId"`
	Counts        map[string]int `json:"counts"`
	Total         int            `json:"total"`
	DerivedStatus string         `json:"derivedStatus"`
}

type SoftDeleteBatchResponse struct {
	BatchID        string `json:"batchId"`
	BagletsFlagged int    `json:"bagletsFlagged"`
}

// Transitions

type AvailableTransitionsResponse struct {
	Status domain.Status   `json:"status"`
	Next   []domain.Status `json:"next"`
}

type TransitionBagletRequest struct {
	ExpectedStatus *domain.Status `json:"expectedStatus" validate:"required"`
	NewStatus      domain.Status  `json:"newStatus" validate:"baglet_status"`
	Notes          string         `json:"notes" validate:"max=1000"`
}

type TransitionBagletResponse struct {
	BagletID       string        `json:"bagletId"`
	BatchID        string        `json:"batchId"`
	PreviousStatus domain.Status `json:"previousStatus"`
	NewStatus      domain.Status `json:"newStatus"`
}

type BulkTransitionRequest struct {
	FromStatus domain.Status `json:"fromStatus" validate:"baglet_status"`
	ToStatus   domain.Status `json:"toStatus" validate:"baglet_status"`
	Notes      string        `json:"notes" validate:"max=1000"`
}

type BulkTransitionResponse struct {
	BatchID      string   `json:"batchId"`
	UpdatedCount int      `json:"updatedCount"`
	BagletIDs    []string `json:"bagletIds"`
}

// Metrics

type MetricsPayload struct {
	WeightG      *float64 `json:"weightG" validate:"omitempty,gte=0,lte=999999999.999"`
	TemperatureC *float64 `json:"temperatureC" validate:"omitempty,gte=-50,lte=100"`
	HumidityPct  *float64 `json:"humidityPct" validate:"omitempty,gte=0,lte=100"`
	PH           *float64 `json:"ph" validate:"omitempty,gte=0,lte=14"`
}

// Partial converts the payload into a metrics patch.
func (p MetricsPayload) Partial() domain.PartialMetrics {
	return domain.PartialMetrics{
		WeightG:      p.WeightG,
		TemperatureC: p.TemperatureC,
		HumidityPct:  p.HumidityPct,
		PH:           p.PH,
	}
}

type PrepareBagletRequest struct {
	Metrics MetricsPayload `json:"metrics"`
	Notes   string         `json:"notes" validate:"max=1000"`
}

// Findings

type FindingRequest struct {
	Code  string `json:"code" validate:"required,max=32"`
	Notes string `json:"notes" validate:"required,max=2000"`
}

type RecordFindingsRequest struct {
	Findings []FindingRequest `json:"findings" validate:"required,min=1,max=20,dive"`
}

type RecordFindingsResponse struct {
	BagletID     string                        `json:"bagletId"`
	Status       domain.Status                 `json:"status"`
	Transitioned bool                          `json:"transitioned"`
	Findings     []domain.ContaminationFinding `json:"findings"`
}

// NewBatchResponse renders a batch for the wire.
func NewBatchResponse(b domain.Batch) BatchResponse {
	return BatchResponse{
		BatchID:            b.BatchID,
		FarmID:             b.FarmID,
		PreparedDate:       b.PreparedDate.Format(DateLayout),
		BatchSequence:      b.BatchSequence,
		StrainCode:         b.StrainCode,
		SubstrateID:        b.SubstrateID,
		PlannedBagletCount: b.PlannedBagletCount,
		CreatedBy:          b.CreatedBy,
		CreatedAt:          b.CreatedAt,
	}
}
