package domain

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a production run of baglets sharing farm, date, strain and substrate.
type Batch struct {
	BatchID            string    `json:"batchId"`
	FarmID             string    `json:"farmId"`
	PreparedDate       time.Time `json:"preparedDate"`
	BatchSequence      int       `json:"batchSequence"`
	StrainCode         string    `json:"strainCode"`
	SubstrateID        string    `json:"substrateId"`
	PlannedBagletCount int       `json:"plannedBagletCount"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
	IsDeleted          bool      `json:"isDeleted"`
}

// ObservedMetrics are the latest measurements on a baglet. nil means the
// field was never measured.
type ObservedMetrics struct {
	WeightG        *float64   `json:"weightG"`
	TemperatureC   *float64   `json:"temperatureC"`
	HumidityPct    *float64   `json:"humidityPct"`
	PH             *float64   `json:"ph"`
	LastObservedAt *time.Time `json:"lastObservedAt"`
}

// Baglet is a single cultivation unit.
type Baglet struct {
	BagletID          string          `json:"bagletId"`
	BatchID           string          `json:"batchId"`
	BagletSequence    int             `json:"bagletSequence"`
	CurrentStatus     Status          `json:"currentStatus"`
	StatusChangedAt   time.Time       `json:"statusChangedAt"`
	Metrics           ObservedMetrics `json:"metrics"`
	ContaminationFlag bool            `json:"contaminationFlag"`
	IsDeleted         bool            `json:"isDeleted"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// StatusLogEntry is one append-only audit record. PreviousStatus is nil
// only for the creation entry.
type StatusLogEntry struct {
	ID             uuid.UUID `json:"id"`
	BagletID       string    `json:"bagletId"`
	BatchID        string    `json:"batchId"`
	PreviousStatus *Status   `json:"previousStatus"`
	Status         Status    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	Actor          string    `json:"actor"`
	LoggedAt       time.Time `json:"loggedAt"`
}

// ContaminationFinding is one catalog-coded observation on a contaminated baglet.
type ContaminationFinding struct {
	ID         uuid.UUID `json:"id"`
	BagletID   string    `json:"bagletId"`
	BatchID    string    `json:"batchId"`
	Code       string    `json:"code"`
	Notes      string    `json:"notes"`
	RecordedBy string    `json:"recordedBy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Strain is a cultivar reference from the catalog.
type Strain struct {
	StrainCode     string `json:"strainCode"`
	StrainVendorID string `json:"strainVendorId"`
	Species        string `json:"species"`
	VendorName     string `json:"vendorName,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// ContaminationCode is a catalog entry findings refer to.
type ContaminationCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// IsConnectedWalk reports whether entries, in append order, start from
// creation and chain previous->status along graph edges.
func IsConnectedWalk(entries []StatusLogEntry) bool {
	prev := StatusNone
	for i, e := range entries {
		var from Status
		if e.PreviousStatus == nil {
			if i != 0 {
				return false
			}
			from = StatusNone
		} else {
			from = *e.PreviousStatus
		}
		if from != prev || !ValidateTransition(from, e.Status) {
			return false
		}
		prev = e.Status
	}
	return true
}
