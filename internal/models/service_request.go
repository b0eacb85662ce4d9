// internal/models/service_request.go
package models

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "open"      // visible to providers
	RequestStatusOffered   RequestStatus = "offered"   // targeted offer pending response
	RequestStatusAccepted  RequestStatus = "accepted"  // provider assigned, conversation open
	RequestStatusWorking   RequestStatus = "working"   // provider started work
	RequestStatusCompleted RequestStatus = "completed" // terminal
	RequestStatusCancelled RequestStatus = "cancelled" // terminal
)

// Terminal reports whether a request can no longer change state.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

type ServiceRequest struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderCode string    `gorm:"unique;size:10" json:"order_code"` // e.g. L9POKTVJ

	RequesterID uuid.UUID `gorm:"type:uuid;index;not null" json:"requester_id"`

	TypeOfWork  string `gorm:"type:varchar(200);not null" json:"type_of_work"`
	Description string `gorm:"type:text" json:"description"`

	// Either a single Budget or a BudgetMin/BudgetMax range; base currency unit.
	Budget    *int64 `json:"budget,omitempty"`
	BudgetMin *int64 `json:"budget_min,omitempty"`
	BudgetMax *int64 `json:"budget_max,omitempty"`

	City string   `gorm:"type:varchar(120)" json:"city"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`

	PreferredDate *time.Time `json:"preferred_date,omitempty"`

	Status RequestStatus `gorm:"type:varchar(20);default:'open';index" json:"status"`

	// TargetProviderID is set while a directed offer is pending; cleared on
	// accept/decline. ServiceProviderID is set once an offer is accepted.
	TargetProviderID  *uuid.UUID `gorm:"type:uuid;index" json:"target_provider_id,omitempty"`
	ServiceProviderID *uuid.UUID `gorm:"type:uuid;index" json:"service_provider_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Requester       *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	ServiceProvider *User `gorm:"foreignKey:ServiceProviderID" json:"service_provider,omitempty"`
}

// BudgetPoint collapses the budget fields to a single comparable value:
// the explicit budget if set, otherwise the midpoint of the range.
func (r *ServiceRequest) BudgetPoint() *int64 {
	if r.Budget != nil {
		return r.Budget
	}
	if r.BudgetMin != nil && r.BudgetMax != nil {
		mid := (*r.BudgetMin + *r.BudgetMax) / 2
		return &mid
	}
	if r.BudgetMin != nil {
		return r.BudgetMin
	}
	return r.BudgetMax
}

// BudgetContains reports whether amount falls inside the request's budget
// range. A single budget acts as the upper bound with no lower bound.
func (r *ServiceRequest) BudgetContains(amount int64) bool {
	if r.BudgetMin != nil && amount < *r.BudgetMin {
		return false
	}
	if r.BudgetMax != nil && amount > *r.BudgetMax {
		return false
	}
	if r.Budget != nil && r.BudgetMin == nil && r.BudgetMax == nil && amount > *r.Budget {
		return false
	}
	return true
}

// GenerateOrderCode generates a random alphanumeric code
func GenerateOrderCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
