// internal/models/offer.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusCancelled OfferStatus = "cancelled"
)

func (s OfferStatus) Terminal() bool {
	return s != OfferStatusPending
}

type OfferDirection string

const (
	// DirectionOffered: a client offered the request to a specific provider.
	DirectionOffered OfferDirection = "offered"
	// DirectionApplied: a provider applied to an open request.
	DirectionApplied OfferDirection = "applied"
)

// Offer is a directed proposal linking one ServiceRequest to one counterpart.
type Offer struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;index;not null" json:"request_id"`

	ClientID   uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null" json:"provider_id"`

	Direction OfferDirection `gorm:"type:varchar(20);not null" json:"direction"`

	// CommissionFee is the provider's proposed fee on an application; must lie
	// within the request's budget range when set.
	CommissionFee *int64 `json:"commission_fee,omitempty"`

	Message string `gorm:"type:text" json:"message"`

	Status OfferStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Request  *ServiceRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	Client   *User           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Provider *User           `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}
