// internal/booking/gorm.go
package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// GormStore backs the booking service with Postgres. Pair-uniqueness and the
// accept CAS are enforced in SQL so concurrent API instances stay correct.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Request(id uuid.UUID) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	if err := s.DB.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) Offer(id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := s.DB.First(&offer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func (s *GormStore) CreateRequest(req *models.ServiceRequest) error {
	// keep regenerating until the short order code is free
	for {
		var existing models.ServiceRequest
		err := s.DB.Where("order_code = ?", req.OrderCode).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return err
		}
		req.OrderCode = models.GenerateOrderCode()
	}
	return s.DB.Create(req).Error
}

func (s *GormStore) SaveRequest(req *models.ServiceRequest) error {
	return s.DB.Save(req).Error
}

func (s *GormStore) CreateOffer(offer *models.Offer) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		// lock the request row so an insert cannot race a concurrent accept
		var req models.ServiceRequest
		if err := tx.Clauses(forUpdate()).First(&req, "id = ?", offer.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.Status != models.RequestStatusOpen {
			return &ConflictError{RequestID: offer.RequestID, Reason: "request is no longer open"}
		}

		var existing []models.Offer
		err := tx.Clauses(forUpdate()).
			Where("request_id = ? AND provider_id = ? AND status = ?",
				offer.RequestID, offer.ProviderID, models.OfferStatusPending).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errActivePairOffer
		}
		return tx.Create(offer).Error
	})
}

func (s *GormStore) SaveOffer(offer *models.Offer) error {
	return s.DB.Save(offer).Error
}

func (s *GormStore) AcceptOffer(offer *models.Offer, from models.RequestStatus) (bool, error) {
	won := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ?", offer.RequestID, from).
			Updates(map[string]interface{}{
				"status":              models.RequestStatusAccepted,
				"service_provider_id": offer.ProviderID,
				"target_provider_id":  nil,
				"updated_at":          time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// lost the CAS, commit nothing
			return nil
		}
		won = true

		offer.Status = models.OfferStatusAccepted
		if err := tx.Save(offer).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Offer{}).
			Where("request_id = ? AND id != ? AND status = ?",
				offer.RequestID, offer.ID, models.OfferStatusPending).
			Updates(map[string]interface{}{
				"status":     models.OfferStatusDeclined,
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return err
		}

		var conv models.Conversation
		err = tx.Where("request_id = ?", offer.RequestID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			conv = models.Conversation{
				RequestID:     offer.RequestID,
				ClientID:      offer.ClientID,
				ProviderID:    offer.ProviderID,
				LastMessageAt: time.Now(),
			}
			return tx.Create(&conv).Error
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (s *GormStore) DeclinePendingOffers(requestID, except uuid.UUID) error {
	q := s.DB.Model(&models.Offer{}).
		Where("request_id = ? AND status = ?", requestID, models.OfferStatusPending)
	if except != uuid.Nil {
		q = q.Where("id != ?", except)
	}
	return q.Updates(map[string]interface{}{
		"status":     models.OfferStatusDeclined,
		"updated_at": time.Now(),
	}).Error
}

func (s *GormStore) EnsureConversation(requestID, clientID, providerID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("request_id = ?", requestID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		RequestID:     requestID,
		ClientID:      clientID,
		ProviderID:    providerID,
		LastMessageAt: time.Now(),
	}
	if err := s.DB.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *GormStore) StaleOfferedRequests(cutoff time.Time) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := s.DB.
		Where("status = ? AND updated_at <= ?", models.RequestStatusOffered, cutoff).
		Find(&reqs).Error
	return reqs, err
}
