package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

// SessionService is the table/session collaborator: scanning opens a
// session, validation checks it, ending closes it. It also keeps the
// one-active-session-per-table rule.
type SessionService struct {
	db       *gorm.DB
	notifier hub.Notifier
}

func NewSessionService(db *gorm.DB, notifier hub.Notifier) *SessionService {
	return &SessionService{db: db, notifier: notifier}
}

// Scan opens a session for the table, or returns the one already active so
// a re-scan never forks a second session. An optional known customer links
// the loyalty balance.
func (s *SessionService) Scan(tableID uint, customerID *uint) (*models.QrSession, error) {
	var session models.QrSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := forUpdate(tx).First(&table, tableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("table %d not found", tableID)
			}
			return err
		}

		err := tx.Where("table_id = ? AND status = ?", tableID, models.SessionActive).First(&session).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if customerID != nil {
			var customer models.Customer
			if err := tx.First(&customer, *customerID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.NewNotFound("customer %d not found", *customerID)
				}
				return err
			}
		}

		session = models.QrSession{
			TableID:    tableID,
			CustomerID: customerID,
			Status:     models.SessionActive,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		return tx.Model(&table).Update("status", "occupied").Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(hub.RoomStaff, hub.EventStaffNotif, map[string]interface{}{
		"message":    "table scanned",
		"table_id":   tableID,
		"session_id": session.ID,
	})
	return &session, nil
}

// Validate loads a session for the client to check it is still usable.
func (s *SessionService) Validate(sessionID uint) (*models.QrSession, error) {
	var session models.QrSession
	if err := s.db.Preload("Table").First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	return &session, nil
}

// End closes a session explicitly (without settlement) and releases the
// table for cleaning.
func (s *SessionService) End(sessionID uint) (*models.QrSession, error) {
	var session models.QrSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("session %d not found", sessionID)
			}
			return err
		}
		if session.Status != models.SessionActive {
			return utils.NewConflict("session %d is not active", sessionID)
		}

		session.Status = models.SessionCompleted
		if err := tx.Save(&session).Error; err != nil {
			return err
		}

		return tx.Model(&models.Table{}).Where("id = ?", session.TableID).Update("status", "dirty").Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(session.Room(), hub.EventSessionEnded, session)
	s.notifier.Publish(hub.RoomStaff, hub.EventSessionEnded, session)
	return &session, nil
}
