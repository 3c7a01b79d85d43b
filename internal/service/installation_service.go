package service

import (
	"context"
	"time"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"gorm.io/gorm"
)

// InstallationStore: хранилище заявок на монтаж (для подмены в тестах).
type InstallationStore interface {
	Create(ctx context.Context, i *model.Installation) error
	GetByID(ctx context.Context, id uint64) (*model.Installation, error)
	GetByServiceAppointmentID(ctx context.Context, ref string) (*model.Installation, error)
	List(ctx context.Context, filter InstallationFilter) ([]model.Installation, error)
	Update(ctx context.Context, id uint64, changes map[string]interface{}) (*model.Installation, error)
	Delete(ctx context.Context, id uint64) error
	FindOverlapping(ctx context.Context, teamID uint64, start, end time.Time, excludeID uint64) ([]model.Installation, error)
}

// InstallationFilter narrows List. Zero values are ignored.
type InstallationFilter struct {
	// PartnerID matches jobs owned by the partner and jobs not yet claimed by anyone.
	PartnerID      uint64
	TeamID         uint64
	Statuses       []model.InstallationStatus
	ExcludeStatus  model.InstallationStatus
	ScheduledOnly  bool
	ScheduledFrom  *time.Time
	ScheduledUntil *time.Time
}

type InstallationService struct {
	db *gorm.DB
}

func NewInstallationService(db *gorm.DB) *InstallationService {
	return &InstallationService{db: db}
}

func (s *InstallationService) Create(ctx context.Context, i *model.Installation) error {
	if i.Status == "" {
		i.Status = model.InstallationStatusPending
	}
	return mapError(s.db.WithContext(ctx).Create(i).Error, errs.ErrInstallationNotFound)
}

func (s *InstallationService) GetByID(ctx context.Context, id uint64) (*model.Installation, error) {
	var i model.Installation
	if err := s.db.WithContext(ctx).First(&i, id).Error; err != nil {
		return nil, mapError(err, errs.ErrInstallationNotFound)
	}
	return &i, nil
}

func (s *InstallationService) GetByServiceAppointmentID(ctx context.Context, ref string) (*model.Installation, error) {
	var i model.Installation
	if err := s.db.WithContext(ctx).Where("service_appointment_id = ?", ref).First(&i).Error; err != nil {
		return nil, mapError(err, errs.ErrInstallationNotFound)
	}
	return &i, nil
}

func (s *InstallationService) List(ctx context.Context, f InstallationFilter) ([]model.Installation, error) {
	tx := s.db.WithContext(ctx).Model(&model.Installation{})
	if f.PartnerID != 0 {
		tx = tx.Where("(partner_id = ? OR partner_id IS NULL)", f.PartnerID)
	}
	if f.TeamID != 0 {
		tx = tx.Where("team_id = ?", f.TeamID)
	}
	if len(f.Statuses) > 0 {
		tx = tx.Where("status IN ?", f.Statuses)
	}
	if f.ExcludeStatus != "" {
		tx = tx.Where("status <> ?", f.ExcludeStatus)
	}
	if f.ScheduledOnly {
		tx = tx.Where("scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL")
	}
	if f.ScheduledFrom != nil {
		tx = tx.Where("scheduled_end > ?", f.ScheduledFrom.UTC())
	}
	if f.ScheduledUntil != nil {
		tx = tx.Where("scheduled_start < ?", f.ScheduledUntil.UTC())
	}
	if f.TeamID != 0 || f.ScheduledOnly {
		tx = tx.Order("scheduled_start ASC").Order("id ASC")
	} else {
		tx = tx.Order("created_at DESC").Order("id DESC")
	}
	var items []model.Installation
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Update applies changes as a single UPDATE and returns the fresh row.
// nil values in changes clear the column.
func (s *InstallationService) Update(ctx context.Context, id uint64, changes map[string]interface{}) (*model.Installation, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Installation{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return nil, mapError(res.Error, errs.ErrInstallationNotFound)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *InstallationService) Delete(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&model.Installation{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrInstallationNotFound
	}
	return nil
}

// FindOverlapping returns the team's active jobs whose window intersects [start, end).
func (s *InstallationService) FindOverlapping(ctx context.Context, teamID uint64, start, end time.Time, excludeID uint64) ([]model.Installation, error) {
	var items []model.Installation
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Where("status IN ?", []model.InstallationStatus{model.InstallationStatusScheduled, model.InstallationStatusInProgress}).
		Where("id <> ?", excludeID).
		Where("scheduled_start < ? AND scheduled_end > ?", end.UTC(), start.UTC()).
		Order("scheduled_start ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
