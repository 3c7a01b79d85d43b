package service

import (
	"context"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"gorm.io/gorm"
)

type TechnicianStore interface {
	Create(ctx context.Context, t *model.Technician) error
	GetByID(ctx context.Context, id uint64) (*model.Technician, error)
	GetByUsername(ctx context.Context, username string) (*model.Technician, error)
}

type TechnicianService struct {
	db *gorm.DB
}

func NewTechnicianService(db *gorm.DB) *TechnicianService {
	return &TechnicianService{db: db}
}

// Create copies the partner from the team so technicians can be filtered by partner without a join.
func (s *TechnicianService) Create(ctx context.Context, t *model.Technician) error {
	var team model.Team
	if err := s.db.WithContext(ctx).First(&team, t.TeamID).Error; err != nil {
		return mapError(err, errs.ErrTeamNotFound)
	}
	t.PartnerID = team.PartnerID
	return mapError(s.db.WithContext(ctx).Create(t).Error, errs.ErrTechnicianNotFound)
}

func (s *TechnicianService) GetByID(ctx context.Context, id uint64) (*model.Technician, error) {
	var t model.Technician
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, mapError(err, errs.ErrTechnicianNotFound)
	}
	return &t, nil
}

func (s *TechnicianService) GetByUsername(ctx context.Context, username string) (*model.Technician, error) {
	var t model.Technician
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&t).Error; err != nil {
		return nil, mapError(err, errs.ErrTechnicianNotFound)
	}
	return &t, nil
}
