package service

import (
	"context"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"gorm.io/gorm"
)

type TeamStore interface {
	Create(ctx context.Context, t *model.Team) error
	GetByID(ctx context.Context, id uint64) (*model.Team, error)
	List(ctx context.Context) ([]model.Team, error)
	ListByPartner(ctx context.Context, partnerID uint64) ([]model.Team, error)
}

type TeamService struct {
	db *gorm.DB
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{db: db}
}

// Create requires the owning partner to exist.
func (s *TeamService) Create(ctx context.Context, t *model.Team) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Partner{}).Where("id = ?", t.PartnerID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrPartnerNotFound
	}
	return mapError(s.db.WithContext(ctx).Create(t).Error, errs.ErrTeamNotFound)
}

func (s *TeamService) GetByID(ctx context.Context, id uint64) (*model.Team, error) {
	var t model.Team
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, mapError(err, errs.ErrTeamNotFound)
	}
	return &t, nil
}

func (s *TeamService) List(ctx context.Context) ([]model.Team, error) {
	var items []model.Team
	if err := s.db.WithContext(ctx).Order("partner_id ASC").Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *TeamService) ListByPartner(ctx context.Context, partnerID uint64) ([]model.Team, error) {
	var items []model.Team
	if err := s.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
