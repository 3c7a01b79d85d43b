package service

import (
	"context"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"gorm.io/gorm"
)

type PartnerStore interface {
	Create(ctx context.Context, p *model.Partner) error
	GetByID(ctx context.Context, id uint64) (*model.Partner, error)
	GetByUsername(ctx context.Context, username string) (*model.Partner, error)
	List(ctx context.Context) ([]model.Partner, error)
}

type PartnerService struct {
	db *gorm.DB
}

func NewPartnerService(db *gorm.DB) *PartnerService {
	return &PartnerService{db: db}
}

func (s *PartnerService) Create(ctx context.Context, p *model.Partner) error {
	return mapError(s.db.WithContext(ctx).Create(p).Error, errs.ErrPartnerNotFound)
}

func (s *PartnerService) GetByID(ctx context.Context, id uint64) (*model.Partner, error) {
	var p model.Partner
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, mapError(err, errs.ErrPartnerNotFound)
	}
	return &p, nil
}

func (s *PartnerService) GetByUsername(ctx context.Context, username string) (*model.Partner, error) {
	var p model.Partner
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&p).Error; err != nil {
		return nil, mapError(err, errs.ErrPartnerNotFound)
	}
	return &p, nil
}

func (s *PartnerService) List(ctx context.Context) ([]model.Partner, error) {
	var items []model.Partner
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
