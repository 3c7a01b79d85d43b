package service

import (
	"context"
	"errors"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingStore holds operator-managed runtime settings.
type SettingStore interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Value(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, description *string) (*model.Setting, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]model.Setting, error)
}

type SettingService struct {
	db *gorm.DB
}

func NewSettingService(db *gorm.DB) *SettingService {
	return &SettingService{db: db}
}

func (s *SettingService) Get(ctx context.Context, key string) (*model.Setting, error) {
	var st model.Setting
	if err := s.db.WithContext(ctx).Where("config_key = ?", key).First(&st).Error; err != nil {
		return nil, mapError(err, errs.ErrSettingNotFound)
	}
	return &st, nil
}

// Value returns "" without error when the key is unset.
func (s *SettingService) Value(ctx context.Context, key string) (string, error) {
	st, err := s.Get(ctx, key)
	if errors.Is(err, errs.ErrSettingNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return st.Value, nil
}

// Set upserts key. A nil description keeps the stored one.
func (s *SettingService) Set(ctx context.Context, key, value string, description *string) (*model.Setting, error) {
	if key == "" {
		return nil, errs.Validation("setting key is required")
	}
	st := model.Setting{Key: key, Value: value, Description: description}
	cols := []string{"config_value", "updated_at"}
	if description != nil {
		cols = append(cols, "description")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(&st).Error
	if err != nil {
		return nil, mapError(err, errs.ErrSettingNotFound)
	}
	return s.Get(ctx, key)
}

func (s *SettingService) Delete(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Where("config_key = ?", key).Delete(&model.Setting{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSettingNotFound
	}
	return nil
}

func (s *SettingService) List(ctx context.Context) ([]model.Setting, error) {
	var items []model.Setting
	if err := s.db.WithContext(ctx).Order("config_key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
