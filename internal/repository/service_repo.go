package repository

import (
	"context"
	"errors"

	"salonsystem/internal/model"

	"gorm.io/gorm"
)

var ErrServiceNotFound = errors.New("服务项目不存在")

type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) Create(ctx context.Context, service *model.SalonService) error {
	return r.db.WithContext(ctx).Create(service).Error
}

func (r *ServiceRepository) GetByID(ctx context.Context, id int64) (*model.SalonService, error) {
	var service model.SalonService
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &service, nil
}

// GetByName 按名称查服务项目，不存在时返回 (nil, nil)
func (r *ServiceRepository) GetByName(ctx context.Context, name string) (*model.SalonService, error) {
	var service model.SalonService
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func (r *ServiceRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.SalonService{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrServiceNotFound
	}
	return nil
}

type ServiceListFilter struct {
	Search   string
	Category string
	IsActive *bool
}

func (r *ServiceRepository) List(ctx context.Context, filter ServiceListFilter, page, pageSize int) ([]*model.SalonService, int64, error) {
	var services []*model.SalonService
	var total int64

	query := r.db.WithContext(ctx).Model(&model.SalonService{})
	if filter.Search != "" {
		query = query.Where("name LIKE ? OR description LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&services).Error

	return services, total, err
}
