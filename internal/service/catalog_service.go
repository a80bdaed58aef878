package service

import (
	"context"
	"fmt"

	"salonsystem/internal/model"
	"salonsystem/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService 服务项目目录（美甲、美睫等门店服务的增删改查）
type CatalogService struct {
	db          *gorm.DB
	serviceRepo *repository.ServiceRepository
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		db:          db,
		serviceRepo: repository.NewServiceRepository(db),
	}
}

type CreateServiceRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Duration    int             `json:"duration"`
	Category    string          `json:"category"`
}

func (s *CatalogService) CreateService(ctx context.Context, req *CreateServiceRequest) (*model.SalonService, error) {
	if req.Price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	existing, err := s.serviceRepo.GetByName(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("查询服务项目失败: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateServiceName
	}

	duration := req.Duration
	if duration <= 0 {
		duration = 60
	}

	service := &model.SalonService{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Duration:    duration,
		Category:    req.Category,
		IsActive:    true,
	}

	if err := s.serviceRepo.Create(ctx, service); err != nil {
		return nil, fmt.Errorf("创建服务项目失败: %w", err)
	}

	return service, nil
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*model.SalonService, error) {
	return s.serviceRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListServices(ctx context.Context, filter repository.ServiceListFilter, page, pageSize int) ([]*model.SalonService, int64, error) {
	return s.serviceRepo.List(ctx, filter, page, pageSize)
}

type UpdateServiceRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Duration    *int             `json:"duration"`
	Category    *string          `json:"category"`
	IsActive    *bool            `json:"is_active"`
}

func (s *CatalogService) UpdateService(ctx context.Context, id int64, req *UpdateServiceRequest) (*model.SalonService, error) {
	updates := map[string]interface{}{}

	if req.Name != nil {
		existing, err := s.serviceRepo.GetByName(ctx, *req.Name)
		if err != nil {
			return nil, fmt.Errorf("查询服务项目失败: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, ErrDuplicateServiceName
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if req.Price.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidAmount
		}
		updates["price"] = *req.Price
	}
	if req.Duration != nil {
		updates["duration"] = *req.Duration
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.serviceRepo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
	}

	return s.serviceRepo.GetByID(ctx, id)
}
