package repository

import (
	"context"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RouteRepository interface {
	Create(ctx context.Context, route *model.Route) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Route, error)
	GetByName(ctx context.Context, name string) (*model.Route, error)
	List(ctx context.Context, offset, limit int) ([]model.Route, int64, error)
	Update(ctx context.Context, route *model.Route) error
}

type routeRepository struct {
	db *gorm.DB
}

func NewRouteRepository(db *gorm.DB) RouteRepository {
	return &routeRepository{db: db}
}

func (r *routeRepository) Create(ctx context.Context, route *model.Route) error {
	return GetDB(ctx, r.db).Create(route).Error
}

func (r *routeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Route, error) {
	var route model.Route
	if err := GetDB(ctx, r.db).First(&route, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "route")
	}
	return &route, nil
}

func (r *routeRepository) GetByName(ctx context.Context, name string) (*model.Route, error) {
	var route model.Route
	if err := GetDB(ctx, r.db).First(&route, "LOWER(name) = LOWER(?)", name).Error; err != nil {
		return nil, notFound(err, "route")
	}
	return &route, nil
}

func (r *routeRepository) List(ctx context.Context, offset, limit int) ([]model.Route, int64, error) {
	var routes []model.Route
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Route{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("name ASC").Offset(offset).Limit(limit).Find(&routes).Error; err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}

func (r *routeRepository) Update(ctx context.Context, route *model.Route) error {
	return GetDB(ctx, r.db).Save(route).Error
}
