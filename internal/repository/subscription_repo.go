package repository

import (
	"context"
	"time"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionSortFields are the columns subscription searches may order by.
var SubscriptionSortFields = map[string]bool{
	"created_at":     true,
	"start_date":     true,
	"end_date":       true,
	"monthly_charge": true,
	"status":         true,
}

// SubscriptionFilter is a conjunction of optional predicates. Date keeps
// subscriptions whose [start, end] covers it; an open end covers every date
// after the start.
type SubscriptionFilter struct {
	UserID  *uuid.UUID
	RouteID *uuid.UUID
	Status  string
	Date    *time.Time

	SortBy    string // one of SubscriptionSortFields, default created_at
	SortOrder string // asc or desc, default desc
	Offset    int
	Limit     int
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	Search(ctx context.Context, filter SubscriptionFilter) ([]model.Subscription, int64, error)
	Update(ctx context.Context, sub *model.Subscription) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(sub).Error
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription
	if err := GetDB(ctx, r.db).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription
	if err := GetDB(ctx, r.db).Preload("User").Preload("Route").First(&sub, "subscriptions.id = ?", id).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) Search(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, int64, error) {
	var subs []model.Subscription
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if f.UserID != nil {
			db = db.Where("subscriptions.user_id = ?", *f.UserID)
		}
		if f.RouteID != nil {
			db = db.Where("subscriptions.route_id = ?", *f.RouteID)
		}
		if f.Status != "" {
			db = db.Where("subscriptions.status = ?", f.Status)
		}
		if f.Date != nil {
			db = db.Where("subscriptions.start_date <= ? AND (subscriptions.end_date IS NULL OR subscriptions.end_date >= ?)", *f.Date, *f.Date)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Subscription{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !SubscriptionSortFields[sortBy] {
		sortBy = "created_at"
	}
	order := clause.OrderByColumn{
		Column: clause.Column{Table: "subscriptions", Name: sortBy},
		Desc:   f.SortOrder != "asc",
	}

	fetch := db.Preload("User").Preload("Route").Scopes(scope).Order(order)
	if f.Limit > 0 {
		fetch = fetch.Offset(f.Offset).Limit(f.Limit)
	}
	if err := fetch.Find(&subs).Error; err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(sub).Error
}

func (r *subscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Subscription{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "subscription")
	}
	return nil
}
