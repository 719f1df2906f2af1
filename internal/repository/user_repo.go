package repository

import (
	"context"

	"transport-requisition/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserFilter narrows ListUsers. Search matches name, email, designation or
// contact number case-insensitively.
type UserFilter struct {
	Search      string
	Role        string
	Designation string
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// FirstByRole returns the longest-standing user holding role, restricted to
	// department unless it is empty.
	FirstByRole(ctx context.Context, role, department string) (*model.User, error)
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	// GetByIDForUpdate locks the row so the wallet balance can be read and
	// rewritten inside one transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateWalletBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) FirstByRole(ctx context.Context, role, department string) (*model.User, error) {
	var user model.User
	query := GetDB(ctx, r.db).Where("role = ?", role)
	if department != "" {
		query = query.Where("department = ?", department)
	}
	if err := query.Order("created_at ASC").First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			db = db.Where("name ILIKE ? OR email ILIKE ? OR designation ILIKE ? OR contact_number ILIKE ?", like, like, like, like)
		}
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.Designation != "" {
			db = db.Where("designation ILIKE ?", "%"+filter.Designation+"%")
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	result := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "user")
	}
	return nil
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := forUpdate(GetDB(ctx, r.db)).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) UpdateWalletBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	result := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("e_wallet_balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "user")
	}
	return nil
}
