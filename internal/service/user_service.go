package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// DTOs for Request validation
type RegisterRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	Designation   string `json:"designation" binding:"required"`
	ContactNumber string `json:"contactNumber" binding:"required"`
	Department    string `json:"department"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name          *string `json:"name"`
	Designation   *string `json:"designation"`
	ContactNumber *string `json:"contactNumber"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Designation    string          `json:"designation"`
	ContactNumber  string          `json:"contact_number"`
	Role           string          `json:"role"`
	Department     string          `json:"department"`
	EWalletBalance decimal.Decimal `json:"e_wallet_balance"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*UserResponse, error)
	ListUsers(ctx context.Context, filter repository.UserFilter, page, limit int) ([]UserResponse, int64, error)
}

type userService struct {
	repo   repository.UserRepository
	tokens *auth.Tokens
}

func NewUserService(repo repository.UserRepository, tokens *auth.Tokens) UserService {
	return &userService{repo: repo, tokens: tokens}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Designation:    user.Designation,
		ContactNumber:  user.ContactNumber,
		Role:           user.Role,
		Department:     user.Department,
		EWalletBalance: user.EWalletBalance,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      user.UpdatedAt.Format(time.RFC3339),
	}
}

// Register always creates a USER. Elevated roles are granted elsewhere.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, apperror.ValidationError{Field: "email", Msg: "invalid email format"}
	}
	if len(req.Password) < 6 {
		return nil, apperror.ValidationError{Field: "password", Msg: "must be at least 6 characters"}
	}

	department := req.Department
	if department == "" {
		department = model.DepartmentGeneral
	}
	if !model.ValidDepartment(department) {
		return nil, apperror.ValidationError{Field: "department", Msg: "unknown department " + department}
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("user", "email already exists")
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:           req.Name,
		Email:          email,
		PasswordHash:   string(hashedPassword),
		Designation:    req.Designation,
		ContactNumber:  req.ContactNumber,
		Role:           model.RoleUser,
		Department:     department,
		EWalletBalance: decimal.Zero,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	invalid := apperror.UnauthorizedError{Msg: "invalid email or password"}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role, user.Department)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: *mapToResponse(user)}, nil
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperror.ValidationError{Field: "name", Msg: "must not be empty"}
		}
		user.Name = *req.Name
	}
	if req.Designation != nil {
		user.Designation = *req.Designation
	}
	if req.ContactNumber != nil {
		user.ContactNumber = *req.ContactNumber
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter, page, limit int) ([]UserResponse, int64, error) {
	if filter.Role != "" && !model.ValidRole(filter.Role) {
		return nil, 0, apperror.ValidationError{Field: "role", Msg: "unknown role " + filter.Role}
	}
	page, limit = normalizePage(page, limit)

	users, total, err := s.repo.List(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}
