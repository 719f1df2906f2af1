package service

import (
	"context"
	"fmt"
	"strings"

	"transport-requisition/internal/model"
	"transport-requisition/internal/repository"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
)

type CreateRouteRequest struct {
	Name        string `json:"name" binding:"required"`
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type UpdateRouteRequest struct {
	Name        *string `json:"name"`
	Origin      *string `json:"origin"`
	Destination *string `json:"destination"`
}

type RouteService interface {
	CreateRoute(ctx context.Context, req CreateRouteRequest, actor Actor) (*model.Route, error)
	GetRoute(ctx context.Context, id uuid.UUID) (*model.Route, error)
	ListRoutes(ctx context.Context, page, limit int) ([]model.Route, int64, error)
	UpdateRoute(ctx context.Context, id uuid.UUID, req UpdateRouteRequest, actor Actor) (*model.Route, error)
}

type routeService struct {
	repos repository.Repositories
}

func NewRouteService(repos repository.Repositories) RouteService {
	return &routeService{repos: repos}
}

func (s *routeService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.repos.Route.GetByName(ctx, name)
	if err == nil {
		if existing.ID == self {
			return nil
		}
		return apperror.Conflict("route", "route name already exists")
	}
	if apperror.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *routeService) CreateRoute(ctx context.Context, req CreateRouteRequest, actor Actor) (*model.Route, error) {
	route := &model.Route{
		Name:        strings.TrimSpace(req.Name),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
	}
	if err := validateRoute(route); err != nil {
		return nil, err
	}

	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameFree(txCtx, route.Name, uuid.Nil); err != nil {
			return err
		}
		if err := s.repos.Route.Create(txCtx, route); err != nil {
			return fmt.Errorf("failed to create route: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionCreateRoute, route.ID.String(), route.Name, map[string]any{
			"origin":      route.Origin,
			"destination": route.Destination,
		})
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

func (s *routeService) GetRoute(ctx context.Context, id uuid.UUID) (*model.Route, error) {
	return s.repos.Route.GetByID(ctx, id)
}

func (s *routeService) ListRoutes(ctx context.Context, page, limit int) ([]model.Route, int64, error) {
	page, limit = normalizePage(page, limit)
	routes, total, err := s.repos.Route.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, total, nil
}

func (s *routeService) UpdateRoute(ctx context.Context, id uuid.UUID, req UpdateRouteRequest, actor Actor) (*model.Route, error) {
	var route *model.Route
	err := s.repos.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		route, err = s.repos.Route.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			route.Name = strings.TrimSpace(*req.Name)
			if err := s.ensureNameFree(txCtx, route.Name, route.ID); err != nil {
				return err
			}
		}
		if req.Origin != nil {
			route.Origin = strings.TrimSpace(*req.Origin)
		}
		if req.Destination != nil {
			route.Destination = strings.TrimSpace(*req.Destination)
		}
		if err := validateRoute(route); err != nil {
			return err
		}
		if err := s.repos.Route.Update(txCtx, route); err != nil {
			return fmt.Errorf("failed to update route: %w", err)
		}
		return writeAudit(txCtx, s.repos.Audit, actorRef(actor), model.ActionUpdateRoute, route.ID.String(), route.Name, map[string]any{
			"origin":      route.Origin,
			"destination": route.Destination,
		})
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

func validateRoute(route *model.Route) error {
	switch {
	case route.Name == "":
		return apperror.ValidationError{Field: "name", Msg: "must not be empty"}
	case route.Origin == "":
		return apperror.ValidationError{Field: "origin", Msg: "must not be empty"}
	case route.Destination == "":
		return apperror.ValidationError{Field: "destination", Msg: "must not be empty"}
	case strings.EqualFold(route.Origin, route.Destination):
		return apperror.ValidationError{Field: "destination", Msg: "must differ from origin"}
	}
	return nil
}
