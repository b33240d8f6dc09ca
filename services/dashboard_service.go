package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type DashboardService interface {
	GetStats(ctx context.Context, principal models.Principal) (models.DashboardStats, error)
}

type dashboardService struct {
	store repositories.Store
}

func NewDashboardService(store repositories.Store) DashboardService {
	return &dashboardService{store: store}
}

// GetStats runs the aggregate queries concurrently.
func (s *dashboardService) GetStats(ctx context.Context, principal models.Principal) (models.DashboardStats, error) {
	if !models.IsAdmin(principal) {
		return models.DashboardStats{}, fmt.Errorf("%w: admin only", ErrRoleViolation)
	}

	var stats models.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.store.Users().CountByRole(gctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		stats.UsersByRole = counts
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Teams().Count(gctx)
		if err != nil {
			return fmt.Errorf("count teams: %w", err)
		}
		stats.TeamsTotal = n
		return nil
	})
	g.Go(func() error {
		counts, err := s.store.Applications().CountByStatus(gctx)
		if err != nil {
			return fmt.Errorf("count applications: %w", err)
		}
		stats.ApplicationsByStatus = counts
		return nil
	})
	g.Go(func() error {
		total, filled, err := s.store.Professors().SlotTotals(gctx)
		if err != nil {
			return fmt.Errorf("sum slots: %w", err)
		}
		stats.TotalSlots = total
		stats.FilledSlots = filled
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.DashboardStats{}, err
	}
	return stats, nil
}
