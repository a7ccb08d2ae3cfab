package store

import (
	"context"
	"fmt"
)

func (s *SQLiteStore) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(stock), 0),
		       COALESCE(SUM(CASE WHEN stock = 0 THEN 1 ELSE 0 END), 0)
		FROM products
	`).Scan(&stats.TotalProducts, &stats.TotalStock, &stats.OutOfStock)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}
