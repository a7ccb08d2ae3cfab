package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("username already taken")
)

type ProductStore interface {
	// ListProducts returns every product, newest first.
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// CreateProduct assigns ID and CreatedAt when they are unset.
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// SettingsStore keeps the single site settings document. Reads always return
// the defaults with whatever was saved layered on top.
type SettingsStore interface {
	GetSettings(ctx context.Context) (models.SiteSettings, error)
	SaveSettings(ctx context.Context, s models.SiteSettings) error
}

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type Store interface {
	ProductStore
	SettingsStore
	UserStore
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	Close() error
}

type DashboardStats struct {
	TotalProducts int `json:"total_products" bson:"total_products"`
	TotalStock    int `json:"total_stock" bson:"total_stock"`
	OutOfStock    int `json:"out_of_stock" bson:"out_of_stock"`
	TotalUsers    int `json:"total_users" bson:"-"`
}

// Open connects the backend selected by cfg and brings its schema up to date.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, err
		}
		slog.Info("Using SQLite store", "path", cfg.DBPath)
		return s, nil
	case "mongo":
		db, err := ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		slog.Info("Using MongoDB store", "database", cfg.MongoDB)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
