package store

import (
	"context"
	"testing"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupMongo(t *testing.T) *MongoStore {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	s := NewMongoStore(db)
	require.NoError(t, s.CreateIndexes(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMongo_Products(t *testing.T) {
	s := setupMongo(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	older := &models.Product{Name: "Clutch", Price: decimal.RequireFromString("1500.75"), Stock: 2, CreatedAt: base}
	newer := &models.Product{Name: "Heels", Price: decimal.NewFromInt(8000), Stock: 0, CreatedAt: base.Add(time.Hour), Images: []string{"x", "y"}}
	require.NoError(t, s.CreateProduct(ctx, older))
	require.NoError(t, s.CreateProduct(ctx, newer))

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Heels", list[0].Name)
	assert.Equal(t, []string{"x", "y"}, list[0].Images)
	assert.True(t, older.Price.Equal(list[1].Price), list[1].Price.String())

	older.Stock = 7
	require.NoError(t, s.UpdateProduct(ctx, older))
	got, err := s.GetProduct(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	stats, err := s.GetDashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &DashboardStats{TotalProducts: 2, TotalStock: 7, OutOfStock: 1}, stats)

	require.NoError(t, s.DeleteProduct(ctx, older.ID))
	_, err = s.GetProduct(ctx, older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, older.ID), ErrNotFound)
}

func TestMongo_SettingsMergeOverDefaults(t *testing.T) {
	s := setupMongo(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSiteSettings(), got)

	_, err = s.settings.InsertOne(ctx, bson.M{"_id": siteSettingsID, "site_name": "Zari"})
	require.NoError(t, err)

	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Zari", got.SiteName)
	assert.Equal(t, models.DefaultSiteSettings().FooterContent, got.FooterContent)

	got.PaymentMethods = []models.PaymentMethod{{ID: "ep", Name: "EasyPaisa", ReceiverName: "Luxe", ReceiverNumber: "0345"}}
	require.NoError(t, s.SaveSettings(ctx, got))
	saved, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, saved)
}

func TestMongo_Users(t *testing.T) {
	s := setupMongo(t)
	ctx := context.Background()

	u := &models.User{Username: "demo", Password: "hash", Role: models.RoleDemoAdmin}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Username: "demo", Password: "x"}), ErrUserExists)

	got, err := s.GetUserByUsername(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.CanViewAdmin())
	assert.False(t, got.CanManage())

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
