package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

const productListKey = "products:all"

// ProductCache keeps serialized product reads in Redis.
type ProductCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewProductCache(client *redis.Client, baseTTL time.Duration) *ProductCache {
	if baseTTL <= 0 {
		baseTTL = 5 * time.Minute
	}
	return &ProductCache{client: client, baseTTL: baseTTL}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *ProductCache) get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (c *ProductCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	// Jitter spreads expiry so entries written together do not all miss together.
	ttl := c.baseTTL + time.Duration(rand.Int63n(int64(c.baseTTL/5)+1))
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *ProductCache) invalidate(ctx context.Context, ids ...string) error {
	keys := []string{productListKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// CachedStore serves product reads through Redis and drops the cached entries
// on every product write. Everything else goes straight to the backing store.
type CachedStore struct {
	Store
	cache *ProductCache
	sfg   singleflight.Group
}

func NewCachedStore(s Store, cache *ProductCache) *CachedStore {
	return &CachedStore{Store: s, cache: cache}
}

func (c *CachedStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	v, err, _ := c.sfg.Do(productListKey, func() (any, error) {
		var products []models.Product
		err := c.cache.get(ctx, productListKey, &products)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("Product cache read failed", "key", productListKey, "error", err)
		}

		products, err = c.Store.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.set(ctx, productListKey, products); err != nil {
			slog.Warn("Product cache write failed", "key", productListKey, "error", err)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

func (c *CachedStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	key := productKey(id)
	v, err, _ := c.sfg.Do(key, func() (any, error) {
		var p models.Product
		err := c.cache.get(ctx, key, &p)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("Product cache read failed", "key", key, "error", err)
		}

		found, err := c.Store.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.cache.set(ctx, key, found); err != nil {
			slog.Warn("Product cache write failed", "key", key, "error", err)
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers may modify the product; hand each one its own copy.
	p := *v.(*models.Product)
	p.Images = append([]string(nil), p.Images...)
	return &p, nil
}

func (c *CachedStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := c.Store.CreateProduct(ctx, p); err != nil {
		return err
	}
	c.drop(ctx, p.ID)
	return nil
}

func (c *CachedStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := c.Store.UpdateProduct(ctx, p); err != nil {
		return err
	}
	c.drop(ctx, p.ID)
	return nil
}

func (c *CachedStore) DeleteProduct(ctx context.Context, id string) error {
	if err := c.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.drop(ctx, id)
	return nil
}

func (c *CachedStore) drop(ctx context.Context, id string) {
	if err := c.cache.invalidate(ctx, id); err != nil {
		slog.Error("Failed to invalidate product cache", "product", id, "error", err)
	}
}
