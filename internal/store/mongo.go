package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// MongoStore keeps products, users and the settings document in MongoDB.
type MongoStore struct {
	db       *mongo.Database
	products *mongo.Collection
	users    *mongo.Collection
	settings *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		products: db.Collection("products"),
		users:    db.Collection("users"),
		settings: db.Collection("settings"),
	}
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := m.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product index: %w", err)
	}
	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user index: %w", err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.db.Client().Disconnect(ctx)
}

// productDoc is the stored shape of a product; prices are kept as Decimal128.
type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Description string               `bson:"description"`
	Images      []string             `bson:"images"`
	CreatedAt   time.Time            `bson:"created_at"`
}

func toProductDoc(p *models.Product) (productDoc, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDoc{}, fmt.Errorf("invalid price %s: %w", p.Price, err)
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Price:       price,
		Stock:       p.Stock,
		Description: p.Description,
		Images:      images,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (d productDoc) toProduct() (models.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return models.Product{}, fmt.Errorf("product %s has corrupt price: %w", d.ID, err)
	}
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return models.Product{
		ID:          d.ID,
		Name:        d.Name,
		Price:       price,
		Stock:       d.Stock,
		Description: d.Description,
		Images:      images,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func (m *MongoStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cur.Close(ctx)

	products := []models.Product{}
	for cur.Next(ctx) {
		var doc productDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := doc.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return products, nil
}

func (m *MongoStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDoc
	err := m.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	p, err := doc.toProduct()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *MongoStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	if _, err := m.products.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (m *MongoStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"name":        doc.Name,
		"price":       doc.Price,
		"stock":       doc.Stock,
		"description": doc.Description,
		"images":      doc.Images,
	}}
	res, err := m.products.UpdateOne(ctx, bson.M{"_id": p.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := m.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) GetSettings(ctx context.Context) (models.SiteSettings, error) {
	settings := models.DefaultSiteSettings()
	// Decoding into the defaults leaves fields the document lacks untouched.
	err := m.settings.FindOne(ctx, bson.M{"_id": siteSettingsID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultSiteSettings(), nil
	}
	if err != nil {
		return models.DefaultSiteSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.PaymentMethods == nil {
		settings.PaymentMethods = []models.PaymentMethod{}
	}
	return settings, nil
}

func (m *MongoStore) SaveSettings(ctx context.Context, settings models.SiteSettings) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.settings.ReplaceOne(ctx, bson.M{"_id": siteSettingsID}, settings, opts); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
}

func (m *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"username": username})
}

func (m *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := m.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &models.User{ID: doc.ID, Username: doc.Username, Password: doc.Password, Role: doc.Role, CreatedAt: doc.CreatedAt}, nil
}

func (m *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	prepareUser(u)
	_, err := m.users.InsertOne(ctx, userDoc{ID: u.ID, Username: u.Username, Password: u.Password, Role: u.Role, CreatedAt: u.CreatedAt})
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (m *MongoStore) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_products", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_stock", Value: bson.D{{Key: "$sum", Value: "$stock"}}},
			{Key: "out_of_stock", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$stock", 0}}}, 1, 0}},
			}}}},
		}}},
	}
	cur, err := m.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate products: %w", err)
	}
	defer cur.Close(ctx)

	stats := &DashboardStats{}
	if cur.Next(ctx) {
		if err := cur.Decode(stats); err != nil {
			return nil, fmt.Errorf("failed to decode stats: %w", err)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	users, err := m.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	stats.TotalUsers = int(users)
	return stats, nil
}
