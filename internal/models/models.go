package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Images      []string        `json:"images"` // first entry is the main image
	CreatedAt   time.Time       `json:"created_at"`
}

// MainImage returns the canonical image of the product or "" when it has none.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}

var ErrInvalidProduct = errors.New("invalid product")

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

type PaymentMethod struct {
	ID             string `json:"id" bson:"id"`
	Name           string `json:"name" bson:"name"`
	ReceiverName   string `json:"receiver_name" bson:"receiver_name"`
	ReceiverNumber string `json:"receiver_number" bson:"receiver_number"`
}

type DiscountPoster struct {
	Enabled       bool   `json:"enabled" bson:"enabled"`
	Description   string `json:"description" bson:"description"`
	DiscountValue string `json:"discount_value" bson:"discount_value"`
}

type SiteSettings struct {
	SiteName       string          `json:"site_name" bson:"site_name"`
	LogoURL        string          `json:"logo_url" bson:"logo_url"`
	FaviconURL     string          `json:"favicon_url" bson:"favicon_url"`
	FooterContent  string          `json:"footer_content" bson:"footer_content"`
	WhatsAppNumber string          `json:"whatsapp_number" bson:"whatsapp_number"`
	PaymentMethods []PaymentMethod `json:"payment_methods" bson:"payment_methods"`
	DiscountPoster DiscountPoster  `json:"discount_poster" bson:"discount_poster"`
}

// DefaultSiteSettings is what every page sees before an admin saved anything.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		SiteName:       "Luxe Store",
		FooterContent:  "© 2024 Luxe Store. All rights reserved.",
		PaymentMethods: []PaymentMethod{},
	}
}

// PaymentMethodByID looks up a configured payment method.
func (s *SiteSettings) PaymentMethodByID(id string) (PaymentMethod, bool) {
	for _, m := range s.PaymentMethods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// Roles mirror what the identity provider hands back for a signed-in account.
const (
	RoleAdmin     = "admin"
	RoleDemoAdmin = "demo-admin" // may look at the dashboard, never change anything
	RoleUser      = "user"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Store hashed password
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) CanViewAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleDemoAdmin
}

func (u *User) CanManage() bool {
	return u.Role == RoleAdmin
}

// ImageItem tracks one image from file selection until it is uploaded or dropped.
// IsLocal means URL is a preview handle that has to be released exactly once.
type ImageItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Uploading bool   `json:"uploading"`
	Progress  int    `json:"progress"`
	IsLocal   bool   `json:"is_local"`
}

type UploadProgress struct {
	Loaded  int64 `json:"loaded"`
	Total   int64 `json:"total"`
	Percent int   `json:"percent"`
}

type BuyerFields struct {
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	City           string `json:"city"`
	Address        string `json:"address"`
	SenderName     string `json:"sender_name,omitempty"`
	SenderNumber   string `json:"sender_number,omitempty"`
	TillID         string `json:"till_id,omitempty"`
}

// OrderRequest lives for a single checkout attempt and is never persisted.
type OrderRequest struct {
	OrderID         string      `json:"order_id"`
	ProductID       string      `json:"product_id"`
	Quantity        int         `json:"quantity"`
	Buyer           BuyerFields `json:"buyer"`
	PaymentMethodID string      `json:"payment_method_id"`
}
