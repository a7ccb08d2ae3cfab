package order

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrOutOfStock   = errors.New("product is out of stock")
	ErrNoRecipient  = errors.New("store has no whatsapp number configured")
)

// Payment is what the buyer picked at checkout, resolved against the site settings.
type Payment struct {
	Name           string
	ReceiverName   string
	ReceiverNumber string
}

// BuildMessage renders the order text that is sent to the store's WhatsApp number.
// Sender and till lines only appear when the buyer filled them in.
func BuildMessage(p *models.Product, productURL string, quantity int, orderID string, buyer models.BuyerFields, pay Payment) string {
	total := p.Price.Mul(decimal.NewFromInt(int64(quantity)))
	name := pay.Name
	if name == "" {
		name = "N/A"
	}

	var b strings.Builder
	b.WriteString("🛒 NEW ORDER RECEIVED\n\n")
	fmt.Fprintf(&b, "🆔 Order ID: %s\n\n", orderID)
	fmt.Fprintf(&b, "📦 Product: %s\n", p.Name)
	fmt.Fprintf(&b, "🔗 Product Link:\n%s\n\n", productURL)
	fmt.Fprintf(&b, "💰 Price: %s\n", FormatPKR(p.Price))
	fmt.Fprintf(&b, "📦 Quantity: %d\n", quantity)
	fmt.Fprintf(&b, "📥 Total Amount: %s\n\n", FormatPKR(total))
	fmt.Fprintf(&b, "👤 Customer: %s\n", buyer.Name)
	fmt.Fprintf(&b, "📞 WhatsApp: %s\n", buyer.WhatsAppNumber)
	fmt.Fprintf(&b, "📍 Address: %s, %s\n\n", buyer.City, buyer.Address)
	fmt.Fprintf(&b, "💳 Payment Method: %s\n", name)
	fmt.Fprintf(&b, "📥 Receiver: %s (%s)\n", pay.ReceiverName, pay.ReceiverNumber)
	if buyer.SenderName != "" {
		sender := buyer.SenderNumber
		if sender == "" {
			sender = "N/A"
		}
		fmt.Fprintf(&b, "📤 Sender: %s (%s)\n", buyer.SenderName, sender)
	}
	if buyer.TillID != "" {
		fmt.Fprintf(&b, "🏧 Till ID: %s\n", buyer.TillID)
	}
	b.WriteString("\nThank you for your order! 🙏")
	return b.String()
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// WhatsAppLink builds the deep link that opens a chat with number prefilled with text.
func WhatsAppLink(number, text string) string {
	digits := nonDigits.ReplaceAllString(number, "")
	// QueryEscape turns spaces into '+', which chat apps show literally.
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + encoded
}

// ProductURL is the canonical detail page of a product on the public site.
func ProductURL(siteURL, productID string) string {
	return strings.TrimRight(siteURL, "/") + "/product/" + url.PathEscape(productID)
}

// ClampQuantity keeps a requested quantity within 1..stock.
func ClampQuantity(q, stock int) int {
	return max(1, min(q, stock))
}

// Checkout turns a buyer's form into the order message and the link handing it off.
type Checkout struct {
	Prefix  string
	SiteURL string
	Now     func() time.Time
}

type Placed struct {
	OrderID  string          `json:"order_id"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	Message  string          `json:"message"`
	Link     string          `json:"link"`
}

func (c *Checkout) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Place validates the request against the product and the site settings.
// Nothing is stored; the result only exists to be handed to the buyer.
func (c *Checkout) Place(p *models.Product, settings *models.SiteSettings, req models.OrderRequest) (*Placed, error) {
	if settings.WhatsAppNumber == "" || nonDigits.ReplaceAllString(settings.WhatsAppNumber, "") == "" {
		return nil, ErrNoRecipient
	}
	if !p.InStock() {
		return nil, ErrOutOfStock
	}
	if err := ValidateBuyer(req.Buyer); err != nil {
		return nil, err
	}
	method, ok := settings.PaymentMethodByID(req.PaymentMethodID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidOrder, req.PaymentMethodID)
	}

	qty := ClampQuantity(req.Quantity, p.Stock)
	id := GenerateOrderID(c.Prefix, c.now())
	msg := BuildMessage(p, ProductURL(c.SiteURL, p.ID), qty, id, req.Buyer, Payment{
		Name:           method.Name,
		ReceiverName:   method.ReceiverName,
		ReceiverNumber: method.ReceiverNumber,
	})
	return &Placed{
		OrderID:  id,
		Quantity: qty,
		Total:    p.Price.Mul(decimal.NewFromInt(int64(qty))),
		Message:  msg,
		Link:     WhatsAppLink(settings.WhatsAppNumber, msg),
	}, nil
}

// ValidateBuyer checks the fields the checkout form marks as required.
func ValidateBuyer(b models.BuyerFields) error {
	var missing []string
	if strings.TrimSpace(b.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(b.WhatsAppNumber) == "" {
		missing = append(missing, "whatsapp_number")
	}
	if strings.TrimSpace(b.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(b.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidOrder, strings.Join(missing, ", "))
	}
	return nil
}
