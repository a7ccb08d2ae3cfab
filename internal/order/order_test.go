package order

import (
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderIDPattern = regexp.MustCompile(`^[A-Z]+-ORD-\d{8}-[A-Z0-9]{4}$`)

func TestGenerateOrderID(t *testing.T) {
	now := time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC)
	for range 200 {
		id := GenerateOrderID("", now)
		require.Regexp(t, orderIDPattern, id)
		assert.True(t, strings.HasPrefix(id, "LUXRE-ORD-20240307-"), id)
	}

	id := GenerateOrderID("SHOP", time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(id, "SHOP-ORD-20251201-"), id)
}

func TestGenerateOrderID_UsesClockLocation(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*60*60)
	// 21:00 UTC on the 9th is already the 10th in Karachi
	now := time.Date(2024, time.January, 9, 21, 0, 0, 0, time.UTC).In(karachi)
	assert.Contains(t, GenerateOrderID("", now), "-20240110-")
}

func TestGenerateOrderID_SuffixAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for range 2000 {
		for _, r := range randomSuffix(4) {
			seen[r] = true
		}
	}
	for r := range seen {
		assert.Contains(t, idAlphabet, string(r))
	}
	// 8000 draws over 36 symbols; missing one would be astronomically unlikely
	assert.Len(t, seen, len(idAlphabet))
}

func TestFormatPKR(t *testing.T) {
	assert.Equal(t, "PKR 4,500", FormatPKR(decimal.NewFromInt(4500)))
	assert.Equal(t, "PKR 1,235", FormatPKR(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "PKR 999", FormatPKR(decimal.RequireFromString("999.49")))
	assert.Equal(t, "PKR 1,250,000", FormatPKR(decimal.NewFromInt(1250000)))
	assert.Equal(t, "Rs 0", FormatRs(decimal.Zero))
	assert.Equal(t, "Rs 12,000", FormatRs(decimal.NewFromInt(12000)))
}

func testProduct() *models.Product {
	return &models.Product{ID: "p1", Name: "Silk Scarf", Price: decimal.NewFromInt(1500), Stock: 5}
}

func TestBuildMessage(t *testing.T) {
	buyer := models.BuyerFields{Name: "Ayesha", WhatsAppNumber: "0300 1234567", City: "Lahore", Address: "12 Mall Road"}
	msg := BuildMessage(testProduct(), "https://luxre.vercel.app/product/p1", 3, "LUXRE-ORD-20240307-AB12", buyer, Payment{
		Name: "JazzCash", ReceiverName: "Luxe", ReceiverNumber: "03001112222",
	})

	assert.Contains(t, msg, "Total Amount: PKR 4,500")
	assert.Contains(t, msg, "🆔 Order ID: LUXRE-ORD-20240307-AB12")
	assert.Contains(t, msg, "💰 Price: PKR 1,500")
	assert.Contains(t, msg, "📦 Quantity: 3")
	assert.Contains(t, msg, "🔗 Product Link:\nhttps://luxre.vercel.app/product/p1\n")
	assert.Contains(t, msg, "📍 Address: Lahore, 12 Mall Road")
	assert.Contains(t, msg, "📥 Receiver: Luxe (03001112222)")
	assert.True(t, strings.HasPrefix(msg, "🛒 NEW ORDER RECEIVED\n"))
	assert.True(t, strings.HasSuffix(msg, "Thank you for your order! 🙏"))
	assert.NotContains(t, msg, "Sender")
	assert.NotContains(t, msg, "Till ID")
}

func TestBuildMessage_OptionalLines(t *testing.T) {
	buyer := models.BuyerFields{Name: "A", WhatsAppNumber: "1", City: "C", Address: "D", SenderName: "Bilal", TillID: "T-99"}
	msg := BuildMessage(testProduct(), "u", 1, "X-ORD-20240101-AAAA", buyer, Payment{})

	assert.Contains(t, msg, "📤 Sender: Bilal (N/A)")
	assert.Contains(t, msg, "🏧 Till ID: T-99")
	assert.Contains(t, msg, "💳 Payment Method: N/A")
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("+92 (300) 123-4567", "Hi & bye = 50% off?\nyes")
	assert.True(t, strings.HasPrefix(link, "https://wa.me/923001234567?text="), link)
	assert.NotContains(t, link, "+")
	assert.NotContains(t, link, " ")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Hi & bye = 50% off?\nyes", u.Query().Get("text"))
}

func TestProductURL(t *testing.T) {
	assert.Equal(t, "https://luxre.vercel.app/product/abc", ProductURL("https://luxre.vercel.app/", "abc"))
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0, 5))
	assert.Equal(t, 1, ClampQuantity(-3, 5))
	assert.Equal(t, 3, ClampQuantity(3, 5))
	assert.Equal(t, 5, ClampQuantity(9, 5))
}

func TestCheckout_Place(t *testing.T) {
	settings := &models.SiteSettings{
		WhatsAppNumber: "+92 300 0000000",
		PaymentMethods: []models.PaymentMethod{{ID: "jc", Name: "JazzCash", ReceiverName: "Luxe", ReceiverNumber: "0300"}},
	}
	c := &Checkout{
		SiteURL: "https://luxre.vercel.app",
		Now:     func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) },
	}
	req := models.OrderRequest{
		ProductID:       "p1",
		Quantity:        10,
		PaymentMethodID: "jc",
		Buyer:           models.BuyerFields{Name: "A", WhatsAppNumber: "1", City: "C", Address: "D"},
	}

	placed, err := c.Place(testProduct(), settings, req)
	require.NoError(t, err)
	assert.Regexp(t, orderIDPattern, placed.OrderID)
	assert.Contains(t, placed.OrderID, "-20240502-")
	assert.Equal(t, 5, placed.Quantity)
	assert.True(t, decimal.NewFromInt(7500).Equal(placed.Total))
	assert.Contains(t, placed.Message, "Total Amount: PKR 7,500")
	assert.Contains(t, placed.Message, "Payment Method: JazzCash")
	assert.True(t, strings.HasPrefix(placed.Link, "https://wa.me/923000000000?text="))

	u, err := url.Parse(placed.Link)
	require.NoError(t, err)
	assert.Equal(t, placed.Message, u.Query().Get("text"))
}

func TestCheckout_PlaceErrors(t *testing.T) {
	settings := &models.SiteSettings{
		WhatsAppNumber: "0300",
		PaymentMethods: []models.PaymentMethod{{ID: "jc", Name: "JazzCash"}},
	}
	valid := models.OrderRequest{PaymentMethodID: "jc", Quantity: 1,
		Buyer: models.BuyerFields{Name: "A", WhatsAppNumber: "1", City: "C", Address: "D"}}
	c := &Checkout{}

	_, err := c.Place(testProduct(), &models.SiteSettings{}, valid)
	assert.ErrorIs(t, err, ErrNoRecipient)

	soldOut := testProduct()
	soldOut.Stock = 0
	_, err = c.Place(soldOut, settings, valid)
	assert.ErrorIs(t, err, ErrOutOfStock)

	badMethod := valid
	badMethod.PaymentMethodID = "cash"
	_, err = c.Place(testProduct(), settings, badMethod)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	noCity := valid
	noCity.Buyer.City = "  "
	_, err = c.Place(testProduct(), settings, noCity)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.ErrorContains(t, err, "city")
}
