package tariffs

import "fmt"

// Tier is one of the two fixed subscription products.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
)

// Tiers lists every tier in sweep order.
var Tiers = []Tier{Tier1, Tier2}

func (t Tier) Valid() bool {
	return t == Tier1 || t == Tier2
}

func (t Tier) String() string {
	return fmt.Sprintf("tier_%d", int(t))
}

// Product is what an invoice sells. Its value is used as the invoice payload.
type Product string

const (
	ProductTier1    Product = "subscription_channel_1"
	ProductTier2    Product = "subscription_channel_2"
	ProductDonation Product = "donation"
)

// ParseProduct decodes an invoice payload.
func ParseProduct(payload string) (Product, bool) {
	switch p := Product(payload); p {
	case ProductTier1, ProductTier2, ProductDonation:
		return p, true
	default:
		return "", false
	}
}

// Tier returns the tier sold by p; false for donations.
func (p Product) Tier() (Tier, bool) {
	switch p {
	case ProductTier1:
		return Tier1, true
	case ProductTier2:
		return Tier2, true
	default:
		return 0, false
	}
}

func ProductFor(t Tier) Product {
	if t == Tier2 {
		return ProductTier2
	}
	return ProductTier1
}

type Tariff struct {
	Tier Tier
	// Name is the channel name used in messages, e.g. "канал 1".
	Name        string
	Title       string
	Label       string
	Description string
	PriceMinor  int64
	InviteURL   string
}

// Price returns the price in major currency units.
func (t Tariff) Price() float64 {
	return float64(t.PriceMinor) / 100
}
