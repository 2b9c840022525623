package tariffs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// MaxInvoiceMinor bounds an invoice amount: LabeledPrice.Amount is an int32 on the wire.
const MaxInvoiceMinor = math.MaxInt32

var (
	ErrInvalidAmount = errors.New("invalid donation amount")
	ErrBelowMinimum  = errors.New("donation amount below minimum")
)

// Catalog holds the fixed tier prices and the donation rules.
type Catalog struct {
	tariffs           map[Tier]Tariff
	currency          string
	period            time.Duration
	donationMinAmount float64
}

// NewCatalog creates a catalog; zero prices fall back to 300 and 3000 currency units.
func NewCatalog(currency string, period time.Duration, donationMin float64, tier1, tier2 Tariff) *Catalog {
	defaults := map[Tier]Tariff{
		Tier1: {Name: "канал 1", Title: "Подписка на канал", Label: "Подписка на канал 1", PriceMinor: 30000},
		Tier2: {Name: "канал 2", Title: "Подписка на канал", Label: "Подписка на канал 2", PriceMinor: 300000},
	}

	tariffs := make(map[Tier]Tariff, 2)
	for tier, t := range map[Tier]Tariff{Tier1: tier1, Tier2: tier2} {
		d := defaults[tier]
		t.Tier = tier
		t.Name = lo.Ternary(t.Name == "", d.Name, t.Name)
		t.Title = lo.Ternary(t.Title == "", d.Title, t.Title)
		t.Label = lo.Ternary(t.Label == "", d.Label, t.Label)
		t.PriceMinor = lo.Ternary(t.PriceMinor <= 0, d.PriceMinor, t.PriceMinor)
		tariffs[tier] = t
	}

	if period <= 0 {
		period = 30 * 24 * time.Hour
	}

	return &Catalog{
		tariffs:           tariffs,
		currency:          lo.Ternary(currency == "", "RUB", currency),
		period:            period,
		donationMinAmount: donationMin,
	}
}

func (c *Catalog) Get(t Tier) (Tariff, bool) {
	tariff, ok := c.tariffs[t]
	return tariff, ok
}

func (c *Catalog) Currency() string {
	return c.currency
}

// Period is the length of one paid subscription window.
func (c *Catalog) Period() time.Duration {
	return c.period
}

func (c *Catalog) DonationMinAmount() float64 {
	return c.donationMinAmount
}

// ParseDonationAmount converts user input into minor currency units.
// A comma is accepted as the decimal separator.
func (c *Catalog) ParseDonationAmount(input string) (int64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, errors.Wrapf(ErrInvalidAmount, "parse %q", input)
	}

	if amount < c.donationMinAmount {
		return 0, errors.Wrap(ErrBelowMinimum, fmt.Sprintf("%.2f < %.2f", amount, c.donationMinAmount))
	}

	minor := math.Round(amount * 100)
	if minor > MaxInvoiceMinor {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q exceeds invoice limit", input)
	}

	return int64(minor), nil
}
