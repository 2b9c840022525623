package legacyimport

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chanpay-bot/internal/stories/tariffs"
)

// LegacyUser is one row of the old single-table users database.
type LegacyUser struct {
	ID           int64          `db:"id"`
	Username     sql.NullString `db:"username"`
	FullName     sql.NullString `db:"full_name"`
	Phone        sql.NullString `db:"phone"`
	PaidChannel1 sql.NullInt64  `db:"is_paid_channel_1"`
	PaidChannel2 sql.NullInt64  `db:"is_paid_channel_2"`
	PaymentDate1 sql.NullString `db:"payment_date_channel_1"`
	PaymentDate2 sql.NullString `db:"payment_date_channel_2"`
	EndDate1     sql.NullString `db:"subscription_end_date_channel_1"`
	EndDate2     sql.NullString `db:"subscription_end_date_channel_2"`
}

type legacyTier struct {
	active    bool
	paidAt    string
	expiresAt string
}

func (u LegacyUser) tier(t tariffs.Tier) legacyTier {
	if t == tariffs.Tier2 {
		return legacyTier{active: u.PaidChannel2.Int64 == 1, paidAt: u.PaymentDate2.String, expiresAt: u.EndDate2.String}
	}
	return legacyTier{active: u.PaidChannel1.Int64 == 1, paidAt: u.PaymentDate1.String, expiresAt: u.EndDate1.String}
}

// Stats - итог импорта
type Stats struct {
	Imported int
	Skipped  int
	Errors   int
	// Tiers counts tier records carried over, active or not.
	Tiers int
	// Kept counts tiers left alone because the store already had a later expiry.
	Kept int
}

func (s Stats) String() string {
	return fmt.Sprintf("imported=%d skipped=%d errors=%d tiers=%d kept=%d", s.Imported, s.Skipped, s.Errors, s.Tiers, s.Kept)
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// parseDate reads the timestamps the old program wrote in server local time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}

func nonEmpty(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := strings.TrimSpace(v.String)
	if s == "" {
		return nil
	}
	return &s
}
