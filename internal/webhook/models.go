package webhook

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// Notification is the provider's webhook body, reduced to the fields we use.
type Notification struct {
	Event  string  `validate:"required"`
	Object Payment `validate:"required"`
}

type Payment struct {
	ID         string `validate:"required"`
	Status     string
	Amount     Amount
	CreatedAt  time.Time
	CapturedAt time.Time
	Metadata   Metadata
}

type Amount struct {
	Value    string
	Currency string
}

// Metadata is what the invoice creator attached to the payment.
type Metadata struct {
	UserID  int64
	Product string
}

// OccurredAt prefers the capture time.
func (p Payment) OccurredAt() time.Time {
	if !p.CapturedAt.IsZero() {
		return p.CapturedAt
	}
	return p.CreatedAt
}

// decodeNotification reads the webhook body. Unknown fields are skipped.
func decodeNotification(data []byte) (*Notification, error) {
	var n Notification
	d := jx.DecodeBytes(data)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "event":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "event")
			}
			n.Event = v
		case "object":
			if err := decodePayment(d, &n.Object); err != nil {
				return errors.Wrap(err, "object")
			}
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &n, nil
}

func decodePayment(d *jx.Decoder, p *Payment) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "id")
			}
			p.ID = v
		case "status":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "status")
			}
			p.Status = v
		case "amount":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "value":
					v, err := stringOrNumber(d)
					if err != nil {
						return errors.Wrap(err, "amount.value")
					}
					p.Amount.Value = v
				case "currency":
					v, err := d.Str()
					if err != nil {
						return errors.Wrap(err, "amount.currency")
					}
					p.Amount.Currency = v
				default:
					return d.Skip()
				}
				return nil
			})
		case "created_at":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "created_at")
			}
			p.CreatedAt = t
		case "captured_at":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "captured_at")
			}
			p.CapturedAt = t
		case "metadata":
			return decodeMetadata(d, &p.Metadata)
		default:
			return d.Skip()
		}
		return nil
	})
}

func decodeMetadata(d *jx.Decoder, m *Metadata) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "user_id":
			v, err := stringOrNumber(d)
			if err != nil {
				return errors.Wrap(err, "metadata.user_id")
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "metadata.user_id %q", v)
			}
			m.UserID = id
		case "product":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "metadata.product")
			}
			m.Product = v
		default:
			return d.Skip()
		}
		return nil
	})
}

// stringOrNumber accepts both "123" and 123; the provider sends strings,
// hand-written metadata often does not.
func stringOrNumber(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	if d.Next() == jx.Null {
		return time.Time{}, d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse %q", v)
	}
	return t, nil
}

// parseMinor converts a decimal amount such as "199.00" to minor units.
func parseMinor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "amount %q", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, errors.Errorf("amount %q out of range", value)
	}
	return int64(math.Round(f * 100)), nil
}
