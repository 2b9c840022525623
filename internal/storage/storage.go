package storage

import (
	"fmt"
	"reflect"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"chanpay-bot/internal/stories/tariffs"
)

type storageImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *storageImpl {
	return &storageImpl{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Fields возвращает список всех полей структуры, которые есть в БД.
func fields(data any) string {
	var s string
	r := reflect.TypeOf(data)
	for i := 0; i < r.NumField(); i++ {
		tag := r.Field(i).Tag.Get("db")
		if tag != "" {
			s += tag + ","
		}
	}
	return s[:len(s)-1]
}

// tierColumns maps a tier onto its column triple in the users table.
type tierColumns struct {
	active        string
	lastPaymentAt string
	expiresAt     string
}

func columnsFor(t tariffs.Tier) (tierColumns, error) {
	if !t.Valid() {
		return tierColumns{}, fmt.Errorf("unknown tier %d", int(t))
	}
	prefix := fmt.Sprintf("tier%d_", int(t))
	return tierColumns{
		active:        prefix + "active",
		lastPaymentAt: prefix + "last_payment_at",
		expiresAt:     prefix + "expires_at",
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
