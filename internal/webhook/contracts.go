package webhook

import (
	"context"

	"chanpay-bot/internal/infra/yookassa"
	"chanpay-bot/internal/stories/settlement"
)

type settler interface {
	Settle(ctx context.Context, ev settlement.Event) (*settlement.Result, error)
}

type paymentVerifier interface {
	GetPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error)
}
