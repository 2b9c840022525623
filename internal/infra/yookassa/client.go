package yookassa

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rvinnie/yookassa-sdk-go/yookassa"
	yoopayment "github.com/rvinnie/yookassa-sdk-go/yookassa/payment"
)

// Payment is the part of a YooKassa payment the webhook cross-check needs.
type Payment struct {
	ID        string
	Status    string
	Succeeded bool
	Amount    string
	Currency  string
}

// Client wraps the YooKassa SDK client
type Client struct {
	client *yookassa.Client
	logger *slog.Logger
}

// NewClient creates a new YooKassa client wrapper
func NewClient(shopID, secretKey string, logger *slog.Logger) *Client {
	return &Client{
		client: yookassa.NewClient(shopID, secretKey),
		logger: logger,
	}
}

// GetPayment fetches the current state of a payment from YooKassa
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paymentHandler := yookassa.NewPaymentHandler(c.client)
	result, err := paymentHandler.FindPayment(paymentID)
	if err != nil {
		c.logger.Error("Failed to get payment from YooKassa", "error", err, "payment_id", paymentID)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	payment := &Payment{
		ID:        result.ID,
		Status:    string(result.Status),
		Succeeded: result.Status == yoopayment.Succeeded,
	}
	if result.Amount != nil {
		payment.Amount = result.Amount.Value
		payment.Currency = result.Amount.Currency
	}

	c.logger.Debug("Payment retrieved from YooKassa", "payment_id", paymentID, "status", payment.Status)
	return payment, nil
}
