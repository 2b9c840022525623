package subscribers

import "context"

type (
	Storage interface {
		UpsertIdentity(ctx context.Context, identity Identity) error
		SetPhone(ctx context.Context, id int64, phone string) error
		ListSubscribers(ctx context.Context, criteria ListCriteria) ([]*Subscriber, error)
	}
)
