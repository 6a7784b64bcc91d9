package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

type DraftStore interface {
	Save(ctx context.Context, d mqtmodels.Draft) error

	// ErrDraftNotFound when absent or expired
	Get(ctx context.Context, id string) (*mqtmodels.Draft, error)
	Delete(ctx context.Context, id string) error
}
