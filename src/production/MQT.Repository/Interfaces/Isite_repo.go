package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

type SiteRepository interface {
	// Read site, nil when absent
	GetSite(ctx context.Context, siteName string) (*mqtmodels.Site, error)

	// Create site, ErrDuplicateSite if the name is taken
	CreateSite(ctx context.Context, site mqtmodels.Site) error

	// Replace the device list if the stored version still equals expectedVersion.
	// Returns the saved site or ErrVersionConflict.
	ReplaceDevices(ctx context.Context, siteName string, expectedVersion int, devices []mqtmodels.Device) (*mqtmodels.Site, error)
}
