package aggregation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// EventLookup finds the newest event of a device module
type EventLookup interface {
	QueryLatestByDeviceModule(ctx context.Context, deviceID string, moduleID int) (*mqtmodels.DeviceEvent, error)
}

// Options tune the per-site fan-out
type Options struct {
	Concurrency   int
	LookupTimeout time.Duration
}

// Service joins a site's devices with their newest events
type Service struct {
	sites  interfaces.SiteRepository
	events EventLookup
	opts   Options
	log    *logger.Logger
}

// NewService creates a new aggregation service
func NewService(sites interfaces.SiteRepository, events EventLookup, opts Options, log *logger.Logger) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 3 * time.Second
	}
	return &Service{
		sites:  sites,
		events: events,
		opts:   opts,
		log:    log.WithComponent("aggregation"),
	}
}

// DevicesWithLatestEvents returns one entry per registered device, in
// registration order. A device whose lookup fails gets a nil event.
func (s *Service) DevicesWithLatestEvents(ctx context.Context, siteName string) ([]mqtmodels.DeviceLatestEvent, error) {
	if strings.TrimSpace(siteName) == "" {
		return nil, apperrors.InvalidRequest(apperrors.CodeMissingSiteName, "Missing required parameter: siteName")
	}

	log := s.log.WithSite(siteName)

	site, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		log.ErrorWithError(err, "failed to load site")
		return nil, apperrors.Internal("Error fetching data", err)
	}
	if site == nil {
		return nil, apperrors.NotFound(apperrors.CodeSiteNotFound, fmt.Sprintf("Site with name %s not found", siteName))
	}
	if len(site.Devices) == 0 {
		return nil, apperrors.NotFound(apperrors.CodeNoDevices, "No devices found for this site")
	}

	start := time.Now()
	results := make([]mqtmodels.DeviceLatestEvent, len(site.Devices))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, device := range site.Devices {
		i, device := i, device
		results[i] = mqtmodels.DeviceLatestEvent{DeviceID: device.DeviceID, ModuleID: device.ModuleID}
		g.Go(func() error {
			results[i].LatestEvent = s.lookup(ctx, log, device)
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveAggregation(time.Since(start))
	return results, nil
}

func (s *Service) lookup(ctx context.Context, log *logger.Logger, device mqtmodels.Device) *mqtmodels.DeviceEvent {
	moduleID, err := strconv.Atoi(strings.TrimSpace(device.ModuleID))
	if err != nil {
		metrics.IncLookup(metrics.LookupInvalid)
		log.WithDevice(device.DeviceID, device.ModuleID).Warn("module_id is not an integer, skipping lookup")
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	event, err := s.events.QueryLatestByDeviceModule(lookupCtx, device.DeviceID, moduleID)
	if err != nil {
		metrics.IncLookup(metrics.LookupFailed)
		log.WithDevice(device.DeviceID, device.ModuleID).ErrorWithError(err, "latest event lookup failed")
		return nil
	}
	if event == nil {
		metrics.IncLookup(metrics.LookupAbsent)
		return nil
	}
	metrics.IncLookup(metrics.LookupFound)
	return event
}
