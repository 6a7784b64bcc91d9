package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// Service manages sites and their registered devices
type Service struct {
	sites  interfaces.SiteRepository
	locker interfaces.SiteLocker
	log    *logger.Logger
}

// NewService creates a new registry service
func NewService(sites interfaces.SiteRepository, locker interfaces.SiteLocker, log *logger.Logger) *Service {
	return &Service{
		sites:  sites,
		locker: locker,
		log:    log.WithComponent("registry"),
	}
}

// GetSite retrieves a site by name
func (s *Service) GetSite(ctx context.Context, siteName string) (*mqtmodels.Site, error) {
	site, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		s.log.WithSite(siteName).ErrorWithError(err, "failed to load site")
		return nil, apperrors.Internal("Error fetching site", err)
	}
	if site == nil {
		return nil, apperrors.NotFound(apperrors.CodeSiteNotFound, "Site not found")
	}
	return site, nil
}

// GetDevice retrieves one device of a site
func (s *Service) GetDevice(ctx context.Context, siteName, deviceID string) (*mqtmodels.Device, error) {
	site, err := s.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	device, ok := site.FindDevice(deviceID)
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeDeviceNotFound, "Device not found")
	}
	return device, nil
}

// UpsertSite creates the site with devices, or reconciles devices into the
// existing site. created reports which of the two happened.
func (s *Service) UpsertSite(ctx context.Context, siteName string, devices []mqtmodels.Device) (*mqtmodels.Site, bool, error) {
	if strings.TrimSpace(siteName) == "" {
		return nil, false, apperrors.InvalidRequest(apperrors.CodeMissingSiteName, "siteName is required")
	}
	if devices == nil {
		return nil, false, apperrors.InvalidRequest(apperrors.CodeInvalidDevices, "Devices array is required")
	}
	if err := validateDevices(devices); err != nil {
		return nil, false, err
	}

	log := s.log.WithSite(siteName)

	release, err := s.locker.Acquire(ctx, siteName)
	if err != nil {
		if errors.Is(err, interfaces.ErrLockHeld) {
			metrics.ObserveReconcile(apperrors.CodeSiteLocked, 0, 0)
			return nil, false, apperrors.Conflict(apperrors.CodeSiteLocked, "Site is being updated by another request")
		}
		log.ErrorWithError(err, "failed to acquire site lock")
		return nil, false, apperrors.Internal("Error saving data", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			log.ErrorWithError(err, "failed to release site lock")
		}
	}()

	existing, err := s.sites.GetSite(ctx, siteName)
	if err != nil {
		log.ErrorWithError(err, "failed to load site")
		return nil, false, apperrors.Internal("Error saving data", err)
	}

	if existing == nil {
		site := mqtmodels.Site{
			SiteName: siteName,
			Devices:  normalizeDevices(devices),
			Version:  1,
		}
		if err := s.sites.CreateSite(ctx, site); err != nil {
			return nil, false, s.saveError(log, err)
		}
		metrics.ObserveReconcile(metrics.ResultSuccess, len(site.Devices), 0)
		log.Info("site created")
		return &site, true, nil
	}

	merged, added, updated := Reconcile(existing.Devices, devices)
	saved, err := s.sites.ReplaceDevices(ctx, siteName, existing.Version, merged)
	if err != nil {
		return nil, false, s.saveError(log, err)
	}

	metrics.ObserveReconcile(metrics.ResultSuccess, added, updated)
	log.Logger.Info().Int("added", added).Int("updated", updated).Int("version", saved.Version).Msg("site devices reconciled")
	return saved, false, nil
}

func (s *Service) saveError(log *logger.Logger, err error) error {
	if errors.Is(err, interfaces.ErrVersionConflict) || errors.Is(err, interfaces.ErrDuplicateSite) {
		metrics.ObserveReconcile(apperrors.CodeVersionConflict, 0, 0)
		return apperrors.Conflict(apperrors.CodeVersionConflict, "Site was modified by another request, reload and retry")
	}
	metrics.ObserveReconcile(metrics.ResultError, 0, 0)
	log.ErrorWithError(err, "failed to save site")
	return apperrors.Internal("Error saving data", err)
}

func validateDevices(devices []mqtmodels.Device) error {
	for i, d := range devices {
		if strings.TrimSpace(d.DeviceID) == "" || strings.TrimSpace(d.ModuleID) == "" {
			return apperrors.InvalidRequest(apperrors.CodeInvalidDevice,
				fmt.Sprintf("Devices[%d]: device_id and module_id are required", i))
		}
		for j, f := range d.DynamicFields {
			if strings.TrimSpace(f.Key) == "" {
				return apperrors.InvalidRequest(apperrors.CodeInvalidDevice,
					fmt.Sprintf("Devices[%d].dynamic_fields[%d]: key is required", i, j))
			}
		}
	}
	return nil
}

func normalizeDevices(devices []mqtmodels.Device) []mqtmodels.Device {
	out := mqtmodels.CloneDevices(devices)
	for i := range out {
		out[i] = out[i].EnsureFields()
	}
	return out
}
