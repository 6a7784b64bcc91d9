package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// racingRepo simulates a concurrent writer saving between read and write
type racingRepo struct {
	*implementation.MemorySiteRepository
}

func (r racingRepo) ReplaceDevices(ctx context.Context, siteName string, expected int, devices []mqtmodels.Device) (*mqtmodels.Site, error) {
	if _, err := r.MemorySiteRepository.ReplaceDevices(ctx, siteName, expected, nil); err != nil {
		return nil, err
	}
	return r.MemorySiteRepository.ReplaceDevices(ctx, siteName, expected, devices)
}

type brokenRepo struct {
	interfaces.SiteRepository
}

func (brokenRepo) GetSite(context.Context, string) (*mqtmodels.Site, error) {
	return nil, errors.New("server selection timeout")
}

func newTestService() (*Service, *implementation.MemorySiteRepository, *implementation.MemorySiteLocker) {
	repo := implementation.NewMemorySiteRepository()
	locker := implementation.NewMemorySiteLocker()
	return NewService(repo, locker, logger.Nop()), repo, locker
}

func TestGetDeviceDistinguishesSiteAndDevice(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.CreateSite(ctx, mqtmodels.Site{
		SiteName: "Acme",
		Version:  1,
		Devices:  []mqtmodels.Device{{DeviceID: "A", ModuleID: "1", DynamicFields: fields("3,01")}},
	}))

	_, err := svc.GetDevice(ctx, "Nowhere", "A")
	assert.Equal(t, apperrors.CodeSiteNotFound, apperrors.CodeOf(err))

	_, err = svc.GetDevice(ctx, "Acme", "Z")
	assert.Equal(t, apperrors.CodeDeviceNotFound, apperrors.CodeOf(err))

	device, err := svc.GetDevice(ctx, "Acme", "A")
	require.NoError(t, err)
	assert.Equal(t, "1", device.ModuleID)
}

func TestUpsertSiteValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.UpsertSite(ctx, "  ", []mqtmodels.Device{})
	assert.Equal(t, apperrors.CodeMissingSiteName, apperrors.CodeOf(err))

	_, _, err = svc.UpsertSite(ctx, "Acme", nil)
	assert.Equal(t, apperrors.CodeInvalidDevices, apperrors.CodeOf(err))

	_, _, err = svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{{DeviceID: "A"}})
	assert.Equal(t, apperrors.CodeInvalidDevice, apperrors.CodeOf(err))

	_, _, err = svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{{DeviceID: "A", ModuleID: "1", DynamicFields: fields("")}})
	assert.Equal(t, apperrors.CodeInvalidDevice, apperrors.CodeOf(err))
}

func TestUpsertSiteCreatesWithEmptyList(t *testing.T) {
	svc, _, _ := newTestService()

	site, created, err := svc.UpsertSite(context.Background(), "Empty", []mqtmodels.Device{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, site.Version)
	assert.NotNil(t, site.Devices)
	assert.Empty(t, site.Devices)
}

func TestUpsertSiteAcmeScenario(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, created, err := svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{
		{DeviceID: "A", ModuleID: "1", DynamicFields: []mqtmodels.DynamicField{{Key: "2,1", Value: "Status"}}},
	})
	require.NoError(t, err)
	require.True(t, created)

	site, created, err := svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{
		{DeviceID: "A", ModuleID: "1", DynamicFields: []mqtmodels.DynamicField{{Key: "3,01", Value: "Timer", ActiveValue: "C&C-01-T"}}},
		{DeviceID: "B", ModuleID: "2"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, site.Version)

	stored, err := repo.GetSite(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, stored.Devices, 2)
	assert.Equal(t, []mqtmodels.DynamicField{{Key: "3,01", Value: "Timer", ActiveValue: "C&C-01-T"}}, stored.Devices[0].DynamicFields)
	assert.Equal(t, "B", stored.Devices[1].DeviceID)
	assert.NotNil(t, stored.Devices[1].DynamicFields)
	assert.Empty(t, stored.Devices[1].DynamicFields)
	require.NotNil(t, site.Devices[1].DynamicFields)

	device, err := svc.GetDevice(ctx, "Acme", "B")
	require.NoError(t, err)
	out, err := json.Marshal(device)
	require.NoError(t, err)
	assert.JSONEq(t, `{"device_id":"B","module_id":"2","dynamic_fields":[]}`, string(out))
}

func TestUpsertSiteLockedSiteIsConflict(t *testing.T) {
	svc, _, locker := newTestService()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "Acme")
	require.NoError(t, err)

	_, _, err = svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeSiteLocked, apperrors.CodeOf(err))

	require.NoError(t, release(ctx))
	_, _, err = svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{})
	assert.NoError(t, err)
}

func TestUpsertSiteReleasesLock(t *testing.T) {
	svc, _, locker := newTestService()
	ctx := context.Background()

	_, _, err := svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{})
	require.NoError(t, err)

	release, err := locker.Acquire(ctx, "Acme")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestUpsertSiteVersionConflictLeavesConcurrentWrite(t *testing.T) {
	repo := implementation.NewMemorySiteRepository()
	svc := NewService(racingRepo{repo}, implementation.NewMemorySiteLocker(), logger.Nop())
	ctx := context.Background()
	require.NoError(t, repo.CreateSite(ctx, mqtmodels.Site{
		SiteName: "Acme", Version: 1,
		Devices: []mqtmodels.Device{{DeviceID: "A", ModuleID: "1", DynamicFields: fields("2,1")}},
	}))

	_, _, err := svc.UpsertSite(ctx, "Acme", []mqtmodels.Device{{DeviceID: "B", ModuleID: "2"}})
	assert.Equal(t, apperrors.CodeVersionConflict, apperrors.CodeOf(err))

	stored, err := repo.GetSite(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Empty(t, stored.Devices)
}

func TestStorageFailureIsInternal(t *testing.T) {
	svc := NewService(brokenRepo{}, implementation.NewMemorySiteLocker(), logger.Nop())

	_, err := svc.GetSite(context.Background(), "Acme")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	_, _, err = svc.UpsertSite(context.Background(), "Acme", []mqtmodels.Device{})
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
