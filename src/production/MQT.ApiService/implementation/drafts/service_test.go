package drafts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	labels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/labels"
	registry "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/registry"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
)

type fixture struct {
	svc    *Service
	store  *implementation.MemoryDraftStore
	sites  *implementation.MemorySiteRepository
	locker *implementation.MemorySiteLocker
}

func newFixture() fixture {
	store := implementation.NewMemoryDraftStore(time.Hour)
	sites := implementation.NewMemorySiteRepository()
	locker := implementation.NewMemorySiteLocker()
	reg := registry.NewService(sites, locker, logger.Nop())
	svc := NewService(store, reg, labels.NewCatalog(api_models.GetPredefinedLabels()), logger.Nop())
	return fixture{svc: svc, store: store, sites: sites, locker: locker}
}

func module(deviceID, moduleID string, fields ...mqtmodels.DraftField) mqtmodels.DraftModule {
	return mqtmodels.DraftModule{DeviceID: deviceID, EntityName: "Box_1", ModuleID: moduleID, Fields: fields}
}

func TestCreateDraft(t *testing.T) {
	f := newFixture()
	f.svc.newID = func() string { return "fixed-id" }

	draft, err := f.svc.Create(context.Background(), " Acme ")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", draft.ID)
	assert.Equal(t, "Acme", draft.SiteName)
	assert.NotNil(t, draft.Modules)

	_, err = f.svc.Create(context.Background(), "")
	assert.Equal(t, apperrors.CodeMissingSiteName, apperrors.CodeOf(err))
}

func TestAddModuleReplacesSameModuleID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, "Acme")
	require.NoError(t, err)

	_, err = f.svc.AddModule(ctx, draft.ID, module("D1", "1", mqtmodels.DraftField{Key: "2,1"}))
	require.NoError(t, err)
	_, err = f.svc.AddModule(ctx, draft.ID, module("D2", "2"))
	require.NoError(t, err)
	updated, err := f.svc.AddModule(ctx, draft.ID, module("D1", "1", mqtmodels.DraftField{Key: "3,01", Label: "C&C-01-T"}))
	require.NoError(t, err)

	require.Len(t, updated.Modules, 2)
	assert.Equal(t, "1", updated.Modules[0].ModuleID)
	assert.Equal(t, "3,01", updated.Modules[0].Fields[0].Key)
	assert.Equal(t, "2", updated.Modules[1].ModuleID)
	assert.NotNil(t, updated.Modules[1].Fields)
}

func TestAddModuleValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, "Acme")
	require.NoError(t, err)

	_, err = f.svc.AddModule(ctx, draft.ID, mqtmodels.DraftModule{DeviceID: "D1", ModuleID: "1"})
	assert.Equal(t, apperrors.CodeInvalidDevice, apperrors.CodeOf(err))

	_, err = f.svc.AddModule(ctx, draft.ID, module("D1", "1", mqtmodels.DraftField{Key: " "}))
	assert.Equal(t, apperrors.CodeInvalidDevice, apperrors.CodeOf(err))

	_, err = f.svc.AddModule(ctx, draft.ID, module("D1", "1", mqtmodels.DraftField{Key: "3,1", Label: "Not A Label"}))
	assert.Equal(t, apperrors.CodeInvalidLabel, apperrors.CodeOf(err))

	_, err = f.svc.AddModule(ctx, "missing", module("D1", "1"))
	assert.Equal(t, apperrors.CodeDraftNotFound, apperrors.CodeOf(err))
}

func TestSubmitBuildsDevicesAndDeletesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, "Acme")
	require.NoError(t, err)
	_, err = f.svc.AddModule(ctx, draft.ID, module("D1", "1",
		mqtmodels.DraftField{Key: "3,01", Value: "120", Label: "C&C-01-T"},
		mqtmodels.DraftField{Key: "3,1", Value: "7"},
	))
	require.NoError(t, err)

	site, created, err := f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, site.Devices, 1)
	assert.Equal(t, []mqtmodels.DynamicField{
		{Key: "3,01", Value: "120", ActiveValue: "C&C-01-T"},
		{Key: "3,1", Value: "7", ActiveValue: "7"},
	}, site.Devices[0].DynamicFields)

	_, err = f.svc.Get(ctx, draft.ID)
	assert.Equal(t, apperrors.CodeDraftNotFound, apperrors.CodeOf(err))
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, "Acme")
	require.NoError(t, err)
	_, err = f.svc.AddModule(ctx, draft.ID, module("D1", "1"))
	require.NoError(t, err)

	release, err := f.locker.Acquire(ctx, "Acme")
	require.NoError(t, err)
	defer func() { _ = release(ctx) }()

	_, _, err = f.svc.Submit(ctx, draft.ID)
	assert.Equal(t, apperrors.CodeSiteLocked, apperrors.CodeOf(err))

	kept, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Modules, 1)
}

func TestDiscard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, "Acme")
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, draft.ID))
	err = f.svc.Discard(ctx, draft.ID)
	assert.Equal(t, apperrors.CodeDraftNotFound, apperrors.CodeOf(err))
}

func TestBuildDevicesEmptyDraft(t *testing.T) {
	devices := BuildDevices(&mqtmodels.Draft{})
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}
