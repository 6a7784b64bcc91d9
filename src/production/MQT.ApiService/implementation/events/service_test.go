package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

type failingRepo struct {
	interfaces.EventRepository
	err error
}

func (f failingRepo) FindLatest(context.Context, interfaces.EventQuery) ([]mqtmodels.DeviceEvent, error) {
	return nil, f.err
}

func (f failingRepo) InsertOne(context.Context, mqtmodels.DeviceEvent) error {
	return f.err
}

func newTestService() (*Service, *implementation.MemoryEventRepository) {
	repo := implementation.NewMemoryEventRepository()
	return NewService(repo, logger.Nop()), repo
}

func TestRecordEventRequiresIdentity(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RecordEvent(context.Background(), " ", "Box_1", 1, nil)
	assert.Equal(t, apperrors.CodeMissingParams, apperrors.CodeOf(err))

	_, err = svc.RecordEvent(context.Background(), "D1", "", 1, nil)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestRecordEventStampsTimeAndDropsReservedKeys(t *testing.T) {
	svc, repo := newTestService()
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.FixedZone("IST", 19800))
	svc.now = func() time.Time { return fixed }

	event, err := svc.RecordEvent(context.Background(), "D1", "Box_1", 4, map[string]string{
		"3,01": "55", "createdAt": "yesterday",
	})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, event.CreatedAt.Location())
	assert.True(t, fixed.Equal(event.CreatedAt))
	assert.Equal(t, map[string]string{"3,01": "55"}, event.Fields)

	stored, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 4)
	require.NoError(t, err)
	assert.Equal(t, event.ID, stored.ID)
}

func TestQueryLatestOrderingAndLimit(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		require.NoError(t, repo.InsertOne(ctx, NewEvent("D1", "Box_1", 1, nil, base.Add(time.Duration(i)*time.Second))))
	}

	events, err := svc.QueryLatest(ctx, "D1", "Box_1", 1, 0)
	require.NoError(t, err)
	assert.Len(t, events, DefaultLimit)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i-1].CreatedAt.After(events[i].CreatedAt), "events must be strictly newest first")
	}

	five, err := svc.QueryLatest(ctx, "D1", "Box_1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, five, 5)

	none, err := svc.QueryLatest(ctx, "D1", "Box_9", 1, 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
}

func TestDiscoverKeys(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.InsertOne(ctx, NewEvent("D1", "Box_1", 1, map[string]string{"2,1": "0", "meta": "x"}, now)))
	require.NoError(t, repo.InsertOne(ctx, NewEvent("D1", "Box_1", 1, map[string]string{"3,01": "4", "3,1": "9"}, now.Add(time.Second))))

	keys, err := svc.DiscoverKeys(ctx, "D1", "Box_1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2,1", "3,01", "3,1"}, keys)

	_, err = svc.DiscoverKeys(ctx, "D1", "Box_1", 2)
	assert.Equal(t, apperrors.CodeNoData, apperrors.CodeOf(err))
}

func TestRepositoryFailuresAreInternal(t *testing.T) {
	svc := NewService(failingRepo{err: errors.New("socket closed")}, logger.Nop())

	_, err := svc.QueryLatest(context.Background(), "D1", "Box_1", 1, 1)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	_, err = svc.RecordEvent(context.Background(), "D1", "Box_1", 1, nil)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestParseModuleID(t *testing.T) {
	id, err := ParseModuleID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	_, err = ParseModuleID("twelve")
	assert.Equal(t, apperrors.CodeInvalidModuleID, apperrors.CodeOf(err))
}

func TestRenderFields(t *testing.T) {
	fields := RenderFields(map[string]interface{}{"3,1": float64(12), "2,1": "1", "flag": true})
	assert.Equal(t, map[string]string{"3,1": "12", "2,1": "1", "flag": "true"}, fields)
}
