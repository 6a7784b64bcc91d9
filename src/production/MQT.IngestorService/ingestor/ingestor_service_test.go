package mqtingestor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

func testConfig(size int, window time.Duration) *config.IngestorConfig {
	return &config.IngestorConfig{
		MQTT:  config.MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, ErrorTopic: "ingestor/errors"},
		Batch: config.BatchConfig{Size: size, Window: window},
	}
}

func TestParseTopic(t *testing.T) {
	deviceID, entity, moduleID, err := ParseTopic("devices/D1/Box_1/3")
	require.NoError(t, err)
	assert.Equal(t, "D1", deviceID)
	assert.Equal(t, "Box_1", entity)
	assert.Equal(t, 3, moduleID)

	deviceID, _, _, err = ParseTopic("site/a/devices/D2/Box_2/1")
	require.NoError(t, err)
	assert.Equal(t, "D2", deviceID)

	for _, topic := range []string{"devices/D1/Box_1", "devices//Box_1/1", "devices/D1/Box_1/x", ""} {
		_, _, _, err := ParseTopic(topic)
		assert.Error(t, err, topic)
	}
}

func TestBatchFlushOnSize(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(2, time.Hour), repo, logger.Nop())
	ing.startWriter(context.Background())
	defer ing.Stop()

	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"1","3,01":120}`))
	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"0"}`))

	require.Eventually(t, func() bool {
		got, err := repo.FindLatest(context.Background(), interfaces.EventQuery{DeviceID: "D1", EntityName: "Box_1", ModuleID: 1, Limit: 10})
		return err == nil && len(got) == 2
	}, time.Second, 10*time.Millisecond)

	latest, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Box_1", latest.EntityName)
}

func TestBatchFlushOnWindowAndStop(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(100, 20*time.Millisecond), repo, logger.Nop())
	ing.startWriter(context.Background())

	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"3,01":"5"}`))
	require.Eventually(t, func() bool {
		ev, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 1)
		return err == nil && ev != nil && ev.Fields["3,01"] == "5"
	}, time.Second, 10*time.Millisecond)

	ing.handleMessage("devices/D2/Box_1/2", []byte(`{"3,1":"9"}`))
	ing.Stop()
	ing.Stop()

	ev, err := repo.FindLatestByDeviceModule(context.Background(), "D2", 2)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "9", ev.Fields["3,1"])
}

func TestRejectsInvalidMessages(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(1, time.Hour), repo, logger.Nop())
	ing.startWriter(context.Background())

	ing.handleMessage("devices/D1/Box_1/1", []byte(`not json`))
	ing.handleMessage("devices/D1/Box_1/1", []byte(`["2,1"]`))
	ing.handleMessage("devices/D1/Box_1/1", []byte(`null`))
	ing.handleMessage("devices/D1/1", []byte(`{"2,1":"1"}`))
	ing.Stop()

	ev, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 1)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

type failingRepo struct {
	interfaces.EventRepository
	mu    sync.Mutex
	calls int
}

func (f *failingRepo) InsertMany(ctx context.Context, es []mqtmodels.DeviceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("write concern timeout")
}

func TestInsertFailureDoesNotStopWriter(t *testing.T) {
	repo := &failingRepo{}
	ing := New(testConfig(1, time.Hour), repo, logger.Nop())
	ing.startWriter(context.Background())

	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"1"}`))
	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"0"}`))
	ing.Stop()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 2, repo.calls)
}

func TestStopAfterContextCancel(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(100, time.Hour), repo, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	ing.startWriter(ctx)

	ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"1"}`))
	// give the writer a chance to take the message off the queue
	require.Eventually(t, func() bool { return len(ing.msgCh) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	ing.Stop()

	ev, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 1)
	require.NoError(t, err)
	require.NotNil(t, ev)
}

func TestMessageAfterStopIsDropped(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(1, time.Hour), repo, logger.Nop())
	ing.startWriter(context.Background())
	ing.Stop()

	assert.NotPanics(t, func() {
		ing.handleMessage("devices/D1/Box_1/1", []byte(`{"2,1":"1"}`))
	})
	assert.Empty(t, ing.msgCh)

	ev, err := repo.FindLatestByDeviceModule(context.Background(), "D1", 1)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestConcurrentHandlersDuringStop(t *testing.T) {
	repo := implementation.NewMemoryEventRepository()
	ing := New(testConfig(10, time.Hour), repo, logger.Nop())
	ing.startWriter(context.Background())

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				ing.handleMessage("devices/D1/Box_1/1", []byte(`{"3,1":"1"}`))
			}
		}()
	}
	assert.NotPanics(t, ing.Stop)
	wg.Wait()
}
