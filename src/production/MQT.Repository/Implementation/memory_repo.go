package implementation

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// MemoryEventRepository keeps events in process. Used with STORAGE_BACKEND=memory and in tests.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events []mqtmodels.DeviceEvent
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{}
}

func (r *MemoryEventRepository) InsertOne(ctx context.Context, e mqtmodels.DeviceEvent) error {
	return r.InsertMany(ctx, []mqtmodels.DeviceEvent{e})
}

func (r *MemoryEventRepository) InsertMany(ctx context.Context, es []mqtmodels.DeviceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range es {
		if e.ID.IsZero() {
			e.ID = primitive.NewObjectID()
		}
		r.events = append(r.events, cloneEvent(e))
	}
	return nil
}

func (r *MemoryEventRepository) FindLatest(ctx context.Context, q interfaces.EventQuery) ([]mqtmodels.DeviceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matches := make([]mqtmodels.DeviceEvent, 0)
	for _, e := range r.events {
		if e.DeviceID == q.DeviceID && e.EntityName == q.EntityName && e.ModuleID == q.ModuleID {
			matches = append(matches, cloneEvent(e))
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(matches)
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (r *MemoryEventRepository) FindLatestByDeviceModule(ctx context.Context, deviceID string, moduleID int) (*mqtmodels.DeviceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *mqtmodels.DeviceEvent
	for i := range r.events {
		e := &r.events[i]
		if e.DeviceID != deviceID || e.ModuleID != moduleID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := cloneEvent(*latest)
	return &out, nil
}

func sortNewestFirst(events []mqtmodels.DeviceEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
}

// MemorySiteRepository keeps sites in process with the same version semantics as Mongo
type MemorySiteRepository struct {
	mu    sync.RWMutex
	sites map[string]mqtmodels.Site
	now   func() time.Time
}

func NewMemorySiteRepository() *MemorySiteRepository {
	return &MemorySiteRepository{sites: make(map[string]mqtmodels.Site), now: time.Now}
}

func (r *MemorySiteRepository) GetSite(ctx context.Context, siteName string) (*mqtmodels.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.sites[siteName]
	if !ok {
		return nil, nil
	}
	return cloneSite(site), nil
}

func (r *MemorySiteRepository) CreateSite(ctx context.Context, site mqtmodels.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sites[site.SiteName]; exists {
		return interfaces.ErrDuplicateSite
	}
	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = r.now().UTC()
	}
	r.sites[site.SiteName] = *cloneSite(site)
	return nil
}

func (r *MemorySiteRepository) ReplaceDevices(ctx context.Context, siteName string, expectedVersion int, devices []mqtmodels.Device) (*mqtmodels.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[siteName]
	if !ok || site.Version != expectedVersion {
		return nil, interfaces.ErrVersionConflict
	}
	site.Devices = mqtmodels.CloneDevices(devices)
	site.Version++
	site.UpdatedAt = r.now().UTC()
	r.sites[siteName] = site
	return cloneSite(site), nil
}
