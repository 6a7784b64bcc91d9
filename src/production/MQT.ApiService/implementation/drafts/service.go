package drafts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	labels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/labels"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// SiteWriter persists a submitted device list
type SiteWriter interface {
	UpsertSite(ctx context.Context, siteName string, devices []mqtmodels.Device) (*mqtmodels.Site, bool, error)
}

// Service manages registration drafts: modules are staged one by one and
// submitted to the registry in a single upsert.
type Service struct {
	store   interfaces.DraftStore
	sites   SiteWriter
	catalog *labels.Catalog
	log     *logger.Logger
	now     func() time.Time
	newID   func() string
}

// NewService creates a new draft service
func NewService(store interfaces.DraftStore, sites SiteWriter, catalog *labels.Catalog, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		sites:   sites,
		catalog: catalog,
		log:     log.WithComponent("drafts"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create opens an empty draft for a site
func (s *Service) Create(ctx context.Context, siteName string) (*mqtmodels.Draft, error) {
	siteName = strings.TrimSpace(siteName)
	if siteName == "" {
		return nil, apperrors.InvalidRequest(apperrors.CodeMissingSiteName, "siteName is required")
	}

	now := s.now().UTC()
	draft := mqtmodels.Draft{
		ID:        s.newID(),
		SiteName:  siteName,
		Modules:   []mqtmodels.DraftModule{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, draft); err != nil {
		s.log.ErrorWithError(err, "failed to save draft")
		return nil, apperrors.Internal("Error saving draft", err)
	}
	return &draft, nil
}

// Get retrieves a draft
func (s *Service) Get(ctx context.Context, id string) (*mqtmodels.Draft, error) {
	draft, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "Error loading draft")
	}
	return draft, nil
}

// AddModule stages a module, replacing a staged module with the same module_id
func (s *Service) AddModule(ctx context.Context, id string, module mqtmodels.DraftModule) (*mqtmodels.Draft, error) {
	module, err := s.validateModule(module)
	if err != nil {
		return nil, err
	}

	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range draft.Modules {
		if draft.Modules[i].ModuleID == module.ModuleID {
			draft.Modules[i] = module
			replaced = true
			break
		}
	}
	if !replaced {
		draft.Modules = append(draft.Modules, module)
	}
	draft.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, *draft); err != nil {
		s.log.ErrorWithError(err, "failed to save draft")
		return nil, apperrors.Internal("Error saving draft", err)
	}
	return draft, nil
}

// Discard drops a draft without submitting it
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError(err, "Error discarding draft")
	}
	return nil
}

// Submit upserts the staged modules into the site. The draft is removed only
// when the upsert succeeds.
func (s *Service) Submit(ctx context.Context, id string) (*mqtmodels.Site, bool, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	site, created, err := s.sites.UpsertSite(ctx, draft.SiteName, BuildDevices(draft))
	if err != nil {
		return nil, false, err
	}

	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, interfaces.ErrDraftNotFound) {
		s.log.WithField("draft_id", id).ErrorWithError(err, "failed to delete submitted draft")
	}
	return site, created, nil
}

// BuildDevices converts staged modules to registry devices. The raw value is
// kept as value and the chosen label, if any, becomes activeValue.
func BuildDevices(draft *mqtmodels.Draft) []mqtmodels.Device {
	devices := make([]mqtmodels.Device, 0, len(draft.Modules))
	for _, m := range draft.Modules {
		fields := make([]mqtmodels.DynamicField, 0, len(m.Fields))
		for _, f := range m.Fields {
			active := f.Label
			if active == "" {
				active = f.Value
			}
			fields = append(fields, mqtmodels.DynamicField{Key: f.Key, Value: f.Value, ActiveValue: active})
		}
		devices = append(devices, mqtmodels.Device{
			DeviceID:      m.DeviceID,
			ModuleID:      m.ModuleID,
			DynamicFields: fields,
		})
	}
	return devices
}

func (s *Service) validateModule(m mqtmodels.DraftModule) (mqtmodels.DraftModule, error) {
	m.DeviceID = strings.TrimSpace(m.DeviceID)
	m.EntityName = strings.TrimSpace(m.EntityName)
	m.ModuleID = strings.TrimSpace(m.ModuleID)
	if m.DeviceID == "" || m.EntityName == "" || m.ModuleID == "" {
		return m, apperrors.InvalidRequest(apperrors.CodeInvalidDevice, "device_id, entity_name and module_id are required")
	}
	if m.Fields == nil {
		m.Fields = []mqtmodels.DraftField{}
	}
	for _, f := range m.Fields {
		if strings.TrimSpace(f.Key) == "" {
			return m, apperrors.InvalidRequest(apperrors.CodeInvalidDevice, "field key is required")
		}
		if f.Label != "" && !s.catalog.IsValidLabel(f.Label) {
			return m, apperrors.InvalidRequest(apperrors.CodeInvalidLabel, "unknown label: "+f.Label)
		}
	}
	return m, nil
}

func (s *Service) storeError(err error, msg string) error {
	if errors.Is(err, interfaces.ErrDraftNotFound) {
		return apperrors.NotFound(apperrors.CodeDraftNotFound, "Draft not found")
	}
	s.log.ErrorWithError(err, msg)
	return apperrors.Internal(msg, err)
}
