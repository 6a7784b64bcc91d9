package events

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	classifier "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Classifier"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service records and queries device events
type Service struct {
	repo interfaces.EventRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates a new event service
func NewService(repo interfaces.EventRepository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.WithComponent("events"),
		now:  time.Now,
	}
}

// RecordEvent appends one event stamped with the current time
func (s *Service) RecordEvent(ctx context.Context, deviceID, entityName string, moduleID int, fields map[string]string) (*mqtmodels.DeviceEvent, error) {
	deviceID = strings.TrimSpace(deviceID)
	entityName = strings.TrimSpace(entityName)
	if deviceID == "" || entityName == "" {
		return nil, apperrors.InvalidRequest(apperrors.CodeMissingParams, "Missing required parameters")
	}

	event := NewEvent(deviceID, entityName, moduleID, fields, s.now())
	if err := s.repo.InsertOne(ctx, event); err != nil {
		s.log.ErrorWithError(err, "failed to record event")
		return nil, apperrors.Internal("Error saving event", err)
	}
	return &event, nil
}

// QueryLatest returns up to limit events of one device module, newest first
func (s *Service) QueryLatest(ctx context.Context, deviceID, entityName string, moduleID int, limit int) ([]mqtmodels.DeviceEvent, error) {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(entityName) == "" {
		return nil, apperrors.InvalidRequest(apperrors.CodeMissingParams, "Missing required parameters")
	}

	events, err := s.repo.FindLatest(ctx, interfaces.EventQuery{
		DeviceID:   deviceID,
		EntityName: entityName,
		ModuleID:   moduleID,
		Limit:      NormalizeLimit(limit),
	})
	if err != nil {
		s.log.ErrorWithError(err, "failed to query latest events")
		return nil, apperrors.Internal("Error fetching events", err)
	}
	if events == nil {
		events = []mqtmodels.DeviceEvent{}
	}
	return events, nil
}

// QueryLatestByDeviceModule returns the newest event of a device module or nil
func (s *Service) QueryLatestByDeviceModule(ctx context.Context, deviceID string, moduleID int) (*mqtmodels.DeviceEvent, error) {
	event, err := s.repo.FindLatestByDeviceModule(ctx, deviceID, moduleID)
	if err != nil {
		return nil, apperrors.Internal("Error fetching latest event", err)
	}
	return event, nil
}

// DiscoverKeys lists the status and measure keys seen in the recent events of a device module
func (s *Service) DiscoverKeys(ctx context.Context, deviceID, entityName string, moduleID int) ([]string, error) {
	events, err := s.QueryLatest(ctx, deviceID, entityName, moduleID, DefaultLimit)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, apperrors.NotFound(apperrors.CodeNoData, "No matching data found")
	}
	return classifier.DiscoverKeys(events), nil
}

// NormalizeLimit applies the default and the cap
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ParseModuleID parses a module id given as text
func ParseModuleID(raw string) (int, error) {
	moduleID, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.InvalidRequest(apperrors.CodeInvalidModuleID, "module_id must be an integer")
	}
	return moduleID, nil
}

// NewEvent builds an event, dropping telemetry keys that collide with identity fields
func NewEvent(deviceID, entityName string, moduleID int, fields map[string]string, at time.Time) mqtmodels.DeviceEvent {
	telemetry := make(map[string]string, len(fields))
	for key, value := range fields {
		if key == "" || mqtmodels.IsIdentityField(key) {
			continue
		}
		telemetry[key] = value
	}
	return mqtmodels.DeviceEvent{
		ID:         primitive.NewObjectID(),
		DeviceID:   deviceID,
		EntityName: entityName,
		ModuleID:   moduleID,
		CreatedAt:  at.UTC(),
		Fields:     telemetry,
	}
}

// RenderFields converts decoded JSON telemetry to strings
func RenderFields(raw map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		fields[key] = mqtmodels.RenderValue(value)
	}
	return fields
}
