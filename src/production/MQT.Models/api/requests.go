package api_models

import "encoding/json"

// UpsertSiteRequest is the body of POST /device_motherson.
// Devices stays raw so a missing or non-array value can be told apart from an empty list.
type UpsertSiteRequest struct {
	SiteName string          `json:"siteName"`
	Devices  json.RawMessage `json:"Devices"`
}

// DeviceEventsRequest is the body of POST /get-device-events
type DeviceEventsRequest struct {
	SiteName string `json:"siteName"`
}

// RecordEventRequest is the body of POST /events
type RecordEventRequest struct {
	DeviceID   string                 `json:"device_id"`
	EntityName string                 `json:"entity_name"`
	ModuleID   *int                   `json:"module_id"`
	Fields     map[string]interface{} `json:"fields"`
}

// CreateDraftRequest is the body of POST /drafts
type CreateDraftRequest struct {
	SiteName string `json:"siteName"`
}
