package mqtmodels

import "time"

// DraftField is one key of a draft module with its raw value and chosen label
type DraftField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// DraftModule is a device module staged in a registration draft
type DraftModule struct {
	DeviceID   string       `json:"device_id"`
	EntityName string       `json:"entity_name"`
	ModuleID   string       `json:"module_id"`
	Fields     []DraftField `json:"fields"`
}

// Draft is a server-side registration session for one site
type Draft struct {
	ID        string        `json:"id"`
	SiteName  string        `json:"siteName"`
	Modules   []DraftModule `json:"modules"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
