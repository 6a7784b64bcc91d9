package api_models

// MessageResponse is the envelope used by the site and device endpoints
type MessageResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// LatestValuesResponse lists the classified keys seen in recent events
type LatestValuesResponse struct {
	DynamicFieldsKeys []string `json:"dynamicFieldsKeys"`
}

// ItemsResponse wraps a list result
type ItemsResponse struct {
	Items interface{} `json:"items"`
}

// LabelsResponse lists the label catalog
type LabelsResponse struct {
	Labels []string `json:"labels"`
}
