package implementation

import mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"

// cloneEvent copies the telemetry map so stored events stay immutable
func cloneEvent(e mqtmodels.DeviceEvent) mqtmodels.DeviceEvent {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	e.Fields = fields
	return e
}

// cloneSite deep-copies a site
func cloneSite(s mqtmodels.Site) *mqtmodels.Site {
	s.Devices = mqtmodels.CloneDevices(s.Devices)
	return &s
}

// cloneDraft deep-copies a draft
func cloneDraft(d mqtmodels.Draft) *mqtmodels.Draft {
	if d.Modules != nil {
		modules := make([]mqtmodels.DraftModule, len(d.Modules))
		for i, m := range d.Modules {
			modules[i] = m
			if m.Fields != nil {
				modules[i].Fields = make([]mqtmodels.DraftField, len(m.Fields))
				copy(modules[i].Fields, m.Fields)
			}
		}
		d.Modules = modules
	}
	return &d
}
