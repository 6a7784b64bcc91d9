package registry

import mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"

// Reconcile merges incoming devices into existing by device_id.
//
// A matched device has its field list replaced wholesale and keeps its
// position. An unmatched device is appended. Matching runs against the merged
// list, so a device_id repeated within incoming resolves to its last entry.
// existing is never modified.
func Reconcile(existing, incoming []mqtmodels.Device) (merged []mqtmodels.Device, added, updated int) {
	merged = mqtmodels.CloneDevices(existing)
	if merged == nil {
		merged = make([]mqtmodels.Device, 0, len(incoming))
	}

	index := make(map[string]int, len(merged)+len(incoming))
	for i, d := range merged {
		if _, seen := index[d.DeviceID]; !seen {
			index[d.DeviceID] = i
		}
	}

	for _, d := range mqtmodels.CloneDevices(incoming) {
		d = d.EnsureFields()
		if i, ok := index[d.DeviceID]; ok {
			merged[i].DynamicFields = d.DynamicFields
			updated++
			continue
		}
		index[d.DeviceID] = len(merged)
		merged = append(merged, d)
		added++
	}

	return merged, added, updated
}
