package api_models

// GetPredefinedLabels returns the built-in label catalog offered when mapping
// telemetry keys to display names
func GetPredefinedLabels() []string {
	return []string{
		"Voltage L1N",
		"Voltage L2N",
		"Avg. Voltage L-L",
		"Average Voltage",
		"Power L1",
		"Power L2",
		"Power L3",
		"Current L1",
		"Current L2",
		"Current L3",
		"Power (KVAr)",
		"Frequency",
		"Battery Voltage",
		"Engine Coolant Temp",
		"Engine Oil Temp",
		"Engine Speed",
		"Engine Start/Stop",
		"Bus Voltage",
		"Current Frequency",
		"Output Current",
		"Output Power",
		"Running Rotation Speed",
		"Counter",
		"Close Time",
		"Open Time",
		"C&C-01-C",
		"C&C-02-C",
		"C&C-03-C",
		"C&C-04-C",
		"C&C-01-T",
		"C&C-02-T",
		"C&C-03-T",
		"C&C-04-T",
		"C&C-01-S",
		"C&C-02-S",
		"C&C-03-S",
		"C&C-04-S",
	}
}
