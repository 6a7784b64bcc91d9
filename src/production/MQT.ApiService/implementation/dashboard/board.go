package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	classifier "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Classifier"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

const (
	// TimestampLayout renders last_updated_label, e.g. "7 Mar' 2025, 02:05 PM"
	TimestampLayout = "2 Jan' 2006, 03:04 PM"

	DefaultBox     = "Box_1"
	DefaultReading = "0"

	statusHealthyLabel     = "Healthy"
	statusMaintenanceLabel = "Under Maintenance"
)

// Aggregator returns a site's devices joined with their newest events
type Aggregator interface {
	DevicesWithLatestEvents(ctx context.Context, siteName string) ([]mqtmodels.DeviceLatestEvent, error)
}

// Options configure the board service. AllowedOrigins limits browser stream
// upgrades; empty means same origin only.
type Options struct {
	MachineCount   int
	PollInterval   time.Duration
	AllowedOrigins []string
}

// Service builds machine-status boards and streams them to clients
type Service struct {
	agg          Aggregator
	machineCount int
	pollInterval time.Duration
	upgrader     websocket.Upgrader
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new board service
func NewService(agg Aggregator, opts Options, log *logger.Logger) *Service {
	if opts.MachineCount <= 0 {
		opts.MachineCount = 16
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Service{
		agg:          agg,
		machineCount: opts.MachineCount,
		pollInterval: opts.PollInterval,
		upgrader:     newUpgrader(opts.AllowedOrigins),
		log:          log.WithComponent("dashboard"),
		now:          time.Now,
	}
}

// Board returns the current board of a site
func (s *Service) Board(ctx context.Context, siteName string) (*mqtmodels.Board, error) {
	entries, err := s.agg.DevicesWithLatestEvents(ctx, siteName)
	if err != nil {
		return nil, err
	}
	return BuildBoard(siteName, entries, s.machineCount, s.now()), nil
}

// MachineName returns the display name of the machine at index i
func MachineName(i int) string {
	return fmt.Sprintf("C&C-%02d", i+1)
}

// BuildBoard routes classified telemetry onto machines. Values are taken in
// device order then key order; the n-th status, timer and counter seen
// belong to machine n.
func BuildBoard(siteName string, entries []mqtmodels.DeviceLatestEvent, machineCount int, now time.Time) *mqtmodels.Board {
	var statuses []classifier.StatusField
	var timers, counters []string
	var lastUpdated time.Time

	boxes := []mqtmodels.Box{}
	boxIndex := map[string]int{}

	for _, entry := range entries {
		boxName := DefaultBox
		values := map[string]string{}

		if ev := entry.LatestEvent; ev != nil {
			if ev.EntityName != "" {
				boxName = ev.EntityName
			}
			if ev.CreatedAt.After(lastUpdated) {
				lastUpdated = ev.CreatedAt
			}
			for _, f := range classifier.FieldsOf(ev) {
				values[f.FieldKey()] = f.FieldValue()
				switch field := f.(type) {
				case classifier.StatusField:
					statuses = append(statuses, field)
				case classifier.TimerField:
					timers = append(timers, field.Value)
				case classifier.CounterField:
					counters = append(counters, field.Value)
				case classifier.UnclassifiedField:
				}
			}
		}

		idx, ok := boxIndex[boxName]
		if !ok {
			idx = len(boxes)
			boxIndex[boxName] = idx
			boxes = append(boxes, mqtmodels.Box{Name: boxName, Devices: []mqtmodels.BoxDevice{}})
		}
		boxes[idx].Devices = append(boxes[idx].Devices, mqtmodels.BoxDevice{
			DeviceID: entry.DeviceID,
			ModuleID: entry.ModuleID,
			Values:   values,
		})
	}

	machines := make([]mqtmodels.Machine, machineCount)
	for i := range machines {
		m := mqtmodels.Machine{
			Name:        MachineName(i),
			Status:      mqtmodels.MachineHealthy,
			StatusLabel: statusHealthyLabel,
			Timer:       valueAt(timers, i),
			Counter:     valueAt(counters, i),
		}
		if i < len(statuses) && statuses[i].Maintenance() {
			m.Status = mqtmodels.MachineMaintenance
			m.StatusLabel = statusMaintenanceLabel
		}
		machines[i] = m
	}

	board := &mqtmodels.Board{
		SiteName:    siteName,
		Machines:    machines,
		Boxes:       boxes,
		GeneratedAt: now.UTC(),
	}
	if !lastUpdated.IsZero() {
		ts := lastUpdated.UTC()
		board.LastUpdated = &ts
		board.LastUpdatedLabel = ts.Format(TimestampLayout)
	}
	return board
}

func valueAt(values []string, i int) string {
	if i < len(values) && values[i] != "" {
		return values[i]
	}
	return DefaultReading
}
