package mqtingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	events "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/events"
	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// Error types published to the error topic
const (
	ErrInvalidTopic   = "invalid_topic"
	ErrInvalidPayload = "invalid_payload"
	ErrInsertFailed   = "insert_failed"
)

const flushTimeout = 10 * time.Second

// Ingestor subscribes to device telemetry and appends it to the event store in batches
type Ingestor struct {
	mqttCfg    config.MQTTConfig
	batchCfg   config.BatchConfig
	brokerURL  string
	repo       interfaces.EventRepository
	mqttClient mqtt.Client
	msgCh      chan mqtmodels.DeviceEvent
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	logger     *logger.Logger
	now        func() time.Time
}

func New(cfg *config.IngestorConfig, repo interfaces.EventRepository, logger *logger.Logger) *Ingestor {
	return &Ingestor{
		mqttCfg:   cfg.MQTT,
		batchCfg:  cfg.Batch,
		brokerURL: cfg.BrokerURL(),
		repo:      repo,
		msgCh:     make(chan mqtmodels.DeviceEvent, 4096),
		done:      make(chan struct{}),
		logger:    logger.WithComponent("ingestor"),
		now:       time.Now,
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(i.mqttCfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.mqttCfg.KeepAlive).
		SetPingTimeout(i.mqttCfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.mqttCfg.BrokerUser != "" {
		opts.SetUsername(i.mqttCfg.BrokerUser)
		opts.SetPassword(i.mqttCfg.BrokerPass)
	}

	if i.mqttCfg.UseTLS {
		tlsCfg, err := tlsConfig(i.mqttCfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.mqttCfg.Topic
		if i.mqttCfg.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.mqttCfg.SharedGroup, i.mqttCfg.Topic)
		}
		i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.startWriter(ctx)
	return nil
}

// startWriter runs the batch writer until ctx is done or Stop is called
func (i *Ingestor) startWriter(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()
}

func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		if i.mqttClient != nil && i.mqttClient.IsConnected() {
			i.mqttClient.Disconnect(500)
		}
		close(i.done)
		i.wg.Wait()
	})
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.handleMessage(m.Topic(), m.Payload())
}

// handleMessage validates one telemetry message and queues it for the next batch
func (i *Ingestor) handleMessage(topic string, payload []byte) {
	i.logger.Logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Received MQTT message")

	deviceID, entityName, moduleID, err := ParseTopic(topic)
	if err != nil {
		i.logger.Logger.Warn().Str("topic", topic).Str("expected", "<prefix>/<device_id>/<entity_name>/<module_id>").Msg("Invalid topic format")
		metrics.IncIngestError(ErrInvalidTopic)
		parts := strings.Split(topic, "/")
		devicePart, modulePart := "unknown", "unknown"
		if len(parts) >= 2 && parts[1] != "" {
			devicePart = parts[1]
		}
		if len(parts) >= 4 && parts[3] != "" {
			modulePart = parts[3]
		}
		i.publishError(devicePart, modulePart, ErrInvalidTopic, err.Error())
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		i.logger.WithDevice(deviceID, strconv.Itoa(moduleID)).Warn("Rejected non-JSON payload")
		metrics.IncIngestError(ErrInvalidPayload)
		i.publishError(deviceID, strconv.Itoa(moduleID), ErrInvalidPayload, "payload must be a JSON object of telemetry pairs")
		return
	}

	ev := events.NewEvent(deviceID, entityName, moduleID, events.RenderFields(raw), i.now())

	// msgCh stays open; handlers still in flight after Stop drop their event
	select {
	case <-i.done:
		i.logger.WithDevice(deviceID, strconv.Itoa(moduleID)).Warn("Ingestor stopping, dropped message")
		return
	default:
	}
	select {
	case i.msgCh <- ev:
	case <-i.done:
		i.logger.WithDevice(deviceID, strconv.Itoa(moduleID)).Warn("Ingestor stopping, dropped message")
	}
}

// ParseTopic splits <prefix>/<device_id>/<entity_name>/<module_id>
func ParseTopic(topic string) (deviceID, entityName string, moduleID int, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", "", 0, fmt.Errorf("invalid topic format: %s", topic)
	}
	n := len(parts)
	deviceID, entityName = parts[n-3], parts[n-2]
	if deviceID == "" || entityName == "" {
		return "", "", 0, fmt.Errorf("invalid topic format: %s", topic)
	}
	moduleID, err = strconv.Atoi(parts[n-1])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid module_id in topic: %s", topic)
	}
	return deviceID, entityName, moduleID, nil
}

func (i *Ingestor) batchWriter(ctx context.Context) {
	batch := make([]mqtmodels.DeviceEvent, 0, i.batchCfg.Size)
	timer := time.NewTimer(i.batchCfg.Window)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		i.logger.Logger.Debug().Int("batch_size", len(batch)).Msg("Flushing batch to event store")

		// Shutdown flushes must outlive the cancelled run context
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if err := i.repo.InsertMany(flushCtx, batch); err != nil {
			i.logger.Logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Error inserting events")
			metrics.IncIngestError(ErrInsertFailed)
			i.publishBatchError(batch, err)
		} else {
			metrics.AddIngested(metrics.SourceMQTT, len(batch))
			i.logger.Logger.Info().Int("count", len(batch)).Msg("Successfully stored events")
		}
		batch = make([]mqtmodels.DeviceEvent, 0, i.batchCfg.Size)
	}

	// drain takes what is already queued before the final flush
	drain := func() {
		for {
			select {
			case ev := <-i.msgCh:
				batch = append(batch, ev)
				if len(batch) >= i.batchCfg.Size {
					flush()
				}
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return
		case <-i.done:
			drain()
			return
		case ev := <-i.msgCh:
			batch = append(batch, ev)
			if len(batch) >= i.batchCfg.Size {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(i.batchCfg.Window)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.batchCfg.Window)
		}
	}
}

func (i *Ingestor) publishBatchError(batch []mqtmodels.DeviceEvent, err error) {
	seen := make(map[string]struct{}, len(batch))
	for _, ev := range batch {
		moduleID := strconv.Itoa(ev.ModuleID)
		key := ev.DeviceID + "/" + moduleID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		i.publishError(ev.DeviceID, moduleID, ErrInsertFailed, fmt.Sprintf("Failed to store events: %v", err))
	}
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to the error topic for device feedback
func (i *Ingestor) publishError(deviceID, moduleID, errorType, message string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	errorPayload := map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"device_id":  deviceID,
		"module_id":  moduleID,
		"timestamp":  i.now().UTC(),
	}

	payloadJSON, err := json.Marshal(errorPayload)
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := fmt.Sprintf("%s/%s/%s", i.mqttCfg.ErrorTopic, deviceID, moduleID)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.Wait() && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	} else {
		i.logger.Logger.Info().Str("topic", errorTopic).Str("message", message).Msg("Published error")
	}
}
