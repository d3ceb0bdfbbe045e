package sink

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/sinkerr"
)

// MQTTConfig configures an MQTTWriter (spec §6 "target.mqtt").
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	Retain    bool
	KeepAlive time.Duration
}

// publishTimeout bounds how long Write waits for a single publish token to
// settle before treating it as a transient failure worth retrying.
const publishTimeout = 10 * time.Second

// MQTTWriter publishes formatted messages over MQTT via paho.mqtt.golang,
// grounded on original_source's MqttWriter.cpp/MqttClient.cpp (connect with
// auto-reconnect, retry-on-buffer-full publish).
type MQTTWriter struct {
	*BaseWriter
	cfg    MQTTConfig
	client mqtt.Client
}

// NewMQTTWriter constructs an MQTTWriter; call Connect before Write.
func NewMQTTWriter(cfg MQTTConfig, pacer *pacing.Strategy, retry *RetryPolicy, reg prometheus.Registerer) *MQTTWriter {
	return &MQTTWriter{
		BaseWriter: NewBaseWriter("mqtt", pacer, retry, reg),
		cfg:        cfg,
	}
}

// Connect implements Writer.
func (w *MQTTWriter) Connect(ctx context.Context) error {
	if w.client != nil && w.client.IsConnected() {
		return nil
	}
	opts := mqtt.NewClientOptions().
		AddBroker(w.cfg.BrokerURL).
		SetClientID(w.cfg.ClientID).
		SetUsername(w.cfg.Username).
		SetPassword(w.cfg.Password).
		SetKeepAlive(w.cfg.KeepAlive).
		SetAutoReconnect(true).
		SetCleanSession(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return sinkerr.NewFatal(errors.New("sink/mqtt: connect timed out"))
	}
	if err := token.Error(); err != nil {
		return sinkerr.NewFatal(errors.Wrap(err, "sink/mqtt: connecting"))
	}
	w.client = client
	return nil
}

// Prepare implements Writer: MQTT has nothing to prepare, but still
// requires a live connection.
func (w *MQTTWriter) Prepare(ctx context.Context, sinkCtx format.SinkContext) error {
	if w.client == nil || !w.client.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Write implements Writer.
func (w *MQTTWriter) Write(ctx context.Context, env Envelope) error {
	if w.client == nil {
		return ErrNotConnected
	}
	return w.ExecuteWrite(env, "mqtt publish", func() error {
		return w.publishBatch(env.Result.Messages)
	})
}

func (w *MQTTWriter) publishBatch(messages []format.Message) error {
	for _, m := range messages {
		token := w.client.Publish(m.Key, w.cfg.QoS, w.cfg.Retain, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return sinkerr.NewTransient(errors.Errorf("sink/mqtt: publish to %q timed out", m.Key))
		}
		if err := token.Error(); err != nil {
			return sinkerr.NewTransient(errors.Wrapf(err, "sink/mqtt: publish to %q", m.Key))
		}
	}
	return nil
}

// Close implements Writer.
func (w *MQTTWriter) Close() error {
	if w.client == nil {
		return nil
	}
	if w.client.IsConnected() {
		w.client.Disconnect(250)
	}
	w.client = nil
	return nil
}
