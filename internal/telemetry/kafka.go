package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/config"
	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

const kafkaRetryDelay = time.Second

// KafkaSource consumes JSON encoded samples from a topic into a Buffer.
type KafkaSource struct {
	reader *kafka.Reader
	buffer *Buffer
}

func NewKafkaSource(cfg config.KafkaConfig, buffer *Buffer) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &KafkaSource{reader: reader, buffer: buffer}, nil
}

// Start reads until ctx is cancelled. Undecodable messages are logged and
// skipped.
func (k *KafkaSource) Start(ctx context.Context) error {
	log := logger.WithComponent("telemetry")
	log.Info().Str("topic", k.reader.Config().Topic).Msg("kafka source started")

	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("failed to read kafka message")
			select {
			case <-time.After(kafkaRetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		k.handle(msg)
	}
}

func (k *KafkaSource) handle(msg kafka.Message) {
	log := logger.WithComponent("telemetry")
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("telemetry").Inc()
			log.Error().Interface("panic", r).Int64("offset", msg.Offset).Msg("panic while decoding sample")
		}
	}()

	samples, _, err := DecodeSamples(msg.Value)
	if err != nil {
		metrics.ValidationErrors.WithLabelValues("sample").Inc()
		log.Warn().
			Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("skipping invalid sample message")
		return
	}
	k.buffer.Push("kafka", samples...)
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}

// DecodeSamples accepts either one JSON sample or a JSON array of samples.
// Samples that fail validation are dropped and counted in rejected; err is
// only set when the payload is not valid JSON.
func DecodeSamples(data []byte) (samples []models.MetricSample, rejected int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, 0, fmt.Errorf("failed to decode samples: %w", err)
		}
	} else {
		var s models.MetricSample
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, 0, fmt.Errorf("failed to decode sample: %w", err)
		}
		samples = append(samples, s)
	}

	log := logger.WithComponent("telemetry")
	valid := samples[:0]
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			rejected++
			metrics.ValidationErrors.WithLabelValues("sample").Inc()
			verr := &alert.ValidationError{Kind: "sample", ID: fmt.Sprintf("%d:%s", i, samples[i].DeviceID), Err: err}
			log.Warn().Err(verr).Msg("skipping invalid sample")
			continue
		}
		valid = append(valid, samples[i])
	}
	return valid, rejected, nil
}
