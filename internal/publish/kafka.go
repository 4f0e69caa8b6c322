// Package publish streams decoded RIB snapshots to Kafka for downstream
// consumers.
package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/route-beacon/rib-gateway/internal/snapshot"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

type Kafka struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewKafka(brokers []string, topic, clientID string, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*Kafka, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.Lz4Compression(), kgo.NoCompression()),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Name implements snapshot.Sink.
func (k *Kafka) Name() string { return "kafka" }

// Publish implements snapshot.Sink: one record per decoded route, keyed
// by prefix so per-prefix history lands in one partition.
func (k *Kafka) Publish(ctx context.Context, res *snapshot.Result) error {
	records, err := buildRecords(res)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("producing %d route records: %w", len(records), err)
	}

	k.logger.Debug("snapshot published",
		zap.Int("records", len(records)),
		zap.String("topic", k.topic),
	)
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}

func buildRecords(res *snapshot.Result) ([]*kgo.Record, error) {
	fetchedAt := strconv.FormatInt(res.FetchedAt.Unix(), 10)

	records := make([]*kgo.Record, 0, len(res.Routes))
	for _, r := range res.Routes {
		value, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshaling route %s: %w", r.Prefix, err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(r.Prefix),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "instance_id", Value: []byte(res.InstanceID)},
				{Key: "fetched_at", Value: []byte(fetchedAt)},
			},
		})
	}
	return records, nil
}
