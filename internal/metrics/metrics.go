// Package metrics records invocation metrics as CloudWatch embedded metric
// format documents and ships them to CloudWatch Logs.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwlTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/cwlclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
)

const (
	// error msgs
	ClientNilErrMsg     = "cloudwatch logs client is nil"
	LogGroupEmptyErrMsg = "log group is empty"

	DefaultNamespace = "Hermes"

	// PutLogEvents limits.
	maxBatchEvents = 10000
	maxBatchBytes  = 1 << 20
	eventOverhead  = 26

	pkgPrefix = "metrics: "
)

// Metric names recorded per dispatch. ErrorsByCode is only recorded for
// failed dispatches and carries a Code dimension.
const (
	Invocations  = "Invocations"
	Errors       = "Errors"
	ErrorsByCode = "ErrorsByCode"
	Duration     = "Duration"
)

// Metric is one data point.
type Metric struct {
	Name       string
	Value      float64
	Unit       cwTypes.StandardUnit
	Timestamp  time.Time
	Dimensions map[string]string
}

// Record is a built EMF document.
type Record struct {
	Payload   []byte
	Timestamp int64
}

// Emitter collects metrics during an invocation and ships them on Flush.
type Emitter interface {
	Emit(m Metric)
	Flush(ctx context.Context) error
}

// Noop drops every metric.
type Noop struct{}

func (Noop) Emit(Metric)                 {}
func (Noop) Flush(context.Context) error { return nil }

// Build turns a Metric into an EMF record. Dimension keys are sorted so the
// document is deterministic.
func Build(namespace string, m Metric) (Record, error) {
	if m.Name == "" {
		return Record{}, errors.New(pkgPrefix + "metric name is empty")
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	unit := m.Unit
	if unit == "" {
		unit = cwTypes.StandardUnitNone
	}

	dimKeys := make([]string, 0, len(m.Dimensions))
	for k := range m.Dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := map[string]any{
		"_aws": map[string]any{
			"Timestamp": ts.UnixMilli(),
			"CloudWatchMetrics": []map[string]any{{
				"Namespace":  namespace,
				"Dimensions": [][]string{dimKeys},
				"Metrics":    []map[string]any{{"Name": m.Name, "Unit": unit}},
			}},
		},
		m.Name: m.Value,
	}
	for _, k := range dimKeys {
		doc[k] = m.Dimensions[k]
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf(pkgPrefix+"marshal %s: %w", m.Name, err)
	}
	return Record{Payload: payload, Timestamp: ts.UnixMilli()}, nil
}

type CloudWatchLogsConfig struct {
	Client    cwlclient.CloudWatchLogsClient
	Namespace string
	LogGroup  string
	LogStream string
	// RetentionDays applies to a log group created by Ensure.
	RetentionDays int32
	Logger        logger.Logger
}

// CloudWatchLogs buffers records in memory and writes them with
// PutLogEvents on Flush.
type CloudWatchLogs struct {
	client    cwlclient.CloudWatchLogsClient
	namespace string
	dest      cwlclient.Destination
	log       logger.Logger

	mu      sync.Mutex
	pending []Record
}

func NewCloudWatchLogs(cfg CloudWatchLogsConfig) (*CloudWatchLogs, error) {
	if cfg.Client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	if cfg.LogGroup == "" {
		return nil, errors.New(LogGroupEmptyErrMsg)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &CloudWatchLogs{
		client:    cfg.Client,
		namespace: cfg.Namespace,
		dest: cwlclient.Destination{
			Group:         cfg.LogGroup,
			Stream:        cfg.LogStream,
			RetentionDays: cfg.RetentionDays,
		},
		log: logger.OrDefault(cfg.Logger),
	}, nil
}

// Ensure creates the log group and stream when they are missing.
func (c *CloudWatchLogs) Ensure(ctx context.Context) error {
	return c.dest.Ensure(ctx, c.client)
}

// Emit builds and buffers m. A metric that cannot be built is logged and dropped.
func (c *CloudWatchLogs) Emit(m Metric) {
	rec, err := Build(c.namespace, m)
	if err != nil {
		c.log.Warn(pkgPrefix+"dropping metric: %v", err)
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, rec)
	c.mu.Unlock()
}

// Pending reports how many records wait for the next Flush.
func (c *CloudWatchLogs) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush ships every buffered record, oldest first, split to respect the
// PutLogEvents count and size limits. Records of a failed batch are dropped.
func (c *CloudWatchLogs) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Timestamp < batch[j].Timestamp
	})

	var errs []error
	for _, chunk := range split(batch) {
		evts := make([]cwlTypes.InputLogEvent, len(chunk))
		for i, rec := range chunk {
			evts[i] = cwlTypes.InputLogEvent{
				Message:   aws.String(string(rec.Payload)),
				Timestamp: aws.Int64(rec.Timestamp),
			}
		}
		_, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(c.dest.Group),
			LogStreamName: aws.String(c.dest.Stream),
			LogEvents:     evts,
		})
		if err != nil {
			c.log.Error(pkgPrefix+"error flushing batch: %v", err)
			errs = append(errs, fmt.Errorf(pkgPrefix+"error flushing batch: %w", err))
			continue
		}
		c.log.Debug(pkgPrefix+"flushed batch batchSize : %v , logGroup : %v , logStream : %v", len(chunk), c.dest.Group, c.dest.Stream)
	}
	return errors.Join(errs...)
}

func split(recs []Record) [][]Record {
	var (
		out   [][]Record
		cur   []Record
		bytes int
	)
	for _, r := range recs {
		size := len(r.Payload) + eventOverhead
		if len(cur) > 0 && (len(cur) == maxBatchEvents || bytes+size > maxBatchBytes) {
			out = append(out, cur)
			cur, bytes = nil, 0
		}
		cur = append(cur, r)
		bytes += size
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
