package flush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/google/uuid"
)

const (
	// See: http://docs.aws.amazon.com/AmazonCloudWatchLogs/latest/APIReference/API_PutLogEvents.html
	perEventBytes          = 26
	maximumBytesPerPut     = 1048576
	maximumLogEventsPerPut = 10000
	maximumBytesPerEvent   = 1024 * 256 //256KB
	maxGroupStreamLength   = 512

	defaultStreamPrefix = "khisto-"
)

// cloudWatchLogsAPI is the part of the CloudWatch Logs client the flusher
// needs.
type cloudWatchLogsAPI interface {
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

type cloudwatchFlusher struct {
	client        cloudWatchLogsAPI
	logGroupName  string
	logStreamName string
	now           func() time.Time
}

func initCloudWatchFlush(ctx context.Context, opts *options.PluginOptions) (*cloudwatchFlusher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	if endpoint := baseEndpoint(opts.CloudWatchEndpoint, opts.Protocol); endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return newCloudWatchFlusher(ctx, cloudwatchlogs.NewFromConfig(cfg), opts.LogGroupName, opts.LogStreamName)
}

func baseEndpoint(endpoint, protocol string) string {
	if endpoint == "" {
		return ""
	}
	if protocol == "" {
		protocol = "https"
	}
	return protocol + "://" + endpoint
}

// newCloudWatchFlusher creates the log stream, generating a name when none
// is given. A stream that already exists is reused.
func newCloudWatchFlusher(ctx context.Context, client cloudWatchLogsAPI, groupName, streamName string) (*cloudwatchFlusher, error) {
	if streamName == "" {
		streamName = defaultStreamPrefix + uuid.NewString()
	}
	if len(groupName) > maxGroupStreamLength || len(streamName) > maxGroupStreamLength {
		return nil, fmt.Errorf("log group and stream names are limited to %d characters", maxGroupStreamLength)
	}

	_, err := client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(groupName),
		LogStreamName: aws.String(streamName),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return nil, fmt.Errorf("failed to create log stream: %w", err)
	}
	if exists != nil {
		log.Info().Printf("log stream %s already exists, appending to it\n", streamName)
	}

	return &cloudwatchFlusher{
		client:        client,
		logGroupName:  groupName,
		logStreamName: streamName,
		now:           time.Now,
	}, nil
}

func (f *cloudwatchFlusher) Flush(events []common.EMFEvent) (int, int, error) {
	// Create batches that respect CloudWatch Logs limits
	currentBatch := make([]types.InputLogEvent, 0, len(events))
	currentBatchSize := 0
	size, count := 0, 0

	send := func() error {
		if err := f.sendBatch(currentBatch); err != nil {
			return err
		}
		size += currentBatchSize
		count += len(currentBatch)
		currentBatch = make([]types.InputLogEvent, 0, len(events))
		currentBatchSize = 0
		return nil
	}

	for _, event := range events {
		marshalled, err := json.Marshal(event)
		if err != nil {
			return size, count, fmt.Errorf("failed to marshal event: %w", err)
		}
		data := string(marshalled)

		if (len(data) + perEventBytes) > maximumBytesPerEvent {
			log.Warn().Printf("dropping event that is too large to send, was %d\n", len(data))
			continue
		}

		// If adding this event would exceed batch size, flush current batch
		if (currentBatchSize+len(data)+perEventBytes) > maximumBytesPerPut || len(currentBatch) == maximumLogEventsPerPut {
			if err := send(); err != nil {
				return size, count, err
			}
		}

		currentBatch = append(currentBatch, types.InputLogEvent{
			Timestamp: aws.Int64(f.now().UnixMilli()),
			Message:   aws.String(data),
		})
		currentBatchSize += len(data) + perEventBytes
	}

	if err := send(); err != nil {
		return size, count, err
	}
	return size, count, nil
}

func (f *cloudwatchFlusher) sendBatch(batch []types.InputLogEvent) error {
	if len(batch) == 0 {
		return nil
	}

	_, err := f.client.PutLogEvents(context.Background(), &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(f.logGroupName),
		LogStreamName: aws.String(f.logStreamName),
		LogEvents:     batch,
	})
	if err != nil {
		return fmt.Errorf("failed to put log events: %w", err)
	}
	return nil
}

func (f *cloudwatchFlusher) Close() error {
	return nil
}
