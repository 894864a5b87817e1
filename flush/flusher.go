package flush

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"go.uber.org/multierr"
)

// Flusher writes the events of an aggregation period to their destination.
// Flush returns the number of bytes and events written.
type Flusher interface {
	Flush(events []common.EMFEvent) (int, int, error)
	Close() error
}

func InitFlusher(opts *options.PluginOptions) (Flusher, error) {
	var flushers multiFlusher
	if opts.OutputPath != "" {
		f, err := initFileFlush(opts.OutputPath)
		if err != nil {
			return nil, err
		}
		flushers = append(flushers, f)
	}
	if opts.LogGroupName != "" {
		f, err := initCloudWatchFlush(context.Background(), opts)
		if err != nil {
			return nil, multierr.Append(err, flushers.Close())
		}
		flushers = append(flushers, f)
	}

	switch len(flushers) {
	case 0:
		return nil, errors.New("no output configured")
	case 1:
		return flushers[0], nil
	}
	return flushers, nil
}

// multiFlusher writes every event to each of its flushers. Sizes and counts
// are reported for the first one.
type multiFlusher []Flusher

func (m multiFlusher) Flush(events []common.EMFEvent) (int, int, error) {
	var size, count int
	var err error
	for i, f := range m {
		s, c, ferr := f.Flush(events)
		if ferr != nil {
			err = multierr.Append(err, fmt.Errorf("output %d: %w", i, ferr))
			continue
		}
		if i == 0 {
			size, count = s, c
		}
	}
	return size, count, err
}

func (m multiFlusher) Close() error {
	var err error
	for _, f := range m {
		err = multierr.Append(err, f.Close())
	}
	return err
}
