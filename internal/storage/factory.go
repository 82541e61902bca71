package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
)

// Sink type constants.
const (
	SinkFile = "file"
	SinkS3   = "s3"
)

// NewSink creates an export sink based on the configuration.
// Supported sinks: "file" (default), "s3".
func NewSink(ctx context.Context, logger *common.Logger, config *common.ExportConfig) (interfaces.ExportSink, error) {
	sink := config.Sink
	if sink == "" {
		sink = SinkFile
	}

	switch sink {
	case SinkFile:
		return NewFileSink(logger, config.Dir)

	case SinkS3:
		s3Sink, err := NewS3Sink(ctx, logger, config.S3)
		if err != nil {
			return nil, err
		}
		if config.S3.Endpoint != "" {
			if err := s3Sink.EnsureBucket(ctx); err != nil {
				logger.Warn().Err(err).Str("bucket", config.S3.Bucket).Msg("Could not ensure bucket exists")
			}
		}
		return s3Sink, nil

	default:
		return nil, fmt.Errorf("unknown export sink: %s (supported: file, s3)", sink)
	}
}
