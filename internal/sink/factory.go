package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cx-go/internal/config"
	"cx-go/internal/cx"
)

// Router dispatches artifacts by destination: s3:// destinations go to the
// S3 sink, everything else to the local sink.
type Router struct {
	local cx.Sink
	s3    cx.Sink
}

// NewRouter creates a Router. s3 may be nil, in which case s3://
// destinations are rejected.
func NewRouter(local, s3 cx.Sink) *Router {
	return &Router{local: local, s3: s3}
}

// NewSinkFromConfig creates the sink used for exports. The S3 sink is only
// built when the s3 section is configured.
func NewSinkFromConfig(ctx context.Context, cfg *config.Config, logger cx.Logger) (*Router, error) {
	local := NewFileSystemSink(logger)
	if !cfg.S3.Enabled() {
		return NewRouter(local, nil), nil
	}
	remote, err := NewS3Sink(ctx, cfg.S3, logger)
	if err != nil {
		return nil, fmt.Errorf("creating s3 sink: %w", err)
	}
	return NewRouter(local, remote), nil
}

func (r *Router) PutArtifact(ctx context.Context, destination, name string, rd io.Reader, size int64) (string, error) {
	if strings.HasPrefix(destination, S3Scheme) {
		if r.s3 == nil {
			return "", fmt.Errorf("s3 destination %s requires the [s3] config section", destination)
		}
		return r.s3.PutArtifact(ctx, destination, name, rd, size)
	}
	return r.local.PutArtifact(ctx, destination, name, rd, size)
}

func (r *Router) ValidateSetup() error {
	if err := r.local.ValidateSetup(); err != nil {
		return err
	}
	if r.s3 != nil {
		return r.s3.ValidateSetup()
	}
	return nil
}

var _ cx.Sink = (*Router)(nil)
