package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-capture/pkg/config"
	"github.com/livekit/livekit-capture/pkg/media"
	"github.com/livekit/livekit-capture/pkg/pipeline"
	"github.com/livekit/livekit-capture/pkg/upload"
)

type Uploader interface {
	Upload(ctx context.Context, filename string) (string, error)
}

type Option func(*Recorder)

func WithUploader(u Uploader) Option {
	return func(r *Recorder) {
		r.uploader = u
	}
}

func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(r *Recorder) {
		r.pipelineOpts = append(r.pipelineOpts, opts...)
	}
}

// Result describes one recording. Location is the uploaded object when an
// upload succeeded, otherwise the local file, and is empty when the capture
// itself failed.
type Result struct {
	ID        string `json:"id"`
	Location  string `json:"location,omitempty"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at"`
	// milliseconds
	Duration int64  `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type Recorder struct {
	id           string
	conf         *config.Config
	pipeline     *pipeline.Pipeline
	pipelineOpts []pipeline.Option
	uploader     Uploader
}

func NewRecorder(conf *config.Config, fw media.Framework, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		id:   uuid.NewString(),
		conf: conf,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.uploader == nil && conf.UploadEnabled() {
		u, err := upload.NewUploader(conf.S3)
		if err != nil {
			return nil, err
		}
		r.uploader = u
	}

	r.pipeline = pipeline.New(fw, r.pipelineOpts...)
	return r, nil
}

func (r *Recorder) ID() string {
	return r.id
}

// Run records until the stream ends, then uploads the file if configured.
func (r *Recorder) Run(ctx context.Context) *Result {
	res := &Result{ID: r.id}
	startedAt := time.Now()
	res.StartedAt = startedAt.UnixNano()
	logger.Infow("recording started", "recordingID", r.id)

	err := r.pipeline.Run(ctx)
	endedAt := time.Now()
	res.EndedAt = endedAt.UnixNano()
	res.Duration = endedAt.Sub(startedAt).Milliseconds()
	if err != nil {
		logger.Errorw("recording failed", err, "recordingID", r.id)
		res.Error = err.Error()
		return res
	}

	res.Location = pipeline.OutputLocation
	if r.uploader != nil {
		// the capture may have been ended by cancelling ctx
		location, err := r.uploader.Upload(context.WithoutCancel(ctx), pipeline.OutputLocation)
		if err != nil {
			logger.Errorw("upload failed", err, "recordingID", r.id)
			res.Error = err.Error()
			return res
		}
		res.Location = location
	}

	logger.Infow("recording complete", "recordingID", r.id, "location", res.Location, "duration", res.Duration)
	return res
}

// Stop ends a running recording gracefully.
func (r *Recorder) Stop() {
	r.pipeline.Close()
}
