package service

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"

	"github.com/livekit/livekit-capture/pkg/messaging"
	"github.com/livekit/livekit-capture/pkg/recorder"
)

type Status string

const (
	Starting  Status = "starting"
	Recording Status = "recording"
	Stopping  Status = "stopping"
	Complete  Status = "complete"
)

const RequestStop = "stop"

// Request is read from the control channel. An empty RecordingID
// addresses any recorder.
type Request struct {
	Request     string `json:"request"`
	RecordingID string `json:"recording_id,omitempty"`
}

// Service runs one recording, accepts stop requests from the message bus
// and publishes the result when the recording ends.
type Service struct {
	rec    *recorder.Recorder
	bus    utils.MessageBus
	status atomic.Value // Status
}

func NewService(rec *recorder.Recorder, bus utils.MessageBus) *Service {
	s := &Service{
		rec: rec,
		bus: bus,
	}
	s.status.Store(Starting)
	return s
}

func (s *Service) Status() Status {
	return s.status.Load().(Status)
}

func (s *Service) Run(ctx context.Context) (*recorder.Result, error) {
	requests, err := s.bus.Subscribe(ctx, messaging.ControlChannel)
	if err != nil {
		return nil, err
	}
	defer requests.Close()

	result := make(chan *recorder.Result, 1)
	go func() {
		// blocks until recorder is finished
		result <- s.rec.Run(ctx)
	}()
	s.status.Store(Recording)
	logger.Debugw("waiting for requests", "recordingID", s.rec.ID())

	msgs := requests.Channel()
	for {
		select {
		case res := <-result:
			s.status.Store(Complete)
			return res, s.publishResult(res)
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.handleRequest(requests.Payload(msg))
		}
	}
}

func (s *Service) handleRequest(payload []byte) {
	req := &Request{}
	if err := json.Unmarshal(payload, req); err != nil {
		logger.Errorw("failed to read request", err, "recordingID", s.rec.ID())
		return
	}
	if req.RecordingID != "" && req.RecordingID != s.rec.ID() {
		logger.Debugw("ignoring request for another recording", "recordingID", req.RecordingID)
		return
	}

	switch req.Request {
	case RequestStop:
		if state := s.Status(); state != Recording {
			logger.Warnw("stop requested in unexpected state", nil, "state", state)
			return
		}
		s.status.Store(Stopping)
		logger.Infow("stop requested", "recordingID", s.rec.ID())
		s.rec.Stop()
	default:
		logger.Warnw("unknown request", nil, "request", req.Request)
	}
}

func (s *Service) publishResult(res *recorder.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		logger.Errorw("failed to marshal result", err)
		return err
	}
	// the recording context may already be cancelled
	if err = s.bus.Publish(context.Background(), messaging.ResultChannel, b); err != nil {
		logger.Errorw("failed to write result", err)
		return err
	}
	return nil
}
