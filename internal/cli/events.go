package cli

import (
	"context"
	"errors"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/rs/zerolog"
)

var errDeviceLost = errors.New("device connection lost")

type eventSource interface {
	PollEvents() []models.Event
	State() constants.PipelineState
}

type recordSink interface {
	PublishRecord(record models.SessionRecord) error
}

// consumeEvents drains the pipeline on a fixed timer until ctx ends.
// The pipeline must already be connecting; errDeviceLost is returned once it reports Disconnected.
func consumeEvents(ctx context.Context, source eventSource, sink recordSink, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			handleEvents(source.PollEvents(), sink, logger)
			return ctx.Err()
		case <-ticker.C:
		}

		// State is read before draining so the last events of a lost session are not left behind
		state := source.State()
		handleEvents(source.PollEvents(), sink, logger)

		if state == constants.StateDisconnected {
			return errDeviceLost
		}
	}
}

func handleEvents(events []models.Event, sink recordSink, logger zerolog.Logger) {
	for _, e := range events {
		switch e.Type {
		case models.EventStatusChanged:
			logger.Info().Msg(e.Text)

		case models.EventReadingArrived:
			logger.Debug().Float64("bpm", e.BPM).Msg("Reading")

		case models.EventMetricsArrived:
			if e.Record == nil {
				continue
			}
			event := logger.Info()
			if e.Verdict == models.VerdictAttention {
				event = logger.Warn()
			}
			event.Float64("baseline", e.Record.Baseline).
				Float64("peak", e.Record.Peak).
				Float64("dhr", e.Record.DeltaHR).
				Float64("tpeak", e.Record.TPeakSeconds).
				Float64("recov60", e.Record.Recov60).
				Str("verdict", string(e.Verdict)).
				Msg(e.Record.Interpretation)

			if sink != nil {
				if err := sink.PublishRecord(*e.Record); err != nil {
					logger.Warn().Err(err).Str("record_id", e.Record.ID).Msg("Session record not forwarded")
				}
			}

		case models.EventErrorOccurred:
			logger.Error().Msg(e.Text)
		}
	}
}
