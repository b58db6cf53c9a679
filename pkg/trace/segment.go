package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared across the pipeline's spans.
const (
	AttrSegmentID      = "segment.id"
	AttrSegmentUUID    = "segment.uuid"
	AttrSegmentStage   = "segment.stage"
	AttrSegmentFinal   = "segment.is_final"
	AttrSegmentPartial = "segment.is_partial"

	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChannels   = "audio.channels"
	AttrAudioDataSize   = "audio.data_size"

	AttrASRProvider = "asr.provider"
	AttrASRMode     = "asr.mode" // draft | final
	AttrASRLanguage = "asr.language"

	AttrTranslateProvider = "translate.provider"
	AttrTranslateSource   = "translate.source_lang"
	AttrTranslateTarget   = "translate.target_lang"
	AttrTranslateSkip     = "translate.skip_reason"

	AttrQueueName  = "queue.name"
	AttrQueueDepth = "queue.depth"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// RecordError marks a stage span failed: the error is recorded as a span
// event and the span status set, so a segment's trace shows exactly which
// stage broke it.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SegmentAttrs returns the attributes identifying a segment in every span that touches it.
func SegmentAttrs(segmentID uint64, segmentUUID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrSegmentID, int64(segmentID)),
		attribute.String(AttrSegmentUUID, segmentUUID),
	}
}

// ErrorAttrs creates attributes describing an error.
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}

// InstrumentVAD starts a span for a VAD processing pass over one audio frame.
func InstrumentVAD(ctx context.Context, frameIndex int64) (context.Context, trace.Span) {
	return StartSpan(ctx, "vad.process",
		trace.WithAttributes(attribute.Int64("audio.frame_index", frameIndex)),
	)
}

// InstrumentASR starts a span for one ASR call (draft or final) against a segment.
func InstrumentASR(ctx context.Context, segmentID uint64, segmentUUID, provider, mode string) (context.Context, trace.Span) {
	attrs := append(SegmentAttrs(segmentID, segmentUUID),
		attribute.String(AttrASRProvider, provider),
		attribute.String(AttrASRMode, mode),
	)
	return StartSpan(ctx, fmt.Sprintf("asr.%s", mode), trace.WithAttributes(attrs...))
}

// InstrumentTranslate starts a span for one translation call against a segment.
func InstrumentTranslate(ctx context.Context, segmentID uint64, segmentUUID, provider, srcLang, tgtLang, mode string) (context.Context, trace.Span) {
	attrs := append(SegmentAttrs(segmentID, segmentUUID),
		attribute.String(AttrTranslateProvider, provider),
		attribute.String(AttrTranslateSource, srcLang),
		attribute.String(AttrTranslateTarget, tgtLang),
	)
	return StartSpan(ctx, fmt.Sprintf("translate.%s", mode), trace.WithAttributes(attrs...))
}

// InstrumentQueuePut starts a span for a single queue put attempt, for the rare cases
// callers want per-put tracing rather than just the aggregate monitor metrics.
func InstrumentQueuePut(ctx context.Context, queueName string, depth, capacity int) (context.Context, trace.Span) {
	return StartSpan(ctx, "queue.put",
		trace.WithAttributes(
			attribute.String(AttrQueueName, queueName),
			attribute.Int(AttrQueueDepth, depth),
			attribute.Int("queue.capacity", capacity),
		),
	)
}
