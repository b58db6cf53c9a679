package pipeline

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/realtime-ai/speech-translate/pkg/controller"
	"github.com/realtime-ai/speech-translate/pkg/fabric"
	"github.com/realtime-ai/speech-translate/pkg/output"
	"github.com/realtime-ai/speech-translate/pkg/trace"
	"github.com/realtime-ai/speech-translate/pkg/translate"
	"github.com/realtime-ai/speech-translate/pkg/vad"
)

// capturePump copies frames from the capture source's handoff channel into
// the monitored capture->VAD queue. The put is non-blocking: a full queue
// drops the frame and counts it, never stalls the source.
func (p *Pipeline) capturePump(ctx context.Context) {
	defer p.frameQ.Close()

	for {
		select {
		case frame, ok := <-p.source.Frames():
			if !ok {
				if err := p.source.Err(); err != nil {
					log.Printf("[capture] terminal device error: %v", err)
				}
				return
			}
			if !p.frameQ.TryPut(frame) {
				p.monitor.ReportPutFailure("capture_to_vad", p.frameQ.Len(), p.frameQ.Cap())
				p.statMu.Lock()
				p.droppedFrames++
				p.statMu.Unlock()
			}
		case <-ctx.Done():
			return
		}
	}
}

// vadWorker runs the segmentation state machine over incoming frames,
// dispatches completed segments as final ASR jobs, and ticks the draft
// controller once per frame. When the frame queue drains at shutdown it
// optionally force-finalizes the in-flight segment before closing the ASR
// queue.
func (p *Pipeline) vadWorker(ctx context.Context) {
	defer p.asrQ.Close()

	wasSpeaking := false

	for {
		frame, ok := p.frameQ.Get(ctx)
		if !ok {
			break
		}

		_, span := trace.InstrumentVAD(ctx, frame.Index)
		segments, err := p.engine.ProcessFrame(frame.Samples)
		if err != nil {
			trace.RecordError(span, err)
			span.End()
			log.Printf("[vad] inference failed on frame %d: %v", frame.Index, err)
			continue
		}
		span.End()

		speaking := p.engine.IsSpeaking()
		if speaking && !wasSpeaking {
			p.ctrl.StartSegment(time.Now())
		}
		wasSpeaking = speaking

		for _, seg := range segments {
			p.dispatchFinal(seg)
		}
		p.maybeDraft()
	}

	if ctx.Err() == nil && p.cfg.ProcessFinalOnShutdown {
		if seg, ok := p.engine.ForceFinalize(); ok {
			p.dispatchFinal(seg)
		}
	}
}

// dispatchFinal registers a completed Speech Segment with the tracker and
// enqueues its final recognition job. A full ASR queue drops the segment
// with an explicit record; it is never silently discarded.
func (p *Pipeline) dispatchFinal(seg vad.Segment) {
	p.tracker.NewSegment(seg.ID, seg.UUID)
	p.collector.SegmentCreated()

	job := asrJob{
		isFinal:     true,
		segmentID:   seg.ID,
		segmentUUID: seg.UUID,
		startSec:    seg.StartSec,
		endSec:      seg.EndSec,
		audio:       seg.Audio,
		confidence:  seg.Confidence,
		isPartial:   seg.IsPartial,
	}

	p.tracker.Advance(seg.UUID, fabric.StageASRQueued)
	if !p.asrQ.TryPut(job) {
		p.monitor.ReportPutFailure("vad_to_asr", p.asrQ.Len(), p.asrQ.Cap())
		p.dropSegment(seg.UUID, "asr queue full")
	}
}

// maybeDraft consults the draft controller and, when all four gates pass,
// snapshots the in-flight segment's audio into a draft job.
func (p *Pipeline) maybeDraft() {
	if !p.engine.IsSpeaking() {
		return
	}

	state := controller.VADState{
		IsSpeaking:       true,
		RecentPauseMs:    p.engine.RecentPauseMs(),
		SpeechDurationMs: p.engine.BufferedDurationMs(),
	}
	if !p.ctrl.ShouldTriggerDraft(time.Now(), p.engine.BufferedDurationMs(), state, p.asrQ.Len()) {
		return
	}

	samples, startSec, ok := p.engine.PeekAudio()
	if !ok {
		return
	}
	uuid, _ := p.engine.PendingUUID()
	id, _ := p.engine.PendingID()

	job := asrJob{
		segmentID:   id,
		segmentUUID: uuid,
		startSec:    startSec,
		audio:       samples,
	}
	if !p.asrQ.TryPut(job) {
		p.monitor.ReportPutFailure("vad_to_asr", p.asrQ.Len(), p.asrQ.Cap())
		p.statMu.Lock()
		p.droppedDrafts++
		p.statMu.Unlock()
	}
}

// runASRPool runs the configured number of ASR workers under one errgroup
// so they exit together, then closes the translation queue.
func (p *Pipeline) runASRPool(ctx context.Context) {
	defer p.transQ.Close()

	g := new(errgroup.Group)
	for i := 0; i < p.cfg.ASRWorkers; i++ {
		g.Go(func() error {
			p.asrWorker(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[asr] worker pool: %v", err)
	}
}

func (p *Pipeline) asrWorker(ctx context.Context) {
	for {
		job, ok := p.asrQ.Get(ctx)
		if !ok {
			return
		}
		if job.isFinal {
			p.processFinalASR(ctx, job)
		} else {
			p.processDraftASR(ctx, job)
		}
	}
}

func (p *Pipeline) processFinalASR(ctx context.Context, job asrJob) {
	procStart := time.Now()
	p.tracker.Advance(job.segmentUUID, fabric.StageASRProcessing)
	p.collector.ASRCall()

	session := p.sessionFor(job.segmentUUID)
	session.SetAudio(pcmF32LE(job.audio))

	spanCtx, span := trace.InstrumentASR(ctx, job.segmentID, job.segmentUUID, p.asrProvider.Name(), "final")
	out, err := session.Final(spanCtx)
	p.dropSession(job.segmentUUID)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		log.Printf("[asr] final recognition failed for segment %d: %v", job.segmentID, err)
		p.errorSegment(job.segmentUUID, err.Error())
		return
	}
	span.End()

	p.tracker.Advance(job.segmentUUID, fabric.StageASRComplete)

	if out.Result.ShouldSkipTranslation || strings.TrimSpace(out.Result.CleanedText) == "" {
		reason := "low_quality"
		if out.Result.IsHallucination {
			reason = "hallucination"
		}
		p.dropSegment(job.segmentUUID, reason)
		return
	}

	tj := translationJob{
		isFinal:     true,
		segmentID:   job.segmentID,
		segmentUUID: job.segmentUUID,
		startSec:    job.startSec,
		endSec:      job.endSec,
		isPartial:   job.isPartial,
		text:        out.Result.CleanedText,
		confidence:  float64(out.Confidence),
		procStart:   procStart,
	}
	p.tracker.Advance(job.segmentUUID, fabric.StageTranslationQueued)
	if !p.transQ.TryPut(tj) {
		p.monitor.ReportPutFailure("asr_to_translation", p.transQ.Len(), p.transQ.Cap())
		p.dropSegment(job.segmentUUID, "translation queue full")
	}
}

func (p *Pipeline) processDraftASR(ctx context.Context, job asrJob) {
	procStart := time.Now()
	p.collector.ASRCall()

	session := p.sessionFor(job.segmentUUID)
	session.SetAudio(pcmF32LE(job.audio))

	spanCtx, span := trace.InstrumentASR(ctx, job.segmentID, job.segmentUUID, p.asrProvider.Name(), "draft")
	out, err := session.Draft(spanCtx)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		log.Printf("[asr] draft recognition failed for segment %d: %v", job.segmentID, err)
		return
	}
	span.End()

	if out.Result.ShouldSkipTranslation || strings.TrimSpace(out.Result.CleanedText) == "" {
		return
	}

	tj := translationJob{
		segmentID:   job.segmentID,
		segmentUUID: job.segmentUUID,
		startSec:    job.startSec,
		text:        out.Result.CleanedText,
		confidence:  float64(out.Confidence),
		procStart:   procStart,
	}
	if !p.transQ.TryPut(tj) {
		p.monitor.ReportPutFailure("asr_to_translation", p.transQ.Len(), p.transQ.Cap())
		p.statMu.Lock()
		p.droppedDrafts++
		p.statMu.Unlock()
	}
}

// translationWorker is deliberately singular: one worker processing one
// FIFO queue serializes all translation calls for a given segment, which
// keeps the stability baseline deterministic.
func (p *Pipeline) translationWorker(ctx context.Context) {
	defer p.outQ.Close()

	for {
		job, ok := p.transQ.Get(ctx)
		if !ok {
			return
		}
		p.processTranslation(ctx, job)
	}
}

func (p *Pipeline) processTranslation(ctx context.Context, job translationJob) {
	mode := "draft"
	if job.isFinal {
		mode = "final"
		p.tracker.Advance(job.segmentUUID, fabric.StageTranslationActive)
	}

	var res translate.Result
	if p.cfg.EnableTranslation {
		spanCtx, span := trace.InstrumentTranslate(ctx, job.segmentID, job.segmentUUID, "", p.cfg.SourceLang, p.cfg.TargetLang, mode)
		var err error
		if job.isFinal {
			res, err = p.translator.Final(spanCtx, job.segmentUUID, job.text, p.cfg.SourceLang, p.cfg.TargetLang)
		} else {
			res, err = p.translator.Draft(spanCtx, job.segmentUUID, job.text, p.cfg.SourceLang, p.cfg.TargetLang)
		}
		if err != nil {
			// Translator implementations fold backend failures into the
			// result; an error return here is a programming fault.
			trace.RecordError(span, err)
			res = translate.Result{SourceText: job.text, SkippedReason: "error: " + err.Error()}
		}
		span.End()
	} else {
		res = translate.Result{SourceText: job.text}
	}

	if strings.HasPrefix(res.SkippedReason, "error:") {
		if job.isFinal {
			log.Printf("[translate] final failed for segment %d: %s", job.segmentID, res.SkippedReason)
			p.errorSegment(job.segmentUUID, res.SkippedReason)
		}
		return
	}
	if !job.isFinal && p.cfg.EnableTranslation && res.Skipped() {
		// Semantic-gate skip: not an error, no output; the draft UI keeps
		// showing the prior translation.
		return
	}

	if res.CacheHit {
		p.collector.CacheHit()
	}
	if job.isFinal {
		p.tracker.Advance(job.segmentUUID, fabric.StageTranslationDone)
	}

	oj := outputJob{
		record: output.Record{
			SourceText:     job.text,
			TranslatedText: res.TranslatedText,
			SourceLang:     p.cfg.SourceLang,
			TargetLang:     p.cfg.TargetLang,
			Confidence:     job.confidence,
			ProcessingMs:   time.Since(job.procStart).Seconds() * 1000,
			IsFinal:        job.isFinal,
			IsPartial:      job.isPartial,
			SegmentID:      job.segmentID,
			SegmentUUID:    job.segmentUUID,
		},
		isFinal:        job.isFinal,
		segmentUUID:    job.segmentUUID,
		segStart:       p.wallClock(job.startSec),
		segEnd:         p.wallClock(job.endSec),
		stability:      res.StabilityScore,
		hasTranslation: res.TranslatedText != "",
	}

	if job.isFinal {
		p.tracker.Advance(job.segmentUUID, fabric.StageOutputQueued)
	}
	if !p.outQ.PutWithTimeout(ctx, oj, p.cfg.OutputPutTimeout) {
		p.monitor.ReportPutFailure("translation_to_output", p.outQ.Len(), p.outQ.Cap())
		if job.isFinal {
			p.dropSegment(job.segmentUUID, "output queue full")
		} else {
			p.statMu.Lock()
			p.droppedDrafts++
			p.statMu.Unlock()
		}
	}
}

// outputWorker is the sole emitter to external collaborators. Drafts are
// emitted as they arrive; finals are held briefly when they arrive out of
// segment-id order (two ASR workers can complete adjacent segments out of
// order) and released once every lower id is terminal.
func (p *Pipeline) outputWorker(ctx context.Context) {
	pending := make(map[uint64]outputJob)
	var nextFinalID uint64

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-p.outQ.Out():
			if !ok {
				p.flushAll(ctx, pending)
				return
			}
			if !job.isFinal {
				p.emit(ctx, job)
				continue
			}
			pending[job.record.SegmentID] = job
			nextFinalID = p.releaseFinals(ctx, pending, nextFinalID)
		case <-ticker.C:
			nextFinalID = p.releaseFinals(ctx, pending, nextFinalID)
		case <-ctx.Done():
			p.flushAll(ctx, pending)
			return
		}
	}
}

// releaseFinals emits every pending final whose turn has come: either its
// id is next, or every segment between it and the cursor already reached a
// terminal state (dropped or errored, so no final will ever arrive).
func (p *Pipeline) releaseFinals(ctx context.Context, pending map[uint64]outputJob, next uint64) uint64 {
	for len(pending) > 0 {
		if job, ok := pending[next]; ok {
			p.emit(ctx, job)
			delete(pending, next)
			next++
			continue
		}
		stage, known := p.tracker.CurrentStageByID(next)
		if known && (stage == fabric.StageDropped || stage == fabric.StageError) {
			next++
			continue
		}
		break
	}
	return next
}

// flushAll emits whatever finals remain, in id order, when the session is
// ending and no further arrivals are possible.
func (p *Pipeline) flushAll(ctx context.Context, pending map[uint64]outputJob) {
	ids := make([]uint64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p.emit(ctx, pending[id])
	}
}

func (p *Pipeline) emit(ctx context.Context, job outputJob) {
	now := time.Now()
	job.record.Timestamp = float64(now.UnixNano()) / float64(time.Second)

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, job.record); err != nil {
			log.Printf("[output] sink write failed for segment %d: %v", job.record.SegmentID, err)
		}
	}

	if job.isFinal {
		p.tracker.Emit(job.segmentUUID)
		p.collector.FinalEmitted(job.segmentUUID, job.segStart, job.segEnd, now, job.hasTranslation)
		p.translator.ForgetSegment(job.segmentUUID)
	} else {
		p.collector.DraftEmitted(job.segmentUUID, job.segStart, now, job.stability, job.hasTranslation)
	}
}
