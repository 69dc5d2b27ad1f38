// Package pipeline implements stage orchestration for the document-to-catalog
// extraction pipeline: Parse, Normalize, Match, Route. Each stage is a
// separate Kafka consumer unit of work so a crash between stages resumes
// cleanly from durable state instead of losing in-flight progress.
package pipeline

import (
	"context"
	"time"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	kafkainfra "github.com/turtacn/shipcat-extractor/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Store is the slice of the Extraction Store the driver needs to move an
// extraction through its stages.
type Store interface {
	Get(ctx context.Context, id common.ID) (*extraction.Extraction, error)
	UpdateStatus(ctx context.Context, id common.ID, newState extraction.State, errMsg *string) error
	SaveRawResult(ctx context.Context, extractionID common.ID, raw *extraction.RawExtraction) error
	SaveItems(ctx context.Context, extractionID common.ID, items []*extraction.ExtractedLineItem) ([]*extraction.ExtractedLineItem, error)
	UpdateItemMatch(ctx context.Context, itemID common.ID, result extraction.MatchResult) error
	UpdateItemTier(ctx context.Context, itemID common.ID, tier extraction.ConfidenceTier) error
	UpdateSummaryCounters(ctx context.Context, extractionID common.ID, total, auto, quick, full int) error
}

// Publisher is the slice of kafka.Producer the driver uses to dispatch the
// next stage or announce a terminal outcome.
type Publisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// Subscriber is the slice of kafka.Consumer the driver registers its stage
// handlers against.
type Subscriber interface {
	Subscribe(topic string, handler common.MessageHandler) error
}

// Driver orchestrates the Parse -> Normalize -> Match -> Route pipeline.
// It holds no state of its own between stage invocations: every decision is
// re-derived from the Extraction row, so retries and crash recovery just
// mean re-running a handler against the same durable state.
type Driver struct {
	store     Store
	ocr       extraction.OCRAdapter
	matcher   *extraction.Matcher
	producer  Publisher
	router    extraction.RouterConfig
	batchSize int
	log       logging.Logger
}

// NewDriver constructs a Driver. batchSize is PipelineConfig.ExtractionBatchSize
// and falls back to 50 when non-positive.
func NewDriver(store Store, ocr extraction.OCRAdapter, matcher *extraction.Matcher, producer Publisher, router extraction.RouterConfig, batchSize int, log logging.Logger) *Driver {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if batchSize < 1 {
		batchSize = 50
	}
	return &Driver{store: store, ocr: ocr, matcher: matcher, producer: producer, router: router, batchSize: batchSize, log: log}
}

// RegisterHandlers subscribes each stage's handler to its topic.
func (d *Driver) RegisterHandlers(consumer Subscriber) error {
	handlers := map[string]common.MessageHandler{
		kafkainfra.TopicStageParse:     d.handleParse,
		kafkainfra.TopicStageNormalize: d.handleNormalize,
		kafkainfra.TopicStageMatch:     d.handleMatch,
		kafkainfra.TopicStageRoute:     d.handleRoute,
	}
	for topic, handler := range handlers {
		if err := consumer.Subscribe(topic, handler); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch enqueues the Parse stage for a newly created, PENDING extraction.
func (d *Driver) Dispatch(ctx context.Context, id common.ID, tenantID common.TenantID) error {
	return d.dispatchNext(ctx, kafkainfra.TopicStageParse, id, tenantID)
}

// resumeTopics maps an extraction's current State to the topic whose handler
// accepts that state as its entry guard. It mirrors the four handleX guards
// exactly, so Resume never re-dispatches a stage that would just log a
// "skipping" warning and no-op.
var resumeTopics = map[extraction.State]string{
	extraction.StatePending:     kafkainfra.TopicStageParse,
	extraction.StateParsing:     kafkainfra.TopicStageNormalize,
	extraction.StateNormalizing: kafkainfra.TopicStageMatch,
	extraction.StateMatching:    kafkainfra.TopicStageRoute,
}

// Resume re-dispatches a stuck extraction from its current stage rather than
// restarting it at Parse. It looks up the extraction's durable State and
// republishes to whichever stage topic's handler is guarded to accept that
// state.
//
// StateRouting has no entry in resumeTopics: handleRoute transitions
// StateMatching straight through StateRouting to StateCompleted without
// yielding control in between, so a row observed sitting in StateRouting
// means handleRoute crashed mid-stage and no handler is guarded to pick it
// back up from there. Resume reports that case as an illegal transition
// rather than silently no-op dispatching a topic nothing will act on.
// StateCompleted and StateFailed are terminal and likewise rejected.
func (d *Driver) Resume(ctx context.Context, id common.ID, tenantID common.TenantID) error {
	ext, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	topic, ok := resumeTopics[ext.State]
	if !ok {
		return apperrors.IllegalTransition("extraction " + string(id) + " cannot be resumed from state " + string(ext.State))
	}
	return d.dispatchNext(ctx, topic, id, tenantID)
}

// handleParse runs stage 1: PENDING -> PARSING, OCR the source document,
// persist the raw result.
func (d *Driver) handleParse(ctx context.Context, msg *common.Message) error {
	payload, err := d.decode(msg)
	if err != nil {
		return err
	}
	id := common.ID(payload.ExtractionID)
	log := d.log.With(logging.String("extraction_id", string(id)), logging.String("stage", "parse"))

	ext, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if ext.State != extraction.StatePending {
		log.Warn("skipping parse: extraction already past PENDING", logging.String("state", string(ext.State)))
		return nil
	}
	if err := d.store.UpdateStatus(ctx, id, extraction.StateParsing, nil); err != nil {
		return err
	}

	raw, err := d.ocr.Parse(ctx, ext.Filename)
	if err != nil {
		if af, ok := err.(*extraction.AdapterFailure); ok && af.Kind == extraction.FailurePermanent {
			log.Error("parse stage failed permanently", logging.Err(err))
			return d.fail(ctx, id, ext.TenantID, err)
		}
		log.Warn("parse stage failed, will retry", logging.Err(err))
		return err
	}

	if err := d.store.SaveRawResult(ctx, id, raw); err != nil {
		return err
	}
	log.Info("parse stage complete", logging.Int("lines", len(raw.Lines)))
	return d.dispatchNext(ctx, kafkainfra.TopicStageNormalize, id, ext.TenantID)
}

// handleNormalize runs stage 2: PARSING -> NORMALIZING, turn raw OCR lines
// into ExtractedLineItems.
func (d *Driver) handleNormalize(ctx context.Context, msg *common.Message) error {
	payload, err := d.decode(msg)
	if err != nil {
		return err
	}
	id := common.ID(payload.ExtractionID)
	log := d.log.With(logging.String("extraction_id", string(id)), logging.String("stage", "normalize"))

	ext, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if ext.State != extraction.StateParsing {
		log.Warn("skipping normalize: extraction not in PARSING state", logging.String("state", string(ext.State)))
		return nil
	}
	if err := d.store.UpdateStatus(ctx, id, extraction.StateNormalizing, nil); err != nil {
		return err
	}

	var lines []string
	if ext.RawResult != nil {
		lines = ext.RawResult.Lines
	}
	items := make([]*extraction.ExtractedLineItem, 0, len(lines))
	for _, line := range lines {
		qty, unit := extraction.ParseQuantity(line)
		items = append(items, &extraction.ExtractedLineItem{
			RawText:               line,
			NormalizedDescription: extraction.NormalizeDescription(line),
			DetectedQuantity:      qty,
			DetectedUnit:          unit,
			DetectedIMPACode:      extraction.DetectIMPAInText(line),
			MatchMethod:           extraction.MatchMethodNone,
		})
	}
	if _, err := d.store.SaveItems(ctx, id, items); err != nil {
		return err
	}
	log.Info("normalize stage complete", logging.Int("items", len(items)))
	return d.dispatchNext(ctx, kafkainfra.TopicStageMatch, id, ext.TenantID)
}

// handleMatch runs stage 3: NORMALIZING -> MATCHING, run the matching
// cascade over every item in batches of d.batchSize.
func (d *Driver) handleMatch(ctx context.Context, msg *common.Message) error {
	payload, err := d.decode(msg)
	if err != nil {
		return err
	}
	id := common.ID(payload.ExtractionID)
	log := d.log.With(logging.String("extraction_id", string(id)), logging.String("stage", "match"))

	ext, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if ext.State != extraction.StateNormalizing {
		log.Warn("skipping match: extraction not in NORMALIZING state", logging.String("state", string(ext.State)))
		return nil
	}
	if err := d.store.UpdateStatus(ctx, id, extraction.StateMatching, nil); err != nil {
		return err
	}

	for start := 0; start < len(ext.Items); start += d.batchSize {
		end := start + d.batchSize
		if end > len(ext.Items) {
			end = len(ext.Items)
		}
		for _, item := range ext.Items[start:end] {
			result := d.matcher.Match(ctx, item.DetectedIMPACode, item.RawText, item.NormalizedDescription)
			if err := d.store.UpdateItemMatch(ctx, item.ID, result); err != nil {
				return err
			}
		}
		log.Debug("match batch complete", logging.Int("start", start), logging.Int("end", end))
	}
	log.Info("match stage complete", logging.Int("items", len(ext.Items)))
	return d.dispatchNext(ctx, kafkainfra.TopicStageRoute, id, ext.TenantID)
}

// handleRoute runs stage 4: MATCHING -> ROUTING -> COMPLETED, assign a
// confidence tier to every item and stamp the parent's summary counters.
func (d *Driver) handleRoute(ctx context.Context, msg *common.Message) error {
	payload, err := d.decode(msg)
	if err != nil {
		return err
	}
	id := common.ID(payload.ExtractionID)
	log := d.log.With(logging.String("extraction_id", string(id)), logging.String("stage", "route"))

	ext, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if ext.State != extraction.StateMatching {
		log.Warn("skipping route: extraction not in MATCHING state", logging.String("state", string(ext.State)))
		return nil
	}
	if err := d.store.UpdateStatus(ctx, id, extraction.StateRouting, nil); err != nil {
		return err
	}

	var total, auto, quick, full int
	for _, item := range ext.Items {
		tier := extraction.RouteConfidence(item.MatchConfidence, d.router)
		if err := d.store.UpdateItemTier(ctx, item.ID, tier); err != nil {
			return err
		}
		total++
		switch tier {
		case extraction.TierAuto:
			auto++
		case extraction.TierQuickReview:
			quick++
		case extraction.TierFullReview:
			full++
		}
	}
	if err := d.store.UpdateSummaryCounters(ctx, id, total, auto, quick, full); err != nil {
		return err
	}
	if err := d.store.UpdateStatus(ctx, id, extraction.StateCompleted, nil); err != nil {
		return err
	}
	log.Info("route stage complete, extraction COMPLETED",
		logging.Int("total", total), logging.Int("auto", auto),
		logging.Int("quick_review", quick), logging.Int("full_review", full))
	d.publishTerminal(ctx, id, ext.TenantID, extraction.StateCompleted, "")
	return nil
}

// fail marks an extraction FAILED and announces it on the failure topic. It
// never returns a retryable error: a permanently failed stage must not be
// retried by the caller.
func (d *Driver) fail(ctx context.Context, id common.ID, tenantID common.TenantID, cause error) error {
	msg := cause.Error()
	if err := d.store.UpdateStatus(ctx, id, extraction.StateFailed, &msg); err != nil {
		return err
	}
	d.publishTerminal(ctx, id, tenantID, extraction.StateFailed, msg)
	return nil
}

func (d *Driver) decode(msg *common.Message) (kafkainfra.StageDispatchPayload, error) {
	env, err := kafkainfra.MessageToEventEnvelope(msg)
	if err != nil {
		return kafkainfra.StageDispatchPayload{}, err
	}
	var payload kafkainfra.StageDispatchPayload
	if err := env.DecodePayload(&payload); err != nil {
		return kafkainfra.StageDispatchPayload{}, err
	}
	return payload, nil
}

func (d *Driver) dispatchNext(ctx context.Context, topic string, id common.ID, tenantID common.TenantID) error {
	payload := kafkainfra.StageDispatchPayload{
		ExtractionID: string(id),
		TenantID:     string(tenantID),
		EnqueuedAt:   time.Now(),
	}
	env, err := kafkainfra.NewEventEnvelope("extraction.stage.dispatch", "pipeline-driver", payload)
	if err != nil {
		return err
	}
	kmsg, err := env.ToMessage(topic)
	if err != nil {
		return err
	}
	return d.producer.Publish(ctx, kmsg)
}

func (d *Driver) publishTerminal(ctx context.Context, id common.ID, tenantID common.TenantID, state extraction.State, errMsg string) {
	topic := kafkainfra.TopicExtractionCompleted
	if state == extraction.StateFailed {
		topic = kafkainfra.TopicExtractionFailed
	}
	payload := kafkainfra.ExtractionTerminalPayload{
		ExtractionID: string(id),
		TenantID:     string(tenantID),
		FinalState:   string(state),
		ErrorMessage: errMsg,
		OccurredAt:   time.Now(),
	}
	env, err := kafkainfra.NewEventEnvelope("extraction.terminal", "pipeline-driver", payload)
	if err != nil {
		d.log.Error("failed to build terminal event envelope", logging.Err(err))
		return
	}
	kmsg, err := env.ToMessage(topic)
	if err != nil {
		d.log.Error("failed to encode terminal event", logging.Err(err))
		return
	}
	if err := d.producer.Publish(ctx, kmsg); err != nil {
		d.log.Error("failed to publish terminal event", logging.Err(err))
	}
}
