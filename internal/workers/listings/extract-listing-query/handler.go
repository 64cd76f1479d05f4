// internal/workers/listings/extract-listing-query/handler.go
package extractlistingquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
	"carmarket-search/internal/common/observability"
	"carmarket-search/internal/search/filterspec"
)

const TaskType = "extract-listing-query"

// Extractor turns an utterance into a filter spec. It never fails.
type Extractor interface {
	Extract(ctx context.Context, utterance string) extractor.ExtractedQuery
	FilterSpec(q extractor.ExtractedQuery, utterance string) filterspec.FilterSpec
	Mode() string
}

type Handler struct {
	config    *Config
	extractor Extractor
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, ext Extractor, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		extractor: ext,
		errors:    errors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start))
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	utterance := strings.TrimSpace(input.Utterance)
	if utterance == "" {
		return nil, errors.NewInvalidRequestError("utterance is required")
	}
	if h.config.MaxUtteranceLength > 0 && len([]rune(utterance)) > h.config.MaxUtteranceLength {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("utterance exceeds %d characters", h.config.MaxUtteranceLength))
	}

	q := h.extractor.Extract(ctx, utterance)
	spec := h.extractor.FilterSpec(q, utterance)

	h.logger.Info("query extracted", map[string]interface{}{
		"mode":       h.extractor.Mode(),
		"confidence": q.Confidence,
		"keywords":   q.ExtractedKeywords,
	})

	return &Output{ExtractedQuery: q, FilterSpec: spec, Mode: h.extractor.Mode()}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		h.failJob(client, job, errors.NewInternalError(err))
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(context.Background(), TaskType, "success")
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.obs.RecordJobProcessed(context.Background(), TaskType, "failed")
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
