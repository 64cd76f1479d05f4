// internal/workers/ai-conversation/parse-user-intent/handler.go
package parseuserintent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"carmarket-search/internal/assistant/intent"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/metrics"
	"carmarket-search/internal/common/observability"
)

const TaskType = "parse-user-intent"

const (
	SourceListings = "listings"
	SourceLLM      = "llm"
	SourceAccount  = "account"
)

// dataSources tells the process which branches an intent needs.
var dataSources = map[intent.Intent][]string{
	intent.CarListing: {SourceListings},
	intent.CarSpecs:   {SourceListings, SourceLLM},
	intent.CarCompare: {SourceListings, SourceLLM},
	intent.FAQ:        {SourceLLM},
	intent.UserInfo:   {SourceAccount},
}

// Classifier never fails; it falls back to keyword rules.
type Classifier interface {
	Classify(ctx context.Context, utterance string) intent.Classification
}

type Handler struct {
	config     *Config
	classifier Classifier
	errors     *errors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(config *Config, classifier Classifier, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		classifier: classifier,
		errors:     errors.NewErrorHandler(log),
		obs:        obs,
		logger:     log,
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
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, errors.NewInvalidRequestError("question is required")
	}

	c := h.classifier.Classify(ctx, question)

	entities := []Entity{}
	for _, name := range c.Entities.CarMakes {
		entities = append(entities, Entity{Type: "car_make", Value: name})
	}
	for _, name := range c.Entities.CarModels {
		entities = append(entities, Entity{Type: "car_model", Value: name})
	}

	sources := dataSources[c.Intent]
	if sources == nil {
		sources = []string{}
	}

	h.logger.Info("intent parsed", map[string]interface{}{
		"intent":     c.Intent,
		"confidence": c.Confidence,
		"entities":   len(entities),
	})

	return &Output{
		IntentAnalysis: IntentAnalysis{PrimaryIntent: string(c.Intent), Confidence: c.Confidence},
		DataSources:    sources,
		Entities:       entities,
	}, nil
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
