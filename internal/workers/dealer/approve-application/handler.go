package approveapplication

import (
	"context"
	"encoding/json"
	"time"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/metrics"
	"dealer-portal/internal/common/observability"
	"dealer-portal/internal/common/validation"
	"dealer-portal/internal/dealer"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "dealer-application-approve"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["applicationId", "reviewerEmail"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"reviewerEmail": {"type": "string", "minLength": 3}
	}
}`)

// Approver approves dealer applications on behalf of a reviewer.
type Approver interface {
	Approve(ctx context.Context, callerEmail, applicationID string) (*dealer.ApproveResult, error)
}

type Handler struct {
	config  *Config
	service Approver
	errors  *errors.ErrorHandler
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(cfg *Config, svc Approver, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  cfg,
		service: svc,
		errors:  errors.NewErrorHandler(log),
		obs:     obs,
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := ParseInput(job.GetVariables())
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start))
}

// ParseInput decodes and validates the job variables.
func ParseInput(variables string) (*Input, error) {
	if result := inputSchema.ValidateBytes([]byte(variables)); !result.Valid {
		return nil, errors.NewInvalidError("Input validation failed", result.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidError("Failed to parse job variables", err.Error())
	}
	return &input, nil
}

// Execute approves the application as the reviewer named in the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.service.Approve(ctx, input.ReviewerEmail, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	return &Output{
		Approved:    result.Success,
		DealerID:    result.DealerID,
		DealerEmail: result.DealerInfo.Email,
		Message:     result.Message,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(errors.Normalize(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errors.HandleJobError(ctx, client, job, err)
}
