// Package detect runs the entity-detection completion call over one
// document and converts the response into audit records. It makes the
// outbound call and nothing else; persistence belongs to the pipeline.
package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/cost"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/translate"
	"github.com/xavierjflanagan/Guardian-sub001/pkg/anthropic"
)

// Config tunes a Detector.
type Config struct {
	Model              string
	MaxTokens          int64
	OCRConfidenceFloor float64
	// ContractRetries bounds additional completion calls after a response
	// that violates the output contract.
	ContractRetries int
	Retry           resilience.RetryConfig
}

// DefaultConfig mirrors production defaults.
func DefaultConfig() Config {
	return Config{
		Model:              "claude-sonnet-4-20250514",
		MaxTokens:          8192,
		OCRConfidenceFloor: 0.60,
		ContractRetries:    2,
		Retry:              resilience.CompletionRetryConfig(),
	}
}

// Detector performs Pass 1 entity detection.
type Detector struct {
	client     anthropic.Client
	translator *translate.Translator
	calc       *cost.Calculator
	cfg        Config
	log        *zap.Logger
	now        func() time.Time
}

// New creates a Detector.
func New(client anthropic.Client, translator *translate.Translator, calc *cost.Calculator, cfg Config) *Detector {
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	return &Detector{
		client:     client,
		translator: translator,
		calc:       calc,
		cfg:        cfg,
		log:        zap.L(),
		now:        time.Now,
	}
}

// Detect validates the input, runs the completion call with retries, parses
// the structured response, and translates it into audit records. Validation
// failures return an error immediately and are non-retryable. Transport and
// contract failures are folded into the returned result with Success=false;
// RetryRecommended is set only for contract violations and transient
// provider errors, so callers hand reschedulable jobs (and nothing else) to
// the retry queue.
func (d *Detector) Detect(ctx context.Context, in *DocumentInput) (*model.ProcessingResult, model.SessionMetadata, error) {
	if err := Validate(in, d.cfg.OCRConfidenceFloor); err != nil {
		return nil, model.SessionMetadata{}, err
	}

	start := d.now()
	mode := in.Mode()
	session := model.SessionMetadata{
		SessionID:     uuid.NewString(),
		ShellFileID:   in.ShellFileID,
		PatientID:     in.PatientID,
		Model:         d.cfg.Model,
		VisionEnabled: mode == ModeDual,
		StartedAt:     start.UTC(),
	}
	if in.OCR != nil {
		session.OCRProvider = in.OCR.Provider
	}
	req := d.buildRequest(in, mode)
	d.log.Info("entity detection started",
		zap.String("session_id", session.SessionID),
		zap.String("shell_file_id", in.ShellFileID),
		zap.String("mode", string(mode)),
		zap.String("model", d.cfg.Model),
	)

	var usage model.TokenUsage
	resp, err := d.callWithContractRetries(ctx, req, &usage)

	result := &model.ProcessingResult{
		Usage:           usage,
		CostEstimateUSD: d.calc.Completion(d.cfg.Model, usage.InputTokens, usage.OutputTokens),
		Duration:        d.now().Sub(start),
	}
	if err != nil {
		result.Error = err.Error()
		// Contract violations are worth another paid ask later; transport
		// failures are reschedulable only when the provider error is
		// transient. A 400 stays terminal no matter how often it is retried.
		var cerr *contractError
		result.RetryRecommended = eris.As(err, &cerr) || resilience.IsTransient(err)
		d.log.Warn("entity detection failed",
			zap.String("session_id", session.SessionID),
			zap.String("shell_file_id", in.ShellFileID),
			zap.Error(err),
		)
		return result, session, nil
	}

	records, err := d.translator.Translate(session, resp)
	if err != nil {
		// An untranslatable response is a contract failure after the
		// bounded re-asks were spent; the job is reschedulable.
		result.Error = err.Error()
		result.RetryRecommended = true
		return result, session, nil
	}

	result.Success = true
	result.Response = resp
	result.Records = records
	d.log.Info("entity detection completed",
		zap.String("session_id", session.SessionID),
		zap.Int("entities", len(records)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Float64("cost_usd", result.CostEstimateUSD),
		zap.Duration("duration", result.Duration),
	)
	return result, session, nil
}

// callWithContractRetries runs the completion call, re-asking a bounded
// number of times when the response violates the output contract. Transport
// retries happen inside each ask via the backoff executor.
func (d *Detector) callWithContractRetries(ctx context.Context, req anthropic.MessageRequest, usage *model.TokenUsage) (*model.AIResponse, error) {
	var lastErr error
	for ask := 0; ask <= d.cfg.ContractRetries; ask++ {
		msg, err := d.call(ctx, req)
		if msg != nil {
			usage.Add(model.TokenUsage{
				InputTokens:  int(msg.Usage.InputTokens),
				OutputTokens: int(msg.Usage.OutputTokens),
			})
		}
		if err != nil {
			return nil, err
		}

		resp, perr := ParseResponse(msg.Text)
		if perr == nil {
			return resp, nil
		}
		lastErr = perr
		d.log.Warn("malformed completion response",
			zap.Int("ask", ask+1),
			zap.Error(perr),
		)
	}
	return nil, &contractError{err: eris.Wrap(lastErr, "detect: contract retries exhausted")}
}

// contractError marks a response that kept violating the output contract
// after every re-ask was spent.
type contractError struct {
	err error
}

func (e *contractError) Error() string { return e.err.Error() }
func (e *contractError) Unwrap() error { return e.err }

// call performs one ask with transport-level retries, converting provider
// errors into the resilience package's classification.
func (d *Detector) call(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	cfg := d.cfg.Retry
	cfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		msg, err := d.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, classifyProviderError(err)
		}
		return msg, nil
	})
}

func (d *Detector) buildRequest(in *DocumentInput, mode Mode) anthropic.MessageRequest {
	var parts []anthropic.ContentPart
	if mode == ModeDual {
		parts = append(parts,
			anthropic.ImagePart(in.MimeType, in.FileData),
			anthropic.TextPart(BuildDualPrompt(in.OCR)),
		)
	} else {
		parts = append(parts, anthropic.TextPart(BuildOCROnlyPrompt(in.EnhancedText)))
	}
	temp := 0.1
	return anthropic.MessageRequest{
		Model:       d.cfg.Model,
		MaxTokens:   d.cfg.MaxTokens,
		System:      SystemPrompt(mode),
		Messages:    []anthropic.Message{{Role: "user", Parts: parts}},
		Temperature: &temp,
	}
}

// classifyProviderError maps provider API errors onto the retry
// classification: 429 and 5xx become transient (carrying any retry-after
// hint), other statuses stay terminal.
func classifyProviderError(err error) error {
	var apiErr *anthropic.APIError
	if eris.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientErrorWithHint(err, apiErr.StatusCode, apiErr.RetryAfter)
	}
	return err
}
