package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/admission"
	"github.com/freewayhq/freeway/internal/clock"
	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	"github.com/freewayhq/freeway/internal/observability/logger"
	"github.com/freewayhq/freeway/internal/observability/metrics"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
)

// Sink receives SSE frames for one streamed completion. Send returns an error
// once the client is gone.
type Sink interface {
	Send(data []byte) error
	Flush()
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Registry  registrydomain.Service
	Ledger    ledgerdomain.Service
	Admission *admission.Controller
	Provider  providerdomain.Client
	Metrics   *metrics.Metrics `optional:"true"`
}

// Service runs the completion pipeline: admit, price, invoke, record.
type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	registry  registrydomain.Service
	ledger    ledgerdomain.Service
	admission *admission.Controller
	provider  providerdomain.Client
	metrics   *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:       p.Log.Named("completion.service"),
		clock:     p.Clock,
		registry:  p.Registry,
		ledger:    p.Ledger,
		admission: p.Admission,
		provider:  p.Provider,
		metrics:   p.Metrics,
	}
}

// Complete serves a non-streaming completion and records exactly one usage
// event priced at write time.
func (s *Service) Complete(ctx context.Context, principal *principaldomain.Principal, req providerdomain.Request) (*providerdomain.Response, error) {
	model, err := s.admit(ctx, principal, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		s.metrics.RecordProviderFailure(ctx, req.Model)
		return nil, err
	}

	usage := providerdomain.Usage{}
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	s.record(ctx, principal, model, resp.ID, usage)

	return resp, nil
}

// Stream serves a streamed completion: chunks are forwarded in arrival order
// as SSE frames, then the [DONE] sentinel. Usage is accumulated last-wins
// across usage-bearing chunks and recorded exactly once, even when the client
// disconnects or the upstream fails mid-stream.
func (s *Service) Stream(ctx context.Context, principal *principaldomain.Principal, req providerdomain.Request, sink Sink) error {
	model, err := s.admit(ctx, principal, req)
	if err != nil {
		return err
	}

	stream, err := s.provider.StreamCompletion(ctx, req)
	if err != nil {
		s.metrics.RecordProviderFailure(ctx, req.Model)
		return err
	}
	defer stream.Close()

	var (
		responseID string
		usage      providerdomain.Usage
	)
	recorded := false
	record := func() {
		if recorded {
			return
		}
		recorded = true
		s.record(ctx, principal, model, responseID, usage)
	}
	defer record()

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			s.metrics.RecordProviderFailure(ctx, req.Model)
			return err
		}

		if responseID == "" && chunk.ID != "" {
			responseID = chunk.ID
		}
		if chunk.Usage != nil {
			// Last-wins: whatever the most recent usage-bearing chunk says
			// is the truth so far.
			usage = *chunk.Usage
		}

		frame, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if err := sink.Send(frame); err != nil {
			// Client is gone; keep whatever usage accumulated.
			logger.FromContext(ctx).Debug("client disconnected mid-stream",
				zap.String("model", req.Model),
			)
			return nil
		}
		sink.Flush()
	}

	if err := sink.Send([]byte("[DONE]")); err == nil {
		sink.Flush()
	}

	return nil
}

// admit runs the quota checks and prices the model. The upstream is never
// contacted for an unknown model or a denied principal.
func (s *Service) admit(ctx context.Context, principal *principaldomain.Principal, req providerdomain.Request) (*registrydomain.Model, error) {
	if principal == nil {
		return nil, principaldomain.ErrUnauthenticated
	}

	if err := s.admission.CheckAdmission(ctx, principal); err != nil {
		return nil, err
	}

	model, err := s.registry.Lookup(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCompletionRequest(ctx, req.Model, req.Stream)
	return model, nil
}

// record appends the usage event. Recording is best-effort: a failed append
// never breaks a reply that already reached the client.
func (s *Service) record(ctx context.Context, principal *principaldomain.Principal, model *registrydomain.Model, responseID string, usage providerdomain.Usage) {
	if responseID == "" {
		responseID = "chatcmpl-" + ulid.Make().String()
	}

	cost := float64(usage.PromptTokens)*model.InputCostPerToken +
		float64(usage.CompletionTokens)*model.OutputCostPerToken

	event := &ledgerdomain.UsageEvent{
		Timestamp:        s.clock.Now().UTC(),
		ResponseID:       responseID,
		UserID:           principal.ID,
		Model:            model.Name,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          &cost,
	}

	// Detach from the request context so a client disconnect cannot cancel
	// the write.
	if err := s.ledger.Append(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error("usage recording failed",
			zap.String("user_id", principal.ID),
			zap.String("model", model.Name),
			zap.String("response_id", responseID),
			zap.Error(err),
		)
	}
}
