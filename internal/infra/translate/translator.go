// Package translate maps inbound tool calls onto upstream JSON-RPC requests
// and upstream results back onto the uniform invocation envelope.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Dispatcher is the slice of the upstream client the translator needs.
type Dispatcher interface {
	CallWithID(ctx context.Context, id, method string, params any) (json.RawMessage, *domain.ProtocolError, error)
	Identity() domain.ServerIdentity
}

// SchemaLookup resolves a tool name to its compiled parameter shape. The
// second return reports whether the tool is known at all.
type SchemaLookup func(name string) (*domain.ObjectDescriptor, bool)

type Options struct {
	Mode    domain.ValidationMode
	Logger  *zap.Logger
	Metrics domain.Metrics
}

type Translator struct {
	dispatcher Dispatcher
	lookup     SchemaLookup
	mode       domain.ValidationMode
	logger     *zap.Logger
	metrics    domain.Metrics
	seq        atomic.Uint64
}

func New(dispatcher Dispatcher, lookup SchemaLookup, opts Options) *Translator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.DefaultValidationMode
	}
	return &Translator{
		dispatcher: dispatcher,
		lookup:     lookup,
		mode:       mode,
		logger:     logger.Named("translate"),
		metrics:    metrics,
	}
}

// Invoke translates one tool call end to end: schema lookup, argument
// coercion and validation, upstream dispatch, and envelope construction.
// The correlation id on the returned envelope is the id carried by the
// outbound wire request.
func (t *Translator) Invoke(ctx context.Context, name string, args map[string]any) (*domain.InvocationEnvelope, error) {
	start := time.Now()
	corrID := t.nextCorrelationID()

	desc, ok := t.lookup(name)
	if !ok {
		t.metrics.ObserveInvocation(name, time.Since(start), domain.ErrToolNotFound)
		return nil, domain.E(domain.CodeNotFound, "translate.invoke", fmt.Sprintf("unknown tool %q", name), domain.ErrToolNotFound)
	}

	coerced := CoerceArguments(desc, args)
	if violations := ValidateArguments(desc, coerced); len(violations) > 0 {
		if t.mode == domain.ValidationStrict {
			t.metrics.ObserveInvocation(name, time.Since(start), domain.ErrInvalidArguments)
			return nil, &domain.Error{
				Code:    domain.CodeInvalidArgument,
				Op:      "translate.invoke",
				Message: strings.Join(violations, "; "),
				Cause:   domain.ErrInvalidArguments,
			}
		}
		// Advisory mode: record the violations and let the upstream decide.
		t.logger.Warn("argument validation failed, forwarding anyway",
			zap.String("tool", name),
			zap.String("correlationId", corrID),
			zap.Strings("violations", violations),
		)
	}

	result, protoErr, err := t.dispatcher.CallWithID(ctx, corrID, domain.MethodCallTool, domain.CallToolParams{
		Name:      name,
		Arguments: coerced,
	})
	if err != nil {
		t.metrics.ObserveInvocation(name, time.Since(start), err)
		return nil, err
	}

	envelope := t.buildEnvelope(name, corrID, result, protoErr, start)
	var outcome error
	if !envelope.Success {
		outcome = errors.New(string(envelope.Error.Type))
	}
	t.metrics.ObserveInvocation(name, time.Since(start), outcome)
	return envelope, nil
}

// TranslateBatch translates each well-formed entry independently. Entries
// missing a tool name are dropped from the output; a failing entry yields a
// failure envelope and never aborts the batch.
func (t *Translator) TranslateBatch(ctx context.Context, calls []domain.CallDescriptor) []*domain.InvocationEnvelope {
	results := make([]*domain.InvocationEnvelope, 0, len(calls))
	for _, call := range calls {
		if call.Name == "" {
			continue
		}
		envelope, err := t.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			envelope = t.envelopeFromError(call.Name, err)
		}
		results = append(results, envelope)
	}
	return results
}

// Stats reports the number of correlation ids issued so far.
func (t *Translator) Stats() uint64 {
	return t.seq.Load()
}

func (t *Translator) nextCorrelationID() string {
	return fmt.Sprintf("%s%d", domain.DefaultCorrelationPrefix, t.seq.Add(1))
}

func (t *Translator) buildEnvelope(name, corrID string, result json.RawMessage, protoErr *domain.ProtocolError, start time.Time) *domain.InvocationEnvelope {
	meta := domain.EnvelopeMetadata{
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: t.dispatcher.Identity().ProtocolVersion,
		DurationMillis:  time.Since(start).Milliseconds(),
	}

	if protoErr != nil {
		code := protoErr.Code
		meta.UpstreamErrorCode = &code
		var details any
		if len(protoErr.Data) > 0 {
			if err := json.Unmarshal(protoErr.Data, &details); err != nil {
				details = string(protoErr.Data)
			}
		}
		return &domain.InvocationEnvelope{
			Success:       false,
			Message:       fmt.Sprintf("tool %s failed", name),
			CorrelationID: corrID,
			Metadata:      meta,
			Error: &domain.EnvelopeError{
				Type:    domain.KindForRPCCode(code),
				Message: protoErr.Message,
				Details: details,
			},
		}
	}

	if len(result) == 0 {
		// Upstream reply carried neither result nor error.
		t.logger.Warn("malformed upstream reply",
			zap.String("tool", name),
			zap.String("correlationId", corrID),
		)
		return &domain.InvocationEnvelope{
			Success:       false,
			Message:       fmt.Sprintf("tool %s returned a malformed response", name),
			CorrelationID: corrID,
			Metadata:      meta,
			Error: &domain.EnvelopeError{
				Type:    domain.ErrorKindTranslationError,
				Message: "upstream response carried neither result nor error",
			},
		}
	}

	var data any
	if err := json.Unmarshal(result, &data); err != nil {
		return &domain.InvocationEnvelope{
			Success:       false,
			Message:       fmt.Sprintf("tool %s returned an undecodable result", name),
			CorrelationID: corrID,
			Metadata:      meta,
			Error: &domain.EnvelopeError{
				Type:    domain.ErrorKindTranslationError,
				Message: err.Error(),
			},
		}
	}

	return &domain.InvocationEnvelope{
		Success:       true,
		Data:          data,
		Message:       fmt.Sprintf("tool %s executed", name),
		CorrelationID: corrID,
		Metadata:      meta,
	}
}

// envelopeFromError wraps a pre-dispatch failure into a failure envelope for
// batch responses, preserving the diagnostic detail.
func (t *Translator) envelopeFromError(name string, err error) *domain.InvocationEnvelope {
	kind := domain.ErrorKindInternalError
	if code, ok := domain.CodeFrom(err); ok {
		switch code {
		case domain.CodeNotFound:
			kind = domain.ErrorKindMethodNotFound
		case domain.CodeInvalidArgument:
			kind = domain.ErrorKindInvalidParams
		}
	}
	return &domain.InvocationEnvelope{
		Success:       false,
		Message:       fmt.Sprintf("tool %s failed", name),
		CorrelationID: t.nextCorrelationID(),
		Metadata: domain.EnvelopeMetadata{
			Timestamp:       time.Now().UTC(),
			ProtocolVersion: t.dispatcher.Identity().ProtocolVersion,
		},
		Error: &domain.EnvelopeError{
			Type:    kind,
			Message: err.Error(),
		},
	}
}
