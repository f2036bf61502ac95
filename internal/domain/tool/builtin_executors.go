package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBuiltinExecutionFailed = errors.New("builtin tool execution failed")

type EntityExtractionExecutor struct{ svc entityExtractor }

func NewEntityExtractionExecutor(svc entityExtractor) ToolExecutor {
	return &EntityExtractionExecutor{svc: svc}
}

type entityExtractionParams struct {
	Question string `json:"question"`
}

func (e *EntityExtractionExecutor) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in entityExtractionParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid params", ErrBuiltinExecutionFailed)
	}
	return marshalResult(e.svc.Extract(ctx, in.Question))
}

type QueryBuilderExecutor struct{ svc queryBuilder }

func NewQueryBuilderExecutor(svc queryBuilder) ToolExecutor {
	return &QueryBuilderExecutor{svc: svc}
}

type queryBuilderParams struct {
	Question string         `json:"question"`
	Entities map[string]any `json:"entities"`
}

func (e *QueryBuilderExecutor) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in queryBuilderParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid params", ErrBuiltinExecutionFailed)
	}
	return marshalResult(e.svc.Build(ctx, in.Question, in.Entities))
}

type QueryExecutorExecutor struct{ svc queryRunner }

func NewQueryExecutorExecutor(svc queryRunner) ToolExecutor {
	return &QueryExecutorExecutor{svc: svc}
}

type queryExecutorParams struct {
	QuerySpecText string `json:"query_spec_text"`
}

func (e *QueryExecutorExecutor) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in queryExecutorParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid params", ErrBuiltinExecutionFailed)
	}
	return marshalResult(e.svc.Run(ctx, in.QuerySpecText))
}

type AnswerSynthesisExecutor struct{ svc answerSynthesizer }

func NewAnswerSynthesisExecutor(svc answerSynthesizer) ToolExecutor {
	return &AnswerSynthesisExecutor{svc: svc}
}

type answerSynthesisParams struct {
	Question string         `json:"question"`
	Result   map[string]any `json:"result"`
}

func (e *AnswerSynthesisExecutor) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in answerSynthesisParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid params", ErrBuiltinExecutionFailed)
	}
	return marshalResult(e.svc.Synthesize(ctx, in.Question, in.Result))
}

func marshalResult(v any) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal result: %v", ErrBuiltinExecutionFailed, err)
	}
	return out, nil
}
