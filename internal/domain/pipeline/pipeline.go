// Package pipeline drives the four tool calls that turn a question into an
// answer. Each step's artifact is threaded into the next call; the
// orchestrator never inspects artifact contents beyond their shape.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/nl2sql"
	"github.com/matiasleandrokruk/sqlagent/internal/domain/tool"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/eventbus"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/mcp/client"
)

// TopicStep is the eventbus topic carrying StepEvent payloads.
const TopicStep = "pipeline.step"

var (
	ErrEmptyQuestion   = errors.New("question is required")
	ErrUnexpectedShape = errors.New("unexpected result shape")
)

// Invoker performs one tool call. *client.Session implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args any) (client.Result, error)
}

// Step is a position in the run. Runs move forward only and end in
// StepDone or StepFailed.
type Step int

const (
	StepExtracting Step = iota
	StepBuilding
	StepExecuting
	StepSynthesizing
	StepDone
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepExtracting:
		return "extracting"
	case StepBuilding:
		return "building"
	case StepExecuting:
		return "executing"
	case StepSynthesizing:
		return "synthesizing"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// State holds the artifacts of one run. Each artifact is written once, by
// the step that produces it.
type State struct {
	RunID     string
	Question  string
	Entities  map[string]any
	QuerySpec string
	ResultSet map[string]any
	Answer    string
	Step      Step
}

// StepError reports the step and tool at which a run stopped.
type StepError struct {
	Step Step
	Tool string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline failed at step %s (%s): %v", e.Step, e.Tool, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepEvent is published on TopicStep when a step starts, completes or fails.
type StepEvent struct {
	RunID    string
	Step     Step
	Tool     string
	Status   string
	Marker   bool
	Duration time.Duration
	Err      string
}

const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type stage struct {
	tool  string
	shape client.ResultShape
	args  func(*State) map[string]any
	keep  func(*State, client.Result)
	next  Step
}

var stages = map[Step]stage{
	StepExtracting: {
		tool:  tool.BuiltinEntityExtraction,
		shape: client.ShapeStructured,
		args:  func(s *State) map[string]any { return map[string]any{"question": s.Question} },
		keep:  func(s *State, r client.Result) { s.Entities = r.Data },
		next:  StepBuilding,
	},
	StepBuilding: {
		tool:  tool.BuiltinQueryBuilder,
		shape: client.ShapeText,
		args: func(s *State) map[string]any {
			return map[string]any{"question": s.Question, "entities": s.Entities}
		},
		keep: func(s *State, r client.Result) { s.QuerySpec = r.Text },
		next: StepExecuting,
	},
	StepExecuting: {
		tool:  tool.BuiltinQueryExecutor,
		shape: client.ShapeStructured,
		args:  func(s *State) map[string]any { return map[string]any{"query_spec_text": s.QuerySpec} },
		keep:  func(s *State, r client.Result) { s.ResultSet = r.Data },
		next:  StepSynthesizing,
	},
	StepSynthesizing: {
		tool:  tool.BuiltinAnswerSynthesis,
		shape: client.ShapeText,
		args: func(s *State) map[string]any {
			return map[string]any{"question": s.Question, "result": s.ResultSet}
		},
		keep: func(s *State, r client.Result) { s.Answer = r.Text },
		next: StepDone,
	},
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds a whole run. The in-flight call is cancelled when it expires.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithEventBus publishes StepEvents on bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithLogger overrides the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator runs the pipeline against one Invoker. Runs on the same
// orchestrator are serialized.
type Orchestrator struct {
	invoker Invoker
	timeout time.Duration
	bus     eventbus.EventBus
	log     *slog.Logger

	mu sync.Mutex
}

// New returns an Orchestrator calling tools through invoker.
func New(invoker Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{invoker: invoker, log: logging.New("pipeline")}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask runs the pipeline and returns the answer. Infrastructure failures are
// returned as text naming the failed step.
func (o *Orchestrator) Ask(ctx context.Context, question string) string {
	st, err := o.Run(ctx, question)
	if err != nil {
		return err.Error()
	}
	return st.Answer
}

// Run executes every step in order and returns the state reached. On error
// the state holds the artifacts produced before the failing step and the
// error is a *StepError.
func (o *Orchestrator) Run(ctx context.Context, question string) (*State, error) {
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	st := &State{RunID: uuid.NewString(), Question: question, Step: StepExtracting}
	log := o.log.With(slog.String("run_id", st.RunID))

	for st.Step != StepDone {
		sg := stages[st.Step]
		o.publish(StepEvent{RunID: st.RunID, Step: st.Step, Tool: sg.tool, Status: StatusStarted})
		start := time.Now()

		res, err := o.invoker.Invoke(ctx, sg.tool, sg.args(st))
		if err == nil && res.Shape != sg.shape {
			err = fmt.Errorf("%w: %s returned %s, want %s", ErrUnexpectedShape, sg.tool, res.Shape, sg.shape)
		}
		if err != nil {
			failed := &StepError{Step: st.Step, Tool: sg.tool, Err: err}
			o.publish(StepEvent{
				RunID: st.RunID, Step: st.Step, Tool: sg.tool, Status: StatusFailed,
				Duration: time.Since(start), Err: err.Error(),
			})
			log.Warn("pipeline step failed", slog.String("step", st.Step.String()), slog.Any("error", err))
			st.Step = StepFailed
			return st, failed
		}

		sg.keep(st, res)
		o.publish(StepEvent{
			RunID: st.RunID, Step: st.Step, Tool: sg.tool, Status: StatusCompleted,
			Marker: carriesMarker(res), Duration: time.Since(start),
		})
		st.Step = sg.next
	}

	log.Debug("pipeline finished")
	return st, nil
}

func (o *Orchestrator) publish(evt StepEvent) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(TopicStep, evt)
}

func carriesMarker(res client.Result) bool {
	if res.Shape != client.ShapeStructured {
		return false
	}
	_, ok := nl2sql.Marker(res.Data)
	return ok
}
