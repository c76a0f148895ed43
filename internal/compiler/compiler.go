package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/askgraph/internal/tool"
)

// Request is one call to a language model.
type Request struct {
	System string
	Prompt string
	Stop   []string
}

// Model turns a prompt into text. Planner and joiner both use it.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Auditor stores a record of every answered request.
type Auditor interface {
	Record(ctx context.Context, res Result) error
}

// Formatter post-processes a finished answer into the caller's output form.
type Formatter interface {
	Format(ctx context.Context, answer string) (string, error)
}

// Notifier receives coarse progress messages for a run.
type Notifier interface {
	Notify(ctx context.Context, runID, message string) error
}

// Config holds orchestration settings.
type Config struct {
	MaxReplan         int
	FallbackAnswer    string
	PlannerExamples   []PlannerExample
	JoinerPrompt      string
	FinalJoinerPrompt string
	CallTimeout       time.Duration
}

// DefaultConfig returns the stock prompts with three replans allowed.
func DefaultConfig() Config {
	return Config{MaxReplan: 3}.normalize()
}

func (c Config) normalize() Config {
	if c.MaxReplan < 0 {
		c.MaxReplan = 0
	}
	if c.FallbackAnswer == "" {
		c.FallbackAnswer = DefaultFallbackAnswer
	}
	if c.PlannerExamples == nil {
		c.PlannerExamples = DefaultPlannerExamples
	}
	if c.JoinerPrompt == "" {
		c.JoinerPrompt = DefaultJoinerPrompt
	}
	if c.FinalJoinerPrompt == "" {
		c.FinalJoinerPrompt = DefaultFinalJoinerPrompt
	}
	return c
}

// Round records one plan-execute-join iteration.
type Round struct {
	Number     int           `json:"number"`
	Plan       string        `json:"plan"`
	PlanError  string        `json:"plan_error,omitempty"`
	Graph      Graph         `json:"-"`
	Transcript string        `json:"transcript"`
	Outcome    JoinOutcome   `json:"outcome"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Result is the detailed outcome of a run.
type Result struct {
	RunID    string        `json:"run_id"`
	UserID   string        `json:"user_id,omitempty"`
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Fallback bool          `json:"fallback"`
	Rounds   []Round       `json:"rounds"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed"`
}

// FinalGraph returns the task graph of the last round that produced one.
func (r Result) FinalGraph() Graph {
	for i := len(r.Rounds) - 1; i >= 0; i-- {
		if r.Rounds[i].Graph != nil {
			return r.Rounds[i].Graph
		}
	}
	return nil
}

// CallObserver is told about every model call.
type CallObserver func(role string, elapsed time.Duration, err error)

// Compiler plans, executes, joins and replans until it has an answer.
type Compiler struct {
	cfg       Config
	examples  string
	planner   Model
	joiner    Model
	registry  *tool.Registry
	parser    *Parser
	schedOpts []Option
	diag      Diagnostics
	auditor   Auditor
	formatter Formatter
	notifier  Notifier
	onCall    CallObserver
	onResult  func(Result)
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithDiagnostics sets logging and tracing for the compiler and its scheduler.
func WithDiagnostics(d Diagnostics) CompilerOption {
	return func(c *Compiler) { c.diag = d }
}

// WithSchedulerOptions passes options to the scheduler built for every round.
func WithSchedulerOptions(opts ...Option) CompilerOption {
	return func(c *Compiler) { c.schedOpts = append(c.schedOpts, opts...) }
}

// WithAuditor records answered runs.
func WithAuditor(a Auditor) CompilerOption {
	return func(c *Compiler) { c.auditor = a }
}

// WithFormatter post-processes answers.
func WithFormatter(f Formatter) CompilerOption {
	return func(c *Compiler) { c.formatter = f }
}

// WithNotifier publishes progress messages.
func WithNotifier(n Notifier) CompilerOption {
	return func(c *Compiler) { c.notifier = n }
}

// WithCallObserver reports each model call's latency.
func WithCallObserver(fn CallObserver) CompilerOption {
	return func(c *Compiler) { c.onCall = fn }
}

// WithResultObserver is called with every completed run.
func WithResultObserver(fn func(Result)) CompilerOption {
	return func(c *Compiler) { c.onResult = fn }
}

// New builds a Compiler. planner and joiner may be the same model.
func New(cfg Config, planner, joiner Model, registry *tool.Registry, opts ...CompilerOption) (*Compiler, error) {
	if planner == nil || joiner == nil {
		return nil, fmt.Errorf("planner and joiner models are required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	c := &Compiler{
		cfg:      cfg.normalize(),
		planner:  planner,
		joiner:   joiner,
		registry: registry,
		parser:   NewParser(registry),
	}
	c.examples = RenderPlannerExamples(c.cfg.PlannerExamples, registry)
	for _, opt := range opts {
		opt(c)
	}
	c.diag = c.diag.withDefaults("[COMPILER] ")
	return c, nil
}

// Run answers question. The only error surfaced is a failure to plan or
// parse in the first round; every other failure ends in an answer or the
// fallback text.
func (c *Compiler) Run(ctx context.Context, question string) (string, error) {
	res, err := c.RunDetailed(ctx, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// RunDetailed is Run with the per-round record attached.
func (c *Compiler) RunDetailed(ctx context.Context, question string) (Result, error) {
	res := Result{
		RunID:    uuid.NewString(),
		Question: question,
		Started:  time.Now(),
	}
	if id, ok := RunIDFromContext(ctx); ok {
		res.RunID = id
	}
	res.UserID, _ = UserFromContext(ctx)
	ctx, span := c.diag.Tracer.Start(ctx, "compiler.run", trace.WithAttributes(attribute.String("run.id", res.RunID)))
	defer span.End()

	total := c.cfg.MaxReplan + 1
	var contexts []string
	finished := false
	for n := 1; n <= total && !finished; n++ {
		final := n == total
		round := Round{Number: n}
		started := time.Now()
		if n == 1 {
			c.notify(ctx, res.RunID, "Planning")
		} else {
			c.notify(ctx, res.RunID, fmt.Sprintf("Replanning (round %d of %d)", n, total))
		}

		plan, g, err := c.plan(ctx, question, contexts)
		round.Plan = plan
		if err == nil {
			c.notify(ctx, res.RunID, fmt.Sprintf("Executing %d tasks", len(g)-1))
			err = c.execute(ctx, res.RunID, g)
		}
		if err != nil {
			if n == 1 {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return res, err
			}
			c.diag.printf("run %s: round %d abandoned: %v", res.RunID, n, err)
			round.PlanError = err.Error()
			round.Elapsed = time.Since(started)
			res.Rounds = append(res.Rounds, round)
			continue
		}
		round.Graph = g
		round.Transcript = Transcript(g)
		c.diag.block("Scratchpad", round.Transcript)

		c.notify(ctx, res.RunID, "Preparing answer")
		round.Outcome = c.join(ctx, question, round.Transcript, final)
		round.Elapsed = time.Since(started)
		res.Rounds = append(res.Rounds, round)

		if round.Outcome.Finished() {
			finished = true
			res.Answer = round.Outcome.Payload
			break
		}
		contexts = append(contexts, ReplanContext(g, round.Outcome.Thought))
	}

	if !finished || res.Answer == c.cfg.FallbackAnswer {
		res.Answer = c.cfg.FallbackAnswer
		res.Fallback = true
	}
	if !res.Fallback {
		res.Answer = c.format(ctx, res.Answer)
	}
	res.Elapsed = time.Since(res.Started)
	span.SetAttributes(
		attribute.Int("run.rounds", len(res.Rounds)),
		attribute.Bool("run.fallback", res.Fallback),
	)
	c.diag.printf("run %s finished in %s after %d round(s), fallback=%t", res.RunID, res.Elapsed, len(res.Rounds), res.Fallback)

	if !res.Fallback && c.auditor != nil {
		if err := c.auditor.Record(ctx, res); err != nil {
			c.diag.printf("run %s: audit: %v", res.RunID, err)
		}
	}
	if c.onResult != nil {
		c.onResult(res)
	}
	return res, nil
}

// Tasks returns the first-round plan for question without executing it.
func (c *Compiler) Tasks(ctx context.Context, question string) (Graph, error) {
	_, g, err := c.plan(ctx, question, nil)
	return g, err
}

func (c *Compiler) plan(ctx context.Context, question string, contexts []string) (string, Graph, error) {
	ctx, span := c.diag.Tracer.Start(ctx, "compiler.plan", trace.WithAttributes(attribute.Int("plan.previous", len(contexts))))
	defer span.End()

	system := plannerPrompt(c.registry.Describe(), c.examples, c.registry.Len())
	if len(contexts) > 0 {
		system += replanSuffix
	}
	req := Request{
		System: system,
		Prompt: planningRequest(question, FormatContexts(contexts)),
		Stop:   []string{EndOfPlan},
	}
	text, err := c.timedCall(ctx, "planner", c.planner, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", nil, fmt.Errorf("planner call: %w", err)
	}
	c.diag.block("Plan", text)
	g, err := c.parser.Parse(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return text, nil, err
	}
	span.SetAttributes(attribute.Int("plan.tasks", len(g)))
	return text, g, nil
}

func (c *Compiler) execute(ctx context.Context, runID string, g Graph) error {
	ctx, span := c.diag.Tracer.Start(ctx, "compiler.execute")
	defer span.End()
	opts := append([]Option{WithSchedulerDiagnostics(c.diag)}, c.schedOpts...)
	if err := NewScheduler(opts...).Schedule(ctx, runID, g); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// join asks the joiner for a verdict. A failed call reads as the failure
// marker, which parses as unresolved. On the final round anything but a
// Finish becomes the fallback answer.
func (c *Compiler) join(ctx context.Context, question, transcript string, final bool) JoinOutcome {
	ctx, span := c.diag.Tracer.Start(ctx, "compiler.join", trace.WithAttributes(attribute.Bool("join.final", final)))
	defer span.End()

	prompt := c.cfg.JoinerPrompt
	if final {
		prompt = c.cfg.FinalJoinerPrompt
	}
	text, err := c.timedCall(ctx, "joiner", c.joiner, Request{Prompt: joiningRequest(prompt, question, transcript)})
	if err != nil {
		span.RecordError(err)
		c.diag.printf("joiner call failed: %v", err)
		text = FailureObservation
	}
	c.diag.block("Question", question)
	c.diag.block("Raw answer", text)

	outcome := ParseJoinerOutput(text)
	if outcome.Decision == DecisionFinish && outcome.Payload == "" {
		outcome.Decision = DecisionUnresolved
	}
	if final && !outcome.Finished() {
		outcome.Decision = DecisionFinish
		outcome.Payload = c.cfg.FallbackAnswer
	}
	span.SetAttributes(attribute.String("join.decision", outcome.Decision.String()))
	return outcome
}

func (c *Compiler) timedCall(ctx context.Context, role string, m Model, req Request) (string, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	out, err := m.Complete(ctx, req)
	elapsed := time.Since(start)
	if c.onCall != nil {
		c.onCall(role, elapsed, err)
	}
	if err != nil {
		c.diag.printf("%s call failed after %s: %v", role, elapsed, err)
		return "", err
	}
	c.diag.debugf("%s call took %s", role, elapsed)
	return out, nil
}

func (c *Compiler) format(ctx context.Context, answer string) string {
	if c.formatter == nil {
		return answer
	}
	out, err := c.formatter.Format(ctx, answer)
	if err != nil || out == "" {
		if err != nil {
			c.diag.printf("format answer: %v", err)
		}
		return answer
	}
	return out
}

func (c *Compiler) notify(ctx context.Context, runID, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, runID, message); err != nil {
		c.diag.printf("run %s: notify %q: %v", runID, message, err)
	}
}

type userKey struct{}

// ContextWithUser tags ctx with the caller's identity for audit records.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the identity stored by ContextWithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userKey{}).(string)
	return v, ok && v != ""
}

type runIDKey struct{}

// ContextWithRunID makes RunDetailed use runID instead of generating one, so
// callers can subscribe to progress for the run before it starts.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID stored by ContextWithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey{}).(string)
	return v, ok && v != ""
}
