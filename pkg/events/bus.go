package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brilliox/brilliox/pkg/logger"
)

const (
	// TracerName is the OpenTelemetry tracer name for the event bus.
	TracerName = "github.com/brilliox/brilliox/pkg/events"

	SpanEmit = "events.emit"

	// DefaultHistoryLimit bounds the in-memory event history.
	DefaultHistoryLimit = 1000
	// DefaultPatternLimit bounds the learned pattern list.
	DefaultPatternLimit = 500
	// DefaultVersion is reported in the baseline state.
	DefaultVersion = "7.0.0"
	// MaxRuleDepth bounds how many times rule actions may re-enter Emit
	// within one causal chain. Deeper emits are recorded but skip rules.
	MaxRuleDepth = 8
)

// State keys maintained by the bus.
const (
	StateInitializedAt  = "initialized_at"
	StateVersion        = "version"
	StateTotalEvents    = "total_events"
	StateActiveUsers    = "active_users"
	StateTotalLeads     = "total_leads"
	StateConversionRate = "conversion_rate"
	StateSystemStatus   = "system_status"
)

var (
	// ErrUnknownKind is returned by Emit for a kind outside the closed set.
	ErrUnknownKind = errors.New("events: unknown event kind")
	// ErrRuleNotFound is returned by RemoveRule for an unknown id.
	ErrRuleNotFound = errors.New("events: rule not found")
	// ErrDuplicateRule is returned by AddRule when the id is taken.
	ErrDuplicateRule = errors.New("events: rule already exists")
)

// State is the free-form system state blob.
type State map[string]any

// Pattern is a free-form learned observation.
type Pattern map[string]any

// Observer receives bus telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	EventEmitted(kind Kind)
	ListenerFailed(kind Kind)
	RuleTriggered(ruleID, action string, err error)
	RuleDepthExceeded(kind Kind)
	AsyncOverflow()
	PersistFailed()
}

type nopObserver struct{}

func (nopObserver) EventEmitted(Kind)                   {}
func (nopObserver) ListenerFailed(Kind)                 {}
func (nopObserver) RuleTriggered(string, string, error) {}
func (nopObserver) RuleDepthExceeded(Kind)              {}
func (nopObserver) AsyncOverflow()                      {}
func (nopObserver) PersistFailed()                      {}

type ruleDepthKey struct{}

func ruleDepth(ctx context.Context) int {
	d, _ := ctx.Value(ruleDepthKey{}).(int)
	return d
}

type subscriber struct {
	handler Handler
	async   bool
}

// Bus is the process event bus. Construct one per process with New and pass
// it to every component that publishes or subscribes.
type Bus struct {
	mu        sync.Mutex
	ready     bool
	slots     map[Kind][]subscriber
	pending   map[Kind][]subscriber
	rules     []Rule
	actions   map[string]ActionFunc
	state     State
	patterns  []Pattern
	history   *history
	initOnce  sync.Once
	persistMu sync.Mutex
	closeOnce sync.Once

	store        StateStore
	dispatcher   *dispatcher
	log          logger.Logger
	observer     Observer
	tracer       trace.Tracer
	now          func() time.Time
	version      string
	patternLimit int
}

// Option configures a Bus.
type Option func(*busOptions)

type busOptions struct {
	log          logger.Logger
	observer     Observer
	now          func() time.Time
	version      string
	historyLimit int
	patternLimit int
	workers      int
	queueSize    int
}

// WithLogger sets the bus logger.
func WithLogger(l logger.Logger) Option {
	return func(o *busOptions) { o.log = l }
}

// WithObserver sets the telemetry observer.
func WithObserver(obs Observer) Option {
	return func(o *busOptions) { o.observer = obs }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *busOptions) { o.now = now }
}

// WithVersion sets the version reported in the baseline state.
func WithVersion(v string) Option {
	return func(o *busOptions) { o.version = v }
}

// WithLimits sets the history and pattern caps.
func WithLimits(history, patterns int) Option {
	return func(o *busOptions) {
		o.historyLimit = history
		o.patternLimit = patterns
	}
}

// WithAsyncWorkers sizes the async listener dispatcher.
func WithAsyncWorkers(workers, queueSize int) Option {
	return func(o *busOptions) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// New constructs a Bus and loads the persisted snapshot from store. The bus
// drops every emit until Initialize is called.
func New(ctx context.Context, store StateStore, opts ...Option) (*Bus, error) {
	if store == nil {
		return nil, fmt.Errorf("events: state store is required")
	}
	o := busOptions{
		log:          logger.Global(),
		observer:     nopObserver{},
		now:          time.Now,
		version:      DefaultVersion,
		historyLimit: DefaultHistoryLimit,
		patternLimit: DefaultPatternLimit,
		workers:      4,
		queueSize:    256,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.patternLimit <= 0 {
		o.patternLimit = DefaultPatternLimit
	}
	if o.historyLimit <= 0 {
		o.historyLimit = DefaultHistoryLimit
	}

	b := &Bus{
		slots:        make(map[Kind][]subscriber),
		pending:      make(map[Kind][]subscriber),
		actions:      make(map[string]ActionFunc),
		state:        State{},
		history:      newHistory(o.historyLimit),
		store:        store,
		log:          o.log.With("component", "events"),
		observer:     o.observer,
		tracer:       otel.Tracer(TracerName),
		now:          o.now,
		version:      o.version,
		patternLimit: o.patternLimit,
	}
	b.dispatcher = newDispatcher(o.workers, o.queueSize, b.log)
	b.dispatcher.onOverflow = b.observer.AsyncOverflow

	snap, err := store.Load(ctx)
	if err != nil {
		b.log.Error("failed to load event bus state", "error", err)
		snap = &Snapshot{}
	}
	if snap.State != nil {
		b.state = snap.State
	}
	b.rules = snap.Rules
	b.patterns = trimPatterns(snap.Patterns, b.patternLimit)

	b.dispatcher.start()
	return b, nil
}

// Initialize moves the bus to Ready. It runs once per Bus: the state is
// reset to the baseline, default rules are installed ahead of any persisted
// custom rules, and a slot is opened for every kind.
func (b *Bus) Initialize(ctx context.Context) error {
	var initialized bool
	b.initOnce.Do(func() {
		b.mu.Lock()
		b.state = State{
			StateInitializedAt:  b.now().UTC().Format(time.RFC3339Nano),
			StateVersion:        b.version,
			StateTotalEvents:    0,
			StateActiveUsers:    0,
			StateTotalLeads:     0,
			StateConversionRate: 0.0,
			StateSystemStatus:   "ready",
		}
		b.rules = mergeDefaultRules(b.rules)
		for _, k := range allKinds {
			b.slots[k] = append(b.slots[k][:0:0], b.pending[k]...)
		}
		b.pending = nil
		b.ready = true
		b.mu.Unlock()
		initialized = true
	})
	if !initialized {
		return nil
	}

	_ = b.persist(ctx)
	b.log.InfoContext(ctx, "event bus initialized", "rules", len(b.Rules()))
	return b.Emit(ctx, SystemReady, Payload{"version": b.version})
}

// Ready reports whether Initialize has run.
func (b *Bus) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Subscribe registers a synchronous handler for kind. Handlers run in
// registration order.
func (b *Bus) Subscribe(kind Kind, h Handler) error {
	return b.subscribe(kind, subscriber{handler: h})
}

// SubscribeAsync registers a handler that runs as an independent task. The
// publisher does not wait for it and never sees its result.
func (b *Bus) SubscribeAsync(kind Kind, h Handler) error {
	return b.subscribe(kind, subscriber{handler: h, async: true})
}

func (b *Bus) subscribe(kind Kind, s subscriber) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if s.handler == nil {
		return fmt.Errorf("events: nil handler for %s", kind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		b.slots[kind] = append(b.slots[kind], s)
	} else {
		b.pending[kind] = append(b.pending[kind], s)
	}
	return nil
}

// RegisterAction binds an action identifier used by rules.
func (b *Bus) RegisterAction(name string, fn ActionFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[name] = fn
}

// Emit publishes an event. Before Initialize every emit is dropped. Listener,
// rule and persistence failures are logged and never returned.
func (b *Bus) Emit(ctx context.Context, kind Kind, payload Payload) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if payload == nil {
		payload = Payload{}
	}

	b.mu.Lock()
	subs, ok := b.slots[kind]
	if !b.ready || !ok {
		b.mu.Unlock()
		return nil
	}
	b.state[StateTotalEvents] = toInt(b.state[StateTotalEvents]) + 1
	b.history.add(Record{Kind: kind, Payload: payload.Clone(), Timestamp: b.now().UTC()})
	subs = append([]subscriber(nil), subs...)
	rules := append([]Rule(nil), b.rules...)
	actions := make(map[string]ActionFunc, len(b.actions))
	for k, v := range b.actions {
		actions[k] = v
	}
	b.mu.Unlock()

	ctx, span := b.tracer.Start(ctx, SpanEmit, trace.WithAttributes(
		attribute.String("event.kind", string(kind)),
		attribute.Int("event.listeners", len(subs)),
	))
	defer span.End()

	b.observer.EventEmitted(kind)

	for _, s := range subs {
		if s.async {
			h := s.handler
			data := payload.Clone()
			b.dispatcher.submit(func() {
				b.invoke(context.WithoutCancel(ctx), kind, h, data)
			})
			continue
		}
		b.invoke(ctx, kind, s.handler, payload)
	}

	b.checkRules(ctx, kind, payload, rules, actions)

	if err := b.persist(ctx); err != nil {
		span.SetStatus(codes.Error, "persist failed")
	}
	return nil
}

func (b *Bus) invoke(ctx context.Context, kind Kind, h Handler, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.observer.ListenerFailed(kind)
			b.log.ErrorContext(ctx, "event listener panicked", "event", kind, "panic", r)
		}
	}()
	if err := h(ctx, kind, payload.Clone()); err != nil {
		b.observer.ListenerFailed(kind)
		b.log.WarnContext(ctx, "event listener failed", "event", kind, "error", err)
	}
}

// checkRules evaluates rules in list order against {event: kind, ...payload}.
// Emits made by an action carry the action depth in ctx; past MaxRuleDepth
// the rule pass is skipped so self-triggering rules terminate.
func (b *Bus) checkRules(ctx context.Context, kind Kind, payload Payload, rules []Rule, actions map[string]ActionFunc) {
	if len(rules) == 0 {
		return
	}
	depth := ruleDepth(ctx)
	if depth >= MaxRuleDepth {
		b.observer.RuleDepthExceeded(kind)
		b.log.WarnContext(ctx, "rule depth exceeded, skipping rules", "event", kind, "depth", depth)
		return
	}
	ctx = context.WithValue(ctx, ruleDepthKey{}, depth+1)

	view := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		view[k] = v
	}
	// The kind always wins over a payload field named "event".
	view[EventField] = kind

	for _, rule := range rules {
		if !rule.Condition.Match(view) {
			continue
		}
		err := b.runAction(ctx, rule, kind, payload, actions[rule.Action])
		b.observer.RuleTriggered(rule.ID, rule.Action, err)
		if err != nil {
			b.log.WarnContext(ctx, "rule action failed", "rule", rule.ID, "action", rule.Action, "error", err)
		}
	}
}

func (b *Bus) runAction(ctx context.Context, rule Rule, kind Kind, payload Payload, fn ActionFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	if fn == nil {
		return fmt.Errorf("no handler registered for action %q", rule.Action)
	}
	return fn(ctx, rule, kind, payload.Clone())
}

// AddRule appends a rule and persists.
func (b *Bus) AddRule(ctx context.Context, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	for _, r := range b.rules {
		if r.ID == rule.ID {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
		}
	}
	b.rules = append(b.rules, rule)
	b.mu.Unlock()

	_ = b.persist(ctx)
	return nil
}

// RemoveRule deletes a rule by id and persists.
func (b *Bus) RemoveRule(ctx context.Context, id string) error {
	b.mu.Lock()
	kept := b.rules[:0:0]
	for _, r := range b.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	removed := len(kept) != len(b.rules)
	b.rules = kept
	b.mu.Unlock()

	if !removed {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	_ = b.persist(ctx)
	return nil
}

// Rules returns a copy of the rule list.
func (b *Bus) Rules() []Rule {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Rule(nil), b.rules...)
}

// LearnPattern appends a pattern stamped with learned_at, keeps the most
// recent patterns up to the cap, persists, and emits pattern_learned.
func (b *Bus) LearnPattern(ctx context.Context, p Pattern) error {
	stamped := make(Pattern, len(p)+1)
	for k, v := range p {
		stamped[k] = v
	}
	stamped["learned_at"] = b.now().UTC().Format(time.RFC3339Nano)

	b.mu.Lock()
	b.patterns = trimPatterns(append(b.patterns, stamped), b.patternLimit)
	count := len(b.patterns)
	b.mu.Unlock()

	_ = b.persist(ctx)
	return b.Emit(ctx, PatternLearned, Payload{"patterns": count})
}

// Patterns returns a copy of the learned patterns, oldest first.
func (b *Bus) Patterns() []Pattern {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Pattern, len(b.patterns))
	for i, p := range b.patterns {
		cp := make(Pattern, len(p))
		for k, v := range p {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// UpdateState sets a state key and persists.
func (b *Bus) UpdateState(ctx context.Context, key string, value any) {
	b.mu.Lock()
	b.state[key] = value
	b.mu.Unlock()
	_ = b.persist(ctx)
}

// IncrementState adds delta to a numeric state key and persists. It returns the new value.
func (b *Bus) IncrementState(ctx context.Context, key string, delta int) int {
	b.mu.Lock()
	v := toInt(b.state[key]) + delta
	b.state[key] = v
	b.mu.Unlock()
	_ = b.persist(ctx)
	return v
}

// State returns a copy of the system state.
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateCopy()
}

// Stats returns the state plus rule, pattern and history counts.
func (b *Bus) Stats() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]any(b.stateCopy())
	out["active_rules"] = len(b.rules)
	out["learned_patterns"] = len(b.patterns)
	out["event_history_count"] = b.history.len()
	return out
}

// History returns the retained records, oldest first. n <= 0 returns all.
func (b *Bus) History(n int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.last(n)
}

// Close emits system_shutdown, waits for async listeners and persists.
func (b *Bus) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		if emitErr := b.Emit(ctx, SystemShutdown, Payload{}); emitErr != nil {
			err = emitErr
		}
		b.dispatcher.stop()
		err = errors.Join(err, b.persist(ctx))
	})
	return err
}

// persist writes the current snapshot. Saves are serialized so the file
// always reflects the latest in-memory state.
func (b *Bus) persist(ctx context.Context) error {
	b.persistMu.Lock()
	defer b.persistMu.Unlock()

	b.mu.Lock()
	snap := &Snapshot{
		State:    b.stateCopy(),
		Rules:    append([]Rule(nil), b.rules...),
		Patterns: append([]Pattern(nil), b.patterns...),
	}
	b.mu.Unlock()

	if err := b.store.Save(ctx, snap); err != nil {
		b.observer.PersistFailed()
		b.log.ErrorContext(ctx, "failed to persist event bus state", "error", err)
		return err
	}
	return nil
}

func (b *Bus) stateCopy() State {
	out := make(State, len(b.state))
	for k, v := range b.state {
		out[k] = v
	}
	return out
}

func mergeDefaultRules(existing []Rule) []Rule {
	defaults := DefaultRules()
	seen := make(map[string]struct{}, len(defaults))
	for _, r := range defaults {
		seen[r.ID] = struct{}{}
	}
	out := defaults
	for _, r := range existing {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func trimPatterns(p []Pattern, limit int) []Pattern {
	if len(p) <= limit {
		return p
	}
	return append([]Pattern(nil), p[len(p)-limit:]...)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
