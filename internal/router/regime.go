// Package router implements the Regime Router (C12): a discrete-time
// tracker of a latent conversational regime, used to select an inference
// adapter and provider class per request.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hanzoai/node/internal/metrics"
)

// Regime is a latent conversational context (spec §4.12).
type Regime string

const (
	General   Regime = "General"
	Medical   Regime = "Medical"
	Legal     Regime = "Legal"
	Code      Regime = "Code"
	Creative  Regime = "Creative"
	Financial Regime = "Financial"
)

// AllRegimes lists every regime the router tracks.
var AllRegimes = []Regime{General, Medical, Legal, Code, Creative, Financial}

// DefaultTransitionThreshold is the minimum transition probability required
// to adopt an observed regime over the current one (spec §4.12).
const DefaultTransitionThreshold = 0.3

// TransitionKey identifies one (from, to) pair in the transition matrix.
type TransitionKey struct {
	From, To Regime
}

// RoutingChoice is what select() returns (spec §4.12).
type RoutingChoice struct {
	AdapterHandle     string
	ProviderClass     string
	PricingMultiplier float64
}

// ServiceLevel is the caller's requested quality-of-service envelope.
type ServiceLevel struct {
	MaxLatencyMs int
	MinAccuracy  float64
	PrivacyTier  string
}

// InferenceRequest is one request processed end-to-end by Process
// (spec §4.12 process).
type InferenceRequest struct {
	Text      string
	MaxTokens int
	SLO       ServiceLevel
}

// RoutedResult is what Process returns.
type RoutedResult struct {
	Regime   Regime
	Choice   RoutingChoice
	Response interface{}
	Price    float64
}

// InferenceCaller is the external inference adapter Process dispatches to
// (spec §4.12: "call external inference with adapter").
type InferenceCaller interface {
	Call(ctx context.Context, choice RoutingChoice, req InferenceRequest) (interface{}, error)
}

// Config is the externally supplied mapping from regime to provider class
// and pricing, and the transition matrix's non-default entries
// (spec §4.12: "the mapping from regime to class is part of configuration,
// not hard-coded").
type Config struct {
	Transition          map[TransitionKey]float64
	TransitionThreshold float64
	ProviderClasses     map[Regime]RoutingChoice
	Classifiers         map[Regime]Classifier
}

// DefaultConfig mirrors the reference HMM transition matrix and provider
// mapping: regimes are 70% likely to persist, with domain-specific
// cross-transitions, and Medical/Code/Financial route to distinct provider
// classes while everything else falls back to general.
func DefaultConfig() Config {
	transition := map[TransitionKey]float64{}
	for _, r := range AllRegimes {
		transition[TransitionKey{From: r, To: r}] = 0.7
	}
	transition[TransitionKey{From: General, To: Medical}] = 0.05
	transition[TransitionKey{From: General, To: Legal}] = 0.05
	transition[TransitionKey{From: General, To: Code}] = 0.1
	transition[TransitionKey{From: General, To: Creative}] = 0.05
	transition[TransitionKey{From: General, To: Financial}] = 0.05
	transition[TransitionKey{From: Medical, To: General}] = 0.2
	transition[TransitionKey{From: Medical, To: Legal}] = 0.1
	transition[TransitionKey{From: Legal, To: General}] = 0.2
	transition[TransitionKey{From: Legal, To: Financial}] = 0.1
	transition[TransitionKey{From: Code, To: General}] = 0.15
	transition[TransitionKey{From: Code, To: Financial}] = 0.15
	transition[TransitionKey{From: Creative, To: General}] = 0.3
	transition[TransitionKey{From: Financial, To: General}] = 0.1
	transition[TransitionKey{From: Financial, To: Legal}] = 0.1
	transition[TransitionKey{From: Financial, To: Code}] = 0.1

	return Config{
		Transition:          transition,
		TransitionThreshold: DefaultTransitionThreshold,
		ProviderClasses: map[Regime]RoutingChoice{
			Medical:   {AdapterHandle: "medical-lora", ProviderClass: "secure-tee", PricingMultiplier: 1.5},
			Legal:     {AdapterHandle: "legal-lora", ProviderClass: "general", PricingMultiplier: 1.3},
			Code:      {AdapterHandle: "code-lora", ProviderClass: "gpu-fast", PricingMultiplier: 1.0},
			Financial: {AdapterHandle: "financial-lora", ProviderClass: "low-latency", PricingMultiplier: 1.2},
			Creative:  {AdapterHandle: "creative-lora", ProviderClass: "general", PricingMultiplier: 1.0},
			General:   {AdapterHandle: "", ProviderClass: "general", PricingMultiplier: 1.0},
		},
		Classifiers: DefaultClassifiers(),
	}
}

// Router tracks current_regime and routes requests (spec §4.12). Only
// transition() mutates current_regime; every other operation is read-only
// with respect to regime state.
type Router struct {
	mu      sync.RWMutex
	current Regime

	cfg     Config
	metrics *metrics.Metrics
	caller  InferenceCaller
}

// New constructs a Router starting at General.
func New(cfg Config, caller InferenceCaller, m *metrics.Metrics) *Router {
	if cfg.TransitionThreshold == 0 {
		cfg.TransitionThreshold = DefaultTransitionThreshold
	}
	if cfg.Classifiers == nil {
		cfg.Classifiers = DefaultClassifiers()
	}
	return &Router{current: General, cfg: cfg, metrics: m, caller: caller}
}

// CurrentRegime returns the tracked regime.
func (r *Router) CurrentRegime() Regime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Observe scores each regime's classifier against text and returns the
// highest-scoring regime (spec §4.12 observe). Read-only.
func (r *Router) Observe(text string) Regime {
	lower := strings.ToLower(text)
	best := General
	bestScore := 0.0
	for regime, classifier := range r.cfg.Classifiers {
		score := classifier.Score(lower)
		if score > bestScore {
			bestScore = score
			best = regime
		}
	}
	return best
}

// Transition looks up transition[(current, observed)]; if above the
// configured threshold, adopts observed, else keeps current
// (spec §4.12 transition). This is the sole state mutator.
func (r *Router) Transition(observed Regime) Regime {
	start := time.Now()
	r.mu.Lock()
	from := r.current
	prob, ok := r.cfg.Transition[TransitionKey{From: from, To: observed}]
	if !ok {
		prob = 0.1
	}
	to := from
	if prob > r.cfg.TransitionThreshold {
		to = observed
	}
	r.current = to
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordRegimeSwitch(string(from), string(to), time.Since(start))
	}
	return to
}

// Select returns the routing choice for regime (spec §4.12 select).
// Read-only.
func (r *Router) Select(regime Regime, slo ServiceLevel) RoutingChoice {
	if choice, ok := r.cfg.ProviderClasses[regime]; ok {
		return choice
	}
	return r.cfg.ProviderClasses[General]
}

// Process runs observe -> transition -> select -> call external inference
// -> return (spec §4.12 process). Pricing multiplier is applied to the
// provider's reported base price.
func (r *Router) Process(ctx context.Context, req InferenceRequest, basePricePerToken float64) (RoutedResult, error) {
	observed := r.Observe(req.Text)
	current := r.Transition(observed)
	choice := r.Select(current, req.SLO)

	response, err := r.caller.Call(ctx, choice, req)
	if err != nil {
		return RoutedResult{}, err
	}

	price := basePricePerToken * float64(req.MaxTokens) * choice.PricingMultiplier
	return RoutedResult{Regime: current, Choice: choice, Response: response, Price: price}, nil
}
