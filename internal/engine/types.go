package engine

import "time"

// SyntaxKind classifies a source file before any layer runs.
type SyntaxKind int

const (
	KindScript SyntaxKind = iota
	KindComponentModule
	KindRouteModule
	KindUnparseable
)

func (k SyntaxKind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindComponentModule:
		return "component-module"
	case KindRouteModule:
		return "route-module"
	default:
		return "unparseable"
	}
}

// SourceUnit is the immutable input/output value threaded through the layer
// pipeline. Each layer produces a fresh unit; the text is never mutated in
// place.
type SourceUnit struct {
	Text     string
	FilePath string
	Kind     SyntaxKind
}

// Severity of a detected issue.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Issue is one rule finding. Instances are read-only once produced; the
// aggregator copies them into the final report.
type Issue struct {
	Type         string   `json:"type"`
	RuleID       string   `json:"rule"`
	Severity     Severity `json:"severity"`
	Line         int      `json:"line"`
	Column       int      `json:"column"`
	Description  string   `json:"description"`
	FixAvailable bool     `json:"fix_available"`
	Snippet      string   `json:"snippet,omitempty"`
}

// IssueRuleError marks issues produced when a rule's matcher or rewrite
// panicked and the rule was skipped for the unit.
const IssueRuleError = "rule-error"

// PathKind records which rewriter path produced a layer's candidate output.
type PathKind int

const (
	PathStructural PathKind = iota
	PathTextual
	PathSkipped
)

func (p PathKind) String() string {
	switch p {
	case PathStructural:
		return "structural"
	case PathTextual:
		return "textual"
	default:
		return "skipped"
	}
}

// EditRecord captures one accepted span replacement. The learner mines these
// for recurring before/after shapes.
type EditRecord struct {
	Line   int    `json:"line"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// TransformAttempt is the per-layer execution record kept in the run log.
type TransformAttempt struct {
	LayerID        int           `json:"layer_id"`
	LayerName      string        `json:"layer_name"`
	FilePath       string        `json:"file_path"`
	Path           PathKind      `json:"path"`
	Issues         []Issue       `json:"issues"`
	Edits          []EditRecord  `json:"edits,omitempty"`
	Observations   []string      `json:"observations,omitempty"`
	Applied        bool          `json:"applied"`
	Failed         bool          `json:"failed"`
	RevertedReason string        `json:"reverted_reason,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// Revert reasons recorded by the safety validator and orchestrator.
const (
	RevertSyntaxError       = "introduced-syntax-error"
	RevertRunawayRewrite    = "runaway-rewrite"
	RevertParseUnavailable  = "structural-parse-unavailable"
	RevertLayerPanic        = "layer-panic"
	RevertTimeoutExceeded   = "timeout-exceeded"
	RevertRunCancelled      = "run-cancelled"
	RevertLearnedLowSupport = "learned-rule-below-threshold"
)

// RunState is the terminal state of an orchestrator run.
type RunState string

const (
	StateCompleted RunState = "completed"
	StatePartial   RunState = "partial"
	StateFailed    RunState = "failed"
)

// LearnedRule is a repair rule synthesized from repeated observed shapes.
// The engine only proposes these; persistence and promotion into the shared
// registry happen at batch boundaries owned by the caller.
type LearnedRule struct {
	PatternHash string  `json:"pattern_hash"`
	Matcher     string  `json:"matcher"`
	Rewrite     string  `json:"rewrite,omitempty"`
	Support     int     `json:"support"`
	Confidence  float64 `json:"confidence"`
}

// RunResult is the engine's only output. The engine keeps no reference to it
// after return.
type RunResult struct {
	RunID         string             `json:"run_id"`
	FilePath      string             `json:"file_path"`
	Success       bool               `json:"success"`
	State         RunState           `json:"state"`
	FinalText     string             `json:"final_text"`
	LayersApplied []int              `json:"layers_applied"`
	Issues        []Issue            `json:"issues"`
	Confidence    float64            `json:"confidence"`
	DebtScore     int                `json:"technical_debt_score"`
	DebtBand      string             `json:"technical_debt_band"`
	Attempts      []TransformAttempt `json:"per_layer_attempts"`
	Proposals     []LearnedRule      `json:"proposals,omitempty"`
}
