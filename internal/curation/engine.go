// Package curation implements the background maintenance passes over the
// worklog store: tag normalization, relationship discovery, topic
// indexing, duplicate detection, and the memory lifecycle.
//
// Every phase is idempotent and additive. The engine can flag, link,
// promote, and annotate; it has no code path that deletes or merges
// records. Destructive resolution is a human (or explicitly invoked
// reviewer) operation, outside this package.
package curation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/config"
	"github.com/worklog-dev/worklog/internal/store"
)

// Phase names, matching the curation_history audit vocabulary.
const (
	OpTagNormalization      = "tag_normalization"
	OpRelationshipDiscovery = "relationship_discovery"
	OpTopicIndexing         = "topic_indexing"
	OpDuplicateDetection    = "duplicate_detection"
	OpMemoryPromotion       = "memory_promotion"
	OpFullCuration          = "full_curation"
)

// AllPhases is the canonical phase order of a full run.
var AllPhases = []string{
	OpTagNormalization,
	OpRelationshipDiscovery,
	OpTopicIndexing,
	OpDuplicateDetection,
	OpMemoryPromotion,
}

// PhaseReport summarizes one phase of one run. It doubles as the stats
// payload written to curation_history.
type PhaseReport struct {
	Operation string   `json:"operation"`
	Examined  int      `json:"examined"`
	Changed   int      `json:"changed"`
	Flagged   []string `json:"flagged,omitempty"`
	Skipped   string   `json:"skipped,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// RunReport is the outcome of one engine run.
type RunReport struct {
	RunID  string        `json:"run_id"`
	Agent  string        `json:"agent"`
	Phases []PhaseReport `json:"phases"`
}

// Failed reports whether any phase ended in an error.
func (r *RunReport) Failed() bool {
	for _, p := range r.Phases {
		if p.Error != "" {
			return true
		}
	}
	return false
}

// Engine runs curation phases against the store. classifier may be nil;
// relationship discovery then records itself as skipped.
type Engine struct {
	store      *store.Store
	classifier classify.Classifier
	cfg        config.CurationConfig
	agent      string
	log        *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(s *store.Store, classifier classify.Classifier, cfg config.CurationConfig, agent string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if agent == "" {
		agent = "curation"
	}
	if cfg.MaxItemsPerPhase <= 0 {
		cfg.MaxItemsPerPhase = 200
	}
	return &Engine{store: s, classifier: classifier, cfg: cfg, agent: agent, log: log}
}

// Run executes the named phases in canonical order under one run id.
// An empty or nil list, or the single name "full_curation", means all
// phases. A failing phase is audited with its error and the run
// continues; only an invalid phase name fails the call up front.
func (e *Engine) Run(ctx context.Context, operations []string) (*RunReport, error) {
	phases, err := resolvePhases(operations)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString(), Agent: e.agent}
	for _, op := range phases {
		pr := e.runPhase(ctx, op)
		report.Phases = append(report.Phases, pr)
		if auditErr := e.store.LogCurationRun(ctx, report.RunID, op, e.agent, pr); auditErr != nil {
			e.log.Error("curation audit write failed", "run", report.RunID, "phase", op, "err", auditErr)
		}
	}
	return report, nil
}

func resolvePhases(operations []string) ([]string, error) {
	if len(operations) == 0 {
		return AllPhases, nil
	}
	if len(operations) == 1 && operations[0] == OpFullCuration {
		return AllPhases, nil
	}
	var phases []string
	for _, canonical := range AllPhases {
		for _, requested := range operations {
			if requested == canonical {
				phases = append(phases, canonical)
				break
			}
		}
	}
	if len(phases) != len(operations) {
		return nil, fmt.Errorf("%w: unknown curation operation in %v, valid: %v",
			store.ErrValidation, operations, store.CurationOperations)
	}
	return phases, nil
}

func (e *Engine) runPhase(ctx context.Context, op string) PhaseReport {
	pr := PhaseReport{Operation: op}
	var err error
	switch op {
	case OpTagNormalization:
		err = e.normalizeTags(ctx, &pr)
	case OpRelationshipDiscovery:
		err = e.discoverRelationships(ctx, &pr)
	case OpTopicIndexing:
		err = e.indexTopics(ctx, &pr)
	case OpDuplicateDetection:
		err = e.detectDuplicates(ctx, &pr)
	case OpMemoryPromotion:
		err = e.runLifecycle(ctx, &pr)
	}
	if err != nil {
		e.log.Warn("curation phase failed", "phase", op, "err", err)
		pr.Error = err.Error()
	} else {
		e.log.Info("curation phase done", "phase", op,
			"examined", pr.Examined, "changed", pr.Changed, "flagged", len(pr.Flagged))
	}
	return pr
}
