// Package services wires conflict detection to alternative generation and
// owns the idempotent conflict/reschedule workflows.
package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
)

// AlternativeSource produces candidate replacement slots for a conflict.
// Sources are advisory: the pipeline re-validates everything they return.
type AlternativeSource interface {
	Generate(ctx context.Context, cctx domain.ConflictContext) ([]domain.AlternativeSlot, error)
}

// PipelineConfig tunes candidate validation.
type PipelineConfig struct {
	// ProposedBuffer is the minimum distance a candidate's start must keep
	// from the proposed start; closer candidates are not meaningfully
	// different.
	ProposedBuffer time.Duration
	// BlockBuffer pads existing schedule blocks during candidate overlap
	// checks.
	BlockBuffer time.Duration
	// MaxAlternatives caps the final list.
	MaxAlternatives int
}

// DefaultPipelineConfig returns the standard validation settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ProposedBuffer:  2 * time.Hour,
		BlockBuffer:     15 * time.Minute,
		MaxAlternatives: 3,
	}
}

// AlternativePipeline runs the two-tier generation design: an advisory
// source whose output is strictly re-validated, backed by a deterministic
// rule-based fallback. It never trusts the source to have respected
// constraints and it never returns an empty list.
type AlternativePipeline struct {
	source   AlternativeSource
	fallback *FallbackGenerator
	config   PipelineConfig
	logger   *slog.Logger
}

// NewAlternativePipeline creates the pipeline. source may be nil, in which
// case every conflict goes straight to the fallback.
func NewAlternativePipeline(
	source AlternativeSource,
	fallback *FallbackGenerator,
	config PipelineConfig,
	logger *slog.Logger,
) *AlternativePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlternativePipeline{
		source:   source,
		fallback: fallback,
		config:   config,
		logger:   logger,
	}
}

// Generate returns up to MaxAlternatives validated slots, highest score
// first. Source failure, timeout, or zero surviving candidates all fall
// through to the rule-based fallback; fallback output runs through the same
// validation, and only if that also rejects everything are the raw fallback
// slots returned so the user always gets options.
func (p *AlternativePipeline) Generate(ctx context.Context, cctx domain.ConflictContext) []domain.AlternativeSlot {
	if p.source != nil {
		slots, err := p.source.Generate(ctx, cctx)
		if err != nil {
			p.logger.Warn("alternative source failed, using fallback", "error", err)
		} else {
			valid := p.validate(slots, cctx)
			if len(valid) > 0 {
				return p.finalize(valid)
			}
			p.logger.Warn("alternative source produced no valid candidates, using fallback",
				"candidates", len(slots))
		}
	}

	fallback, _ := p.fallback.Generate(ctx, cctx)
	if valid := p.validate(fallback, cctx); len(valid) > 0 {
		return p.finalize(valid)
	}
	p.logger.Warn("fallback alternatives fail validation, returning them unvalidated")
	return p.finalize(fallback)
}

// validate rejects candidates independently of the source's claims: too
// close to the proposed time, buffered overlap with any schedule block, or
// an endpoint outside working hours. Survivors get their classification
// recomputed from their own dates.
func (p *AlternativePipeline) validate(slots []domain.AlternativeSlot, cctx domain.ConflictContext) []domain.AlternativeSlot {
	loc := cctx.Timezone
	if loc == nil {
		loc = time.UTC
	}

	var valid []domain.AlternativeSlot
	for _, slot := range slots {
		r := slot.Range()
		if r.IsZero() {
			continue
		}
		if absDuration(slot.Start.Sub(cctx.Proposed.Start)) < p.config.ProposedBuffer {
			p.logger.Debug("candidate rejected: too close to proposed time", "start", slot.Start)
			continue
		}
		if p.overlapsAnyBlock(r, cctx.Blocks) {
			p.logger.Debug("candidate rejected: overlaps schedule block", "start", slot.Start)
			continue
		}
		if !cctx.WorkingHours.Covers(slot.Start, loc) || !cctx.WorkingHours.CoversEnd(slot.End, loc) {
			p.logger.Debug("candidate rejected: outside working hours", "start", slot.Start)
			continue
		}
		slot.Classify(loc)
		valid = append(valid, slot)
	}
	return valid
}

func (p *AlternativePipeline) overlapsAnyBlock(r domain.TimeRange, blocks []domain.ScheduleBlock) bool {
	for _, block := range blocks {
		if r.OverlapsWithBuffer(block.Range(), p.config.BlockBuffer) {
			return true
		}
	}
	return false
}

// finalize deduplicates by exact (start, end), sorts by descending score
// with earlier starts breaking ties, and caps the list.
func (p *AlternativePipeline) finalize(slots []domain.AlternativeSlot) []domain.AlternativeSlot {
	type key struct {
		start int64
		end   int64
	}
	seen := make(map[key]bool, len(slots))
	unique := make([]domain.AlternativeSlot, 0, len(slots))
	for _, slot := range slots {
		k := key{start: slot.Start.Unix(), end: slot.End.Unix()}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, slot)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Score != unique[j].Score {
			return unique[i].Score > unique[j].Score
		}
		return unique[i].Start.Before(unique[j].Start)
	})

	max := p.config.MaxAlternatives
	if max <= 0 {
		max = DefaultPipelineConfig().MaxAlternatives
	}
	if len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
