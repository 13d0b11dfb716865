// Package frontier expands seed references into a deduplicated candidate
// list of profile identifiers awaiting a fetch attempt.
package frontier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"linkharvest/internal/harvest"
	"linkharvest/internal/identity"
	"linkharvest/internal/progress"
)

// Default per-source harvest caps.
const (
	defaultPerSeedCap = 5
	defaultPerTermCap = 10
)

// KnownSet is the authoritative already-processed check consulted while
// building.
type KnownSet interface {
	IsKnown(raw string) bool
}

// Config selects the discovery strategies for one build pass. A strategy is
// enabled by giving it input; all are independently optional.
type Config struct {
	// Seeds are profile references expanded via neighbor links.
	Seeds []string
	// Groups are organization references expanded via member pages.
	Groups []string
	// Keywords are free-text terms expanded via people search.
	Keywords []string
	// MaxYield truncates the combined candidate list (N).
	MaxYield int
	// PerSeedCap bounds neighbors harvested per seed (default 5).
	PerSeedCap int
	// PerTermCap bounds results harvested per keyword (default 10).
	PerTermCap int
}

// Builder combines discovery strategies into one deduplicated frontier.
// Strategy results union in fixed order (neighbors, groups, keywords), so
// truncation to MaxYield is deterministic given the same strategy outputs;
// randomization happens only when the orchestrator consumes the frontier.
type Builder struct {
	links   harvest.LinkSource
	known   KnownSet
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewBuilder constructs a Builder over the shared session's link source. The
// emitter is optional.
func NewBuilder(links harvest.LinkSource, known KnownSet, emitter progress.Emitter, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{links: links, known: known, emitter: emitter, logger: logger}
}

// Build runs every enabled strategy and returns at most cfg.MaxYield
// normalized identifiers, none of which are known at build time. A failure
// inside one strategy is logged and never aborts its siblings.
func (b *Builder) Build(ctx context.Context, cfg Config) []string {
	if cfg.PerSeedCap <= 0 {
		cfg.PerSeedCap = defaultPerSeedCap
	}
	if cfg.PerTermCap <= 0 {
		cfg.PerTermCap = defaultPerTermCap
	}

	var candidates []string
	seen := make(map[string]struct{})
	add := func(ids []string) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			candidates = append(candidates, id)
		}
	}

	if len(cfg.Seeds) > 0 {
		ids := b.fromNeighbors(ctx, cfg.Seeds, cfg.PerSeedCap)
		b.emitYield("neighbors", len(ids))
		add(ids)
	}
	if len(cfg.Groups) > 0 {
		ids := b.fromGroups(ctx, cfg.Groups, cfg.MaxYield)
		b.emitYield("groups", len(ids))
		add(ids)
	}
	if len(cfg.Keywords) > 0 {
		ids := b.fromKeywords(ctx, cfg.Keywords, cfg.PerTermCap)
		b.emitYield("keywords", len(ids))
		add(ids)
	}

	fresh := candidates[:0:0]
	for _, id := range candidates {
		if b.known != nil && b.known.IsKnown(id) {
			continue
		}
		fresh = append(fresh, id)
	}
	if cfg.MaxYield > 0 && len(fresh) > cfg.MaxYield {
		fresh = fresh[:cfg.MaxYield]
	}
	return fresh
}

// fromNeighbors expands each seed through its outbound profile links. A seed
// whose page fails to load is skipped without aborting the strategy.
func (b *Builder) fromNeighbors(ctx context.Context, seeds []string, perSeed int) []string {
	pass := newStrategyPass()
	for _, seed := range seeds {
		links, err := b.links.NeighborLinks(ctx, seed, perSeed)
		if err != nil {
			b.logger.Warn("neighbor expansion failed for seed",
				zap.String("seed", seed), zap.Error(err))
			continue
		}
		pass.collect(links)
	}
	return pass.ids
}

func (b *Builder) fromGroups(ctx context.Context, groups []string, budget int) []string {
	pass := newStrategyPass()
	for _, group := range groups {
		if budget > 0 && len(pass.ids) >= budget {
			break
		}
		links, err := b.links.MemberLinks(ctx, group, budget)
		if err != nil {
			b.logger.Warn("group expansion failed",
				zap.String("group", group), zap.Error(err))
			continue
		}
		pass.collect(links)
	}
	return pass.ids
}

func (b *Builder) fromKeywords(ctx context.Context, terms []string, perTerm int) []string {
	pass := newStrategyPass()
	for _, term := range terms {
		links, err := b.links.SearchLinks(ctx, term, perTerm)
		if err != nil {
			b.logger.Warn("keyword expansion failed",
				zap.String("term", term), zap.Error(err))
			continue
		}
		pass.collect(links)
	}
	return pass.ids
}

func (b *Builder) emitYield(strategy string, yield int) {
	if b.emitter == nil {
		return
	}
	b.emitter.Emit(progress.Event{
		Stage:    progress.StageDiscovery,
		Strategy: strategy,
		Yield:    yield,
	})
}

// strategyPass holds the strategy-local seen set; the identity store check
// in Build stays authoritative and global.
type strategyPass struct {
	seen map[string]struct{}
	ids  []string
}

func newStrategyPass() *strategyPass {
	return &strategyPass{seen: make(map[string]struct{})}
}

func (p *strategyPass) collect(links []string) {
	for _, link := range links {
		if !looksLikeProfile(link) {
			continue
		}
		id := identity.Normalize(link)
		if id == "" {
			continue
		}
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = struct{}{}
		p.ids = append(p.ids, id)
	}
}

// looksLikeProfile filters discovered references down to the profile-URL
// shape; anything else is silently excluded.
func looksLikeProfile(link string) bool {
	return strings.Contains(link, "/in/")
}
