package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"aetherpay/internal/address"
	"aetherpay/internal/archive"
	"aetherpay/internal/models"
)

var (
	ErrUnauthorizedSubmitter = errors.New("oracle: submitter is not an active node")
	ErrSignatureInvalid      = errors.New("oracle: invalid submission signature")
	ErrConfidenceTooLow      = errors.New("oracle: confidence below threshold")
	ErrDeviationTooLarge     = errors.New("oracle: rate deviates too far from aggregate")
	ErrInvalidRate           = errors.New("oracle: rate must be positive")
	ErrStaleRate             = errors.New("oracle: no fresh aggregate rate")
	ErrNodeExists            = errors.New("oracle: node already registered")
	ErrNodeNotFound          = errors.New("oracle: node not registered")
)

// Config controls quorum and validation thresholds for rate consensus.
type Config struct {
	RequiredSubmissions int
	ConsensusWindow     time.Duration
	MinConfidenceBps    uint32
	MaxRateDeviationBps uint64
}

func (c Config) normalized() Config {
	if c.RequiredSubmissions <= 0 {
		c.RequiredSubmissions = 3
	}
	if c.ConsensusWindow <= 0 {
		c.ConsensusWindow = 5 * time.Minute
	}
	if c.MaxRateDeviationBps == 0 {
		c.MaxRateDeviationBps = 500
	}
	return c
}

// Submission is one signed rate observation as received from a node.
type Submission struct {
	Pair          models.Pair
	Rate          *big.Rat
	ConfidenceBps uint32
	Submitter     address.Address
	SubmittedAt   time.Time
	Signature     []byte
}

// pairState holds the active consensus window for a single pair. Aggregation
// is a read-modify-write over the observation set, so each pair carries its
// own lock; submissions for unrelated pairs proceed concurrently.
type pairState struct {
	mu           sync.Mutex
	observations map[address.Address]models.RateObservation
	aggregate    *models.AggregateRate
}

// Oracle ingests signed rate observations from authorized nodes and publishes
// one validated aggregate per pair.
type Oracle struct {
	cfg Config

	nodeMu sync.RWMutex
	nodes  map[address.Address]*models.OracleNode

	pairMu sync.Mutex
	pairs  map[models.Pair]*pairState

	archive archive.Store
	log     *zap.Logger
	nowFn   func() time.Time
}

type Option func(*Oracle)

// WithArchive records each published aggregation cycle to the availability
// collaborator for historical audit.
func WithArchive(store archive.Store) Option {
	return func(o *Oracle) { o.archive = store }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Oracle) {
		if log != nil {
			o.log = log
		}
	}
}

// WithNowFunc overrides the time source, primarily for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.nowFn = now
		}
	}
}

func New(cfg Config, opts ...Option) *Oracle {
	o := &Oracle{
		cfg:   cfg.normalized(),
		nodes: make(map[address.Address]*models.OracleNode),
		pairs: make(map[models.Pair]*pairState),
		log:   zap.NewNop(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Window returns the configured consensus window. Nodes need it to compute
// the signed time bucket.
func (o *Oracle) Window() time.Duration { return o.cfg.ConsensusWindow }

// AddNode registers a governance-approved submitter.
func (o *Oracle) AddNode(id address.Address) error {
	o.nodeMu.Lock()
	defer o.nodeMu.Unlock()
	if existing, ok := o.nodes[id]; ok && existing.Active {
		return fmt.Errorf("%w: %s", ErrNodeExists, id)
	}
	o.nodes[id] = &models.OracleNode{ID: id, Active: true, AddedAt: o.nowFn()}
	return nil
}

// RemoveNode deactivates a submitter. Only future submissions are excluded;
// observations already accepted in the current window remain counted.
func (o *Oracle) RemoveNode(id address.Address) error {
	o.nodeMu.Lock()
	defer o.nodeMu.Unlock()
	node, ok := o.nodes[id]
	if !ok || !node.Active {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Active = false
	return nil
}

// Nodes lists registered nodes sorted by identity.
func (o *Oracle) Nodes() []models.OracleNode {
	o.nodeMu.RLock()
	out := make([]models.OracleNode, 0, len(o.nodes))
	for _, node := range o.nodes {
		out = append(out, *node)
	}
	o.nodeMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (o *Oracle) activeNode(id address.Address) *models.OracleNode {
	o.nodeMu.RLock()
	defer o.nodeMu.RUnlock()
	node, ok := o.nodes[id]
	if !ok || !node.Active {
		return nil
	}
	return node
}

func (o *Oracle) adjustReputation(id address.Address, delta int64) {
	o.nodeMu.Lock()
	if node, ok := o.nodes[id]; ok {
		node.Reputation += delta
	}
	o.nodeMu.Unlock()
}

func (o *Oracle) pair(pair models.Pair) *pairState {
	o.pairMu.Lock()
	defer o.pairMu.Unlock()
	state, ok := o.pairs[pair]
	if !ok {
		state = &pairState{observations: make(map[address.Address]models.RateObservation)}
		o.pairs[pair] = state
	}
	return state
}

// SubmitRate validates one signed observation and, once quorum is reached
// within the active window, publishes a fresh aggregate for the pair.
func (o *Oracle) SubmitRate(ctx context.Context, sub Submission) error {
	now := o.nowFn()

	if o.activeNode(sub.Submitter) == nil {
		return fmt.Errorf("%w: %s", ErrUnauthorizedSubmitter, sub.Submitter)
	}
	if err := verifySignature(sub, o.cfg.ConsensusWindow, now); err != nil {
		return err
	}
	if sub.ConfidenceBps < o.cfg.MinConfidenceBps {
		return fmt.Errorf("%w: %d < %d", ErrConfidenceTooLow, sub.ConfidenceBps, o.cfg.MinConfidenceBps)
	}

	state := o.pair(sub.Pair)
	state.mu.Lock()
	defer state.mu.Unlock()

	if agg := state.aggregate; agg != nil && agg.Fresh(now) {
		if deviationExceeds(sub.Rate, agg.Rate, o.cfg.MaxRateDeviationBps) {
			o.adjustReputation(sub.Submitter, -1)
			return fmt.Errorf("%w: max %d bps", ErrDeviationTooLarge, o.cfg.MaxRateDeviationBps)
		}
	}

	cutoff := now.Add(-o.cfg.ConsensusWindow)
	for id, obs := range state.observations {
		if obs.SubmittedAt.Before(cutoff) {
			delete(state.observations, id)
		}
	}

	state.observations[sub.Submitter] = models.RateObservation{
		Pair:          sub.Pair,
		Rate:          new(big.Rat).Set(sub.Rate),
		ConfidenceBps: sub.ConfidenceBps,
		Submitter:     sub.Submitter,
		SubmittedAt:   now,
	}
	o.adjustReputation(sub.Submitter, 1)

	if len(state.observations) < o.cfg.RequiredSubmissions {
		return nil
	}

	aggregate := o.recompute(sub.Pair, state, now)
	state.aggregate = &aggregate
	o.log.Info("aggregate rate published",
		zap.String("pair", sub.Pair.String()),
		zap.String("rate", aggregate.Rate.FloatString(18)),
		zap.Uint32("confidence_bps", aggregate.ConfidenceBps),
		zap.Int("observations", len(state.observations)),
	)
	o.archiveCycle(ctx, aggregate, state)
	return nil
}

// recompute derives the aggregate from the current window: the rate is the
// median of the observations (resistant to a single outlier, unlike a mean)
// and the confidence is the minimum across contributors.
func (o *Oracle) recompute(pair models.Pair, state *pairState, now time.Time) models.AggregateRate {
	rates := make([]*big.Rat, 0, len(state.observations))
	minConfidence := uint32(0)
	first := true
	for _, obs := range state.observations {
		rates = append(rates, obs.Rate)
		if first || obs.ConfidenceBps < minConfidence {
			minConfidence = obs.ConfidenceBps
			first = false
		}
	}
	return models.AggregateRate{
		Pair:          pair,
		Rate:          median(rates),
		ConfidenceBps: minConfidence,
		Timestamp:     now,
		ValidUntil:    now.Add(o.cfg.ConsensusWindow),
	}
}

// LatestRate returns the current aggregate for the pair. Absence or an aged
// aggregate is ErrStaleRate; callers must refuse to proceed rather than fall
// back to a cached or default rate.
func (o *Oracle) LatestRate(pair models.Pair) (models.AggregateRate, error) {
	state := o.pair(pair)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.aggregate == nil || !state.aggregate.Fresh(o.nowFn()) {
		return models.AggregateRate{}, fmt.Errorf("%w: %s", ErrStaleRate, pair)
	}
	return state.aggregate.Clone(), nil
}

func median(rates []*big.Rat) *big.Rat {
	sorted := make([]*big.Rat, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Rat).Set(sorted[mid])
	}
	sum := new(big.Rat).Add(sorted[mid-1], sorted[mid])
	return sum.Quo(sum, big.NewRat(2, 1))
}

// deviationExceeds reports whether |rate-anchor|/anchor > maxBps/10000.
func deviationExceeds(rate, anchor *big.Rat, maxBps uint64) bool {
	if anchor == nil || anchor.Sign() <= 0 {
		return false
	}
	diff := new(big.Rat).Sub(rate, anchor)
	diff.Abs(diff)
	scaled := diff.Mul(diff, big.NewRat(10_000, 1))
	limit := new(big.Rat).Mul(anchor, new(big.Rat).SetUint64(maxBps))
	return scaled.Cmp(limit) > 0
}

// archivedCycle is the audit blob written per published aggregate.
type archivedCycle struct {
	Pair          string    `json:"pair"`
	Rate          string    `json:"rate"`
	ConfidenceBps uint32    `json:"confidence_bps"`
	Timestamp     time.Time `json:"timestamp"`
	ValidUntil    time.Time `json:"valid_until"`
	Observations  []struct {
		Submitter     string    `json:"submitter"`
		Rate          string    `json:"rate"`
		ConfidenceBps uint32    `json:"confidence_bps"`
		SubmittedAt   time.Time `json:"submitted_at"`
	} `json:"observations"`
}

func (o *Oracle) archiveCycle(ctx context.Context, agg models.AggregateRate, state *pairState) {
	if o.archive == nil {
		return
	}
	cycle := archivedCycle{
		Pair:          agg.Pair.String(),
		Rate:          agg.Rate.FloatString(18),
		ConfidenceBps: agg.ConfidenceBps,
		Timestamp:     agg.Timestamp,
		ValidUntil:    agg.ValidUntil,
	}
	for _, obs := range state.observations {
		cycle.Observations = append(cycle.Observations, struct {
			Submitter     string    `json:"submitter"`
			Rate          string    `json:"rate"`
			ConfidenceBps uint32    `json:"confidence_bps"`
			SubmittedAt   time.Time `json:"submitted_at"`
		}{obs.Submitter.String(), obs.Rate.FloatString(18), obs.ConfidenceBps, obs.SubmittedAt})
	}
	sort.Slice(cycle.Observations, func(i, j int) bool {
		return cycle.Observations[i].Submitter < cycle.Observations[j].Submitter
	})
	blob, err := json.Marshal(cycle)
	if err != nil {
		o.log.Error("archive marshal failed", zap.Error(err))
		return
	}
	id, err := o.archive.Store(ctx, blob)
	if err != nil {
		o.log.Error("archive store failed", zap.String("pair", cycle.Pair), zap.Error(err))
		return
	}
	o.log.Debug("aggregation cycle archived", zap.String("pair", cycle.Pair), zap.String("blob_id", id))
}
