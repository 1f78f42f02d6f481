package oracle

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"aetherpay/internal/address"
	"aetherpay/internal/archive"
	"aetherpay/internal/models"
)

var ethUSDC = models.NewPair("ETH", "USDC")

type testNode struct {
	key  *ecdsa.PrivateKey
	addr address.Address
}

func newTestNode(t *testing.T) testNode {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return testNode{key: key, addr: address.FromPubKey(&key.PublicKey)}
}

func newTestOracle(t *testing.T, cfg Config, now *time.Time, opts ...Option) (*Oracle, []testNode) {
	t.Helper()
	opts = append(opts, WithNowFunc(func() time.Time { return *now }))
	o := New(cfg, opts...)
	nodes := make([]testNode, 0, cfg.RequiredSubmissions+1)
	for i := 0; i < cfg.RequiredSubmissions+1; i++ {
		n := newTestNode(t)
		if err := o.AddNode(n.addr); err != nil {
			t.Fatalf("add node: %v", err)
		}
		nodes = append(nodes, n)
	}
	return o, nodes
}

func signedSubmission(t *testing.T, o *Oracle, n testNode, rate string, confidence uint32, at time.Time) Submission {
	t.Helper()
	rat, ok := new(big.Rat).SetString(rate)
	if !ok {
		t.Fatalf("bad rate %q", rate)
	}
	sub := Submission{Pair: ethUSDC, Rate: rat, ConfidenceBps: confidence, SubmittedAt: at}
	if err := Sign(&sub, n.key, o.Window()); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sub
}

func TestQuorumPublishesMedian(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{RequiredSubmissions: 3, ConsensusWindow: 5 * time.Minute, MinConfidenceBps: 5000, MaxRateDeviationBps: 500}
	o, nodes := newTestOracle(t, cfg, &now)

	// Scenario D: below quorum the pair has no valid rate.
	for i, rate := range []string{"3000", "3010"} {
		if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[i], rate, 9000+uint32(i*100), now)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if _, err := o.LatestRate(ethUSDC); !errors.Is(err, ErrStaleRate) {
			t.Fatalf("expected stale rate below quorum, got %v", err)
		}
	}

	if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[2], "3200", 8500, now)); err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	agg, err := o.LatestRate(ethUSDC)
	if err != nil {
		t.Fatalf("latest rate: %v", err)
	}
	if agg.Rate.Cmp(big.NewRat(3010, 1)) != 0 {
		t.Fatalf("expected median 3010, got %s", agg.Rate.FloatString(2))
	}
	if agg.ConfidenceBps != 8500 {
		t.Fatalf("expected min confidence 8500, got %d", agg.ConfidenceBps)
	}
	if !agg.ValidUntil.Equal(now.Add(cfg.ConsensusWindow)) {
		t.Fatalf("unexpected validUntil %v", agg.ValidUntil)
	}
}

func TestAggregateAgesOut(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{RequiredSubmissions: 2, ConsensusWindow: time.Minute, MinConfidenceBps: 0, MaxRateDeviationBps: 10_000}
	o, nodes := newTestOracle(t, cfg, &now)

	for i := 0; i < 2; i++ {
		if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[i], "1.5", 9000, now)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if _, err := o.LatestRate(ethUSDC); err != nil {
		t.Fatalf("latest rate: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := o.LatestRate(ethUSDC); !errors.Is(err, ErrStaleRate) {
		t.Fatalf("expected stale rate after window, got %v", err)
	}
}

func TestSubmissionValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{RequiredSubmissions: 3, ConsensusWindow: 5 * time.Minute, MinConfidenceBps: 7000, MaxRateDeviationBps: 500}
	o, nodes := newTestOracle(t, cfg, &now)

	t.Run("unauthorized submitter", func(t *testing.T) {
		stranger := newTestNode(t)
		err := o.SubmitRate(ctx, signedSubmission(t, o, stranger, "3000", 9000, now))
		if !errors.Is(err, ErrUnauthorizedSubmitter) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})

	t.Run("removed node is excluded", func(t *testing.T) {
		if err := o.RemoveNode(nodes[3].addr); err != nil {
			t.Fatalf("remove node: %v", err)
		}
		err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[3], "3000", 9000, now))
		if !errors.Is(err, ErrUnauthorizedSubmitter) {
			t.Fatalf("expected unauthorized after removal, got %v", err)
		}
	})

	t.Run("confidence too low", func(t *testing.T) {
		err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[0], "3000", 6999, now))
		if !errors.Is(err, ErrConfidenceTooLow) {
			t.Fatalf("expected low confidence, got %v", err)
		}
	})

	t.Run("forged submitter", func(t *testing.T) {
		sub := signedSubmission(t, o, nodes[0], "3000", 9000, now)
		sub.Submitter = nodes[1].addr
		err := o.SubmitRate(ctx, sub)
		if !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("expected invalid signature, got %v", err)
		}
	})

	t.Run("tampered rate", func(t *testing.T) {
		sub := signedSubmission(t, o, nodes[0], "3000", 9000, now)
		sub.Rate = big.NewRat(9999, 1)
		err := o.SubmitRate(ctx, sub)
		if !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("expected invalid signature, got %v", err)
		}
	})
}

func TestReplayAcrossWindowsRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{RequiredSubmissions: 3, ConsensusWindow: time.Minute, MinConfidenceBps: 0, MaxRateDeviationBps: 10_000}
	o, nodes := newTestOracle(t, cfg, &now)

	sub := signedSubmission(t, o, nodes[0], "3000", 9000, now)
	if err := o.SubmitRate(ctx, sub); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Same signed payload replayed after the bucket rolls over.
	now = now.Add(2 * time.Minute)
	err := o.SubmitRate(ctx, sub)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
}

func TestDeviationGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{RequiredSubmissions: 2, ConsensusWindow: 5 * time.Minute, MinConfidenceBps: 0, MaxRateDeviationBps: 500}
	o, nodes := newTestOracle(t, cfg, &now)

	for i := 0; i < 2; i++ {
		if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[i], "3000", 9000, now)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	// 5% limit: 3200 is ~6.7% off the 3000 aggregate.
	err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[2], "3200", 9000, now))
	if !errors.Is(err, ErrDeviationTooLarge) {
		t.Fatalf("expected deviation rejection, got %v", err)
	}

	// 3100 is within 5% and accepted.
	if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[2], "3100", 9000, now)); err != nil {
		t.Fatalf("submit within deviation: %v", err)
	}

	var rejected, accepted int64
	for _, node := range o.Nodes() {
		if node.ID == nodes[2].addr {
			rejected = node.Reputation
		}
		if node.ID == nodes[0].addr {
			accepted = node.Reputation
		}
	}
	if rejected != 0 {
		t.Fatalf("expected net zero reputation after one rejection and one acceptance, got %d", rejected)
	}
	if accepted != 1 {
		t.Fatalf("expected reputation 1 for clean node, got %d", accepted)
	}
}

func TestPublishedCycleIsArchived(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := archive.NewMemoryStore()
	cfg := Config{RequiredSubmissions: 2, ConsensusWindow: 5 * time.Minute, MinConfidenceBps: 0, MaxRateDeviationBps: 10_000}
	o, nodes := newTestOracle(t, cfg, &now, WithArchive(store))

	for i := 0; i < 2; i++ {
		if err := o.SubmitRate(ctx, signedSubmission(t, o, nodes[i], "3000", 9000, now)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if _, err := o.LatestRate(ethUSDC); err != nil {
		t.Fatalf("latest rate: %v", err)
	}

	ids := store.IDs()
	if len(ids) != 1 {
		t.Fatalf("expected exactly one archived blob, got %d", len(ids))
	}
	blob, err := store.Retrieve(ctx, ids[0])
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	var decoded archivedCycle
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("unmarshal archived cycle: %v", err)
	}
	if decoded.Pair != "ETH/USDC" || len(decoded.Observations) != 2 {
		t.Fatalf("unexpected archived cycle: %+v", decoded)
	}
}
