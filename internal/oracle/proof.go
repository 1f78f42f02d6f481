package oracle

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"aetherpay/internal/address"
)

// RateDomainV1 is the domain separator bound into every signed submission.
const RateDomainV1 = "AETHERPAY_RATE_V1"

// timeBucket discretizes a timestamp to the consensus window. The bucket is
// part of the signed payload, so a signature captured in one window cannot be
// replayed in a later one.
func timeBucket(ts time.Time, window time.Duration) int64 {
	return ts.UTC().Truncate(window).Unix()
}

// canonicalMessage renders the exact byte sequence a node signs: domain,
// submitter, pair, rate, confidence and the discretized time bucket.
func canonicalMessage(sub Submission, window time.Duration) (string, error) {
	if sub.Rate == nil || sub.Rate.Sign() <= 0 {
		return "", ErrInvalidRate
	}
	if sub.Pair.Base == "" || sub.Pair.Quote == "" {
		return "", fmt.Errorf("oracle: pair required")
	}
	if sub.SubmittedAt.IsZero() {
		return "", fmt.Errorf("oracle: submission timestamp required")
	}
	builder := strings.Builder{}
	builder.WriteString(RateDomainV1)
	builder.WriteString("|submitter=")
	builder.WriteString(sub.Submitter.String())
	builder.WriteString("|pair=")
	builder.WriteString(sub.Pair.String())
	builder.WriteString("|rate=")
	builder.WriteString(sub.Rate.FloatString(18))
	builder.WriteString("|conf=")
	builder.WriteString(strconv.FormatUint(uint64(sub.ConfidenceBps), 10))
	builder.WriteString("|bucket=")
	builder.WriteString(strconv.FormatInt(timeBucket(sub.SubmittedAt, window), 10))
	return builder.String(), nil
}

// SubmissionDigest computes the keccak256 digest nodes sign.
func SubmissionDigest(sub Submission, window time.Duration) ([]byte, error) {
	message, err := canonicalMessage(sub, window)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256([]byte(message)), nil
}

// Sign populates the submission's submitter and signature from the node key.
func Sign(sub *Submission, key *ecdsa.PrivateKey, window time.Duration) error {
	if sub == nil || key == nil {
		return fmt.Errorf("oracle: submission and key required")
	}
	sub.Submitter = address.FromPubKey(&key.PublicKey)
	digest, err := SubmissionDigest(*sub, window)
	if err != nil {
		return err
	}
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return err
	}
	sub.Signature = sig
	return nil
}

// verifySignature recovers the signer and checks it matches the declared
// submitter for the current time bucket.
func verifySignature(sub Submission, window time.Duration, now time.Time) error {
	if len(sub.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrSignatureInvalid)
	}
	if timeBucket(sub.SubmittedAt, window) != timeBucket(now, window) {
		return fmt.Errorf("%w: time bucket outside active window", ErrSignatureInvalid)
	}
	digest, err := SubmissionDigest(sub, window)
	if err != nil {
		return err
	}
	pub, err := ethcrypto.SigToPub(digest, sub.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if address.FromPubKey(pub) != sub.Submitter {
		return fmt.Errorf("%w: signer does not match submitter", ErrSignatureInvalid)
	}
	return nil
}
