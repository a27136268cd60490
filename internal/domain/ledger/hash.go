package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/eshaffer321/utility-ledger/internal/domain/money"
)

const hashVersion = "v1"

// PaymentHash computes the content identity of a payment.
//
// Inputs are the cycle date, the normalized amount, the description
// (case-folded, whitespace collapsed) and the occurrence ordinal of that
// tuple within the snapshot. The resolved bill is never part of the hash:
// it can change under a manual lock while the payment stays the same.
func PaymentHash(p *PaymentEntry, occurrence int) string {
	key := strings.Join([]string{
		hashVersion,
		p.Date.Format(DateLayout),
		money.Normalize(p.AmountRaw),
		strings.ToLower(collapseSpace(p.Description)),
		fmt.Sprint(occurrence),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// OccurrenceCounter hands out per-snapshot ordinals for identical payment
// tuples so two genuine same-day same-amount payments stay distinct while a
// re-scrape of the same page produces the same hashes.
type OccurrenceCounter struct {
	seen map[string]int
}

// NewOccurrenceCounter creates an empty counter. Use one per snapshot.
func NewOccurrenceCounter() *OccurrenceCounter {
	return &OccurrenceCounter{seen: make(map[string]int)}
}

// Next returns the ordinal for p and advances the counter.
func (c *OccurrenceCounter) Next(p *PaymentEntry) int {
	key := p.Date.Format(DateLayout) + "|" + money.Normalize(p.AmountRaw) + "|" + strings.ToLower(collapseSpace(p.Description))
	n := c.seen[key]
	c.seen[key] = n + 1
	return n
}
