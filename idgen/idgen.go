// Package idgen generates object identifiers in the T-N-R format: a
// 14-character time component, a 4-character node component, and a
// 4-character random component, each base62-encoded. Ported from the
// original storage layer's Identifier.OID/numcode routines.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// alphabet is the base62 charset used for every component of an OID.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Generator produces OIDs of the form T-N-R, unique per node as long as no
// two calls on the same node observe the same nanosecond-resolution clock
// tick (vanishingly unlikely, and broken further by the random component).
type Generator struct {
	node string

	mu   sync.Mutex
	last int64
}

// New returns a Generator bound to nodeID, a small integer identifying this
// process among its peers (see ResolveNodeID).
func New(nodeID int) *Generator {
	return &Generator{node: pad(numcode(uint64(nodeID)), 4)}
}

// ResolveNodeID determines this process's node id using the same
// precedence as the original implementation: the NODE_ID environment
// variable, then a numeric suffix on the hostname ("name-3" -> 3), then 0.
func ResolveNodeID() int {
	if v := os.Getenv("NODE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	host, err := os.Hostname()
	if err == nil {
		if idx := strings.LastIndexByte(host, '-'); idx >= 0 {
			if n, err := strconv.Atoi(host[idx+1:]); err == nil {
				return n
			}
		}
	}
	return 0
}

// New generates the next OID for this node.
func (g *Generator) New() string {
	t := g.monotonicNanos()
	r, err := rand.Int(rand.Reader, big.NewInt(1<<24))
	if err != nil {
		// crypto/rand failure is not recoverable; fall back to the clock so
		// OID generation never blocks a write.
		r = big.NewInt(time.Now().UnixNano() & 0xffffff)
	}
	return fmt.Sprintf("%s-%s-%s",
		pad(numcode(uint64(t)), 14),
		g.node,
		pad(numcode(r.Uint64()), 4),
	)
}

// monotonicNanos returns a strictly increasing nanosecond timestamp, nudging
// forward by one when the wall clock has not advanced since the last call
// so two OIDs minted in the same tick still sort distinctly.
func (g *Generator) monotonicNanos() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= g.last {
		now = g.last + 1
	}
	g.last = now
	return now
}

// numcode encodes num in the base62 alphabet, most significant digit first.
func numcode(num uint64) string {
	if num == 0 {
		return "0"
	}
	var sb strings.Builder
	base := uint64(len(alphabet))
	for num > 0 {
		sb.WriteByte(alphabet[num%base])
		num /= base
	}
	s := []byte(sb.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}

// pad left-pads s with "0" to width, truncating from the left if s is
// already longer (only the last width characters are kept).
func pad(s string, width int) string {
	if len(s) > width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}
