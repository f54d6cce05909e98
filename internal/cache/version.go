// Package cache provides the read-through result cache used by search.
//
// Entries are keyed by the current version token plus normalized request
// parameters. Bumping the token after a write makes every older entry
// unreachable at once; those entries age out through TTL and LRU eviction.
package cache

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Token identifies one generation of index content.
type Token struct {
	ID         string
	Generation uint64
}

// String renders the token for use as a key prefix.
func (t Token) String() string {
	return t.ID + "." + strconv.FormatUint(t.Generation, 10)
}

// Version holds the process-wide current token.
type Version struct {
	cur atomic.Pointer[Token]
}

// NewVersion returns a Version at generation 1.
func NewVersion() *Version {
	v := &Version{}
	v.cur.Store(&Token{ID: uuid.NewString(), Generation: 1})
	return v
}

// Current returns the token in effect.
func (v *Version) Current() Token {
	return *v.cur.Load()
}

// Bump replaces the current token with a fresh one and returns it.
func (v *Version) Bump() Token {
	for {
		old := v.cur.Load()
		next := &Token{ID: uuid.NewString(), Generation: old.Generation + 1}
		if v.cur.CompareAndSwap(old, next) {
			return *next
		}
	}
}
