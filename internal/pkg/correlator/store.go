package correlator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sipcat/corrcore/internal/pkg/config"
	"github.com/sipcat/corrcore/internal/pkg/logger"
	"github.com/sipcat/corrcore/internal/pkg/matchexpr"
)

// SortField names an attribute the call list can be ordered by.
type SortField int

const (
	SortByCallIndex SortField = iota
	SortByFrom
	SortByTo
	SortByStartTime
	SortByState
	SortByDuration
)

// sortFieldNames mirrors the setting-string vocabulary a config layer would
// expose through call-list.sort-field.
var sortFieldNames = map[string]SortField{
	"call-index": SortByCallIndex,
	"from":       SortByFrom,
	"to":         SortByTo,
	"start-time": SortByStartTime,
	"state":      SortByState,
	"duration":   SortByDuration,
}

// ParseSortField resolves a setting string to a SortField, defaulting to
// SortByCallIndex when unrecognized - storage_init in the original falls
// back to SIP_ATTR_CALLINDEX the same way when the configured name doesn't
// resolve to a known attribute.
func ParseSortField(name string) SortField {
	if f, ok := sortFieldNames[name]; ok {
		return f
	}
	return SortByCallIndex
}

// Store is the process-wide (or test-scoped) singleton described in
// spec.md §3: a sorted call list, an active-call index, and a Call-ID
// index, all kept consistent across inserts, deletions, and re-sorts.
type Store struct {
	mu sync.Mutex

	list     []*Call
	active   []*Call
	callids  map[string]*Call
	lastIdx  uint64
	capture  config.CaptureOptions
	match    config.MatchOptions
	sortOpts config.SortOptions
	sortBy   SortField
	changed  bool

	matcher *matchexpr.Engine
}

// Init constructs a Store per spec.md §6's init(capture_opts, match_opts,
// sort_opts). A RegexCompile error aborts construction, mirroring
// storage_init's gboolean return in the original.
func Init(capture config.CaptureOptions, match config.MatchOptions, sortOpts config.SortOptions) (*Store, error) {
	matcher, err := matchexpr.Compile(matchexpr.Options{
		Expr:   match.Expr,
		Invert: match.Invert,
		Case:   match.Case,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegexCompile, err)
	}

	s := &Store{
		callids:  make(map[string]*Call),
		capture:  capture,
		match:    match,
		sortOpts: sortOpts,
		sortBy:   ParseSortField(sortOpts.By),
		matcher:  matcher,
	}

	logger.Info("correlation store initialized",
		"capture_limit", capture.Limit,
		"rotate", capture.Rotate,
		"sort_by", sortOpts.By,
		"sort_asc", sortOpts.Asc)

	return s, nil
}

// Deinit releases the store's resources. Safe only when no ingress call is
// in flight, per spec.md §5.
func (s *Store) Deinit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearHardLocked()
}

// Count returns the number of retained calls.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// GetCapture returns the store's capture configuration.
func (s *Store) GetCapture() config.CaptureOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

// MatchExpr returns the configured match expression text, or "" if none.
func (s *Store) MatchExpr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matcher.Expr()
}

// compare orders two calls by the store's configured sort field, breaking
// ties by Index (stable by insertion order), per spec.md §4.3.
func (s *Store) compare(a, b *Call) int {
	var cmp int
	switch s.sortBy {
	case SortByFrom:
		cmp = compareStrings(firstFrom(a), firstFrom(b))
	case SortByTo:
		cmp = compareStrings(firstTo(a), firstTo(b))
	case SortByStartTime:
		cmp = compareTimes(startTime(a), startTime(b))
	case SortByState:
		cmp = int(a.State) - int(b.State)
	case SortByDuration:
		cmp = compareTimes(duration(a), duration(b))
	default: // SortByCallIndex
		cmp = compareUint64(a.Index, b.Index)
	}
	if cmp == 0 {
		cmp = compareUint64(a.Index, b.Index)
	}
	if !s.sortOpts.Asc {
		cmp = -cmp
	}
	return cmp
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func firstFrom(c *Call) string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].From
}

func firstTo(c *Call) string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].To
}

func startTime(c *Call) int64 {
	if len(c.Messages) == 0 || c.Messages[0].Packet == nil {
		return 0
	}
	return c.Messages[0].Packet.Timestamp.UnixNano()
}

func duration(c *Call) int64 {
	if len(c.Messages) == 0 {
		return 0
	}
	last := c.Messages[len(c.Messages)-1]
	first := c.Messages[0]
	if first.Packet == nil || last.Packet == nil {
		return 0
	}
	return last.Packet.Timestamp.UnixNano() - first.Packet.Timestamp.UnixNano()
}

// insertSorted inserts call at the position s.compare dictates, using
// binary search over the already-sorted list - the "array with binary
// search" container semantics spec.md §9 calls out.
func (s *Store) insertSorted(call *Call) {
	idx := sort.Search(len(s.list), func(i int) bool {
		return s.compare(s.list[i], call) >= 0
	})
	s.list = append(s.list, nil)
	copy(s.list[idx+1:], s.list[idx:])
	s.list[idx] = call
}

// SetSort reconfigures the sort and re-sorts list in place. active's order
// is not user-visible and is left alone, per spec.md §4.3.
func (s *Store) SetSort(opts config.SortOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortOpts = opts
	s.sortBy = ParseSortField(opts.By)
	sort.SliceStable(s.list, func(i, j int) bool {
		return s.compare(s.list[i], s.list[j]) < 0
	})
}

// GetSort returns the store's current sort configuration.
func (s *Store) GetSort() config.SortOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortOpts
}

// markActiveLocked appends call to active if not already present.
// Idempotent, per spec.md §8 property 7.
func (s *Store) markActiveLocked(call *Call) {
	if call.activePos >= 0 {
		return
	}
	call.activePos = len(s.active)
	s.active = append(s.active, call)
}

// unmarkActiveLocked removes call from active if present. Idempotent.
func (s *Store) unmarkActiveLocked(call *Call) {
	pos := call.activePos
	if pos < 0 {
		return
	}
	last := len(s.active) - 1
	s.active[pos] = s.active[last]
	s.active[pos].activePos = pos
	s.active = s.active[:last]
	call.activePos = -1
}

// IsActive reports whether call is currently in the active index.
func (s *Store) IsActive(call *Call) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return call.activePos >= 0
}

// rotateLocked evicts the oldest unlocked call from list, active, and
// callids. A no-op if every call is locked, per spec.md §4.3: scan the list
// for the unlocked call with the lowest Index, whatever the current sort
// order, and evict it.
func (s *Store) rotateLocked() {
	victim := -1
	for i, call := range s.list {
		if call.Locked {
			continue
		}
		if victim < 0 || call.Index < s.list[victim].Index {
			victim = i
		}
	}
	if victim < 0 {
		return
	}
	call := s.list[victim]
	delete(s.callids, call.CallID)
	s.unmarkActiveLocked(call)
	s.list = append(s.list[:victim], s.list[victim+1:]...)
	logger.Info("rotated call", "call_id", call.CallID, "index", call.Index)
}

// clearHardLocked drops every call, message, and stream.
func (s *Store) clearHardLocked() {
	s.list = nil
	s.active = nil
	s.callids = make(map[string]*Call)
	s.changed = true
}

// ClearHard drops everything the store retains.
func (s *Store) ClearHard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearHardLocked()
}

// ClearSoft retains only calls for which predicate holds, rebuilding
// callids accordingly, per spec.md §4.3.
func (s *Store) ClearSoft(predicate func(*Call) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.list[:0:0]
	for _, call := range s.list {
		if predicate(call) {
			kept = append(kept, call)
		}
	}
	s.list = kept

	keptActive := s.active[:0:0]
	for _, call := range s.active {
		if predicate(call) {
			call.activePos = len(keptActive)
			keptActive = append(keptActive, call)
		} else {
			call.activePos = -1
		}
	}
	s.active = keptActive

	s.callids = make(map[string]*Call, len(s.list))
	for _, call := range s.list {
		s.callids[call.CallID] = call
	}
	s.changed = true
}

// Rotate evicts the oldest unlocked call, for callers driving rotation
// directly (e.g. an operator command) rather than via ingress admission.
func (s *Store) Rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateLocked()
}

// FindByCallID looks up a call by its Call-ID.
func (s *Store) FindByCallID(callID string) (*Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.callids[callID]
	return c, ok
}

// ChangedAndReset returns whether the store has mutated visible state
// since the last call, clearing the flag - the dirty bit the UI polls.
func (s *Store) ChangedAndReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.changed
	s.changed = false
	return changed
}
