// Package scrollspy tracks which heading section is in view while a page scrolls.
//
// The document is reached through the DOM and Element interfaces so the tracker
// can run against a browser bridge, a headless renderer or a test fake. Scroll
// offsets arrive from a ScrollSource; every tick recomputes the active heading
// and publishes it only when it changes.
package scrollspy

import (
	"sort"
	"sync"
)

const (
	// DefaultHeaderHeight is used when the page has no fixed header element
	DefaultHeaderHeight = 64
	// ScrollOffset activates a heading slightly before it reaches the header
	ScrollOffset = 50
)

// Element is a laid out node of the document
type Element interface {
	OffsetTop() float64
	OffsetParent() (Element, bool)
	Height() float64
}

// DOM finds elements in the rendered document
type DOM interface {
	// HeadingByID finds a heading element tagged with the id
	HeadingByID(id string) (Element, bool)
	// ElementByID finds any element with the id
	ElementByID(id string) (Element, bool)
	// Header finds the fixed page header
	Header() (Element, bool)
}

// ScrollSource delivers the vertical scroll offset of the document
type ScrollSource interface {
	Subscribe(fn func(offset float64)) (unsubscribe func())
}

// Option configures a Tracker
type Option func(*Tracker)

// WithHeaderHeight overrides the fallback header height
func WithHeaderHeight(px float64) Option {
	return func(t *Tracker) { t.fallbackHeader = px }
}

// WithScrollOffset overrides the trigger margin
func WithScrollOffset(px float64) Option {
	return func(t *Tracker) { t.margin = px }
}

// WithOnChange registers a callback invoked with the new active id on every change
func WithOnChange(fn func(id string)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// Tracker holds the active heading id for one page view
type Tracker struct {
	dom            DOM
	enabled        bool
	fallbackHeader float64
	margin         float64
	onChange       func(string)

	mu          sync.Mutex
	ids         []string
	active      string
	lastOffset  float64
	unsubscribe func()
	generation  int // bumped per subscription change
	version     int // bumped whenever a computed result may be stale
}

// New creates a tracker for the flattened heading ids of a page
func New(ids []string, enabled bool, dom DOM, opts ...Option) *Tracker {
	t := &Tracker{
		dom:            dom,
		enabled:        enabled,
		fallbackHeader: DefaultHeaderHeight,
		margin:         ScrollOffset,
		ids:            append([]string(nil), ids...),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ActiveID returns the id of the heading in view, or "" if none yet
func (t *Tracker) ActiveID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Start subscribes to src. Disabled trackers and trackers without ids never subscribe.
// Calling Start again replaces the previous subscription.
func (t *Tracker) Start(src ScrollSource) {
	t.mu.Lock()
	if !t.enabled || len(t.ids) == 0 {
		t.mu.Unlock()
		return
	}
	prev := t.detachLocked()
	gen := t.generation
	t.mu.Unlock()

	if prev != nil {
		prev()
	}

	unsubscribe := src.Subscribe(func(offset float64) {
		t.update(offset, gen)
	})

	t.mu.Lock()
	if t.generation == gen {
		t.unsubscribe = unsubscribe
		unsubscribe = nil
	}
	t.mu.Unlock()

	// Stop raced with Subscribe
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Stop releases the subscription; ticks delivered afterwards, and ticks still
// being computed, are ignored
func (t *Tracker) Stop() {
	t.mu.Lock()
	unsubscribe := t.detachLocked()
	t.mu.Unlock()

	// sources may hold their own lock while delivering a tick
	if unsubscribe != nil {
		unsubscribe()
	}
}

// detachLocked invalidates the current subscription and in-flight ticks and
// returns the unsubscribe func for the caller to run without t.mu held
func (t *Tracker) detachLocked() func() {
	t.generation++
	t.version++
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	return unsubscribe
}

// Update recomputes the active heading for the given scroll offset
func (t *Tracker) Update(offset float64) {
	t.update(offset, anyGeneration)
}

// anyGeneration marks an update that does not come from a subscription
const anyGeneration = -1

func (t *Tracker) update(offset float64, gen int) {
	t.mu.Lock()
	if gen != anyGeneration && gen != t.generation {
		t.mu.Unlock()
		return
	}
	if !t.enabled || len(t.ids) == 0 {
		t.mu.Unlock()
		return
	}
	t.lastOffset = offset
	ids, version := t.ids, t.version
	t.mu.Unlock()

	t.publish(t.compute(ids, offset), version)
}

// SetIDs replaces the tracked ids and recomputes against the last seen offset
func (t *Tracker) SetIDs(ids []string) {
	t.mu.Lock()
	t.ids = append([]string(nil), ids...)
	t.version++
	ids, offset, version := t.ids, t.lastOffset, t.version
	empty := len(ids) == 0 || !t.enabled
	t.mu.Unlock()

	if empty {
		t.publish("", version)
		return
	}
	t.publish(t.compute(ids, offset), version)
}

type trigger struct {
	id       string
	position float64
}

// compute returns the active id, or "" when no heading resolved
func (t *Tracker) compute(ids []string, offset float64) string {
	header := t.fallbackHeader
	if el, ok := t.dom.Header(); ok {
		header = el.Height()
	}

	triggers := make([]trigger, 0, len(ids))
	for _, id := range ids {
		el, ok := t.resolve(id)
		if !ok {
			continue
		}
		triggers = append(triggers, trigger{
			id:       id,
			position: absoluteTop(el) - header - t.margin,
		})
	}
	if len(triggers) == 0 {
		return ""
	}

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].position < triggers[j].position
	})

	// each heading owns [its trigger, next trigger); above the first still selects the first
	active := triggers[0].id
	for i, tr := range triggers {
		if offset < tr.position {
			break
		}
		if i == len(triggers)-1 || offset < triggers[i+1].position {
			active = tr.id
			break
		}
	}
	return active
}

func (t *Tracker) resolve(id string) (Element, bool) {
	if el, ok := t.dom.HeadingByID(id); ok {
		return el, true
	}
	return t.dom.ElementByID(id)
}

// absoluteTop sums offsetTop along the offset parent chain
func absoluteTop(el Element) float64 {
	var top float64
	for el != nil {
		top += el.OffsetTop()
		parent, ok := el.OffsetParent()
		if !ok {
			break
		}
		el = parent
	}
	return top
}

// publish stores id and notifies only when it changed. An empty result from a
// tick leaves the previous value in place. Results computed against an older
// id list or subscription are dropped.
func (t *Tracker) publish(id string, version int) {
	t.mu.Lock()
	if version != t.version || id == t.active || (id == "" && len(t.ids) > 0) {
		t.mu.Unlock()
		return
	}
	t.active = id
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(id)
	}
}
