package scrollspy

import (
	"sync"
	"testing"
	"time"
)

type fakeElement struct {
	top    float64
	height float64
	parent *fakeElement
}

func (e *fakeElement) OffsetTop() float64 { return e.top }
func (e *fakeElement) Height() float64    { return e.height }
func (e *fakeElement) OffsetParent() (Element, bool) {
	if e.parent == nil {
		return nil, false
	}
	return e.parent, true
}

type fakeDOM struct {
	mu       sync.Mutex
	headings map[string]*fakeElement
	elements map[string]*fakeElement
	header   *fakeElement
}

func (d *fakeDOM) HeadingByID(id string) (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.headings[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func (d *fakeDOM) ElementByID(id string) (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func (d *fakeDOM) Header() (Element, bool) {
	if d.header == nil {
		return nil, false
	}
	return d.header, true
}

type fakeSource struct {
	mu           sync.Mutex
	subscribers  map[int]func(float64)
	next         int
	unsubscribed int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subscribers: map[int]func(float64){}}
}

func (s *fakeSource) Subscribe(fn func(float64)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
		s.unsubscribed++
	}
}

func (s *fakeSource) emit(offset float64) {
	s.mu.Lock()
	fns := make([]func(float64), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(offset)
	}
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// threeHeadings lays out headings at 200, 600 and 1000 under a 100px header
func threeHeadings() *fakeDOM {
	return &fakeDOM{
		headings: map[string]*fakeElement{
			"a": {top: 200},
			"b": {top: 600},
			"c": {top: 1000},
		},
		header: &fakeElement{height: 100},
	}
}

func TestWorkedExample(t *testing.T) {
	src := newFakeSource()
	tracker := New([]string{"a", "b", "c"}, true, threeHeadings(), WithScrollOffset(50))
	tracker.Start(src)
	defer tracker.Stop()

	tests := []struct {
		offset   float64
		expected string
	}{
		{offset: 100, expected: "a"},
		{offset: 500, expected: "b"},
		{offset: 900, expected: "c"},
		{offset: 0, expected: "a"},
		{offset: 449, expected: "a"},
		{offset: 450, expected: "b"},
		{offset: 100000, expected: "c"},
	}

	for _, tt := range tests {
		src.emit(tt.offset)
		if got := tracker.ActiveID(); got != tt.expected {
			t.Errorf("offset %v: ActiveID() = %q, want %q", tt.offset, got, tt.expected)
		}
	}
}

func TestFallbackHeaderHeight(t *testing.T) {
	dom := threeHeadings()
	dom.header = nil

	tracker := New([]string{"a", "b", "c"}, true, dom, WithHeaderHeight(0), WithScrollOffset(0))

	tracker.Update(599)
	if got := tracker.ActiveID(); got != "a" {
		t.Errorf("ActiveID() = %q, want a", got)
	}
	tracker.Update(600)
	if got := tracker.ActiveID(); got != "b" {
		t.Errorf("ActiveID() = %q, want b", got)
	}
}

func TestDefaultConstants(t *testing.T) {
	dom := threeHeadings()
	dom.header = nil

	tracker := New([]string{"a", "b"}, true, dom)
	// b triggers at 600 - DefaultHeaderHeight - ScrollOffset
	tracker.Update(600 - DefaultHeaderHeight - ScrollOffset)
	if got := tracker.ActiveID(); got != "b" {
		t.Errorf("ActiveID() = %q, want b", got)
	}
}

func TestOffsetParentChain(t *testing.T) {
	article := &fakeElement{top: 300}
	section := &fakeElement{top: 200, parent: article}
	dom := &fakeDOM{
		headings: map[string]*fakeElement{
			"outer": {top: 400},
			"inner": {top: 50, parent: section}, // absolute 550
		},
		header: &fakeElement{height: 0},
	}

	tracker := New([]string{"outer", "inner"}, true, dom, WithScrollOffset(0))

	tracker.Update(500)
	if got := tracker.ActiveID(); got != "outer" {
		t.Errorf("ActiveID() = %q, want outer", got)
	}
	tracker.Update(550)
	if got := tracker.ActiveID(); got != "inner" {
		t.Errorf("ActiveID() = %q, want inner", got)
	}
}

func TestSortsByPositionNotByOrder(t *testing.T) {
	dom := &fakeDOM{
		headings: map[string]*fakeElement{
			"late":  {top: 900},
			"early": {top: 100},
		},
		header: &fakeElement{height: 0},
	}

	tracker := New([]string{"late", "early"}, true, dom, WithScrollOffset(0))
	tracker.Update(0)
	if got := tracker.ActiveID(); got != "early" {
		t.Errorf("ActiveID() = %q, want early", got)
	}
}

func TestResolutionFallbackAndSkip(t *testing.T) {
	dom := &fakeDOM{
		headings: map[string]*fakeElement{"a": {top: 100}},
		elements: map[string]*fakeElement{"b": {top: 500}},
		header:   &fakeElement{height: 0},
	}

	tracker := New([]string{"a", "missing", "b"}, true, dom, WithScrollOffset(0))

	tracker.Update(600)
	if got := tracker.ActiveID(); got != "b" {
		t.Errorf("ActiveID() = %q, want b resolved by plain id", got)
	}
}

func TestNothingResolvedKeepsPrevious(t *testing.T) {
	dom := threeHeadings()
	tracker := New([]string{"a", "b", "c"}, true, dom, WithScrollOffset(50))

	tracker.Update(500)
	if got := tracker.ActiveID(); got != "b" {
		t.Fatalf("ActiveID() = %q, want b", got)
	}

	dom.mu.Lock()
	dom.headings = map[string]*fakeElement{}
	dom.mu.Unlock()

	tracker.Update(900)
	if got := tracker.ActiveID(); got != "b" {
		t.Errorf("ActiveID() = %q, want previous value b", got)
	}

	empty := New([]string{"x"}, true, &fakeDOM{})
	empty.Update(100)
	if got := empty.ActiveID(); got != "" {
		t.Errorf("ActiveID() = %q, want empty when nothing ever resolved", got)
	}
}

func TestPublishesOnlyOnChange(t *testing.T) {
	var changes []string
	tracker := New([]string{"a", "b", "c"}, true, threeHeadings(),
		WithScrollOffset(50),
		WithOnChange(func(id string) { changes = append(changes, id) }),
	)

	for _, offset := range []float64{0, 10, 20, 460, 470, 900, 910, 30} {
		tracker.Update(offset)
	}

	expected := []string{"a", "b", "c", "a"}
	if len(changes) != len(expected) {
		t.Fatalf("changes = %v, want %v", changes, expected)
	}
	for i := range expected {
		if changes[i] != expected[i] {
			t.Errorf("changes = %v, want %v", changes, expected)
			break
		}
	}
}

func TestDisabledOrEmpty(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		enabled bool
	}{
		{name: "Disabled", ids: []string{"a", "b", "c"}, enabled: false},
		{name: "Empty outline", ids: nil, enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			tracker := New(tt.ids, tt.enabled, threeHeadings(), WithScrollOffset(50))
			tracker.Start(src)

			if src.count() != 0 {
				t.Errorf("Expected no subscription, got %d", src.count())
			}
			src.emit(500)
			tracker.Update(500)
			if got := tracker.ActiveID(); got != "" {
				t.Errorf("ActiveID() = %q, want empty", got)
			}
			tracker.Stop()
		})
	}
}

func TestStopReleasesSubscription(t *testing.T) {
	src := newFakeSource()
	tracker := New([]string{"a", "b", "c"}, true, threeHeadings(), WithScrollOffset(50))

	tracker.Start(src)
	if src.count() != 1 {
		t.Fatalf("Expected one subscription, got %d", src.count())
	}
	src.emit(100)

	stale := make([]func(float64), 0, 1)
	src.mu.Lock()
	for _, fn := range src.subscribers {
		stale = append(stale, fn)
	}
	src.mu.Unlock()

	tracker.Stop()
	if src.count() != 0 || src.unsubscribed != 1 {
		t.Fatalf("Expected subscription released, count=%d unsubscribed=%d", src.count(), src.unsubscribed)
	}

	// a source that still holds the callback must not move the tracker
	stale[0](900)
	if got := tracker.ActiveID(); got != "a" {
		t.Errorf("ActiveID() = %q, want a after stop", got)
	}
}

func TestRestartReplacesSubscription(t *testing.T) {
	first, second := newFakeSource(), newFakeSource()
	tracker := New([]string{"a", "b", "c"}, true, threeHeadings(), WithScrollOffset(50))

	tracker.Start(first)
	tracker.Start(second)
	defer tracker.Stop()

	if first.count() != 0 || second.count() != 1 {
		t.Fatalf("Expected subscription moved, first=%d second=%d", first.count(), second.count())
	}
	second.emit(900)
	if got := tracker.ActiveID(); got != "c" {
		t.Errorf("ActiveID() = %q, want c", got)
	}
}

func TestSetIDsRecomputes(t *testing.T) {
	tracker := New([]string{"a"}, true, threeHeadings(), WithScrollOffset(50))

	tracker.Update(900)
	if got := tracker.ActiveID(); got != "a" {
		t.Fatalf("ActiveID() = %q, want a", got)
	}

	tracker.SetIDs([]string{"a", "b", "c"})
	if got := tracker.ActiveID(); got != "c" {
		t.Errorf("ActiveID() = %q, want c after ids change", got)
	}

	tracker.SetIDs(nil)
	if got := tracker.ActiveID(); got != "" {
		t.Errorf("ActiveID() = %q, want empty for empty outline", got)
	}
}

func TestIndependentTrackers(t *testing.T) {
	dom := threeHeadings()
	one := New([]string{"a", "b", "c"}, true, dom, WithScrollOffset(50))
	two := New([]string{"a", "b", "c"}, true, dom, WithScrollOffset(50))

	one.Update(900)
	two.Update(100)
	if one.ActiveID() != "c" || two.ActiveID() != "a" {
		t.Errorf("Trackers interfered: one=%q two=%q", one.ActiveID(), two.ActiveID())
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tracker := New([]string{"a", "b", "c"}, true, threeHeadings(), WithScrollOffset(50))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Update(float64((i*100 + j) % 1200))
				_ = tracker.ActiveID()
			}
		}(i)
	}
	wg.Wait()

	switch tracker.ActiveID() {
	case "a", "b", "c":
	default:
		t.Errorf("Unexpected active id %q", tracker.ActiveID())
	}
}

// gatedDOM blocks inside Header until released, holding a tick mid-computation
type gatedDOM struct {
	*fakeDOM
	entered chan struct{}
	release chan struct{}
}

func newGatedDOM() *gatedDOM {
	return &gatedDOM{
		fakeDOM: threeHeadings(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (d *gatedDOM) Header() (Element, bool) {
	d.entered <- struct{}{}
	<-d.release
	return d.fakeDOM.Header()
}

// lockingSource delivers ticks while holding its own lock, and unsubscribing takes it too
type lockingSource struct {
	mu            sync.Mutex
	fn            func(float64)
	unsubscribing chan struct{}
}

func (s *lockingSource) Subscribe(fn func(float64)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return func() {
		select {
		case s.unsubscribing <- struct{}{}:
		default:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.fn = nil
	}
}

func (s *lockingSource) emit(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn != nil {
		s.fn(offset)
	}
}

func TestStopWhileSourceDelivers(t *testing.T) {
	dom := newGatedDOM()
	src := &lockingSource{unsubscribing: make(chan struct{}, 1)}
	tracker := New([]string{"a", "b", "c"}, true, dom, WithScrollOffset(50))
	tracker.Start(src)

	emitted := make(chan struct{})
	go func() {
		src.emit(500)
		close(emitted)
	}()
	<-dom.entered

	stopped := make(chan struct{})
	go func() {
		tracker.Stop()
		close(stopped)
	}()
	<-src.unsubscribing
	close(dom.release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return while the source was delivering a tick")
	}
	<-emitted

	if got := tracker.ActiveID(); got != "" {
		t.Errorf("ActiveID() = %q, want tick in flight during Stop to be dropped", got)
	}
}

func TestSetIDsDropsInFlightTick(t *testing.T) {
	dom := newGatedDOM()
	tracker := New([]string{"a", "b", "c"}, true, dom, WithScrollOffset(50))

	done := make(chan struct{})
	go func() {
		tracker.Update(500)
		close(done)
	}()
	<-dom.entered

	tracker.SetIDs(nil)
	close(dom.release)
	<-done

	if got := tracker.ActiveID(); got != "" {
		t.Errorf("ActiveID() = %q, want empty for empty outline", got)
	}
}
