package connector

import "sync"

// SubmittedRequest records one Submit call made against a Fake.
type SubmittedRequest struct {
	Request   Request
	RequestID int64
}

// Fake is an in-memory connector for tests. It records every submitted
// request together with its correlation id and lets the test script inbound
// events with Emit.
type Fake struct {
	mu       sync.Mutex
	events   chan Event
	requests []SubmittedRequest
	results  map[RequestKind]int
	released int
}

// NewFake creates a fake connector with a buffered event stream.
func NewFake() *Fake {
	return &Fake{
		events:  make(chan Event, 64),
		results: make(map[RequestKind]int),
	}
}

// Submit records the request and returns the configured result code for its
// kind (0 unless FailKind was called).
func (f *Fake) Submit(req Request, requestID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, SubmittedRequest{Request: req, RequestID: requestID})
	return f.results[req.Kind]
}

// Events returns the scripted event stream.
func (f *Fake) Events() <-chan Event {
	return f.events
}

// Release closes the event stream on first call and counts invocations.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	if f.released == 1 {
		close(f.events)
	}
}

// Emit delivers an inbound event to the consumer. Panics if the fake was
// already released, which is a test ordering bug worth failing loudly on.
func (f *Fake) Emit(ev Event) {
	f.events <- ev
}

// Requests returns a copy of all submitted requests in order.
func (f *Fake) Requests() []SubmittedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SubmittedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// ReleaseCount reports how many times Release was called.
func (f *Fake) ReleaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// FailKind makes Submit return code for every subsequent request of kind.
func (f *Fake) FailKind(kind RequestKind, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[kind] = code
}
