package handler

import (
	"sync"
	"sync/atomic"
)

// Metrics provides numbers about the usage of the handler. Since these may
// be accessed from multiple goroutines, they are stored in atomic counters.
// The maps must not be modified by consumers.
type Metrics struct {
	// RequestsTotal counts the number of incoming requests per method.
	RequestsTotal map[string]*atomic.Uint64
	// ErrorsTotal counts the number of returned errors by their error code.
	ErrorsTotal *ErrorsTotalMap
	// BytesReceived counts the number of chunk bytes accepted and stored.
	BytesReceived *atomic.Uint64
	// UploadsCreated counts the number of created uploads.
	UploadsCreated *atomic.Uint64
	// UploadsFinished counts the number of uploads which reached their
	// declared length, including final uploads created by concatenation.
	UploadsFinished *atomic.Uint64
	// UploadsTerminated counts the number of uploads deleted by clients.
	UploadsTerminated *atomic.Uint64
}

// incRequestsTotal increases the counter for this request method atomically
// by one. The method must be one of GET, HEAD, POST, PATCH, DELETE, OPTIONS.
func (m Metrics) incRequestsTotal(method string) {
	if counter, ok := m.RequestsTotal[method]; ok {
		counter.Add(1)
	}
}

// incErrorsTotal increases the counter for this error atomically by one.
func (m Metrics) incErrorsTotal(err Error) {
	m.ErrorsTotal.retrievePointerFor(ErrorIdentity{
		ErrorCode:  err.ErrorCode,
		StatusCode: err.HTTPResponse.StatusCode,
	}).Add(1)
}

func (m Metrics) incBytesReceived(delta uint64) {
	m.BytesReceived.Add(delta)
}

func (m Metrics) incUploadsCreated() {
	m.UploadsCreated.Add(1)
}

func (m Metrics) incUploadsFinished() {
	m.UploadsFinished.Add(1)
}

func (m Metrics) incUploadsTerminated() {
	m.UploadsTerminated.Add(1)
}

func newMetrics() Metrics {
	return Metrics{
		RequestsTotal: map[string]*atomic.Uint64{
			"GET":     new(atomic.Uint64),
			"HEAD":    new(atomic.Uint64),
			"POST":    new(atomic.Uint64),
			"PATCH":   new(atomic.Uint64),
			"DELETE":  new(atomic.Uint64),
			"OPTIONS": new(atomic.Uint64),
		},
		ErrorsTotal:       newErrorsTotalMap(),
		BytesReceived:     new(atomic.Uint64),
		UploadsCreated:    new(atomic.Uint64),
		UploadsFinished:   new(atomic.Uint64),
		UploadsTerminated: new(atomic.Uint64),
	}
}

// ErrorIdentity uniquely identifies an error for counting purposes.
type ErrorIdentity struct {
	ErrorCode  string
	StatusCode int
}

// ErrorsTotalMap is a map of error counters, keyed by error identity. New
// entries are created lazily the first time an error occurs.
type ErrorsTotalMap struct {
	lock     sync.RWMutex
	counters map[ErrorIdentity]*atomic.Uint64
}

func newErrorsTotalMap() *ErrorsTotalMap {
	return &ErrorsTotalMap{
		counters: make(map[ErrorIdentity]*atomic.Uint64),
	}
}

func (m *ErrorsTotalMap) retrievePointerFor(id ErrorIdentity) *atomic.Uint64 {
	m.lock.RLock()
	counter, ok := m.counters[id]
	m.lock.RUnlock()
	if ok {
		return counter
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	// Another goroutine may have created the counter in the meantime.
	if counter, ok := m.counters[id]; ok {
		return counter
	}

	counter = new(atomic.Uint64)
	m.counters[id] = counter
	return counter
}

// Load returns a copy of the error counter map, for consumers such as the
// prometheus collector.
func (m *ErrorsTotalMap) Load() map[ErrorIdentity]*atomic.Uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()

	counters := make(map[ErrorIdentity]*atomic.Uint64, len(m.counters))
	for id, counter := range m.counters {
		counters[id] = counter
	}
	return counters
}
