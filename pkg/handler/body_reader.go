package handler

import (
	"io"
	"sync"
	"sync/atomic"
)

// bodyReader wraps the request body. If an error occurs while reading, it is
// not returned to the reading entity. Instead the error is stored and EOF is
// reported, so the storage backend commits the bytes it got and the handler
// can inspect the error afterwards. In addition, the bodyReader keeps track
// of how many bytes were read.
type bodyReader struct {
	bytesCounter atomic.Int64
	reader       io.Reader
	closer       io.Closer

	// lock protects concurrent access to err.
	lock sync.RWMutex
	err  error
}

func newBodyReader(r io.ReadCloser, maxSize int64) *bodyReader {
	return &bodyReader{
		reader: io.LimitReader(r, maxSize),
		closer: r,
	}
}

func (r *bodyReader) Read(b []byte) (int, error) {
	if r.hasError() != nil {
		return 0, io.EOF
	}

	n, err := r.reader.Read(b)
	r.bytesCounter.Add(int64(n))

	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		// Hide the error from the consumer, so already received bytes are
		// committed before the failure is reported.
		r.setError(err)
		err = io.EOF
	}

	return n, err
}

func (r *bodyReader) hasError() error {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.err == io.EOF {
		return nil
	}
	return r.err
}

func (r *bodyReader) setError(err error) {
	r.lock.Lock()
	r.err = err
	r.lock.Unlock()
}

func (r *bodyReader) bytesRead() int64 {
	return r.bytesCounter.Load()
}

func (r *bodyReader) closeWithError(err error) {
	r.setError(err)
	r.closer.Close()
}
