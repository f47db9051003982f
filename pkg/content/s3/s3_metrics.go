package s3

import (
	"io"
	"time"
)

// Operation labels reported to S3Metrics. The list and batch delete labels
// are only produced by orphan collection.
const (
	OpGet         = "get"
	OpPut         = "put"
	OpDelete      = "delete"
	OpHead        = "head"
	OpList        = "list"
	OpDeleteBatch = "delete_batch"
)

// S3Metrics receives the outcome of every request the blob store makes.
// A nil S3Metrics in S3ContentStoreConfig disables collection.
type S3Metrics interface {
	// ObserveOperation records one request with its latency and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records blob bytes moved by OpGet or OpPut.
	RecordBytes(operation string, bytes int64)

	// RecordObjects records how many blobs OpList enumerated or
	// OpDeleteBatch removed.
	RecordObjects(operation string, count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
func (noopMetrics) RecordObjects(string, int)                     {}

// countingBody reports the bytes read from a blob once it is closed, so a
// reader that stops early is counted for what it consumed.
type countingBody struct {
	io.ReadCloser
	metrics S3Metrics
	n       int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *countingBody) Close() error {
	err := b.ReadCloser.Close()
	if b.n > 0 {
		b.metrics.RecordBytes(OpGet, b.n)
	}
	return err
}
