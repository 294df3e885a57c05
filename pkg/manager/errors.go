package manager

import "errors"

var (
	// ErrNotFound is returned when an upload does not exist or has expired.
	ErrNotFound = errors.New("upload not found")

	// ErrOffsetMismatch is returned when an append's declared offset does
	// not equal the upload's current offset. The client should fetch the
	// true offset via Status and retry from there.
	ErrOffsetMismatch = errors.New("mismatched offset")

	// ErrUploadComplete is returned when appending to an upload whose
	// offset already equals its length.
	ErrUploadComplete = errors.New("upload is already complete")

	// ErrChecksumMismatch is returned when the digest of a chunk disagrees
	// with the client-supplied checksum. No bytes have been committed.
	ErrChecksumMismatch = errors.New("chunk checksum mismatch")

	// ErrChecksumAlgorithm is returned when the client names a checksum
	// algorithm the server does not support.
	ErrChecksumAlgorithm = errors.New("unsupported checksum algorithm")

	// ErrChunkTooLarge is returned when a checksummed chunk exceeds the
	// configured buffer limit. Checksummed chunks must be buffered in full
	// before any byte is committed.
	ErrChunkTooLarge = errors.New("checksummed chunk exceeds the buffer limit")

	// ErrSizeExceeded is returned when a chunk would push the offset past
	// the upload's declared length.
	ErrSizeExceeded = errors.New("upload size exceeded")

	// ErrInvalidLength is returned when a declared length is negative or
	// smaller than the bytes already received.
	ErrInvalidLength = errors.New("invalid upload length")

	// ErrLengthAlreadyDeclared is returned when declaring a length for an
	// upload whose length is already known.
	ErrLengthAlreadyDeclared = errors.New("upload length is already declared")

	// ErrModifyFinal is returned when appending to a final upload.
	ErrModifyFinal = errors.New("modifying a final upload is not allowed")

	// ErrUploadNotFinished is returned when a concatenation names a parent
	// whose offset has not reached its length yet.
	ErrUploadNotFinished = errors.New("one of the partial uploads is not finished")

	// ErrFinalParent is returned when a concatenation names a parent that is
	// itself a final upload. Concatenation trees are limited to one level.
	ErrFinalParent = errors.New("a final upload cannot be used as a concatenation input")

	// ErrNotPartialParent is returned when a concatenation names a parent
	// that was not created as a partial upload.
	ErrNotPartialParent = errors.New("only partial uploads can be concatenated")

	// ErrLockTimeout is returned when the per-upload lock cannot be
	// acquired before the configured timeout.
	ErrLockTimeout = errors.New("failed to acquire upload lock before timeout")
)
