package handler

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/resumed/resumed/pkg/manager"
	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/storage"
)

// ProtocolVersion is the tus protocol version implemented by this handler.
// Every response carries it in the Tus-Resumable header.
const ProtocolVersion = "1.0.0"

var (
	reExtractFileID  = regexp.MustCompile(`([^/]+)\/?$`)
	reForwardedHost  = regexp.MustCompile(`host="?([^;"]+)`)
	reForwardedProto = regexp.MustCompile(`proto=(https?)`)
	reMimeType       = regexp.MustCompile(`^[a-z]+\/[a-z0-9\-\+\.]+$`)
)

var (
	ErrUnsupportedVersion               = NewError("ERR_UNSUPPORTED_VERSION", "missing, invalid or unsupported Tus-Resumable header", http.StatusPreconditionFailed)
	ErrMaxSizeExceeded                  = NewError("ERR_MAX_SIZE_EXCEEDED", "maximum size exceeded", http.StatusRequestEntityTooLarge)
	ErrInvalidContentType               = NewError("ERR_INVALID_CONTENT_TYPE", "missing or invalid Content-Type header", http.StatusBadRequest)
	ErrInvalidUploadLength              = NewError("ERR_INVALID_UPLOAD_LENGTH", "missing or invalid Upload-Length header", http.StatusBadRequest)
	ErrInvalidOffset                    = NewError("ERR_INVALID_OFFSET", "missing or invalid Upload-Offset header", http.StatusBadRequest)
	ErrInvalidChecksum                  = NewError("ERR_INVALID_CHECKSUM", "missing or invalid Upload-Checksum header", http.StatusBadRequest)
	ErrUnsupportedChecksumAlgorithm     = NewError("ERR_UNSUPPORTED_CHECKSUM_ALGORITHM", "unsupported checksum algorithm", http.StatusBadRequest)
	ErrChecksumMismatch                 = NewError("ERR_CHECKSUM_MISMATCH", "chunk checksum does not match", 460)
	ErrChecksumChunkTooLarge            = NewError("ERR_CHECKSUM_CHUNK_TOO_LARGE", "checksummed chunk exceeds the verification buffer", http.StatusRequestEntityTooLarge)
	ErrNotFound                         = NewError("ERR_UPLOAD_NOT_FOUND", "upload not found", http.StatusNotFound)
	ErrUploadLocked                     = NewError("ERR_UPLOAD_LOCKED", "upload is currently locked by another request", http.StatusLocked)
	ErrMismatchOffset                   = NewError("ERR_MISMATCHED_OFFSET", "mismatched offset", http.StatusConflict)
	ErrUploadCompleted                  = NewError("ERR_UPLOAD_COMPLETED", "upload has already been completed", http.StatusConflict)
	ErrSizeExceeded                     = NewError("ERR_UPLOAD_SIZE_EXCEEDED", "upload's size exceeded", http.StatusRequestEntityTooLarge)
	ErrNotImplemented                   = NewError("ERR_NOT_IMPLEMENTED", "feature not implemented", http.StatusNotImplemented)
	ErrUploadNotFinished                = NewError("ERR_UPLOAD_NOT_FINISHED", "one of the partial uploads is not finished", http.StatusBadRequest)
	ErrInvalidConcat                    = NewError("ERR_INVALID_CONCAT", "invalid Upload-Concat header", http.StatusBadRequest)
	ErrModifyFinal                      = NewError("ERR_MODIFY_FINAL", "modifying a final upload is not allowed", http.StatusForbidden)
	ErrUploadLengthAndUploadDeferLength = NewError("ERR_AMBIGUOUS_UPLOAD_LENGTH", "provided both Upload-Length and Upload-Defer-Length", http.StatusBadRequest)
	ErrInvalidUploadDeferLength         = NewError("ERR_INVALID_UPLOAD_LENGTH_DEFER", "invalid Upload-Defer-Length header", http.StatusBadRequest)
	ErrOriginNotAllowed                 = NewError("ERR_ORIGIN_NOT_ALLOWED", "request origin is not allowed", http.StatusForbidden)
	ErrStorageFull                      = NewError("ERR_STORAGE_FULL", "storage backend has no space left", http.StatusInsufficientStorage)
	ErrStorageUnavailable               = NewError("ERR_STORAGE_UNAVAILABLE", "storage backend is temporarily unavailable", http.StatusServiceUnavailable)
	ErrReadTimeout                      = NewError("ERR_READ_TIMEOUT", "timeout while reading request body", http.StatusInternalServerError)
	ErrConnectionReset                  = NewError("ERR_CONNECTION_RESET", "TCP connection reset by peer", http.StatusInternalServerError)
)

// UnroutedHandler exposes methods to handle requests as part of the tus
// protocol, such as PostFile, HeadFile, PatchFile and DelFile. In addition
// the GetFile method is provided which is, however, not part of the
// specification.
type UnroutedHandler struct {
	config     Config
	manager    *manager.Manager
	basePath   string
	isBasePath bool
	logger     *slog.Logger
	extensions string

	// Metrics provides numbers of the usage for this handler.
	Metrics Metrics
}

// NewUnroutedHandler creates a new handler without routing using the given
// configuration. It exposes the http handlers which need to be combined
// with a router (aka mux) of your choice. If you are looking for a
// preconfigured handler see NewHandler.
func NewUnroutedHandler(config Config) (*UnroutedHandler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	// Only advertise the extensions which are enabled.
	extensions := "creation,creation-with-upload,creation-defer-length,checksum,expiration"
	if !config.DisableTermination {
		extensions += ",termination"
	}
	if !config.DisableConcatenation {
		extensions += ",concatenation"
	}

	handler := &UnroutedHandler{
		config:     config,
		manager:    config.Manager,
		basePath:   config.BasePath,
		isBasePath: config.isAbs,
		logger:     config.Logger,
		extensions: extensions,
		Metrics:    newMetrics(),
	}

	return handler, nil
}

// SupportedExtensions returns a comma-separated list of the advertised tus
// extensions.
func (handler *UnroutedHandler) SupportedExtensions() string {
	return handler.extensions
}

// Middleware checks various aspects of the request and ensures that it
// conforms with the spec. Also handles method overriding for clients which
// cannot make PATCH and DELETE requests. If you are using the handlers
// directly you will need to wrap at least the POST and PATCH endpoints in
// this middleware.
func (handler *UnroutedHandler) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r)

		// Allow overriding the HTTP method. The reason for this is that some
		// libraries/environments do not support PATCH and DELETE requests.
		if newMethod := r.Header.Get("X-HTTP-Method-Override"); r.Method == "POST" && newMethod != "" {
			r.Method = newMethod
		}

		handler.logger.Info("RequestIncoming", "method", r.Method, "path", r.URL.Path, "requestId", getRequestId(r))

		handler.Metrics.incRequestsTotal(r.Method)

		header := w.Header()

		cors := handler.config.Cors
		if origin := r.Header.Get("Origin"); !cors.Disable && origin != "" {
			if !cors.AllowOrigin.MatchString(origin) {
				handler.sendError(c, ErrOriginNotAllowed)
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Vary", "Origin")

			if cors.AllowCredentials {
				header.Add("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				// Preflight request
				header.Add("Access-Control-Allow-Methods", cors.AllowMethods)
				header.Add("Access-Control-Allow-Headers", cors.AllowHeaders)
				header.Set("Access-Control-Max-Age", cors.MaxAge)
			} else {
				// Actual request
				header.Add("Access-Control-Expose-Headers", cors.ExposeHeaders)
			}
		}

		// Set current version used by the server
		header.Set("Tus-Resumable", ProtocolVersion)

		// Add nosniff to all responses https://golang.org/src/net/http/server.go#L1429
		header.Set("X-Content-Type-Options", "nosniff")

		// Set appropriate headers in case of OPTIONS method allowing
		// protocol discovery and end with a 200 OK. Although 204 No Content
		// is a better fit, some older browsers only accept 200 OK as a
		// successful response to a preflight request.
		if r.Method == "OPTIONS" {
			if handler.config.MaxSize > 0 {
				header.Set("Tus-Max-Size", strconv.FormatInt(handler.config.MaxSize, 10))
			}

			header.Set("Tus-Version", ProtocolVersion)
			header.Set("Tus-Extension", handler.extensions)
			header.Set("Tus-Checksum-Algorithm", strings.Join(manager.SupportedChecksumAlgorithms, ","))

			handler.sendResp(c, HTTPResponse{
				StatusCode: http.StatusOK,
			})
			return
		}

		// Test if the version sent by the client is supported. GET and HEAD
		// methods are not checked since a browser may visit this URL and
		// does not include this header. GET requests are not part of the
		// specification.
		if r.Method != "GET" && r.Method != "HEAD" && r.Header.Get("Tus-Resumable") != ProtocolVersion {
			handler.sendError(c, ErrUnsupportedVersion)
			return
		}

		// Proceed with routing the request
		h.ServeHTTP(w, r)
	})
}

// PostFile creates a new upload after validating the length and parsing the
// metadata. If the creation request carries a chunk, it is appended right
// away (creation-with-upload).
func (handler *UnroutedHandler) PostFile(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r)

	// Check for presence of application/offset+octet-stream. If another
	// content type is defined, it will be ignored and treated as none was
	// set because some HTTP clients may enforce a default value for this
	// header.
	containsChunk := r.Header.Get("Content-Type") == "application/offset+octet-stream"

	// Only use the proper Upload-Concat header if the concatenation
	// extension is enabled.
	var concatHeader string
	if !handler.config.DisableConcatenation {
		concatHeader = r.Header.Get("Upload-Concat")
	}

	isPartial, isFinal, partialUploadIDs, err := parseConcat(concatHeader)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	meta := ParseMetadataHeader(r.Header.Get("Upload-Metadata"))

	if isFinal {
		// A final upload must not contain a chunk within the creation
		// request; its bytes come from the partial uploads.
		if containsChunk {
			handler.sendError(c, ErrModifyFinal)
			return
		}

		handler.concatUploads(c, partialUploadIDs, meta)
		return
	}

	size, sizeIsDeferred, err := validateNewUploadLengthHeaders(r.Header.Get("Upload-Length"), r.Header.Get("Upload-Defer-Length"))
	if err != nil {
		handler.sendError(c, err)
		return
	}

	if handler.config.MaxSize > 0 && size > handler.config.MaxSize {
		handler.sendError(c, ErrMaxSizeExceeded)
		return
	}

	upload, err := handler.manager.Create(c, manager.CreateOptions{
		Size:           size,
		SizeIsDeferred: sizeIsDeferred,
		MetaData:       meta,
		IsPartial:      isPartial,
	})
	if err != nil {
		handler.sendError(c, err)
		return
	}

	url := handler.absFileURL(r, upload.ID)
	resp := HTTPResponse{
		StatusCode: http.StatusCreated,
		Header: HTTPHeader{
			"Location": url,
		},
	}
	addExpiresHeader(resp, upload)

	handler.Metrics.incUploadsCreated()
	handler.logger.Info("UploadCreated", "id", upload.ID, "size", size, "url", url)

	if containsChunk {
		resp, err = handler.writeChunk(c, resp, upload.ID, 0)
		if err != nil {
			handler.sendError(c, err)
			return
		}
	} else if upload.IsComplete() {
		// An upload with a declared size of 0 is complete at creation.
		handler.Metrics.incUploadsFinished()
	}

	handler.sendResp(c, resp)
}

// concatUploads creates a final upload from the given partial uploads.
func (handler *UnroutedHandler) concatUploads(c *httpContext, partialUploadIDs []string, meta registry.MetaData) {
	// The size limit applies to the final resource as well, so sum up the
	// partial uploads before any byte is copied.
	if handler.config.MaxSize > 0 {
		var size int64
		for _, partialID := range partialUploadIDs {
			partial, err := handler.manager.Status(c, partialID)
			if err != nil {
				handler.sendError(c, err)
				return
			}
			size += partial.Size
		}

		if size > handler.config.MaxSize {
			handler.sendError(c, ErrMaxSizeExceeded)
			return
		}
	}

	upload, err := handler.manager.Concatenate(c, partialUploadIDs, meta)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	url := handler.absFileURL(c.req, upload.ID)
	resp := HTTPResponse{
		StatusCode: http.StatusCreated,
		Header: HTTPHeader{
			"Location": url,
		},
	}
	addExpiresHeader(resp, upload)

	handler.Metrics.incUploadsCreated()
	handler.Metrics.incUploadsFinished()
	handler.logger.Info("UploadConcatenated", "id", upload.ID, "size", upload.Size, "url", url)

	handler.sendResp(c, resp)
}

// HeadFile returns the length and offset for the HEAD request.
func (handler *UnroutedHandler) HeadFile(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r)

	id, err := extractIDFromPath(r.URL.Path)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	upload, err := handler.manager.Status(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	resp := HTTPResponse{
		StatusCode: http.StatusOK,
		Header: HTTPHeader{
			"Cache-Control": "no-store",
			"Upload-Offset": strconv.FormatInt(upload.Offset, 10),
		},
	}

	if upload.IsPartial {
		resp.Header["Upload-Concat"] = "partial"
	}

	if upload.IsFinal {
		v := "final;"
		for _, uploadID := range upload.PartialUploads {
			v += handler.absFileURL(r, uploadID) + " "
		}
		// Remove trailing space
		v = v[:len(v)-1]

		resp.Header["Upload-Concat"] = v
	}

	if len(upload.MetaData) != 0 {
		resp.Header["Upload-Metadata"] = SerializeMetadataHeader(upload.MetaData)
	}

	if upload.SizeIsDeferred {
		resp.Header["Upload-Defer-Length"] = UploadLengthDeferred
	} else {
		resp.Header["Upload-Length"] = strconv.FormatInt(upload.Size, 10)
		resp.Header["Content-Length"] = strconv.FormatInt(upload.Size, 10)
	}

	addExpiresHeader(resp, upload)

	handler.sendResp(c, resp)
}

// PatchFile adds a chunk to an upload. This operation is only allowed if
// enough space in the upload is left.
func (handler *UnroutedHandler) PatchFile(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r)

	// Check for presence of application/offset+octet-stream
	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		handler.sendError(c, ErrInvalidContentType)
		return
	}

	// Check for presence of a valid Upload-Offset Header
	offset, err := parseInt64(r.Header.Get("Upload-Offset"))
	if err != nil || offset < 0 {
		handler.sendError(c, ErrInvalidOffset)
		return
	}

	id, err := extractIDFromPath(r.URL.Path)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	resp := HTTPResponse{
		StatusCode: http.StatusNoContent,
		Header:     make(HTTPHeader, 1), // writeChunk sets the Upload-Offset header.
	}

	resp, err = handler.writeChunk(c, resp, id, offset)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	handler.sendResp(c, resp)
}

// writeChunk reads the body from the request and appends it to the upload
// with the corresponding id. Afterwards, it will set the necessary response
// headers but will not send the response.
func (handler *UnroutedHandler) writeChunk(c *httpContext, resp HTTPResponse, id string, offset int64) (HTTPResponse, error) {
	r := c.req
	length := r.ContentLength

	// If the upload's total length is already exceeded by the declared
	// Content-Length, reject before reading anything.
	if handler.config.MaxSize > 0 && length > 0 && offset+length > handler.config.MaxSize {
		return resp, ErrMaxSizeExceeded
	}

	appendReq := manager.AppendRequest{
		ExpectedOffset: offset,
	}

	if lengthHeader := r.Header.Get("Upload-Length"); lengthHeader != "" {
		declaredLength, err := parseInt64(lengthHeader)
		if err != nil || declaredLength < 0 || (handler.config.MaxSize > 0 && declaredLength > handler.config.MaxSize) {
			return resp, ErrInvalidUploadLength
		}
		appendReq.HasDeclaredLength = true
		appendReq.DeclaredLength = declaredLength
	}

	checksum, err := parseChecksum(r.Header.Get("Upload-Checksum"))
	if err != nil {
		return resp, err
	}
	appendReq.Checksum = checksum

	// Limit the data read from the request's body to the allowed maximum,
	// which matters for deferred-length uploads sent with chunked encoding.
	maxSize := int64(math.MaxInt64)
	if handler.config.MaxSize > 0 {
		maxSize = handler.config.MaxSize - offset
	}
	if length > 0 {
		maxSize = length
	}

	handler.logger.Info("ChunkWriteStart", "id", id, "maxSize", maxSize, "offset", offset)

	var src io.Reader
	// Prevent a nil pointer dereference when accessing the body which may
	// not be available in the case of a malicious request.
	if r.Body != nil {
		c.body = newBodyReader(r.Body, maxSize)
		src = c.body
	}

	upload, err := handler.manager.Append(c, id, src, appendReq)

	// If we encountered an error while reading the body from the HTTP
	// request, log it, but only include it in the response if the state
	// machine did not also return an error.
	if c.body != nil {
		if bodyErr := c.body.hasError(); bodyErr != nil {
			handler.logger.Error("BodyReadError", "id", id, "error", bodyErr.Error())
			if err == nil {
				err = bodyErr
			}
		}
	}

	if err != nil {
		return resp, err
	}

	bytesWritten := upload.Offset - offset
	handler.logger.Info("ChunkWriteComplete", "id", id, "bytesWritten", bytesWritten)

	resp.Header["Upload-Offset"] = strconv.FormatInt(upload.Offset, 10)
	addExpiresHeader(resp, upload)
	handler.Metrics.incBytesReceived(uint64(bytesWritten))

	if upload.IsComplete() {
		handler.logger.Info("UploadFinished", "id", upload.ID, "size", upload.Size)
		handler.Metrics.incUploadsFinished()
	}

	return resp, nil
}

// GetFile handles requests to download a file using a GET request. This is
// not part of the specification.
func (handler *UnroutedHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r)

	if handler.config.DisableDownload {
		handler.sendError(c, ErrNotImplemented)
		return
	}

	id, err := extractIDFromPath(r.URL.Path)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	upload, src, err := handler.manager.Reader(c, id)
	if err != nil {
		handler.sendError(c, err)
		return
	}
	defer src.Close()

	contentType, contentDisposition := filterContentType(upload.MetaData)
	resp := HTTPResponse{
		StatusCode: http.StatusOK,
		Header: HTTPHeader{
			"Content-Length":      strconv.FormatInt(upload.Offset, 10),
			"Content-Type":        contentType,
			"Content-Disposition": contentDisposition,
		},
		Body: "", // Body is intentionally left empty, and we copy it manually in later.
	}

	// If no data has been uploaded yet, respond with an empty
	// "204 No Content" status.
	if upload.Offset == 0 {
		resp.StatusCode = http.StatusNoContent
		handler.sendResp(c, resp)
		return
	}

	handler.sendResp(c, resp)
	io.Copy(w, src)
}

// DelFile terminates an upload permanently. It is idempotent: deleting an
// unknown or already-deleted upload also responds with 204 No Content.
func (handler *UnroutedHandler) DelFile(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r)

	if handler.config.DisableTermination {
		handler.sendError(c, ErrNotImplemented)
		return
	}

	id, err := extractIDFromPath(r.URL.Path)
	if err != nil {
		handler.sendError(c, err)
		return
	}

	if err := handler.manager.Terminate(c, id); err != nil {
		handler.sendError(c, err)
		return
	}

	handler.Metrics.incUploadsTerminated()

	handler.sendResp(c, HTTPResponse{
		StatusCode: http.StatusNoContent,
	})
}

// translateError converts state machine and storage errors into Error values
// carrying the matching status code. Unknown errors pass through and are
// turned into a 500 by sendError.
func translateError(err error) error {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, manager.ErrOffsetMismatch):
		return ErrMismatchOffset
	case errors.Is(err, manager.ErrUploadComplete):
		return ErrUploadCompleted
	case errors.Is(err, manager.ErrChecksumMismatch):
		return ErrChecksumMismatch
	case errors.Is(err, manager.ErrChecksumAlgorithm):
		return ErrUnsupportedChecksumAlgorithm
	case errors.Is(err, manager.ErrChunkTooLarge):
		return ErrChecksumChunkTooLarge
	case errors.Is(err, manager.ErrSizeExceeded):
		return ErrSizeExceeded
	case errors.Is(err, manager.ErrInvalidLength), errors.Is(err, manager.ErrLengthAlreadyDeclared):
		return ErrInvalidUploadLength
	case errors.Is(err, manager.ErrUploadNotFinished):
		return ErrUploadNotFinished
	case errors.Is(err, manager.ErrFinalParent), errors.Is(err, manager.ErrNotPartialParent):
		return ErrInvalidConcat
	case errors.Is(err, manager.ErrModifyFinal):
		return ErrModifyFinal
	case errors.Is(err, manager.ErrLockTimeout):
		return ErrUploadLocked
	case errors.Is(err, storage.ErrStorageFull):
		return ErrStorageFull
	case errors.Is(err, storage.ErrUnavailable):
		return ErrStorageUnavailable
	default:
		return err
	}
}

// sendError translates the error into an HTTP response and sends it.
func (handler *UnroutedHandler) sendError(c *httpContext, err error) {
	// Errors for read timeouts contain TCP details we do not need and which
	// make grouping for the metrics harder, so we use a common error
	// message for all of them.
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		err = ErrReadTimeout
	}

	// Errors for connection resets also contain TCP details we don't need.
	if strings.HasSuffix(err.Error(), "read: connection reset by peer") {
		err = ErrConnectionReset
	}

	err = translateError(err)

	r := c.req

	detailedErr, ok := err.(Error)
	if !ok {
		handler.logger.Error("InternalServerError", "message", err.Error(), "method", r.Method, "path", r.URL.Path, "requestId", getRequestId(r))
		detailedErr = NewError("ERR_INTERNAL_SERVER_ERROR", err.Error(), http.StatusInternalServerError)
	}

	// If we are sending the response for a HEAD request, ensure that we are
	// not including any response body.
	if r.Method == "HEAD" {
		detailedErr.HTTPResponse.Body = ""
	}

	handler.sendResp(c, detailedErr.HTTPResponse)
	handler.Metrics.incErrorsTotal(detailedErr)
}

// sendResp writes the header to w with the specified status code.
func (handler *UnroutedHandler) sendResp(c *httpContext, resp HTTPResponse) {
	resp.writeTo(c.res)

	handler.logger.Info("ResponseOutgoing", "status", resp.StatusCode, "method", c.req.Method, "path", c.req.URL.Path, "requestId", getRequestId(c.req))
}

// addExpiresHeader sets the Upload-Expires header if the upload expires.
func addExpiresHeader(resp HTTPResponse, upload registry.Upload) {
	if !upload.ExpiresAt.IsZero() {
		resp.Header["Upload-Expires"] = upload.ExpiresAt.UTC().Format(http.TimeFormat)
	}
}

// absFileURL makes an absolute URL for the given upload id. If the base
// path is absolute it will be prepended, else the host and protocol from
// the request is used.
func (handler *UnroutedHandler) absFileURL(r *http.Request, id string) string {
	if handler.isBasePath {
		return handler.basePath + id
	}

	host, proto := getHostAndProtocol(r, handler.config.RespectForwardedHeaders)

	return proto + "://" + host + handler.basePath + id
}

// getHostAndProtocol extracts the host and used protocol (either HTTP or
// HTTPS) from the given request. If allowForwarded is set, the
// X-Forwarded-Host, X-Forwarded-Proto and Forwarded headers will also be
// checked to support proxies.
func getHostAndProtocol(r *http.Request, allowForwarded bool) (host, proto string) {
	if r.TLS != nil {
		proto = "https"
	} else {
		proto = "http"
	}

	host = r.Host

	if !allowForwarded {
		return
	}

	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}

	if h := r.Header.Get("X-Forwarded-Proto"); h == "http" || h == "https" {
		proto = h
	}

	if h := r.Header.Get("Forwarded"); h != "" {
		if r := reForwardedHost.FindStringSubmatch(h); len(r) == 2 {
			host = r[1]
		}

		if r := reForwardedProto.FindStringSubmatch(h); len(r) == 2 {
			proto = r[1]
		}
	}

	return
}

// mimeInlineBrowserWhitelist is a map containing MIME types which are
// allowed to be rendered by a browser inline, instead of being forced to be
// downloaded. For example, HTML or SVG files are not allowed, since they may
// contain malicious JavaScript.
var mimeInlineBrowserWhitelist = map[string]struct{}{
	"text/plain": {},

	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/webp": {},

	"audio/wave":      {},
	"audio/wav":       {},
	"audio/x-wav":     {},
	"audio/x-pn-wav":  {},
	"audio/webm":      {},
	"video/webm":      {},
	"audio/ogg":       {},
	"video/ogg":       {},
	"application/ogg": {},
}

// filterContentType returns the values for the Content-Type and
// Content-Disposition headers for a given upload, based on the "filetype"
// and "filename" entries of the client-supplied metadata. Only whitelisted
// mime types may be shown inline in the browser.
func filterContentType(meta registry.MetaData) (contentType string, contentDisposition string) {
	filetype := meta["filetype"]

	if reMimeType.MatchString(filetype) {
		contentType = filetype
		if _, isWhitelisted := mimeInlineBrowserWhitelist[filetype]; isWhitelisted {
			contentDisposition = "inline"
		} else {
			contentDisposition = "attachment"
		}
	} else {
		// If the filetype from the metadata is not well formed, we use a
		// default type and force the browser to download the content.
		contentType = "application/octet-stream"
		contentDisposition = "attachment"
	}

	if filename, ok := meta["filename"]; ok {
		contentDisposition += ";filename=" + strconv.Quote(filename)
	}

	return contentType, contentDisposition
}

// extractIDFromPath pulls the last segment from the url provided.
func extractIDFromPath(url string) (string, error) {
	result := reExtractFileID.FindStringSubmatch(url)
	if len(result) != 2 {
		return "", ErrNotFound
	}
	return result[1], nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// getRequestId returns the value of the X-Request-ID header, if available,
// and also takes care of truncating the input.
func getRequestId(r *http.Request) string {
	reqId := r.Header.Get("X-Request-ID")
	if reqId == "" {
		return ""
	}

	// Limit the length of the request ID to 36 characters, which is enough
	// to fit a UUID.
	if len(reqId) > 36 {
		reqId = reqId[:36]
	}

	return reqId
}
