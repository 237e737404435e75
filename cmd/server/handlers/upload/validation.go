package upload

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/framegrab/cmd/server/handlers/common"
)

// AllowedTypes lists the video container types accepted for upload.
var AllowedTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/mpeg":       {},
	"video/quicktime":  {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/webm":       {},
	"video/x-flv":      {},
	"video/x-ms-wmv":   {},
	"video/3gpp":       {},
	"video/ogg":        {},
}

const (
	msgMissingFile = "No video file provided"
	msgInvalidType = "Invalid file type. Only video files are allowed."
	msgTooLarge    = "File too large"
)

// ValidationError rejects an upload with an HTTP status and a client-facing message.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// HTTPError renders the error as echo's {"message": ...} body.
func (e *ValidationError) HTTPError() *echo.HTTPError {
	switch e.Status {
	case http.StatusBadRequest:
		return common.ErrBadRequest(e.Message)
	case http.StatusRequestEntityTooLarge:
		return common.ErrTooLarge(e.Message)
	}
	return echo.NewHTTPError(e.Status, e.Message)
}

func errMissingFile() *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: msgMissingFile}
}

func errInvalidType() *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: msgInvalidType}
}

func errTooLarge() *ValidationError {
	return &ValidationError{Status: http.StatusRequestEntityTooLarge, Message: msgTooLarge}
}

// declaredType returns the media type of a Content-Type header without parameters.
func declaredType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

// needsSniff reports whether the declared type says nothing useful.
func needsSniff(mt string) bool {
	return mt == "" || mt == "application/octet-stream"
}

// sniffType detects the content type from the first bytes of r.
func sniffType(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	for allowed := range AllowedTypes {
		if m.Is(allowed) {
			return allowed, nil
		}
	}
	return m.String(), nil
}

func isAllowed(mt string) bool {
	_, ok := AllowedTypes[mt]
	return ok
}
