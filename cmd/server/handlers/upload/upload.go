// Package upload accepts video uploads and queues frame extraction for them.
package upload

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/framegrab/cmd/server/handlers/common"
	"thirdcoast.systems/framegrab/internal/jobs"
	"thirdcoast.systems/framegrab/pkg/frames"
	"thirdcoast.systems/framegrab/pkg/utils/filename"
)

// FieldName is the multipart field carrying the video.
const FieldName = "video"

// multipartSlack covers the multipart envelope around the file part.
const multipartSlack = 1 << 20

// Submitter queues an extraction. *jobs.Dispatcher satisfies it.
type Submitter interface {
	Submit(input, outputDir string, profile frames.Profile) (jobs.Job, error)
}

type Options struct {
	UploadDir string
	FramesDir string
	MaxBytes  int64
	Profile   frames.Profile
}

type response struct {
	Message string      `json:"message"`
	File    *StoredFile `json:"file"`
}

// HandleUpload stores the "video" field, answers 200 and then queues
// extraction of the stored file. The response does not reflect the
// extraction outcome.
func HandleUpload(opts Options, submitter Submitter) echo.HandlerFunc {
	if opts.Profile == nil {
		opts.Profile = frames.ServerProfile()
	}

	return func(c echo.Context) error {
		req := c.Request()
		if opts.MaxBytes > 0 {
			req.Body = http.MaxBytesReader(c.Response(), req.Body, opts.MaxBytes+multipartSlack)
		}

		fh, err := c.FormFile(FieldName)
		if err != nil {
			return formFileError(err).HTTPError()
		}
		if opts.MaxBytes > 0 && fh.Size > opts.MaxBytes {
			return errTooLarge().HTTPError()
		}

		src, err := fh.Open()
		if err != nil {
			slog.Error("failed to open uploaded file", "error", err)
			return common.ErrInternal("failed to read upload")
		}
		defer src.Close()

		mimeType, err := resolveType(fh, src)
		if err != nil {
			slog.Error("failed to inspect uploaded file", "error", err)
			return common.ErrInternal("failed to read upload")
		}
		if !isAllowed(mimeType) {
			slog.Info("rejected upload", "original_name", fh.Filename, "mimetype", mimeType)
			return errInvalidType().HTTPError()
		}

		stored, err := store(opts.UploadDir, fh, src, mimeType)
		if err != nil {
			slog.Error("failed to store upload", "error", err)
			return common.ErrInternal("failed to store upload")
		}

		slog.Info("video uploaded",
			"filename", stored.Filename,
			"original_name", stored.OriginalName,
			"size", humanize.Bytes(uint64(stored.Size)),
			"mimetype", stored.MimeType,
		)

		if err := c.JSON(http.StatusOK, response{Message: "Video uploaded successfully", File: stored}); err != nil {
			return err
		}

		outputDir := filepath.Join(opts.FramesDir, filename.Stem(stored.Filename))
		job, err := submitter.Submit(stored.Path, outputDir, opts.Profile)
		if err != nil {
			slog.Error("failed to queue frame extraction", "path", stored.Path, "error", err)
			return nil
		}
		slog.Info("frame extraction queued", "job_id", job.ID, "output_dir", outputDir)
		return nil
	}
}

func formFileError(err error) *ValidationError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errTooLarge()
	}
	// http.ErrMissingFile, http.ErrNotMultipart and malformed bodies.
	return errMissingFile()
}

// resolveType prefers the part's declared Content-Type and sniffs the
// content when the client sent none or a generic one. src is rewound.
func resolveType(fh *multipart.FileHeader, src multipart.File) (string, error) {
	mt := declaredType(fh.Header.Get("Content-Type"))
	if !needsSniff(mt) {
		return mt, nil
	}
	sniffed, err := sniffType(src)
	if err != nil {
		return "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return sniffed, nil
}
