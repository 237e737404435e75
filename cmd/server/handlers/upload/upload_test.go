package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/framegrab/internal/jobs"
	"thirdcoast.systems/framegrab/pkg/frames"
)

// mp4Header is an ftyp box that content sniffing recognises as video/mp4.
var mp4Header = append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom\x00\x00\x02\x00isomiso2")...)

type submission struct {
	input     string
	outputDir string
	profile   frames.Profile
}

type fakeSubmitter struct {
	calls []submission
	err   error
}

func (f *fakeSubmitter) Submit(input, outputDir string, profile frames.Profile) (jobs.Job, error) {
	f.calls = append(f.calls, submission{input, outputDir, profile})
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	return jobs.Job{ID: uuid.New(), InputPath: input, OutputDir: outputDir, Profile: profile}, nil
}

type testServer struct {
	e         *echo.Echo
	sub       *fakeSubmitter
	uploadDir string
	framesDir string
}

func newTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	ts := &testServer{
		e:         echo.New(),
		sub:       &fakeSubmitter{},
		uploadDir: t.TempDir(),
		framesDir: t.TempDir(),
	}
	ts.e.POST("/upload", HandleUpload(Options{
		UploadDir: ts.uploadDir,
		FramesDir: ts.framesDir,
		MaxBytes:  maxBytes,
	}, ts.sub))
	return ts
}

func multipartBody(t *testing.T, field, name, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (ts *testServer) post(t *testing.T, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUpload_StoresFileAndQueuesExtraction(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	content := append(append([]byte{}, mp4Header...), bytes.Repeat([]byte{0xab}, 1000)...)
	body, ct := multipartBody(t, FieldName, "My Clip.mp4", "video/mp4", content)

	rec := ts.post(t, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message string     `json:"message"`
		File    StoredFile `json:"file"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Video uploaded successfully", resp.Message)
	assert.Equal(t, "My Clip.mp4", resp.File.OriginalName)
	assert.Equal(t, "video/mp4", resp.File.MimeType)
	assert.Equal(t, int64(len(content)), resp.File.Size)
	assert.True(t, strings.HasSuffix(resp.File.Filename, "-My-Clip.mp4"), resp.File.Filename)
	assert.Equal(t, filepath.Join(ts.uploadDir, resp.File.Filename), resp.File.Path)

	stored, err := os.ReadFile(resp.File.Path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	require.Len(t, ts.sub.calls, 1)
	call := ts.sub.calls[0]
	assert.Equal(t, resp.File.Path, call.input)
	assert.Equal(t, filepath.Join(ts.framesDir, strings.TrimSuffix(resp.File.Filename, ".mp4")), call.outputDir)
	assert.Equal(t, frames.ServerProfile(), call.profile)
}

func TestUpload_PatternCharactersInFilename(t *testing.T) {
	portable := regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	for _, name := range []string{"clip[1].mp4", "clip[a.mp4", "100%.mp4", "take *2?.mp4"} {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, 1<<20)
			body, ct := multipartBody(t, FieldName, name, "video/mp4", mp4Header)

			rec := ts.post(t, body, ct)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				File StoredFile `json:"file"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, name, resp.File.OriginalName)
			assert.Regexp(t, portable, resp.File.Filename)

			require.Len(t, ts.sub.calls, 1)
			assert.Regexp(t, portable, filepath.Base(ts.sub.calls[0].outputDir))
		})
	}
}

func TestUpload_SniffsOctetStream(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	body, ct := multipartBody(t, FieldName, "upload.bin", "application/octet-stream", mp4Header)

	rec := ts.post(t, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	file := decode(t, rec)["file"].(map[string]any)
	assert.Equal(t, "video/mp4", file["mimetype"])

	stored, err := os.ReadFile(file["path"].(string))
	require.NoError(t, err)
	assert.Equal(t, mp4Header, stored)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		contentType string
		content     []byte
		maxBytes    int64
		wantStatus  int
		wantMessage string
	}{
		{"wrong type", FieldName, "image/png", []byte("png"), 1 << 20, http.StatusBadRequest, msgInvalidType},
		{"sniffed text", FieldName, "", []byte("just some text\n"), 1 << 20, http.StatusBadRequest, msgInvalidType},
		{"missing field", "other", "video/mp4", mp4Header, 1 << 20, http.StatusBadRequest, msgMissingFile},
		{"too large", FieldName, "video/mp4", bytes.Repeat([]byte{1}, 2048), 1024, http.StatusRequestEntityTooLarge, msgTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.maxBytes)
			body, ct := multipartBody(t, tt.field, "clip.mp4", tt.contentType, tt.content)

			rec := ts.post(t, body, ct)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decode(t, rec)["message"])
			assert.Empty(t, ts.sub.calls)

			entries, err := os.ReadDir(ts.uploadDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	rec := ts.post(t, bytes.NewBufferString(`{"video":"x"}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgMissingFile, decode(t, rec)["message"])
}

func TestUpload_QueueFailureStillReportsUpload(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.sub.err = jobs.ErrQueueFull
	body, ct := multipartBody(t, FieldName, "clip.webm", "video/webm", []byte("webm"))

	rec := ts.post(t, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Video uploaded successfully", decode(t, rec)["message"])
	require.Len(t, ts.sub.calls, 1)
}

func TestDeclaredType(t *testing.T) {
	assert.Equal(t, "video/mp4", declaredType("video/mp4; codecs=avc1"))
	assert.Equal(t, "video/webm", declaredType("VIDEO/WEBM"))
	assert.Equal(t, "", declaredType(""))
	assert.True(t, needsSniff("application/octet-stream"))
	assert.False(t, needsSniff("video/ogg"))
}
