package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fcs-vault/internal/api/middleware"
	"github.com/phrazzld/fcs-vault/internal/api/shared"
	"github.com/phrazzld/fcs-vault/internal/broker"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/ingest"
	"github.com/phrazzld/fcs-vault/internal/mocks"
	"github.com/phrazzld/fcs-vault/internal/platform/diskstore"
	"github.com/phrazzld/fcs-vault/internal/refgen"
	"github.com/phrazzld/fcs-vault/internal/task"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testMaxBytes = 4 << 10

	aliceToken = "alice-token"
	bobToken   = "bob-token"

	alice domain.UserID = 1
	bob   domain.UserID = 2
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router     http.Handler
	files      *mocks.MockFileStore
	activities *mocks.MockActivityStore
	tasks      *mocks.MockTaskStore
	broker     *broker.MemoryBroker
	worker     *task.Worker
	ingest     *ingest.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := discardLogger()

	disk, err := diskstore.New(afero.NewMemMapFs(), "/vault/files", "/vault/tmp", log)
	require.NoError(t, err)

	files := mocks.NewMockFileStore()
	activities := mocks.NewMockActivityStore()
	svc, err := ingest.NewService(files, activities, disk, refgen.ShortUUID{}, ingest.Config{
		AllowedExtensions: []string{".fcs"},
		MaxBytes:          testMaxBytes,
		ChunkSize:         512,
		CollisionRetries:  3,
	}, log)
	require.NoError(t, err)

	tasks := mocks.NewMockTaskStore()
	mb := broker.NewMemoryBroker(8, log)
	engine := task.NewEngine(tasks, mb, nil, log)

	identity := &mocks.MockIdentityProvider{Tokens: map[string]domain.UserID{
		aliceToken: alice,
		bobToken:   bob,
	}}

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware(log))
	RegisterRoutes(r,
		middleware.NewAuthMiddleware(identity),
		NewFileHandler(svc, testMaxBytes, log),
		NewStatsHandler(engine, svc, log))

	return &testServer{
		router:     r,
		files:      files,
		activities: activities,
		tasks:      tasks,
		broker:     mb,
		worker:     task.NewWorker(tasks, task.DefaultRegistry(files), log),
		ingest:     svc,
	}
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// uploadForm is one multipart upload body.
type uploadForm struct {
	isPublic string
	filename string
	content  string
	noFile   bool
}

func (f uploadForm) request(t *testing.T, target string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if f.isPublic != "" {
		require.NoError(t, mw.WriteField("is_public", f.isPublic))
	}
	if !f.noFile {
		part, err := mw.CreateFormFile("file", f.filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) upload(t *testing.T, token string, form uploadForm) *ingest.Descriptor {
	t.Helper()
	w := s.do(form.request(t, "/api/files/upload"), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var desc ingest.Descriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
	return &desc
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func fcsContent(size int) string {
	h := "FCS3.1    " + strings.Repeat(" ", 48)
	if size > len(h) {
		h += strings.Repeat("x", size-len(h))
	}
	return h
}
