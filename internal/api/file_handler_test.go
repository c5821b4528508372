package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/fcs-vault/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	t.Parallel()

	t.Run("anonymous upload defaults to public", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		desc := s.upload(t, "", uploadForm{filename: "sample.fcs", content: fcsContent(100)})

		assert.Len(t, desc.Slug, 8)
		assert.Equal(t, "/api/files/"+desc.Slug, desc.ShortLink)
		assert.Equal(t, "sample.fcs", desc.Filename)
		assert.Equal(t, int64(100), desc.Size)
		require.NotNil(t, desc.FormatVersion)
		assert.Equal(t, "3.1", *desc.FormatVersion)
		assert.True(t, desc.IsPublic)
		assert.True(t, desc.OwnerID.IsAnonymous())
		assert.Equal(t, 1, s.files.Len())

		w := s.do(httptest.NewRequest(http.MethodGet, desc.ShortLink, nil), "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resolved ingest.Descriptor
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
		assert.Equal(t, desc.Slug, resolved.Slug)
	})

	t.Run("private upload via form field", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		desc := s.upload(t, aliceToken, uploadForm{isPublic: "false", filename: "p.fcs", content: fcsContent(80)})

		assert.False(t, desc.IsPublic)
		assert.True(t, desc.OwnerID.Is(alice))
	})

	t.Run("private upload via query parameter", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		w := s.do(uploadForm{filename: "q.fcs", content: "no header"}.request(t, "/api/files/upload?is_public=false"), aliceToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var desc ingest.Descriptor
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
		assert.False(t, desc.IsPublic)
		assert.Nil(t, desc.FormatVersion)
	})

	t.Run("invalid token uploads anonymously", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		desc := s.upload(t, "forged", uploadForm{filename: "a.fcs", content: fcsContent(60)})
		assert.True(t, desc.OwnerID.IsAnonymous())
	})

	tests := []struct {
		name       string
		form       uploadForm
		target     string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "unsupported format",
			form:       uploadForm{filename: "notes.txt", content: "hello"},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindFormat,
		},
		{
			name:       "empty filename",
			form:       uploadForm{filename: "", content: "hello"},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindFormat,
		},
		{
			name:       "too large",
			form:       uploadForm{filename: "big.fcs", content: fcsContent(testMaxBytes + 1)},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   KindSize,
		},
		{
			name:       "missing file part",
			form:       uploadForm{isPublic: "true", noFile: true},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindValidation,
		},
		{
			name:       "bad is_public field",
			form:       uploadForm{isPublic: "maybe", filename: "a.fcs", content: "x"},
			wantStatus: http.StatusBadRequest,
			wantKind:   KindValidation,
		},
		{
			name:       "bad is_public query",
			form:       uploadForm{filename: "a.fcs", content: "x"},
			target:     "/api/files/upload?is_public=sometimes",
			wantStatus: http.StatusBadRequest,
			wantKind:   KindValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)

			target := tt.target
			if target == "" {
				target = "/api/files/upload"
			}
			w := s.do(tt.form.request(t, target), aliceToken)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, w).Kind)
			assert.Equal(t, 0, s.files.Len())
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := s.do(req, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, KindValidation, decodeError(t, w).Kind)
	})
}

func TestGetFile(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	public := s.upload(t, aliceToken, uploadForm{filename: "pub.fcs", content: fcsContent(70)})
	private := s.upload(t, aliceToken, uploadForm{isPublic: "false", filename: "priv.fcs", content: fcsContent(70)})

	tests := []struct {
		name       string
		slug       string
		token      string
		wantStatus int
	}{
		{name: "public to anonymous", slug: public.Slug, wantStatus: http.StatusOK},
		{name: "private to owner", slug: private.Slug, token: aliceToken, wantStatus: http.StatusOK},
		{name: "private to other user", slug: private.Slug, token: bobToken, wantStatus: http.StatusNotFound},
		{name: "private to anonymous", slug: private.Slug, wantStatus: http.StatusNotFound},
		{name: "unknown slug", slug: "Zz9Zz9Zz", wantStatus: http.StatusNotFound},
		{name: "wrong length slug", slug: "short", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+tt.slug, nil), tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNotFound {
				body := decodeError(t, w)
				assert.Equal(t, "File not found", body.Error)
				assert.Equal(t, KindNotFound, body.Kind)
				return
			}

			var desc ingest.Descriptor
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
			assert.Equal(t, tt.slug, desc.Slug)
			assert.NotContains(t, w.Body.String(), "stored")
		})
	}
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	content := fcsContent(300)
	desc := s.upload(t, aliceToken, uploadForm{isPublic: "false", filename: "run 1.fcs", content: content})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+desc.Slug+"/download", nil), aliceToken)
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(body))
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "300", w.Header().Get("Content-Length"))

	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "run 1.fcs", params["filename"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+desc.Slug+"/download", nil), bobToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.upload(t, "", uploadForm{filename: "anon.fcs", content: "a"})
	s.upload(t, aliceToken, uploadForm{isPublic: "false", filename: "alice.fcs", content: "b"})
	s.upload(t, bobToken, uploadForm{isPublic: "false", filename: "bob.fcs", content: "c"})

	names := func(token string) []string {
		w := s.do(httptest.NewRequest(http.MethodGet, "/api/files", nil), token)
		require.Equal(t, http.StatusOK, w.Code)
		var descs []ingest.Descriptor
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &descs))
		out := make([]string, 0, len(descs))
		for _, d := range descs {
			out = append(out, d.Filename)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"anon.fcs"}, names(""))
	assert.ElementsMatch(t, []string{"anon.fcs", "alice.fcs"}, names(aliceToken))
	assert.ElementsMatch(t, []string{"anon.fcs", "bob.fcs"}, names(bobToken))
}

func TestSetVisibility(t *testing.T) {
	t.Parallel()

	put := func(s *testServer, slug, token string, body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/files/"+slug+"/visibility", body)
		req.Header.Set("Content-Type", "application/json")
		return s.do(req, token)
	}

	t.Run("owner hides and shows a file", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, aliceToken, uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, aliceToken, jsonBody(t, map[string]bool{"is_public": false}))
		require.Equal(t, http.StatusNoContent, w.Code)
		w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+desc.Slug, nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = put(s, desc.Slug, aliceToken, jsonBody(t, map[string]bool{"is_public": true}))
		require.Equal(t, http.StatusNoContent, w.Code)
		w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/"+desc.Slug, nil), "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, aliceToken, uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, bobToken, jsonBody(t, map[string]bool{"is_public": false}))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, KindPermission, decodeError(t, w).Kind)

		rec, ok, err := s.ingest.Resolve(context.Background(), desc.Slug)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, rec.IsPublic)
	})

	t.Run("anonymous file cannot be changed", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, "", uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, aliceToken, jsonBody(t, map[string]bool{"is_public": false}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown slug", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		w := put(s, "Zz9Zz9Zz", aliceToken, jsonBody(t, map[string]bool{"is_public": false}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, "", uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, "", jsonBody(t, map[string]bool{"is_public": false}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, aliceToken, uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, aliceToken, strings.NewReader(`{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Error, "IsPublic is required")
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		desc := s.upload(t, aliceToken, uploadForm{filename: "a.fcs", content: "x"})

		w := put(s, desc.Slug, aliceToken, strings.NewReader(`{"is_public":"no"`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
