package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.True(t, GetOwner(ctx).IsAnonymous())
	_, ok := GetUserID(ctx)
	assert.False(t, ok)

	ctx = WithOwner(ctx, domain.OwnedBy(5))
	id, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, domain.UserID(5), id)
}

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))
	a := GetTraceID(SetTraceID(context.Background()))
	b := GetTraceID(SetTraceID(context.Background()))
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	ctx := logger.WithLogger(SetTraceID(context.Background()), log)
	r := httptest.NewRequest(http.MethodPost, "/api/files/upload", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Storage failure",
		errors.New("rename /srv/fcs/tmp/a.part /srv/fcs/files/b.fcs failed"), WithKind("storage"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Storage failure", body.Error)
	assert.Equal(t, "storage", body.Kind)
	assert.Equal(t, GetTraceID(ctx), body.TraceID)
	assert.NotContains(t, w.Body.String(), "/srv/fcs")

	logger.AssertLogContains(t, buf, "[REDACTED_PATH]")
	assert.NotContains(t, buf.String(), "/srv/fcs")
	logger.AssertLogField(t, buf, "level", "ERROR")
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type req struct {
		IsPublic *bool `json:"is_public" validate:"required"`
	}

	var ok req
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"is_public":false}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &ok))
	require.NoError(t, ValidateRequest(ok))
	assert.False(t, *ok.IsPublic)

	var missing req
	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &missing))
	assert.Error(t, ValidateRequest(missing))

	var unknown req
	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"public":true}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &unknown))
}
