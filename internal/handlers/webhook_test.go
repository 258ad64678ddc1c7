package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/nextplot/internal/pipeline"
	"github.com/memohai/nextplot/internal/signature"
)

type fakePipeline struct {
	result  pipeline.Result
	panics  bool
	calls   int
	gotBody string
	gotSig  string
	ctxErr  error
}

func (f *fakePipeline) Handle(ctx context.Context, body []byte, sig string) pipeline.Result {
	f.calls++
	f.gotBody = string(body)
	f.gotSig = sig
	f.ctxErr = ctx.Err()
	if f.panics {
		panic("boom")
	}
	return f.result
}

func serveWebhook(t *testing.T, h *WebhookHandler, method, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(method, DefaultWebhookPath, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		p := &fakePipeline{}
		rec := serveWebhook(t, NewWebhookHandler(nil, p, WebhookOptions{}), method, "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get(echo.HeaderAllow))
		assert.JSONEq(t, `{"ok":false,"error":"method_not_allowed"}`, rec.Body.String())
		assert.Zero(t, p.calls)
	}
}

func TestWebhook_Outcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		result   pipeline.Result
		reject   bool
		wantCode int
		wantBody string
	}{
		{
			name:     "ok",
			result:   pipeline.Result{Outcome: pipeline.OutcomeOK},
			wantCode: http.StatusOK,
			wantBody: `{"ok":true}`,
		},
		{
			name:     "invalid signature",
			result:   pipeline.Result{Outcome: pipeline.OutcomeUnauthorized, AuthFailure: pipeline.AuthInvalid},
			wantCode: http.StatusUnauthorized,
			wantBody: `{"ok":false,"error":"invalid_signature"}`,
		},
		{
			name:     "missing signature",
			result:   pipeline.Result{Outcome: pipeline.OutcomeUnauthorized, AuthFailure: pipeline.AuthMissing},
			wantCode: http.StatusUnauthorized,
			wantBody: `{"ok":false,"error":"missing_signature_or_secret"}`,
		},
		{
			name:     "malformed acknowledged",
			result:   pipeline.Result{Outcome: pipeline.OutcomeMalformed},
			wantCode: http.StatusOK,
			wantBody: `{"ok":true}`,
		},
		{
			name:     "malformed rejected",
			result:   pipeline.Result{Outcome: pipeline.OutcomeMalformed},
			reject:   true,
			wantCode: http.StatusBadRequest,
			wantBody: `{"ok":false,"error":"invalid_json"}`,
		},
		{
			name:     "unknown outcome",
			result:   pipeline.Result{Outcome: pipeline.Outcome(42)},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"ok":false,"error":"internal_error"}`,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePipeline{result: tc.result}
			h := NewWebhookHandler(nil, p, WebhookOptions{RejectMalformed: tc.reject})
			header := http.Header{}
			header.Set(signature.Header, "c2ln")
			rec := serveWebhook(t, h, http.MethodPost, `{"events":[]}`, header)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
			assert.Equal(t, 1, p.calls)
			assert.Equal(t, `{"events":[]}`, p.gotBody)
			assert.Equal(t, "c2ln", p.gotSig)
		})
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	h := NewWebhookHandler(nil, p, WebhookOptions{MaxBodyBytes: 8})
	rec := serveWebhook(t, h, http.MethodPost, strings.Repeat("x", 9), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, p.calls)

	rec = serveWebhook(t, h, http.MethodPost, strings.Repeat("x", 8), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, p.calls)
}

func TestWebhook_PanicIsInternalError(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, &fakePipeline{panics: true}, WebhookOptions{})
	rec := serveWebhook(t, h, http.MethodPost, `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"internal_error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestWebhook_CustomPath(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	e := echo.New()
	NewWebhookHandler(nil, p, WebhookOptions{Path: "/hooks/line"}).Register(e)

	req := httptest.NewRequest(http.MethodPost, "/hooks/line", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook_ContextSurvivesClientCancel(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	e := echo.New()
	NewWebhookHandler(nil, p, WebhookOptions{}).Register(e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.NoError(t, p.ctxErr)
}
