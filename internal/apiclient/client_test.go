package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glhm/console/internal/adapters/cookiejar"
	"github.com/glhm/console/internal/adapters/tokenstore"
	"github.com/glhm/console/internal/credential"
	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/observability/metrics"
	"github.com/glhm/console/internal/observability/statsd"
)

type harness struct {
	srv     *httptest.Server
	client  *Client
	store   *credential.Store
	cookie  *cookiejar.Channel
	metrics *statsd.Recorder

	mu   sync.Mutex
	reqs []*http.Request
}

func (h *harness) last() *http.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reqs) == 0 {
		return nil
	}
	return h.reqs[len(h.reqs)-1]
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	h := &harness{metrics: statsd.NewRecorder()}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.reqs = append(h.reqs, r.Clone(context.Background()))
		h.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(h.srv.Close)

	base := h.srv.URL + "/api"
	ch, err := cookiejar.NewChannel(cookiejar.Options{BaseURL: base, Name: credential.DefaultKey})
	require.NoError(t, err)
	h.cookie = ch

	store, err := credential.NewStore(credential.StoreOptions{
		Storage: tokenstore.NewMemoryStorage(),
		Cookie:  ch,
	})
	require.NoError(t, err)
	h.store = store

	client, err := New(Options{
		BaseURL:     base,
		Credentials: store,
		Jar:         ch.Jar(),
		Metrics:     h.metrics,
	})
	require.NoError(t, err)
	h.client = client
	return h
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "empty", baseURL: "", wantErr: true},
		{name: "relative", baseURL: "/api", wantErr: true},
		{name: "absolute", baseURL: "http://localhost:8080/api", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Options{BaseURL: tt.baseURL})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:8080/api/", c.BaseURL().String())
		})
	}
}

func TestNew_HTTPClientTimeout(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:8080/api", Timeout: 3 * time.Second, HTTPClient: &http.Client{}})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.HTTPClient().Timeout)

	own := &http.Client{Timeout: time.Second}
	c, err = New(Options{BaseURL: "http://localhost:8080/api", Timeout: 3 * time.Second, HTTPClient: own})
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.HTTPClient().Timeout)
	assert.NotSame(t, own, c.HTTPClient())
}

func TestResolve(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:8080/api"})
	require.NoError(t, err)

	u, err := c.Resolve("/image/get", url.Values{"id": {"a b"}})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/image/get?id=a+b", u.String())

	u, err = c.Resolve("image/delete?id=7", url.Values{"x": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "/api/image/delete", u.Path)
	assert.Equal(t, "7", u.Query().Get("id"))
	assert.Equal(t, "1", u.Query().Get("x"))
}

func TestGet_StampsHeaderAndCookie(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", true)
	})
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "tok-1"))

	ok, err := Get[bool](ctx, h.client, "auth/isLogin", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	req := h.last()
	require.NotNil(t, req)
	assert.Equal(t, "/api/auth/isLogin", req.URL.Path)
	assert.Equal(t, "tok-1", req.Header.Get(DefaultAuthHeader))
	assert.NotEmpty(t, req.Header.Get(RequestIDHeader))
	assert.Equal(t, contentTypeJSON, req.Header.Get("Accept"))
	cookie, err := req.Cookie(credential.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cookie.Value)
	assert.Equal(t, int64(1), h.metrics.CountOf(metrics.NameAPIRequest))
}

func TestGet_NoCredentialSendsNoHeader(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", false)
	})

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	require.NoError(t, err)

	req := h.last()
	assert.Empty(t, req.Header.Get(DefaultAuthHeader))
	_, err = req.Cookie(credential.DefaultKey)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestGet_SyncRestoresExpiredCookie(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", true)
	})
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "tok-1"))
	h.cookie.Clear()

	_, err := Get[bool](ctx, h.client, "auth/isLogin", nil)
	require.NoError(t, err)

	v, ok := h.cookie.Get()
	require.True(t, ok)
	assert.Equal(t, "tok-1", v)
}

func TestEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
		want    string
	}{
		{name: "message surfaced", code: 500, message: "user exists", want: "user exists"},
		{name: "default message", code: 403, message: "", want: apperrors.DefaultMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
				writeEnvelope(w, tt.code, tt.message, nil)
			})

			_, err := Get[string](context.Background(), h.client, "auth/publicKey", nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsEnvelope(err))
			assert.Equal(t, tt.want, apperrors.UserMessage(err, "fallback"))

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.EnvelopeCode)
		})
	}
}

func TestEnvelopeError_DataShapeIgnored(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 400, "bad", "")
	})

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsEnvelope(err))
	assert.Equal(t, "bad", apperrors.UserMessage(err, "fallback"))
}

func TestSuccessDataMismatchIsTransport(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", "yes")
	})

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}

func TestSuccessWithoutData(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"message":"ok"}`)
	})

	got, err := Get[string](context.Background(), h.client, "auth/logout", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnexpectedStatusIsTransport(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	assert.Contains(t, err.Error(), "502")
}

func TestMalformedEnvelopeIsTransport(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}

func TestNetworkFailureIsTransport(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:1/api"})
	require.NoError(t, err)

	_, err = Get[bool](context.Background(), c, "auth/isLogin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}

func TestUnauthorizedPublishesBeforeReturn(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "stale"))

	var order []string
	var got domainauth.AuthRejectedEvent
	h.client.OnAuthRejected(func(ctx context.Context, ev domainauth.AuthRejectedEvent) {
		order = append(order, "first")
		got = ev
		require.NoError(t, h.store.Clear(ctx))
	})
	h.client.OnAuthRejected(func(context.Context, domainauth.AuthRejectedEvent) {
		order = append(order, "second")
	})

	_, err := Get[domainauth.UserProfile](ctx, h.client, "view/user/this", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthRejected(err))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "view/user/this", got.Path)
	assert.NotEmpty(t, got.RequestID)

	token, err := h.store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, int64(1), h.metrics.CountOf(metrics.NameAuthRejected))
}

func TestOnAuthRejected_Unsubscribe(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	calls := 0
	unsubscribe := h.client.OnAuthRejected(func(context.Context, domainauth.AuthRejectedEvent) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := Get[bool](context.Background(), h.client, "auth/isLogin", nil)
	assert.True(t, apperrors.IsAuthRejected(err))
	assert.Zero(t, calls)
}

func TestPostForm_OmitsEmptyValues(t *testing.T) {
	var form url.Values
	var contentType string
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		writeEnvelope(w, 200, "", "tok")
	})

	token, err := PostForm[string](context.Background(), h.client, "auth/register", url.Values{
		"username": {"alice"},
		"password": {"cipher"},
		"email":    {""},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, contentTypeForm, contentType)
	assert.Equal(t, "alice", form.Get("username"))
	_, present := form["email"]
	assert.False(t, present)
}

func TestPostJSON(t *testing.T) {
	var body map[string]any
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeEnvelope(w, 200, "", nil)
	})

	_, err := PostJSON[any](context.Background(), h.client, "device/command", map[string]any{"cmd": "reboot"})
	require.NoError(t, err)
	assert.Equal(t, "reboot", body["cmd"])
}

func TestUpload_UsesFileField(t *testing.T) {
	var (
		filename string
		payload  string
		alt      string
	)
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		assert.Equal(t, "tok", r.Header.Get(DefaultAuthHeader))
		f, hdr, err := r.FormFile(UploadField)
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		filename, payload = hdr.Filename, string(b)
		alt = r.FormValue("alt")
		writeEnvelope(w, 200, "", "img-1")
	})
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "tok"))

	id, err := Upload[string](ctx, h.client, "image/upload", nil, File{
		Name:        "logo.png",
		ContentType: "image/png",
		Body:        strings.NewReader("PNGDATA"),
	}, url.Values{"alt": {"logo"}})
	require.NoError(t, err)
	assert.Equal(t, "img-1", id)
	assert.Equal(t, "logo.png", filename)
	assert.Equal(t, "PNGDATA", payload)
	assert.Equal(t, "logo", alt)
}

func TestUpload_RequiresBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", "x")
	})

	_, err := Upload[string](context.Background(), h.client, "image/upload", nil, File{Name: "x"}, nil)
	assert.True(t, apperrors.IsValidation(err))
	assert.Nil(t, h.last())
}

func TestFetch_ReturnsBlob(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8})
	})

	blob, err := h.client.Fetch(context.Background(), "image/get", url.Values{"id": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", blob.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8}, blob.Data)
}

func TestNativeGet_CookieOnly(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "tok"))

	blob, err := h.client.NativeGet(ctx, "image/get", url.Values{"id": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "png", string(blob.Data))

	req := h.last()
	assert.Empty(t, req.Header.Get(DefaultAuthHeader))
	assert.NotEmpty(t, req.Header.Get(RequestIDHeader))
	cookie, err := req.Cookie(credential.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "tok", cookie.Value)
}

func TestNativeGet_UnauthorizedPublishes(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var got []domainauth.AuthRejectedEvent
	h.client.OnAuthRejected(func(_ context.Context, ev domainauth.AuthRejectedEvent) { got = append(got, ev) })

	_, err := h.client.NativeGet(context.Background(), "image/get", nil)
	assert.True(t, apperrors.IsAuthRejected(err))
	require.Len(t, got, 1)
	assert.Equal(t, "image/get", got[0].Path)
	assert.Equal(t, http.MethodGet, got[0].Method)
}

func TestInterceptorErrorAbortsRequest(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, 200, "", true)
	})
	c, err := New(Options{
		BaseURL: h.srv.URL + "/api",
		Interceptors: []RequestInterceptor{func(context.Context, *http.Request) error {
			return apperrors.Internal("blocked")
		}},
	})
	require.NoError(t, err)

	_, err = Get[bool](context.Background(), c, "auth/isLogin", nil)
	require.Error(t, err)
	assert.Nil(t, h.last())
}
