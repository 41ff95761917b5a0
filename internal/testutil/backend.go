package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	domainauth "github.com/glhm/console/internal/domain/auth"
)

// FakeBackendAuthName is the header and cookie the fake backend reads the token from.
const FakeBackendAuthName = "glhmauth"

// Behavior holds the knobs a test can flip on a FakeBackend.
// Status overrides answer with that HTTP status and an empty body.
type Behavior struct {
	CanRegister       bool
	EmptyPublicKey    bool
	PublicKeyStatus   int
	IsLoginStatus     int
	CanRegisterStatus int
	ProfileStatus     int
	LogoutStatus      int
	// DenySessions makes isLogin answer false even for valid tokens.
	DenySessions bool
	// LoginDelay stalls login and register, for concurrency tests.
	LoginDelay time.Duration
}

// RecordedRequest is one request seen by the FakeBackend.
type RecordedRequest struct {
	Method string
	Path   string
	Header string
	Cookie string
}

type fakeUser struct {
	password string
	profile  domainauth.UserProfile
}

// FakeBackend is an httptest server speaking the GLHM envelope protocol.
// Passwords must arrive RSA encrypted with Key's public half.
type FakeBackend struct {
	Server *httptest.Server
	Key    *rsa.PrivateKey

	mu       sync.Mutex
	behavior Behavior
	users    map[string]fakeUser
	tokens   map[string]string
	images   map[string][]byte
	seq      int
	requests []RecordedRequest
}

// NewFakeBackend starts a FakeBackend that is closed with the test.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	fb := &FakeBackend{
		Key:      key,
		behavior: Behavior{CanRegister: true},
		users:    make(map[string]fakeUser),
		tokens:   make(map[string]string),
		images:   make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/publicKey", fb.publicKey)
	mux.HandleFunc("POST /api/auth/login", fb.login)
	mux.HandleFunc("POST /api/auth/register", fb.register)
	mux.HandleFunc("GET /api/auth/isLogin", fb.isLogin)
	mux.HandleFunc("GET /api/auth/logout", fb.logout)
	mux.HandleFunc("GET /api/auth/can-register", fb.canRegister)
	mux.HandleFunc("GET /api/view/user/this", fb.currentUser)
	mux.HandleFunc("POST /api/image/upload", fb.uploadImage)
	mux.HandleFunc("POST /api/image/update", fb.uploadImage)
	mux.HandleFunc("POST /api/image/delete", fb.deleteImage)
	mux.HandleFunc("GET /api/image/get", fb.getImage)

	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{Method: r.Method, Path: strings.TrimPrefix(r.URL.Path, "/api/"), Header: r.Header.Get(FakeBackendAuthName)}
		if c, err := r.Cookie(FakeBackendAuthName); err == nil {
			rec.Cookie = c.Value
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, rec)
		fb.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fb.Server.Close)
	return fb
}

// BaseURL returns the API base the console should be pointed at.
func (fb *FakeBackend) BaseURL() string { return fb.Server.URL + "/api" }

// Update mutates the behavior under the backend's lock.
func (fb *FakeBackend) Update(fn func(b *Behavior)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(&fb.behavior)
}

// AddUser registers an account directly.
func (fb *FakeBackend) AddUser(username, password string, profile domainauth.UserProfile) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if profile.Username == "" {
		profile.Username = username
	}
	if profile.ID == "" {
		fb.seq++
		profile.ID = fmt.Sprintf("user-%d", fb.seq)
	}
	fb.users[username] = fakeUser{password: password, profile: profile}
}

// IssueToken creates a valid token for username without a login round trip.
func (fb *FakeBackend) IssueToken(username string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.issueLocked(username)
}

// RevokeAll invalidates every issued token, as a server-side expiry would.
func (fb *FakeBackend) RevokeAll() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tokens = make(map[string]string)
}

// TokenValid reports whether token is currently accepted.
func (fb *FakeBackend) TokenValid(token string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	_, ok := fb.tokens[token]
	return ok
}

// Requests returns a copy of every request seen so far.
func (fb *FakeBackend) Requests() []RecordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]RecordedRequest(nil), fb.requests...)
}

// Count returns how many requests hit path (relative to the API base).
func (fb *FakeBackend) Count(path string) int {
	n := 0
	for _, r := range fb.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// PutImage stores image bytes under id.
func (fb *FakeBackend) PutImage(id string, data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.images[id] = data
}

// Image returns the stored bytes for id.
func (fb *FakeBackend) Image(id string) ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	b, ok := fb.images[id]
	return b, ok
}

func (fb *FakeBackend) issueLocked(username string) string {
	fb.seq++
	token := fmt.Sprintf("tok-%s-%d", username, fb.seq)
	fb.tokens[token] = username
	return token
}

func (fb *FakeBackend) snapshot() Behavior {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.behavior
}

// caller resolves the request's token from the header, then the cookie.
func (fb *FakeBackend) caller(r *http.Request) (string, bool) {
	token := r.Header.Get(FakeBackendAuthName)
	if token == "" {
		if c, err := r.Cookie(FakeBackendAuthName); err == nil {
			token = c.Value
		}
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	user, ok := fb.tokens[token]
	return user, ok
}

func (fb *FakeBackend) decryptPassword(cipher string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipher)
	if err != nil {
		return "", err
	}
	out, err := rsa.DecryptPKCS1v15(nil, fb.Key, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func envelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func (fb *FakeBackend) publicKey(w http.ResponseWriter, _ *http.Request) {
	b := fb.snapshot()
	if b.PublicKeyStatus != 0 {
		w.WriteHeader(b.PublicKeyStatus)
		return
	}
	if b.EmptyPublicKey {
		envelope(w, 200, "", "")
		return
	}
	der, err := x509.MarshalPKIXPublicKey(&fb.Key.PublicKey)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	envelope(w, 200, "", string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	if d := fb.snapshot().LoginDelay; d > 0 {
		time.Sleep(d)
	}
	if err := r.ParseForm(); err != nil {
		envelope(w, 400, "bad form", nil)
		return
	}
	password, err := fb.decryptPassword(r.PostForm.Get("password"))
	if err != nil {
		envelope(w, 400, "password must be encrypted", nil)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	u, ok := fb.users[r.PostForm.Get("username")]
	if !ok || u.password != password {
		envelope(w, 401, "invalid username or password", nil)
		return
	}
	envelope(w, 200, "", fb.issueLocked(u.profile.Username))
}

func (fb *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	b := fb.snapshot()
	if b.LoginDelay > 0 {
		time.Sleep(b.LoginDelay)
	}
	if !b.CanRegister {
		envelope(w, 403, "registration is closed", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		envelope(w, 400, "bad form", nil)
		return
	}
	password, err := fb.decryptPassword(r.PostForm.Get("password"))
	if err != nil {
		envelope(w, 400, "password must be encrypted", nil)
		return
	}

	username := r.PostForm.Get("username")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, exists := fb.users[username]; exists {
		envelope(w, 409, "user already exists", nil)
		return
	}
	fb.seq++
	fb.users[username] = fakeUser{password: password, profile: domainauth.UserProfile{
		ID:             fmt.Sprintf("user-%d", fb.seq),
		Username:       username,
		Email:          r.PostForm.Get("email"),
		OrganizationID: "null",
	}}
	envelope(w, 200, "", fb.issueLocked(username))
}

func (fb *FakeBackend) isLogin(w http.ResponseWriter, r *http.Request) {
	b := fb.snapshot()
	if b.IsLoginStatus != 0 {
		w.WriteHeader(b.IsLoginStatus)
		return
	}
	_, ok := fb.caller(r)
	envelope(w, 200, "", ok && !b.DenySessions)
}

func (fb *FakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if s := fb.snapshot().LogoutStatus; s != 0 {
		w.WriteHeader(s)
		return
	}
	token := r.Header.Get(FakeBackendAuthName)
	fb.mu.Lock()
	delete(fb.tokens, token)
	fb.mu.Unlock()
	envelope(w, 200, "", true)
}

func (fb *FakeBackend) canRegister(w http.ResponseWriter, _ *http.Request) {
	b := fb.snapshot()
	if b.CanRegisterStatus != 0 {
		w.WriteHeader(b.CanRegisterStatus)
		return
	}
	envelope(w, 200, "", b.CanRegister)
}

func (fb *FakeBackend) currentUser(w http.ResponseWriter, r *http.Request) {
	if s := fb.snapshot().ProfileStatus; s != 0 {
		w.WriteHeader(s)
		return
	}
	username, ok := fb.caller(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fb.mu.Lock()
	profile := fb.users[username].profile
	fb.mu.Unlock()
	envelope(w, 200, "", profile)
}

func (fb *FakeBackend) uploadImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.caller(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f, _, err := r.FormFile("fileField")
	if err != nil {
		envelope(w, 400, "fileField is required", nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		envelope(w, 400, "read upload", nil)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	id := r.URL.Query().Get("id")
	if id == "" {
		fb.seq++
		id = fmt.Sprintf("img-%d", fb.seq)
	}
	fb.images[id] = data
	envelope(w, 200, "", id)
}

func (fb *FakeBackend) deleteImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.caller(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fb.mu.Lock()
	delete(fb.images, r.URL.Query().Get("id"))
	fb.mu.Unlock()
	envelope(w, 200, "", true)
}

func (fb *FakeBackend) getImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.caller(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	data, ok := fb.Image(r.URL.Query().Get("id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}
