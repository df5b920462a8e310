package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"reelgen/backgrounds"
	"reelgen/engine"
	"reelgen/jobs"
	"reelgen/pipeline"
	"reelgen/voice"

	"github.com/gin-gonic/gin"
)

type stubVoice struct{}

func (stubVoice) Synthesize(context.Context, string, voice.ProgressFunc) ([]byte, error) {
	return []byte("audio"), nil
}

type stubProber struct{}

func (stubProber) Duration(context.Context, []byte) (time.Duration, error) {
	return 3 * time.Second, nil
}

type memEngine struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (e *memEngine) Stage(_ context.Context, name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *memEngine) Execute(_ context.Context, cmd engine.Command, _ engine.ProgressFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, arg := range cmd.Args {
		if strings.HasSuffix(arg, "-output.mp4") {
			e.files[arg] = []byte("mp4-bytes")
		}
	}
	return nil
}

func (e *memEngine) Read(_ context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.files[name], nil
}

func (e *memEngine) Release(_ context.Context, names ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		delete(e.files, n)
	}
	return nil
}

type fakeRotation struct {
	reset []backgrounds.Category
}

func (f *fakeRotation) Sizes() map[backgrounds.Category]int {
	return map[backgrounds.Category]int{backgrounds.CategoryMinecraft: 2}
}

func (f *fakeRotation) Reset(_ context.Context, cat backgrounds.Category) error {
	f.reset = append(f.reset, cat)
	return nil
}

type testServer struct {
	router   *gin.Engine
	registry *jobs.Registry
	rotation *fakeRotation
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng := &memEngine{files: map[string][]byte{}}
	catalog := backgrounds.Catalog{backgrounds.CategoryMinecraft: {"minecraft/a.mp4"}}
	orch := pipeline.New(pipeline.Deps{
		Selector: backgrounds.NewSelector(catalog, nil),
		Source:   stubSource{},
		Voice:    stubVoice{},
		Prober:   stubProber{},
		Engine:   engine.NewHandle(func(context.Context) (engine.Engine, error) { return eng, nil }),
	}, pipeline.Options{})

	reg := jobs.NewRegistry(orch, jobs.Options{})
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	rot := &fakeRotation{}
	return &testServer{
		router:   NewRouter(NewServer(reg, rot, nil, 1<<20)),
		registry: reg,
		rotation: rot,
	}
}

type stubSource struct{}

func (stubSource) Fetch(context.Context, string) ([]byte, error) { return []byte("bg"), nil }

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) waitFinished(t *testing.T, id string) {
	t.Helper()
	run, err := ts.registry.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Categories []CategoryResponse `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Categories) != len(backgrounds.Categories()) {
		t.Fatalf("got %d categories", len(body.Categories))
	}
	for _, c := range body.Categories {
		if c.ID == backgrounds.CategoryMinecraft && c.Clips != 2 {
			t.Fatalf("minecraft clips = %d", c.Clips)
		}
		if c.ID == backgrounds.CategorySubway && c.Name != "Subway Surfers" {
			t.Fatalf("subway name = %q", c.Name)
		}
	}

	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/categories/GTA/reset", nil))
	if w.Code != http.StatusOK || len(ts.rotation.reset) != 1 || ts.rotation.reset[0] != backgrounds.CategoryGTA {
		t.Fatalf("reset failed: %d %v", w.Code, ts.rotation.reset)
	}
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/categories/tetris/reset", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown category, got %d", w.Code)
	}
}

func TestCreateReelJSON(t *testing.T) {
	ts := newTestServer(t)

	body := `{"run_id":"api-1","script":"a reel about go","category":"minecraft"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reels", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var created CreateReelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.RunID != "api-1" || created.StatusURL != "/api/reels/api-1" {
		t.Fatalf("unexpected response %+v", created)
	}
	ts.waitFinished(t, created.RunID)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/reels/api-1", nil))
	var st pipeline.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != pipeline.StateSucceeded || st.Progress != 100 || len(st.Logs) == 0 {
		t.Fatalf("unexpected status %+v", st)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/reels/api-1/video", nil))
	if w.Code != http.StatusOK || w.Body.String() != "mp4-bytes" {
		t.Fatalf("video: %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "reel-api-1.mp4") {
		t.Fatalf("content disposition = %q", cd)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/reels/api-1/captions", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "a reel about") {
		t.Fatalf("captions: %d %q", w.Code, w.Body.String())
	}

	// Same id again.
	req = httptest.NewRequest(http.MethodPost, "/api/reels", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := ts.do(req); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate id, got %d", w.Code)
	}
}

func TestCreateReelValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing script", `{"category":"minecraft"}`, http.StatusBadRequest},
		{"blank script", `{"script":"   ","category":"minecraft"}`, http.StatusBadRequest},
		{"unknown category", `{"script":"hi","category":"tetris"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/reels", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if w := ts.do(req); w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileType string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateReelMultipart(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{"script": "custom upload", "run_id": "up-1"}, "video/mp4", []byte("clip"))
	req := httptest.NewRequest(http.MethodPost, "/api/reels", body)
	req.Header.Set("Content-Type", ct)
	w := ts.do(req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	ts.waitFinished(t, "up-1")

	run, _ := ts.registry.Get("up-1")
	res, ok := run.Result()
	if !ok || !res.CustomAsset {
		t.Fatalf("expected a custom asset result, got %+v", res)
	}

	body, ct = multipartBody(t, map[string]string{"script": "not a video"}, "image/png", []byte("png"))
	req = httptest.NewRequest(http.MethodPost, "/api/reels", body)
	req.Header.Set("Content-Type", ct)
	if w := ts.do(req); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for non-video upload, got %d", w.Code)
	}

	body, ct = multipartBody(t, map[string]string{"script": "rotating", "category": "minecraft"}, "", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/reels", body)
	req.Header.Set("Content-Type", ct)
	if w := ts.do(req); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 without upload, got %d %s", w.Code, w.Body.String())
	}
}

func TestReelLookupErrors(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/reels/nope", "/api/reels/nope/video", "/api/reels/nope/captions"} {
		if w := ts.do(httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
}
