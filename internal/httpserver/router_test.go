package httpserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/handler"
	"buildtrack/internal/repository/memory"
	"buildtrack/internal/service"
	"buildtrack/pkg/outbox"
	"buildtrack/pkg/rbac"
	"buildtrack/pkg/storage"
	"buildtrack/pkg/trace"
	"buildtrack/pkg/util"
)

const testSecret = "test-secret"

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type server struct {
	t       *testing.T
	engine  *gin.Engine
	objects *storage.MemoryStore
}

func newServer(t *testing.T, rateLimit int) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatalf("load enforcer: %v", err)
	}
	log := zap.NewNop()
	store := memory.NewStore(log)
	objects := storage.NewMemoryStore()
	access := service.NewAccess(enforcer)
	rc := service.NewRecalculator(store, time.UTC, log)

	h := Handlers{
		Projects:   handler.NewProjectHandler(service.NewProjectService(store, access, rc, log), log),
		Milestones: handler.NewMilestoneHandler(service.NewMilestoneService(store, access, rc, log), log),
		Reports:    handler.NewReportHandler(service.NewReportService(store, access, rc, time.UTC, log), log),
		Inventory:  handler.NewInventoryHandler(service.NewInventoryService(store, access, log), log),
		Photos:     handler.NewPhotoHandler(service.NewPhotoService(store, access, objects, log), log),
		Admin:      handler.NewAdminHandler(outbox.NewReplayService(store, nil, log), log),
	}
	r := NewRouter(h, Options{
		JWTSecret:       testSecret,
		RateLimitPerMin: rateLimit,
		RateLimitBurst:  rateLimit,
		Enforcer:        enforcer,
		Store:           store,
		Logger:          log,
	})
	return &server{t: t, engine: r.Engine, objects: objects}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (s *server) do(method, path, tok string, body any) (*httptest.ResponseRecorder, response) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return s.serve(req)
}

func (s *server) serve(req *http.Request) (*httptest.ResponseRecorder, response) {
	s.t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var res response
	if w.Body.Len() > 0 && req.Method != http.MethodHead {
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			s.t.Fatalf("decode %s %s response %q: %v", req.Method, req.URL.Path, w.Body.String(), err)
		}
	}
	return w, res
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, res response, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if res.Success || res.Error == nil || res.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", res.Error, code)
	}
}

var (
	contractorTok = func(t *testing.T) string { return token(t, "u-contractor", rbac.RoleContractor) }
	architectTok  = func(t *testing.T) string { return token(t, "u-architect", rbac.RoleArchitect) }
	clientTok     = func(t *testing.T) string { return token(t, "u-client", rbac.RoleClient) }
	adminTok      = func(t *testing.T) string { return token(t, "u-admin", rbac.RoleAdmin) }
)

type idOnly struct {
	ID string `json:"id"`
}

func (s *server) createProject(tok string) string {
	s.t.Helper()
	w, res := s.do(http.MethodPost, "/api/projects", tok, map[string]any{
		"name":          "Riverside Tower",
		"start_date":    "2024-01-01",
		"end_date":      "2024-12-31",
		"client_id":     "u-client",
		"contractor_id": "u-contractor",
		"architect_id":  "u-architect",
	})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create project: %d %s", w.Code, w.Body.String())
	}
	return decode[idOnly](s.t, res.Data).ID
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, 0)

	w, _ := s.do(http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w, _ = s.do(http.MethodHead, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("HEAD healthz = %d", w.Code)
	}
	w, _ = s.do(http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("readyz = %d %s", w.Code, w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set(trace.HeaderName, "trace-abc")
	w, res := s.serve(req)
	expectError(t, w, res, http.StatusUnauthorized, handler.CodeUnauthorized)
	if got := w.Header().Get(trace.HeaderName); got != "trace-abc" {
		t.Errorf("trace header = %q", got)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("request id header missing")
	}

	w, res = s.do(http.MethodGet, "/api/projects", "not-a-jwt", nil)
	expectError(t, w, res, http.StatusUnauthorized, handler.CodeUnauthorized)

	w, res = s.do(http.MethodGet, "/api/projects", token(t, "u-x", "plumber"), nil)
	expectError(t, w, res, http.StatusUnauthorized, handler.CodeUnauthorized)

	expired, err := util.GenerateJWT("u-x", rbac.RoleClient, testSecret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	w, res = s.do(http.MethodGet, "/api/projects", expired, nil)
	expectError(t, w, res, http.StatusUnauthorized, handler.CodeUnauthorized)
	if res.Error.Message != "token expired" {
		t.Errorf("message = %q", res.Error.Message)
	}
}

func TestRoleCapabilityEnforced(t *testing.T) {
	s := newServer(t, 0)

	w, res := s.do(http.MethodPost, "/api/projects", clientTok(t), map[string]any{"name": "x"})
	expectError(t, w, res, http.StatusForbidden, "FORBIDDEN")

	w, res = s.do(http.MethodGet, "/api/admin/outbox/failed", contractorTok(t), nil)
	expectError(t, w, res, http.StatusForbidden, "FORBIDDEN")

	for _, tok := range []string{contractorTok(t), clientTok(t)} {
		w, res = s.do(http.MethodGet, "/api/milestones/status/pending-approval", tok, nil)
		expectError(t, w, res, http.StatusForbidden, "FORBIDDEN")
	}
	w, _ = s.do(http.MethodGet, "/api/milestones/status/pending-approval", architectTok(t), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("architect pending approvals: %d %s", w.Code, w.Body.String())
	}
}

func TestRequestBodyValidation(t *testing.T) {
	s := newServer(t, 0)

	w, res := s.do(http.MethodPost, "/api/projects", contractorTok(t), `{"name":"x","unknown_field":1}`)
	expectError(t, w, res, http.StatusBadRequest, "VALIDATION_FAILED")

	w, res = s.do(http.MethodPost, "/api/projects", contractorTok(t), "")
	expectError(t, w, res, http.StatusBadRequest, "VALIDATION_FAILED")

	w, res = s.do(http.MethodPost, "/api/projects", contractorTok(t), map[string]any{"name": "no dates"})
	expectError(t, w, res, http.StatusBadRequest, "VALIDATION_FAILED")

	pid := s.createProject(contractorTok(t))
	w, res = s.do(http.MethodPost, "/api/milestones", contractorTok(t), map[string]any{
		"project_id": pid,
		"title":      "Foundation",
		"due_date":   "2024-02-01",
	})
	expectError(t, w, res, http.StatusBadRequest, "VALIDATION_FAILED")
}

func TestMilestoneApprovalOverHTTP(t *testing.T) {
	s := newServer(t, 0)
	pid := s.createProject(contractorTok(t))

	w, res := s.do(http.MethodPost, "/api/milestones", contractorTok(t), map[string]any{
		"project_id": pid,
		"title":      "Foundation",
		"status":     "in-progress",
		"start_date": "2024-01-02",
		"due_date":   "2024-02-01",
		"progress":   100,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create milestone: %d %s", w.Code, w.Body.String())
	}
	mid := decode[idOnly](t, res.Data).ID

	w, res = s.do(http.MethodPut, "/api/milestones/"+mid+"/approve", architectTok(t), map[string]any{"status": "approved"})
	expectError(t, w, res, http.StatusConflict, "INVALID_TRANSITION")

	w, _ = s.do(http.MethodPut, "/api/milestones/"+mid+"/submit", contractorTok(t), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}

	w, res = s.do(http.MethodPut, "/api/milestones/"+mid+"/approve", contractorTok(t), map[string]any{"status": "approved"})
	expectError(t, w, res, http.StatusForbidden, "FORBIDDEN")

	w, res = s.do(http.MethodPut, "/api/milestones/"+mid+"/approve", architectTok(t), map[string]any{"status": "maybe"})
	expectError(t, w, res, http.StatusBadRequest, "INVALID_DECISION")

	w, res = s.do(http.MethodPut, "/api/milestones/"+mid+"/approve", architectTok(t), map[string]any{"status": "approved", "comments": "good"})
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}
	result := decode[struct {
		Milestone struct {
			Status   string `json:"status"`
			Approval struct {
				Status     string `json:"status"`
				ApprovedBy string `json:"approved_by"`
				Comments   string `json:"comments"`
			} `json:"approval"`
		} `json:"milestone"`
	}](t, res.Data)
	if result.Milestone.Status != "completed" || result.Milestone.Approval.Status != "approved" {
		t.Errorf("milestone = %+v", result.Milestone)
	}
	if result.Milestone.Approval.ApprovedBy != "u-architect" || result.Milestone.Approval.Comments != "good" {
		t.Errorf("approval = %+v", result.Milestone.Approval)
	}
}

func TestProjectNotFoundAndMembership(t *testing.T) {
	s := newServer(t, 0)
	pid := s.createProject(contractorTok(t))

	w, res := s.do(http.MethodGet, "/api/projects/"+pid, token(t, "u-stranger", rbac.RoleClient), nil)
	expectError(t, w, res, http.StatusForbidden, "NOT_PROJECT_MEMBER")

	w, res = s.do(http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000000", adminTok(t), nil)
	expectError(t, w, res, http.StatusNotFound, "NOT_FOUND")

	w, res = s.do(http.MethodGet, "/api/projects/"+pid, clientTok(t), nil)
	if w.Code != http.StatusOK || !res.Success {
		t.Fatalf("member read: %d %s", w.Code, w.Body.String())
	}
}

func TestReportListPagination(t *testing.T) {
	s := newServer(t, 0)
	pid := s.createProject(contractorTok(t))

	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		w, _ := s.do(http.MethodPost, "/api/reports", contractorTok(t), map[string]any{
			"project_id":   pid,
			"date":         d,
			"work_summary": "poured slab",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create report %s: %d %s", d, w.Code, w.Body.String())
		}
	}
	w, res := s.do(http.MethodPost, "/api/reports", contractorTok(t), map[string]any{
		"project_id":   pid,
		"date":         "2024-03-02",
		"work_summary": "again",
	})
	expectError(t, w, res, http.StatusBadRequest, "DUPLICATE_DATE_FOR_PROJECT")

	w, _ = s.do(http.MethodGet, "/api/reports/project/"+pid+"?page=1&limit=2", architectTok(t), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Data       []idOnly       `json:"data"`
		Pagination map[string]int `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 2 || body.Pagination["total"] != 3 || body.Pagination["pages"] != 2 {
		t.Errorf("list = %d items, pagination %v", len(body.Data), body.Pagination)
	}
}

func TestPhotoUpload(t *testing.T) {
	s := newServer(t, 0)
	pid := s.createProject(contractorTok(t))

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("project_id", pid)
	_ = mw.WriteField("category", "progress")
	_ = mw.WriteField("tags", "slab, level-2 ,")
	fw, err := mw.CreateFormFile("photos", "slab.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(png)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+contractorTok(t))
	w, res := s.serve(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	photos := decode[[]struct {
		ObjectKey string   `json:"object_key"`
		MimeType  string   `json:"mime_type"`
		Tags      []string `json:"tags"`
	}](t, res.Data)
	if len(photos) != 1 || photos[0].MimeType != "image/png" {
		t.Fatalf("photos = %+v", photos)
	}
	if len(photos[0].Tags) != 2 || photos[0].Tags[1] != "level-2" {
		t.Errorf("tags = %v", photos[0].Tags)
	}
	if !s.objects.Has(photos[0].ObjectKey) {
		t.Errorf("object %s not stored", photos[0].ObjectKey)
	}
}

func TestAdminOutbox(t *testing.T) {
	s := newServer(t, 0)

	w, res := s.do(http.MethodGet, "/api/admin/outbox/failed", adminTok(t), nil)
	if w.Code != http.StatusOK || !res.Success {
		t.Fatalf("failed events: %d %s", w.Code, w.Body.String())
	}
	w, res = s.do(http.MethodPost, "/api/admin/outbox/missing/replay", adminTok(t), nil)
	expectError(t, w, res, http.StatusNotFound, "NOT_FOUND")
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, 2)

	for i := 0; i < 2; i++ {
		w, _ := s.do(http.MethodGet, "/api/projects", clientTok(t), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, w.Code)
		}
	}
	w, res := s.do(http.MethodGet, "/api/projects", clientTok(t), nil)
	expectError(t, w, res, http.StatusTooManyRequests, handler.CodeRateLimited)

	// 健康检查不受限流影响
	w, _ = s.do(http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
}
