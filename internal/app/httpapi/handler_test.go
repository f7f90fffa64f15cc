package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/EduShopX/edushop/internal/app"
	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/services/accounts"
	"github.com/EduShopX/edushop/internal/app/services/reports"
	"github.com/EduShopX/edushop/internal/app/services/shortlinks"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

type fixture struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	queue   *taskstest.Recorder
	uni     account.University
	edu     account.EducationStudy
	admin   string
}

func newFixture(t *testing.T, probes map[string]Probe) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	queue := taskstest.New()

	priv, pub, _, err := auth.LoadKeys("", "")
	require.NoError(t, err)
	tokens := auth.NewTokens(priv, pub, auth.Config{}, nil)

	application, err := app.New(app.Stores{
		Users: store, Catalog: store, Blog: store, Shop: store,
		Chat: store, ShortLinks: store, Audit: store, Blocklist: store,
	}, app.Infra{Tokens: tokens, Cache: cache.NewMemory(), Queue: queue}, app.Settings{
		FrontendBaseURL: "https://edushop.test",
		ExportDir:       t.TempDir(),
	}, nil)
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		handler: NewHandler(application, Options{PageSize: 2, Probes: probes}),
		store:   store,
		queue:   queue,
	}
	f.uni, err = store.CreateUniversity(ctx, account.University{Name: "Tehran", City: "Tehran"})
	require.NoError(t, err)
	f.edu, err = store.CreateEducationStudy(ctx, account.EducationStudy{Name: "Computer Science"})
	require.NoError(t, err)

	hash, err := accounts.HashPassword("admin-pass")
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, account.User{
		Username: "root", Email: "root@example.com", PasswordHash: hash, IsActive: true, IsStaff: true,
	})
	require.NoError(t, err)
	f.admin = f.login("root", "admin-pass")
	return f
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) login(username, password string) string {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"username": username, "password": password})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(f.t, rec)["access"].(string)
}

func (f *fixture) register(kind, username, phone string) string {
	f.t.Helper()
	body := map[string]interface{}{
		"username":     username,
		"password":     "secret-pass",
		"email":        username + "@example.com",
		"first_name":   "First",
		"last_name":    "Last",
		"phone_number": phone,
		"university":   f.uni.ID,
	}
	if kind == "student" {
		body["education_study"] = f.edu.ID
	}
	rec := f.do(http.MethodPost, "/api/account/register/"+kind+"/", "", body)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(f.t, "User registered successfully", decodeBody(f.t, rec)["message"])
	return f.login(username, "secret-pass")
}

func TestRegisterLoginRefreshAndLogout(t *testing.T) {
	f := newFixture(t, nil)
	f.register("student", "sara", "09120000001")
	assert.Len(t, f.queue.Calls(accounts.TaskWelcomeEmail), 1)

	rec := f.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"username": "sara", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decodeBody(t, rec)
	refresh := pair["refresh"].(string)

	rec = f.do(http.MethodPost, "/api/auth/token/verify/", "", map[string]string{"token": pair["access"].(string)})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/auth/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeBody(t, rec)

	rec = f.do(http.MethodPost, "/api/auth/logout/", rotated["access"].(string), map[string]string{"refresh": rotated["refresh"].(string)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Logout successful", decodeBody(t, rec)["detail"])

	rec = f.do(http.MethodPost, "/api/auth/token/refresh/", "", map[string]string{"refresh": rotated["refresh"].(string)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"username": "sara", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegistrationValidation(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/account/register/student/", "", map[string]interface{}{
		"username": "x", "password": "p", "email": "not-an-email",
		"first_name": "a", "last_name": "b", "phone_number": "09120000001", "university": f.uni.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/account/register/student/", "", map[string]interface{}{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestManagementRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	student := f.register("student", "sara", "09120000001")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/management/uni/students/", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/management/uni/students/", student, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/reports/user-stats/", student, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/admin/", student, nil).Code)

	rec := f.do(http.MethodGet, "/api/management/uni/students/", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody(t, rec)
	assert.EqualValues(t, 1, page["count"])
	results := page["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "sara", results[0].(map[string]interface{})["user"].(map[string]interface{})["username"])
}

func TestDeactivatedOrDeletedUserLosesAccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	student := f.register("student", "sara", "09120000001")
	teacher := f.register("teacher", "reza", "09120000002")
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/user/courses/", student, nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/teachers/me/courses/", teacher, nil).Code)

	sara, err := f.store.GetUserByUsername(ctx, "sara")
	require.NoError(t, err)
	rec := f.do(http.MethodPatch, fmt.Sprintf("/api/management/uni/students/%d/", sara.ID), f.admin, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/user/courses/", student, nil).Code)

	reza, err := f.store.GetUserByUsername(ctx, "reza")
	require.NoError(t, err)
	rec = f.do(http.MethodDelete, fmt.Sprintf("/api/management/uni/teachers/%d/", reza.ID), f.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/teachers/me/courses/", teacher, nil).Code)
}

func TestProfileCollectionsRejectCreate(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/management/uni/students/", f.admin, map[string]string{})
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "create account in address /api/account/register/student/", decodeBody(t, rec)["detail"])

	rec = f.do(http.MethodPost, "/api/management/uni/teachers/", f.admin, map[string]string{})
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "create account in address /api/account/register/teacher/", decodeBody(t, rec)["detail"])
}

func TestPagination(t *testing.T) {
	f := newFixture(t, nil)
	for i := 1; i <= 3; i++ {
		rec := f.do(http.MethodPost, "/api/management/books/", f.admin, map[string]interface{}{
			"name": fmt.Sprintf("Book %d", i), "description": "d", "price": 100, "stock": 1,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	first := decodeBody(t, f.do(http.MethodGet, "/api/management/books/", f.admin, nil))
	assert.EqualValues(t, 3, first["count"])
	assert.Len(t, first["results"], 2)
	assert.Contains(t, first["next"], "page=2")
	assert.Nil(t, first["previous"])

	second := decodeBody(t, f.do(http.MethodGet, "/api/management/books/?page=2", f.admin, nil))
	assert.Len(t, second["results"], 1)
	assert.Nil(t, second["next"])
	assert.NotNil(t, second["previous"])

	rec := f.do(http.MethodGet, "/api/management/books/?page=3", f.admin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid page.", decodeBody(t, rec)["detail"])
}

func TestTeacherCourseAndEnrollmentFlow(t *testing.T) {
	f := newFixture(t, nil)
	teacher := f.register("teacher", "reza", "09120000002")
	student := f.register("student", "sara", "09120000001")

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/teachers/me/courses/", student, nil).Code)

	rec := f.do(http.MethodPost, "/api/teachers/me/courses/", teacher, map[string]interface{}{
		"name": "Go Basics", "description_course": "intro", "is_free": true, "price": 0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	courseID := int64(decodeBody(t, rec)["id"].(float64))

	rec = f.do(http.MethodPost, "/api/teachers/me/courses/", teacher, map[string]interface{}{
		"name": "Go Basics", "description_course": "again", "is_free": true, "price": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "course names are unique per teacher")

	videos := fmt.Sprintf("/api/teachers/me/courses/%d/videos/", courseID)
	rec = f.do(http.MethodPost, videos, teacher, map[string]interface{}{"title": "Setup", "video": "videos/setup.avi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "only mp4 is accepted")
	rec = f.do(http.MethodPost, videos, teacher, map[string]interface{}{"title": "Setup", "video": "videos/setup.mp4", "is_free": false})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["is_free"], "videos of a free course are free")

	rec = f.do(http.MethodGet, "/api/store/courses/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Go Basics")

	rec = f.do(http.MethodPost, "/api/user/enrollments/", student, map[string]int64{"course": courseID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/api/user/enrollments/", f.admin, map[string]int64{"course": courseID})
	assert.Equal(t, http.StatusForbidden, rec.Code, "admins do not enrol themselves")

	rec = f.do(http.MethodGet, "/api/user/courses/", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Go Basics")

	rec = f.do(http.MethodGet, fmt.Sprintf("/api/store/courses/%d/videos/", courseID), student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "setup.mp4")

	rec = f.do(http.MethodGet, fmt.Sprintf("/api/teachers/me/courses/%d/videos/%d/", courseID+100, 1), teacher, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartCheckoutAndPayment(t *testing.T) {
	f := newFixture(t, nil)
	student := f.register("student", "sara", "09120000001")

	rec := f.do(http.MethodPost, "/api/management/books/", f.admin, map[string]interface{}{
		"name": "Clean Code", "description": "d", "price": 100, "stock": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bookID := int64(decodeBody(t, rec)["id"].(float64))

	rec = f.do(http.MethodPost, "/api/buy/cart/items/", student, map[string]int64{"book": bookID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "added to cart", decodeBody(t, rec)["message"])

	rec = f.do(http.MethodPost, "/api/buy/checkout/", student, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody(t, rec)
	assert.EqualValues(t, 200, order["total_price"])

	rec = f.do(http.MethodPost, "/api/buy/checkout/", student, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty.", decodeBody(t, rec)["error"])

	rec = f.do(http.MethodPost, "/api/buy/payments/request/", student, map[string]interface{}{"product_type": "book", "product_id": bookID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payURL := decodeBody(t, rec)["payment_url"].(string)
	require.True(t, strings.HasPrefix(payURL, "https://fake-gateway/pay/"), payURL)
	authority := strings.TrimPrefix(payURL, "https://fake-gateway/pay/")

	rec = f.do(http.MethodPost, "/api/buy/payments/verify/", student, map[string]string{"authority": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid authority.", decodeBody(t, rec)["detail"])

	rec = f.do(http.MethodPost, "/api/buy/payments/verify/", student, map[string]string{"authority": authority})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Payment verified successfully.", decodeBody(t, rec)["detail"])

	rec = f.do(http.MethodGet, "/api/management/books/"+fmt.Sprint(bookID)+"/", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, decodeBody(t, rec)["stock"])
}

func TestAverageOrderValueTask(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/reports/avg-order-value/", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	taskID := decodeBody(t, rec)["task_id"].(string)
	require.Len(t, f.queue.Calls(reports.TaskAvgOrderValue), 1)

	result := "/api/reports/avg-order-value/result/" + taskID + "/"
	assert.Equal(t, map[string]interface{}{"status": "PENDING"}, decodeBody(t, f.do(http.MethodGet, result, f.admin, nil)))

	f.queue.SetResult(taskID, tasks.StatusSuccess, 150.5)
	assert.Equal(t, 150.5, decodeBody(t, f.do(http.MethodGet, result, f.admin, nil))["average_order_value"])

	rec = f.do(http.MethodPost, "/api/management/email/send/", f.admin, map[string]string{"subject": "News", "message": "hi"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	mailID := decodeBody(t, rec)["task_id"].(string)
	rec = f.do(http.MethodGet, "/api/reports/avg-order-value/result/"+mailID+"/", f.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShortLinkCreateAndRedirect(t *testing.T) {
	f := newFixture(t, nil)
	student := f.register("student", "sara", "09120000001")
	rec := f.do(http.MethodPost, "/api/management/books/", f.admin, map[string]interface{}{
		"name": "Clean Code", "price": 100, "stock": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	bookID := int64(decodeBody(t, rec)["id"].(float64))

	rec = f.do(http.MethodPost, "/api/shortlinks/create/", student, map[string]interface{}{"model": "book", "object_id": bookID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	short := decodeBody(t, rec)["short_url"].(string)
	require.Contains(t, short, "/api/shortlinks/s/")
	path := short[strings.Index(short, "/api/"):]

	rec = f.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("https://edushop.test/%d/", bookID), rec.Header().Get("Location"))
	assert.Len(t, f.queue.Calls(shortlinks.TaskClick), 1)

	rec = f.do(http.MethodPost, "/api/shortlinks/create/", student, map[string]interface{}{"model": "user", "object_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/shortlinks/s/missing/", "", nil).Code)
}

func TestMassEmail(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/management/email/send/", f.admin, map[string]string{"subject": "", "message": "hi"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Subject and message are required", decodeBody(t, rec)["error"])

	rec = f.do(http.MethodPost, "/api/management/email/send/", f.admin, map[string]string{"subject": "News", "message": "hi"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	taskID := decodeBody(t, rec)["task_id"].(string)

	rec = f.do(http.MethodGet, "/api/management/email/status/"+taskID+"/", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decodeBody(t, rec)["status"])
}

func TestBlockedAddressIsRefused(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/management/blocklist/", f.admin, map[string]string{"ip_addr": "203.0.113.9", "reason": "abuse"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/store/books/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	out := httptest.NewRecorder()
	f.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusForbidden, out.Code)
	assert.Equal(t, "Your IP address has been blocked.", decodeBody(t, out)["detail"])

	spoofed := httptest.NewRequest(http.MethodGet, "/api/store/books/", nil)
	spoofed.RemoteAddr = "203.0.113.9:4000"
	spoofed.Header.Set("X-Forwarded-For", "1.2.3.4")
	spoofed.Header.Set("X-Real-IP", "1.2.3.4")
	out = httptest.NewRecorder()
	f.handler.ServeHTTP(out, spoofed)
	assert.Equal(t, http.StatusForbidden, out.Code, "forwarding headers from an untrusted peer are ignored")

	framed := httptest.NewRequest(http.MethodGet, "/api/store/books/", nil)
	framed.RemoteAddr = "198.51.100.7:4000"
	framed.Header.Set("X-Forwarded-For", "203.0.113.9")
	out = httptest.NewRecorder()
	f.handler.ServeHTTP(out, framed)
	assert.Equal(t, http.StatusOK, out.Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/store/books/", "", nil).Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, map[string]Probe{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["postgres"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]interface{})["redis"])

	assert.Equal(t, http.StatusOK, newFixture(t, nil).do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestDocsAndIndex(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/swagger/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/buy/checkout/")

	rec = f.do(http.MethodGet, "/swagger/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/swagger/openapi.json")

	index := decodeBody(t, f.do(http.MethodGet, "/api/", "", nil))
	assert.Contains(t, index["reports"], "/api/reports/")
}

func TestAdminOverviewAndAuditLog(t *testing.T) {
	f := newFixture(t, nil)
	f.register("student", "sara", "09120000001")
	rec := f.do(http.MethodPost, "/api/management/books/", f.admin, map[string]interface{}{"name": "Clean Code", "price": 100, "stock": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/admin/", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	overview := decodeBody(t, rec)
	counts := overview["counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["students"])
	assert.EqualValues(t, 1, counts["books"])
	assert.NotEmpty(t, overview["recent_actions"])

	logs := decodeBody(t, f.do(http.MethodGet, "/api/reports/logs/", f.admin, nil))
	assert.EqualValues(t, 1, logs["count"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/nowhere/", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found.", decodeBody(t, rec)["detail"])

	rec = f.do(http.MethodDelete, "/api/store/books/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
