package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	shopsvc "github.com/EduShopX/edushop/internal/app/services/shop"
	"github.com/EduShopX/edushop/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:             "test",
		HTTPAddr:        "127.0.0.1:0",
		FrontendBaseURL: "http://localhost:3000",
		PaymentGateway:  "https://gateway.test/pay",
		ExportDir:       t.TempDir(),
		Cache:           config.Cache{KeyPrefix: "edushop-test"},
		Tasks:           config.Tasks{Concurrency: 1, Queue: "tasks", ResultTTLHour: 1},
		HTTP:            config.HTTP{AllowedOrigins: "*", RateLimitRPS: 100, RateLimitBurst: 100, PageSize: 10},
		Logging:         config.Logging{Level: "error", Format: "text", Output: "stdout"},
	}
}

func TestNewApplicationWithEmbeddedServices(t *testing.T) {
	a, err := NewApplication(testConfig(t), ModeAPI)
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.NotNil(t, a.Handler())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.NotContains(t, body.Checks, "database")
}

func TestPaymentGatewayIsConfigurable(t *testing.T) {
	a, err := NewApplication(testConfig(t), ModeAPI)
	require.NoError(t, err)
	t.Cleanup(a.close)

	ctx := context.Background()
	buyer, err := a.App().Accounts.CreateSuperuser(ctx, "buyer", "buyer@edushop.test", "s3cret-pass")
	require.NoError(t, err)
	name, price, stock := "Go in Action", int64(300), 2
	book, err := a.App().Shop.CreateBook(ctx, shopsvc.BookInput{Name: &name, Price: &price, Stock: &stock})
	require.NoError(t, err)

	payment, url, err := a.App().Shop.RequestPayment(ctx, buyer.ID, shopsvc.PaymentRequest{ProductType: shop.ProductBook, ProductID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.test/pay/"+payment.Authority, url)
}

func TestWorkerModeHasNoHTTPSurface(t *testing.T) {
	a, err := NewApplication(testConfig(t), ModeWorker)
	require.NoError(t, err)
	t.Cleanup(a.close)
	assert.Nil(t, a.Handler())
}

func TestBeatRunsOnlyWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tasks.RunBeat = true
	a, err := NewApplication(cfg, ModeWorker)
	require.NoError(t, err)
	t.Cleanup(a.close)
	assert.Equal(t, []string{"task-worker", "task-beat"}, a.App().Services())

	cfg = testConfig(t)
	cfg.Tasks.RunBeat = false
	b, err := NewApplication(cfg, ModeWorker)
	require.NoError(t, err)
	t.Cleanup(b.close)
	assert.Equal(t, []string{"task-worker"}, b.App().Services())
}

func TestRevokedTokenKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.CacheURL = "redis://" + mr.Addr()
	a, err := NewApplication(cfg, ModeWorker)
	require.NoError(t, err)
	t.Cleanup(a.close)

	ctx := context.Background()
	pair, err := a.App().Tokens.Issue(account.User{ID: 7, Username: "kim", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, a.App().Tokens.Revoke(ctx, pair.Refresh))

	var found bool
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "edushop-test:jwt:blacklist:") {
			found = true
		}
		assert.NotContains(t, key, ":jwt:jwt:")
	}
	assert.True(t, found, "keys: %v", mr.Keys())
}

func TestTrustedProxiesMustParse(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.TrustedProxies = "10.0.0.0/8, not-a-network"
	_, err := NewApplication(cfg, ModeAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-network")
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	_, err := NewApplication(cfg, ModeAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_PRIVATE_KEY")
}

func TestOriginMatcher(t *testing.T) {
	assert.Nil(t, originMatcher(nil))
	assert.Nil(t, originMatcher([]string{"https://a.test", "*"}))

	match := originMatcher([]string{"https://a.test"})
	require.NotNil(t, match)
	assert.True(t, match("https://a.test"))
	assert.False(t, match("https://b.test"))

	sub := originMatcher([]string{".edushop.test"})
	require.NotNil(t, sub)
	assert.True(t, sub("https://app.edushop.test"))
	assert.False(t, sub("https://edushop.example"))
}
