package reports

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

var day = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type world struct {
	store   *memory.Store
	queue   *taskstest.Recorder
	cache   *cache.Memory
	svc     *Service
	teacher account.User
	alice   account.User
	bob     account.User
	course  catalog.Course
	book    shop.Book
}

func seed(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{store: memory.New(), queue: taskstest.New(), cache: cache.NewMemory()}
	w.svc = New(w.store, w.store, w.store, w.cache, w.queue, t.TempDir(), nil)
	w.svc.now = func() time.Time { return day }

	var err error
	w.teacher, err = w.store.CreateUser(ctx, account.User{Username: "teach", Email: "t@example.com", Role: account.RoleTeacher, IsActive: true})
	require.NoError(t, err)
	w.alice, err = w.store.CreateUser(ctx, account.User{Username: "alice", Email: "a@example.com", IsActive: true})
	require.NoError(t, err)
	w.bob, err = w.store.CreateUser(ctx, account.User{Username: "bob", Email: "b@example.com"})
	require.NoError(t, err)
	require.NoError(t, w.store.TouchLastLogin(ctx, w.alice.ID, day.Add(-time.Hour)))

	w.course, err = w.store.CreateCourse(ctx, catalog.Course{Name: "Go", Description: "x", Price: 1000, TeacherID: w.teacher.ID})
	require.NoError(t, err)
	w.book, err = w.store.CreateBook(ctx, shop.Book{Name: "Gopher", Price: 300, Stock: 5})
	require.NoError(t, err)

	added := day.Add(-90 * time.Second)
	pay := func(user int64, pt shop.ProductType, id, amount int64, status shop.PaymentStatus, auth string, cartAt *time.Time) {
		_, err := w.store.CreatePayment(ctx, shop.Payment{
			UserID: user, ProductType: pt, ProductID: id, Amount: amount,
			Status: status, Authority: auth, CreatedAt: day, CartAddedAt: cartAt,
		})
		require.NoError(t, err)
	}
	pay(w.alice.ID, shop.ProductCourse, w.course.ID, 1000, shop.PaymentSuccess, "a1", nil)
	pay(w.alice.ID, shop.ProductBook, w.book.ID, 300, shop.PaymentSuccess, "a2", &added)
	pay(w.bob.ID, shop.ProductBook, w.book.ID, 300, shop.PaymentSuccess, "b1", nil)
	pay(w.bob.ID, shop.ProductCourse, w.course.ID, 1000, shop.PaymentPending, "b2", nil)

	_, err = w.store.CreateEnrollment(ctx, catalog.Enrollment{UserID: w.alice.ID, CourseID: w.course.ID})
	require.NoError(t, err)
	return w
}

func TestUserReports(t *testing.T) {
	w := seed(t)
	ctx := context.Background()

	stats, err := w.svc.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, UserStats{TotalUsers: 3, ActiveUsers: 2, InactiveUsers: 1}, stats)
	assert.True(t, w.cache.Has(cache.KeyReport("user_stats")))

	dau, err := w.svc.DailyActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dau.Count)
}

func TestSalesReports(t *testing.T) {
	w := seed(t)
	ctx := context.Background()

	sales, err := w.svc.Sales(ctx)
	require.NoError(t, err)
	assert.Equal(t, Sales{CourseIncome: 1000, BookIncome: 600, TotalIncome: 1600}, sales)

	chart, err := w.svc.SalesChart(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DailyTotal{{Day: "2026-03-14", Total: 1600}}, chart.Daily)
	assert.Equal(t, []MonthlyTotal{{Month: "2026-03-01", Total: 1600}}, chart.Monthly)

	top, err := w.svc.TopTeachers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TeacherIncome{{Username: "teach", TotalIncome: 1000}}, top)

	products, err := w.svc.ProductSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CourseSales{{CourseID: w.course.ID, CourseName: "Go", TotalStudents: 1}}, products.CourseSales)
	assert.Empty(t, products.BookSales)

	wait, err := w.svc.AveragePaymentTime(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 90, wait.AverageSeconds, 0.001)
}

func TestAvgOrderValueTask(t *testing.T) {
	w := seed(t)
	ctx := context.Background()

	id, err := w.svc.StartAvgOrderValue(ctx)
	require.NoError(t, err)
	out, err := w.svc.AvgOrderValue(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Ready)
	assert.Equal(t, tasks.StatusPending, out.Status)

	value, err := w.svc.handleAvgOrderValue(ctx, &tasks.Task{ID: id, Name: TaskAvgOrderValue})
	require.NoError(t, err)
	w.queue.SetResult(id, tasks.StatusSuccess, value)
	out, err = w.svc.AvgOrderValue(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Ready)
	assert.InDelta(t, 1600.0/3, out.Value, 0.001)
}

func TestReportPollingRejectsOtherTaskIDs(t *testing.T) {
	w := seed(t)
	ctx := context.Background()

	mailID, err := w.queue.Enqueue(ctx, "mail.send_mass_email", map[string]string{"subject": "hi"})
	require.NoError(t, err)
	w.queue.SetResult(mailID, tasks.StatusSuccess, 42)
	_, err = w.svc.AvgOrderValue(ctx, mailID)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
	_, err = w.svc.HighSpenderExport(ctx, mailID)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))

	avgID, err := w.svc.StartAvgOrderValue(ctx)
	require.NoError(t, err)
	_, err = w.svc.HighSpenderExport(ctx, avgID)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))

	out, err := w.svc.AvgOrderValue(ctx, "never-issued")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusPending, out.Status)
}

func TestHighSpenderExport(t *testing.T) {
	w := seed(t)
	ctx := context.Background()

	id, err := w.svc.StartHighSpenderExport(ctx, 0)
	require.NoError(t, err)
	var args HighSpenderArgs
	require.NoError(t, json.Unmarshal(w.queue.Calls(TaskHighSpenderXLSX)[0].Args, &args))
	assert.Equal(t, float64(DefaultSpenderThreshold), args.Threshold)

	raw, _ := json.Marshal(HighSpenderArgs{Threshold: 1000})
	result, err := w.svc.handleHighSpenders(ctx, &tasks.Task{ID: id, Name: TaskHighSpenderXLSX, Args: raw})
	require.NoError(t, err)
	path := result.(string)
	assert.Equal(t, "high_spenders_"+id+".xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2, "only alice reaches the threshold")
	assert.Equal(t, []string{"Email", "Username", "Total Spent"}, rows[0])
	assert.Equal(t, []string{"a@example.com", "alice", "1300"}, rows[1])
}
