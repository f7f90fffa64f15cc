// Package reports aggregates sales and user activity for administrators.
// Every report is cached under report:<name> with its own TTL.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Report cache names and lifetimes.
const (
	reportUserStats    = "user_stats"
	reportSales        = "sales_summary"
	reportProductSales = "product_sales_count"
	reportOrderStatus  = "order_status"
	reportSalesChart   = "sales_chart"
	reportTopTeachers  = "top_teachers"
	reportNewUsers     = "new_users_last_30_days"
	reportAvgPayment   = "avg_payment_time"
	reportDAU          = "dau"
)

var ttls = map[string]time.Duration{
	reportUserStats:    time.Minute,
	reportSales:        5 * time.Minute,
	reportProductSales: 5 * time.Minute,
	reportOrderStatus:  2 * time.Minute,
	reportSalesChart:   10 * time.Minute,
	reportTopTeachers:  10 * time.Minute,
	reportNewUsers:     5 * time.Minute,
	reportAvgPayment:   10 * time.Minute,
	reportDAU:          time.Minute,
}

type UserStats struct {
	TotalUsers    int `json:"total_users"`
	ActiveUsers   int `json:"active_users"`
	InactiveUsers int `json:"inactive_users"`
}

type Sales struct {
	CourseIncome int64 `json:"course_income"`
	BookIncome   int64 `json:"book_income"`
	TotalIncome  int64 `json:"total_income"`
}

type CourseSales struct {
	CourseID      int64  `json:"course__id"`
	CourseName    string `json:"course__name"`
	TotalStudents int    `json:"total_students"`
}

type BookSales struct {
	BookName string `json:"book__name"`
	Count    int    `json:"count"`
}

type ProductSales struct {
	CourseSales []CourseSales `json:"course_sales"`
	BookSales   []BookSales   `json:"book_sales"`
}

type StatusCount struct {
	Status shop.OrderStatus `json:"status"`
	Count  int              `json:"count"`
}

type DailyTotal struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
}

type MonthlyTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

type SalesChart struct {
	Daily   []DailyTotal   `json:"daily"`
	Monthly []MonthlyTotal `json:"monthly"`
}

type TeacherIncome struct {
	Username    string `json:"product__teacher__user__username"`
	TotalIncome int64  `json:"total_income"`
}

type NewUsers struct {
	Count int `json:"new_users_last_30_days"`
}

type PaymentTime struct {
	AverageSeconds float64 `json:"average_payment_time_seconds"`
}

type DailyActive struct {
	Count int `json:"daily_active_users"`
}

// Service computes reports and starts the long-running ones as tasks.
type Service struct {
	users     storage.UserStore
	catalog   storage.CatalogStore
	shop      storage.ShopStore
	cache     cache.Cache
	queue     tasks.Queue
	exportDir string
	log       *logger.Logger
	now       func() time.Time
}

// New creates a reports service. Spreadsheets are written to exportDir.
func New(users storage.UserStore, catalog storage.CatalogStore, shopStore storage.ShopStore, c cache.Cache, queue tasks.Queue, exportDir string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reports")
	}
	if exportDir == "" {
		exportDir = "exports"
	}
	return &Service{
		users:     users,
		catalog:   catalog,
		shop:      shopStore,
		cache:     c,
		queue:     queue,
		exportDir: exportDir,
		log:       log,
		now:       time.Now,
	}
}

func cached[T any](ctx context.Context, s *Service, name string, load func(context.Context) (T, error)) (T, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyReport(name), ttls[name], load)
}

func (s *Service) successfulPayments(ctx context.Context, productType shop.ProductType) ([]shop.Payment, error) {
	return s.shop.ListPayments(ctx, storage.PaymentFilter{Status: shop.PaymentSuccess, ProductType: productType})
}

// UserStats counts users by active flag.
func (s *Service) UserStats(ctx context.Context) (UserStats, error) {
	return cached(ctx, s, reportUserStats, func(ctx context.Context) (UserStats, error) {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			return UserStats{}, err
		}
		out := UserStats{TotalUsers: len(users)}
		for _, u := range users {
			if u.IsActive {
				out.ActiveUsers++
			}
		}
		out.InactiveUsers = out.TotalUsers - out.ActiveUsers
		return out, nil
	})
}

// Sales sums successful payments per product type.
func (s *Service) Sales(ctx context.Context) (Sales, error) {
	return cached(ctx, s, reportSales, func(ctx context.Context) (Sales, error) {
		payments, err := s.successfulPayments(ctx, "")
		if err != nil {
			return Sales{}, err
		}
		var out Sales
		for _, p := range payments {
			switch p.ProductType {
			case shop.ProductCourse:
				out.CourseIncome += p.Amount
			case shop.ProductBook:
				out.BookIncome += p.Amount
			}
			out.TotalIncome += p.Amount
		}
		return out, nil
	})
}

// ProductSales counts enrolments per course and sold lines per book on
// paid orders.
func (s *Service) ProductSales(ctx context.Context) (ProductSales, error) {
	return cached(ctx, s, reportProductSales, func(ctx context.Context) (ProductSales, error) {
		enrollments, err := s.catalog.ListEnrollments(ctx, storage.EnrollmentFilter{})
		if err != nil {
			return ProductSales{}, err
		}
		students := make(map[int64]int)
		for _, e := range enrollments {
			students[e.CourseID]++
		}
		out := ProductSales{CourseSales: []CourseSales{}, BookSales: []BookSales{}}
		for courseID, n := range students {
			course, err := s.catalog.GetCourse(ctx, courseID)
			if err != nil {
				continue
			}
			out.CourseSales = append(out.CourseSales, CourseSales{CourseID: courseID, CourseName: course.Name, TotalStudents: n})
		}
		sort.Slice(out.CourseSales, func(i, j int) bool { return out.CourseSales[i].CourseID < out.CourseSales[j].CourseID })

		orders, err := s.shop.ListOrders(ctx, storage.OrderFilter{Status: shop.OrderPaid})
		if err != nil {
			return ProductSales{}, err
		}
		lines := make(map[string]int)
		for _, o := range orders {
			for _, item := range o.Items {
				name := item.BookName
				if name == "" {
					if b, err := s.shop.GetBook(ctx, item.BookID); err == nil {
						name = b.Name
					}
				}
				lines[name]++
			}
		}
		for name, n := range lines {
			out.BookSales = append(out.BookSales, BookSales{BookName: name, Count: n})
		}
		sort.Slice(out.BookSales, func(i, j int) bool { return out.BookSales[i].BookName < out.BookSales[j].BookName })
		return out, nil
	})
}

// OrderStatus counts orders per status.
func (s *Service) OrderStatus(ctx context.Context) ([]StatusCount, error) {
	return cached(ctx, s, reportOrderStatus, func(ctx context.Context) ([]StatusCount, error) {
		orders, err := s.shop.ListOrders(ctx, storage.OrderFilter{})
		if err != nil {
			return nil, err
		}
		counts := make(map[shop.OrderStatus]int)
		for _, o := range orders {
			counts[o.Status]++
		}
		out := make([]StatusCount, 0, len(counts))
		for status, n := range counts {
			out = append(out, StatusCount{Status: status, Count: n})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
		return out, nil
	})
}

// SalesChart totals successful payments per UTC day and month.
func (s *Service) SalesChart(ctx context.Context) (SalesChart, error) {
	return cached(ctx, s, reportSalesChart, func(ctx context.Context) (SalesChart, error) {
		payments, err := s.successfulPayments(ctx, "")
		if err != nil {
			return SalesChart{}, err
		}
		daily := make(map[string]int64)
		monthly := make(map[string]int64)
		for _, p := range payments {
			at := p.CreatedAt.UTC()
			daily[at.Format("2006-01-02")] += p.Amount
			monthly[at.Format("2006-01")+"-01"] += p.Amount
		}
		out := SalesChart{Daily: make([]DailyTotal, 0, len(daily)), Monthly: make([]MonthlyTotal, 0, len(monthly))}
		for day, total := range daily {
			out.Daily = append(out.Daily, DailyTotal{Day: day, Total: total})
		}
		for month, total := range monthly {
			out.Monthly = append(out.Monthly, MonthlyTotal{Month: month, Total: total})
		}
		sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Day < out.Daily[j].Day })
		sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month < out.Monthly[j].Month })
		return out, nil
	})
}

// TopTeachers ranks the ten teachers with the highest course income.
func (s *Service) TopTeachers(ctx context.Context) ([]TeacherIncome, error) {
	return cached(ctx, s, reportTopTeachers, func(ctx context.Context) ([]TeacherIncome, error) {
		payments, err := s.successfulPayments(ctx, shop.ProductCourse)
		if err != nil {
			return nil, err
		}
		income := make(map[int64]int64)
		for _, p := range payments {
			course, err := s.catalog.GetCourse(ctx, p.ProductID)
			if err != nil {
				continue
			}
			income[course.TeacherID] += p.Amount
		}
		out := make([]TeacherIncome, 0, len(income))
		for teacherID, total := range income {
			name := ""
			if u, err := s.users.GetUser(ctx, teacherID); err == nil {
				name = u.Username
			}
			out = append(out, TeacherIncome{Username: name, TotalIncome: total})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].TotalIncome == out[j].TotalIncome {
				return out[i].Username < out[j].Username
			}
			return out[i].TotalIncome > out[j].TotalIncome
		})
		if len(out) > 10 {
			out = out[:10]
		}
		return out, nil
	})
}

// NewUsers counts users who joined in the last 30 days.
func (s *Service) NewUsers(ctx context.Context) (NewUsers, error) {
	return cached(ctx, s, reportNewUsers, func(ctx context.Context) (NewUsers, error) {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			return NewUsers{}, err
		}
		since := s.now().Add(-30 * 24 * time.Hour)
		var out NewUsers
		for _, u := range users {
			if !u.DateJoined.Before(since) {
				out.Count++
			}
		}
		return out, nil
	})
}

// AveragePaymentTime averages the delay between adding a book to the cart
// and requesting its payment. Payments without a cart line are skipped.
func (s *Service) AveragePaymentTime(ctx context.Context) (PaymentTime, error) {
	return cached(ctx, s, reportAvgPayment, func(ctx context.Context) (PaymentTime, error) {
		payments, err := s.successfulPayments(ctx, shop.ProductBook)
		if err != nil {
			return PaymentTime{}, err
		}
		var sum float64
		var n int
		for _, p := range payments {
			if p.CartAddedAt == nil {
				continue
			}
			sum += p.CreatedAt.Sub(*p.CartAddedAt).Seconds()
			n++
		}
		if n == 0 {
			return PaymentTime{}, nil
		}
		return PaymentTime{AverageSeconds: sum / float64(n)}, nil
	})
}

// DailyActiveUsers counts users who logged in today (UTC).
func (s *Service) DailyActiveUsers(ctx context.Context) (DailyActive, error) {
	return cached(ctx, s, reportDAU, func(ctx context.Context) (DailyActive, error) {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			return DailyActive{}, err
		}
		today := s.now().UTC().Format("2006-01-02")
		var out DailyActive
		for _, u := range users {
			if u.LastLogin != nil && u.LastLogin.UTC().Format("2006-01-02") == today {
				out.Count++
			}
		}
		return out, nil
	})
}
