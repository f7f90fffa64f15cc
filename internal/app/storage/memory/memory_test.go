package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
)

func seedUser(t *testing.T, s *Store, username string) account.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), account.User{Username: username, Email: username + "@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func TestUserUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "alice")

	_, err := s.CreateUser(ctx, account.User{Username: "ALICE", Email: "other@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict on username, got %v", err)
	}
	_, err = s.CreateUser(ctx, account.User{Username: "bob", Email: "alice@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict on email, got %v", err)
	}
}

func TestRegisterStudentRequiresUniversity(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.RegisterStudent(ctx, account.User{Username: "st"}, account.Student{UniversityID: 99, EducationStudyID: 1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if users, _ := s.ListUsers(ctx); len(users) != 0 {
		t.Fatalf("user must not be created when the profile fails")
	}

	uni, _ := s.CreateUniversity(ctx, account.University{Name: "Tehran", City: "Tehran"})
	edu, _ := s.CreateEducationStudy(ctx, account.EducationStudy{Name: "CS"})
	user, err := s.RegisterStudent(ctx, account.User{Username: "st"}, account.Student{UniversityID: uni.ID, EducationStudyID: edu.ID})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	profile, err := s.GetStudent(ctx, user.ID)
	if err != nil || profile.UniversityID != uni.ID {
		t.Fatalf("unexpected profile %+v err=%v", profile, err)
	}
}

func TestCheckoutSnapshotsPricesAndEmptiesCart(t *testing.T) {
	s := New()
	ctx := context.Background()
	buyer := seedUser(t, s, "buyer")
	book, _ := s.CreateBook(ctx, shop.Book{Name: "Go", Price: 100, Stock: 3})

	if _, err := s.Checkout(ctx, buyer.ID); !errors.Is(err, storage.ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}

	if _, err := s.AddCartItem(ctx, buyer.ID, book.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	item, err := s.AddCartItem(ctx, buyer.ID, book.ID, 2)
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}
	if item.Quantity != 3 {
		t.Fatalf("expected quantity to accumulate, got %d", item.Quantity)
	}

	order, err := s.Checkout(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.TotalPrice != 300 || len(order.Items) != 1 || order.Items[0].Price != 100 {
		t.Fatalf("unexpected order %+v", order)
	}

	book.Price = 150
	if _, err := s.UpdateBook(ctx, book); err != nil {
		t.Fatalf("update book: %v", err)
	}
	stored, _ := s.GetOrder(ctx, order.ID)
	if stored.Items[0].Price != 100 {
		t.Fatalf("order item price must not follow book price")
	}

	cart, _ := s.GetOrCreateCart(ctx, buyer.ID)
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart after checkout")
	}
}

func TestCompletePaymentForBook(t *testing.T) {
	s := New()
	ctx := context.Background()
	buyer := seedUser(t, s, "buyer")
	book, _ := s.CreateBook(ctx, shop.Book{Name: "Go", Price: 100, Stock: 1})
	s.AddCartItem(ctx, buyer.ID, book.ID, 1)
	order, _ := s.Checkout(ctx, buyer.ID)
	s.AddCartItem(ctx, buyer.ID, book.ID, 1)

	if _, err := s.CreatePayment(ctx, shop.Payment{UserID: buyer.ID, Amount: 100, ProductType: shop.ProductBook, ProductID: book.ID, Authority: "abc", Status: shop.PaymentPending}); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	p, fulfilled, err := s.CompletePayment(ctx, "abc", time.Now())
	if err != nil || !fulfilled || p.Status != shop.PaymentSuccess {
		t.Fatalf("complete: %+v fulfilled=%v err=%v", p, fulfilled, err)
	}

	got, _ := s.GetBook(ctx, book.ID)
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}
	updated, _ := s.GetOrder(ctx, order.ID)
	if updated.Status != shop.OrderPaid {
		t.Fatalf("expected order paid, got %s", updated.Status)
	}
	cart, _ := s.GetOrCreateCart(ctx, buyer.ID)
	if len(cart.Items) != 0 {
		t.Fatalf("expected cart line removed")
	}

	_, fulfilled, err = s.CompletePayment(ctx, "abc", time.Now())
	if err != nil || fulfilled {
		t.Fatalf("second completion should be a no-op, fulfilled=%v err=%v", fulfilled, err)
	}
	got, _ = s.GetBook(ctx, book.ID)
	if got.Stock != 0 {
		t.Fatalf("stock must never go negative, got %d", got.Stock)
	}
}

func TestCompletePaymentForCourseEnrolsOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	teacher := seedUser(t, s, "teacher")
	student := seedUser(t, s, "student")
	course, _ := s.CreateCourse(ctx, catalog.Course{Name: "Go", Price: 50, TeacherID: teacher.ID})
	s.CreateEnrollment(ctx, catalog.Enrollment{UserID: student.ID, CourseID: course.ID})
	s.CreatePayment(ctx, shop.Payment{UserID: student.ID, ProductType: shop.ProductCourse, ProductID: course.ID, Authority: "x", Status: shop.PaymentPending})

	if _, _, err := s.CompletePayment(ctx, "x", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	enrollments, _ := s.ListEnrollments(ctx, storage.EnrollmentFilter{UserID: student.ID})
	if len(enrollments) != 1 {
		t.Fatalf("expected single enrollment, got %d", len(enrollments))
	}
	got, _ := s.GetCourse(ctx, course.ID)
	if got.CountStudents != 1 || got.TeacherName != "teacher" {
		t.Fatalf("unexpected course decoration %+v", got)
	}
}

func TestDeleteInactiveRooms(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedUser(t, s, "a")
	b := seedUser(t, s, "b")
	active, _ := s.CreateRoom(ctx, chat.Room{UserID: a.ID, IsActive: true})
	closed, _ := s.CreateRoom(ctx, chat.Room{UserID: b.ID, IsActive: false})
	s.CreateMessage(ctx, chat.Message{RoomID: closed.ID, SenderID: b.ID, Content: "bye"})

	if _, err := s.CreateRoom(ctx, chat.Room{UserID: a.ID}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected one room per user, got %v", err)
	}

	n, err := s.DeleteInactiveRooms(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted, got %d err=%v", n, err)
	}
	if _, err := s.GetRoom(ctx, active.ID); err != nil {
		t.Fatalf("active room should survive: %v", err)
	}
	msgs, _ := s.ListMessages(ctx, closed.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages of deleted room should be gone")
	}
}
