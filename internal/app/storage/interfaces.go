package storage

import (
	"context"
	"errors"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blocklist"
	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("record already exists")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
)

// UserStore persists users and their student/teacher profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user account.User) (account.User, error)
	UpdateUser(ctx context.Context, user account.User) (account.User, error)
	GetUser(ctx context.Context, id int64) (account.User, error)
	GetUserByUsername(ctx context.Context, username string) (account.User, error)
	GetUserByEmail(ctx context.Context, email string) (account.User, error)
	GetUserByPhone(ctx context.Context, phone string) (account.User, error)
	ListUsers(ctx context.Context) ([]account.User, error)
	DeleteUser(ctx context.Context, id int64) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error

	// RegisterStudent creates the user and profile atomically.
	RegisterStudent(ctx context.Context, user account.User, profile account.Student) (account.User, error)
	// RegisterTeacher creates the user and profile atomically.
	RegisterTeacher(ctx context.Context, user account.User, profile account.Teacher) (account.User, error)

	GetStudent(ctx context.Context, userID int64) (account.Student, error)
	ListStudents(ctx context.Context) ([]account.Student, error)
	UpdateStudent(ctx context.Context, profile account.Student) (account.Student, error)
	GetTeacher(ctx context.Context, userID int64) (account.Teacher, error)
	ListTeachers(ctx context.Context) ([]account.Teacher, error)
	UpdateTeacher(ctx context.Context, profile account.Teacher) (account.Teacher, error)

	CreateUniversity(ctx context.Context, uni account.University) (account.University, error)
	GetUniversity(ctx context.Context, id int64) (account.University, error)
	ListUniversities(ctx context.Context) ([]account.University, error)
	CreateEducationStudy(ctx context.Context, edu account.EducationStudy) (account.EducationStudy, error)
	GetEducationStudy(ctx context.Context, id int64) (account.EducationStudy, error)
	ListEducationStudies(ctx context.Context) ([]account.EducationStudy, error)
}

// CourseFilter narrows ListCourses. Zero values match everything.
type CourseFilter struct {
	TeacherID int64
	IDs       []int64
}

// EnrollmentFilter narrows ListEnrollments.
type EnrollmentFilter struct {
	UserID   int64
	CourseID int64
}

// CatalogStore persists courses, videos and enrolments.
type CatalogStore interface {
	CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error)
	UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error)
	GetCourse(ctx context.Context, id int64) (catalog.Course, error)
	ListCourses(ctx context.Context, filter CourseFilter) ([]catalog.Course, error)
	DeleteCourse(ctx context.Context, id int64) error

	CreateVideo(ctx context.Context, video catalog.Video) (catalog.Video, error)
	UpdateVideo(ctx context.Context, video catalog.Video) (catalog.Video, error)
	GetVideo(ctx context.Context, id int64) (catalog.Video, error)
	ListVideos(ctx context.Context, courseID int64) ([]catalog.Video, error)
	DeleteVideo(ctx context.Context, id int64) error

	CreateEnrollment(ctx context.Context, enrollment catalog.Enrollment) (catalog.Enrollment, error)
	GetEnrollment(ctx context.Context, id int64) (catalog.Enrollment, error)
	FindEnrollment(ctx context.Context, userID, courseID int64) (catalog.Enrollment, error)
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]catalog.Enrollment, error)
	DeleteEnrollment(ctx context.Context, id int64) error
}

// ArticleFilter narrows ListArticles.
type ArticleFilter struct {
	OwnerID       int64
	PublishedOnly bool
}

// CommentFilter narrows ListComments.
type CommentFilter struct {
	UserID     int64
	ArticleID  int64
	PublicOnly bool
}

// BlogStore persists articles and comments.
type BlogStore interface {
	CreateArticle(ctx context.Context, article blog.Article) (blog.Article, error)
	UpdateArticle(ctx context.Context, article blog.Article) (blog.Article, error)
	GetArticle(ctx context.Context, id int64) (blog.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]blog.Article, error)
	DeleteArticle(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, comment blog.Comment) (blog.Comment, error)
	UpdateComment(ctx context.Context, comment blog.Comment) (blog.Comment, error)
	GetComment(ctx context.Context, id int64) (blog.Comment, error)
	ListComments(ctx context.Context, filter CommentFilter) ([]blog.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	BuyerID int64
	Status  shop.OrderStatus
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	UserID      int64
	Status      shop.PaymentStatus
	ProductType shop.ProductType
}

// ShopStore persists books, carts, orders and payments.
type ShopStore interface {
	CreateBook(ctx context.Context, book shop.Book) (shop.Book, error)
	UpdateBook(ctx context.Context, book shop.Book) (shop.Book, error)
	GetBook(ctx context.Context, id int64) (shop.Book, error)
	ListBooks(ctx context.Context, inStockOnly bool) ([]shop.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	// GetOrCreateCart returns the user's cart with items priced at the
	// current book price.
	GetOrCreateCart(ctx context.Context, userID int64) (shop.Cart, error)
	// AddCartItem adds quantity to the existing line or creates one.
	AddCartItem(ctx context.Context, userID, bookID int64, quantity int) (shop.CartItem, error)
	// Checkout converts the cart into a pending order and empties the cart.
	Checkout(ctx context.Context, userID int64) (shop.Order, error)

	GetOrder(ctx context.Context, id int64) (shop.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]shop.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status shop.OrderStatus) (shop.Order, error)

	CreatePayment(ctx context.Context, payment shop.Payment) (shop.Payment, error)
	GetPaymentByAuthority(ctx context.Context, authority string) (shop.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]shop.Payment, error)
	// CompletePayment marks a pending payment successful and fulfils it in
	// one step: a course payment enrols the user, a book payment decrements
	// stock, drops the cart line and marks the newest pending order paid.
	// Completing an already successful payment returns it unchanged with
	// fulfilled=false.
	CompletePayment(ctx context.Context, authority string, at time.Time) (payment shop.Payment, fulfilled bool, err error)
}

// ShortLinkStore persists short links.
type ShortLinkStore interface {
	CreateShortLink(ctx context.Context, link shortlink.Link) (shortlink.Link, error)
	GetShortLink(ctx context.Context, id int64) (shortlink.Link, error)
	GetShortLinkByCode(ctx context.Context, code string) (shortlink.Link, error)
	FindShortLink(ctx context.Context, target shortlink.TargetType, targetID int64) (shortlink.Link, error)
	IncrementClicks(ctx context.Context, id int64) error
}

// RoomFilter narrows ListRooms.
type RoomFilter struct {
	UserID     int64
	ActiveOnly bool
}

// ChatStore persists support rooms and their messages.
type ChatStore interface {
	CreateRoom(ctx context.Context, room chat.Room) (chat.Room, error)
	GetRoom(ctx context.Context, id int64) (chat.Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]chat.Room, error)
	SetRoomActive(ctx context.Context, id int64, active bool) (chat.Room, error)
	DeleteInactiveRooms(ctx context.Context) (int, error)

	CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error)
	ListMessages(ctx context.Context, roomID int64) ([]chat.Message, error)
}

// AuditStore persists administrative change records.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	ListAudit(ctx context.Context, limit int) ([]audit.Entry, error)
}

// BlocklistStore persists denied IP addresses.
type BlocklistStore interface {
	AddBlockedIP(ctx context.Context, entry blocklist.Entry) (blocklist.Entry, error)
	ListBlockedIPs(ctx context.Context) ([]blocklist.Entry, error)
	DeleteBlockedIP(ctx context.Context, id int64) error
	IsBlocked(ctx context.Context, ip string) (bool, error)
}
