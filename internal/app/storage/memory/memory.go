package memory

import (
	"sort"
	"sync"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blocklist"
	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[int64]account.User
	students     map[int64]account.Student
	teachers     map[int64]account.Teacher
	universities map[int64]account.University
	studies      map[int64]account.EducationStudy

	courses     map[int64]catalog.Course
	videos      map[int64]catalog.Video
	enrollments map[int64]catalog.Enrollment

	articles map[int64]blog.Article
	comments map[int64]blog.Comment

	books      map[int64]shop.Book
	carts      map[int64]shop.Cart // keyed by user id
	cartItems  map[int64]shop.CartItem
	orders     map[int64]shop.Order
	orderItems map[int64][]shop.OrderItem
	payments   map[int64]shop.Payment

	shortLinks map[int64]shortlink.Link
	rooms      map[int64]chat.Room
	messages   map[int64]chat.Message
	auditLog   []audit.Entry
	blocked    map[int64]blocklist.Entry
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.BlogStore = (*Store)(nil)
var _ storage.ShopStore = (*Store)(nil)
var _ storage.ShortLinkStore = (*Store)(nil)
var _ storage.ChatStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.BlocklistStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[int64]account.User),
		students:     make(map[int64]account.Student),
		teachers:     make(map[int64]account.Teacher),
		universities: make(map[int64]account.University),
		studies:      make(map[int64]account.EducationStudy),
		courses:      make(map[int64]catalog.Course),
		videos:       make(map[int64]catalog.Video),
		enrollments:  make(map[int64]catalog.Enrollment),
		articles:     make(map[int64]blog.Article),
		comments:     make(map[int64]blog.Comment),
		books:        make(map[int64]shop.Book),
		carts:        make(map[int64]shop.Cart),
		cartItems:    make(map[int64]shop.CartItem),
		orders:       make(map[int64]shop.Order),
		orderItems:   make(map[int64][]shop.OrderItem),
		payments:     make(map[int64]shop.Payment),
		shortLinks:   make(map[int64]shortlink.Link),
		rooms:        make(map[int64]chat.Room),
		messages:     make(map[int64]chat.Message),
		blocked:      make(map[int64]blocklist.Entry),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func sortByID[T any](items []T, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
