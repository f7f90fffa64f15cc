// Package catalog manages courses, their videos and enrolments.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Linker gives new courses a short link.
type Linker interface {
	Ensure(ctx context.Context, target shortlink.TargetType, objectID int64) (shortlink.Link, error)
	CodeFor(ctx context.Context, target shortlink.TargetType, objectID int64) string
}

// Limits bound declared video sizes.
type Limits struct {
	VideoMaxMB int
}

// CourseInput creates or patches a course. Nil fields keep their value.
type CourseInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description_course"`
	IsFree      *bool   `json:"is_free"`
	Price       *int64  `json:"price"`
	// Teacher is honoured on create for staff callers only.
	Teacher *int64 `json:"teacher"`
}

// Service owns the course catalogue.
type Service struct {
	users    storage.UserStore
	store    storage.CatalogStore
	payments storage.ShopStore
	cache    cache.Cache
	links    Linker
	audit    audit.Recorder
	limits   Limits
	log      *logger.Logger
}

// New creates a catalog service. payments is consulted before enrolling in
// a paid course; links and rec may be nil.
func New(users storage.UserStore, store storage.CatalogStore, payments storage.ShopStore, c cache.Cache, links Linker, rec audit.Recorder, limits Limits, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if limits.VideoMaxMB <= 0 {
		limits.VideoMaxMB = 500
	}
	return &Service{
		users:    users,
		store:    store,
		payments: payments,
		cache:    c,
		links:    links,
		audit:    rec,
		limits:   limits,
		log:      log,
	}
}

func (s *Service) record(ctx context.Context, action domainaudit.Action, model string, id int64, repr string) {
	if s.audit != nil {
		s.audit.Record(ctx, action, model, id, repr)
	}
}

func (s *Service) withCode(ctx context.Context, course catalog.Course) catalog.Course {
	if s.links != nil {
		course.ShortCode = s.links.CodeFor(ctx, shortlink.TargetCourse, course.ID)
	}
	return course
}

// ListCourses returns the public course list.
func (s *Service) ListCourses(ctx context.Context) ([]catalog.Course, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCoursesAll, cache.DefaultTTL, func(ctx context.Context) ([]catalog.Course, error) {
		courses, err := s.store.ListCourses(ctx, storage.CourseFilter{})
		if err != nil {
			return nil, err
		}
		for i := range courses {
			courses[i] = s.withCode(ctx, courses[i])
		}
		return courses, nil
	})
}

// ListStudentCourses returns the courses userID is enrolled in.
func (s *Service) ListStudentCourses(ctx context.Context, userID int64) ([]catalog.Course, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCoursesStudent(userID), cache.DefaultTTL, func(ctx context.Context) ([]catalog.Course, error) {
		enrollments, err := s.store.ListEnrollments(ctx, storage.EnrollmentFilter{UserID: userID})
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(enrollments))
		for _, e := range enrollments {
			ids = append(ids, e.CourseID)
		}
		return s.store.ListCourses(ctx, storage.CourseFilter{IDs: ids})
	})
}

// ListCoursesFor returns every course for staff and the caller's own
// courses for teachers.
func (s *Service) ListCoursesFor(ctx context.Context, p auth.Principal) ([]catalog.Course, error) {
	filter := storage.CourseFilter{}
	if !p.IsAdmin() {
		filter.TeacherID = p.UserID
	}
	courses, err := s.store.ListCourses(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i] = s.withCode(ctx, courses[i])
	}
	return courses, nil
}

// GetCourse returns a course visible to p. Teachers only see their own.
func (s *Service) GetCourse(ctx context.Context, p auth.Principal, id int64) (catalog.Course, error) {
	course, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return catalog.Course{}, err
	}
	if !p.IsAdmin() && course.TeacherID != p.UserID {
		return catalog.Course{}, fmt.Errorf("course %d: %w", id, storage.ErrNotFound)
	}
	return s.withCode(ctx, course), nil
}

// CreateCourse adds a course owned by the caller, or by in.Teacher when the
// caller is staff.
func (s *Service) CreateCourse(ctx context.Context, p auth.Principal, in CourseInput) (catalog.Course, error) {
	course := catalog.Course{IsFree: true}
	if err := s.applyCourseInput(ctx, p, &course, in, true); err != nil {
		return catalog.Course{}, err
	}
	if course.TeacherID == 0 {
		course.TeacherID = p.UserID
	}
	if err := s.checkTeacher(ctx, course.TeacherID); err != nil {
		return catalog.Course{}, err
	}

	created, err := s.store.CreateCourse(ctx, course)
	if err != nil {
		return catalog.Course{}, s.courseError(err)
	}
	if s.links != nil {
		if _, err := s.links.Ensure(ctx, shortlink.TargetCourse, created.ID); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("course_id", created.ID).Warn("create course short link")
		}
	}
	cache.Invalidate(ctx, s.cache, cache.KeyCoursesAll)
	s.record(ctx, domainaudit.ActionAdd, "course", created.ID, created.Name)
	return s.withCode(ctx, created), nil
}

// UpdateCourse patches a course the caller may manage.
func (s *Service) UpdateCourse(ctx context.Context, p auth.Principal, id int64, in CourseInput) (catalog.Course, error) {
	course, err := s.GetCourse(ctx, p, id)
	if err != nil {
		return catalog.Course{}, err
	}
	if err := s.applyCourseInput(ctx, p, &course, in, false); err != nil {
		return catalog.Course{}, err
	}
	if err := s.checkTeacher(ctx, course.TeacherID); err != nil {
		return catalog.Course{}, err
	}
	updated, err := s.store.UpdateCourse(ctx, course)
	if err != nil {
		return catalog.Course{}, s.courseError(err)
	}
	s.invalidateCourse(ctx, id)
	s.record(ctx, domainaudit.ActionChange, "course", updated.ID, updated.Name)
	return s.withCode(ctx, updated), nil
}

// DeleteCourse removes a course with its videos and enrolments.
func (s *Service) DeleteCourse(ctx context.Context, p auth.Principal, id int64) error {
	course, err := s.GetCourse(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, id); err != nil {
		return err
	}
	s.invalidateCourse(ctx, id)
	s.record(ctx, domainaudit.ActionDelete, "course", id, course.Name)
	return nil
}

func (s *Service) invalidateCourse(ctx context.Context, courseID int64) {
	cache.Invalidate(ctx, s.cache,
		cache.KeyCoursesAll,
		"courses:student:*",
		cache.KeyVideosCourseAll(courseID),
	)
}

func (s *Service) applyCourseInput(ctx context.Context, p auth.Principal, course *catalog.Course, in CourseInput, create bool) error {
	if in.Name != nil {
		course.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		course.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsFree != nil {
		course.IsFree = *in.IsFree
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return apperrors.Validation("price", "Ensure this value is greater than or equal to 0.")
		}
		course.Price = *in.Price
	}
	if create && in.Teacher != nil && p.IsAdmin() {
		course.TeacherID = *in.Teacher
	}

	if create || in.Name != nil {
		if course.Name == "" {
			return apperrors.Validation("name", "This field is required.")
		}
	}
	if create && course.Description == "" {
		return apperrors.Validation("description_course", "This field is required.")
	}
	if course.IsFree && course.Price != 0 {
		return apperrors.BadRequest("This course is not free")
	}
	if !course.IsFree && course.Price == 0 {
		return apperrors.BadRequest("This course is free")
	}
	return nil
}

func (s *Service) checkTeacher(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil || user.Role != account.RoleTeacher {
		return apperrors.Validation("teacher", "Teacher not found.")
	}
	return nil
}

func (s *Service) courseError(err error) error {
	switch {
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Validation("name", "This course name has already been used for this instructor.")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Validation("teacher", "Teacher not found.")
	}
	return err
}
