package catalog

import (
	"context"
	"errors"
	"fmt"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// ListUserEnrollments returns userID's enrolments.
func (s *Service) ListUserEnrollments(ctx context.Context, userID int64) ([]catalog.Enrollment, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyEnrollmentsUser(userID), cache.DefaultTTL, func(ctx context.Context) ([]catalog.Enrollment, error) {
		return s.store.ListEnrollments(ctx, storage.EnrollmentFilter{UserID: userID})
	})
}

// ListEnrollments returns every enrolment.
func (s *Service) ListEnrollments(ctx context.Context) ([]catalog.Enrollment, error) {
	return s.store.ListEnrollments(ctx, storage.EnrollmentFilter{})
}

// GetEnrollment returns an enrolment the caller owns, or any for staff.
func (s *Service) GetEnrollment(ctx context.Context, p auth.Principal, id int64) (catalog.Enrollment, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil {
		return catalog.Enrollment{}, err
	}
	if !p.IsAdmin() && e.UserID != p.UserID {
		return catalog.Enrollment{}, fmt.Errorf("enrollment %d: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

// Enroll registers the caller in a course. Paid courses need a successful
// payment first; payment verification normally enrols on its own.
func (s *Service) Enroll(ctx context.Context, p auth.Principal, courseID int64) (catalog.Enrollment, error) {
	course, err := s.enrollableCourse(ctx, p.UserID, courseID)
	if err != nil {
		return catalog.Enrollment{}, err
	}
	if course.TeacherID == p.UserID {
		return catalog.Enrollment{}, apperrors.BadRequest("You are the instructor of this course and cannot register yourself.")
	}
	if !course.IsFree {
		paid, err := s.hasPaid(ctx, p.UserID, courseID)
		if err != nil {
			return catalog.Enrollment{}, err
		}
		if !paid {
			return catalog.Enrollment{}, apperrors.BadRequest("This course is not free. Complete the payment to enroll.")
		}
	}
	return s.createEnrollment(ctx, p.UserID, courseID)
}

// AdminEnroll registers any user in any course, bypassing payment.
func (s *Service) AdminEnroll(ctx context.Context, userID, courseID int64) (catalog.Enrollment, error) {
	course, err := s.enrollableCourse(ctx, userID, courseID)
	if err != nil {
		return catalog.Enrollment{}, err
	}
	if course.TeacherID == userID {
		return catalog.Enrollment{}, apperrors.BadRequest("The teacher cannot register his own course.")
	}
	return s.createEnrollment(ctx, userID, courseID)
}

func (s *Service) enrollableCourse(ctx context.Context, userID, courseID int64) (catalog.Course, error) {
	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return catalog.Course{}, apperrors.Validation("user", "User not found.")
			}
			return catalog.Course{}, err
		}
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Course{}, apperrors.Validation("course", "Course not found.")
		}
		return catalog.Course{}, err
	}
	return course, nil
}

func (s *Service) hasPaid(ctx context.Context, userID, courseID int64) (bool, error) {
	if s.payments == nil {
		return false, nil
	}
	payments, err := s.payments.ListPayments(ctx, storage.PaymentFilter{
		UserID:      userID,
		Status:      shop.PaymentSuccess,
		ProductType: shop.ProductCourse,
	})
	if err != nil {
		return false, err
	}
	for _, p := range payments {
		if p.ProductID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) createEnrollment(ctx context.Context, userID, courseID int64) (catalog.Enrollment, error) {
	created, err := s.store.CreateEnrollment(ctx, catalog.Enrollment{UserID: userID, CourseID: courseID})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return catalog.Enrollment{}, apperrors.BadRequest("You are already enrolled in this course.")
		}
		return catalog.Enrollment{}, err
	}
	s.InvalidateEnrollment(ctx, userID, courseID)
	s.record(ctx, domainaudit.ActionAdd, "enrollment", created.ID, fmt.Sprintf("user %d - course %d", userID, courseID))
	return created, nil
}

// DeleteEnrollment removes an enrolment the caller owns, or any for staff.
func (s *Service) DeleteEnrollment(ctx context.Context, p auth.Principal, id int64) error {
	e, err := s.GetEnrollment(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEnrollment(ctx, id); err != nil {
		return err
	}
	s.InvalidateEnrollment(ctx, e.UserID, e.CourseID)
	s.record(ctx, domainaudit.ActionDelete, "enrollment", id, fmt.Sprintf("user %d - course %d", e.UserID, e.CourseID))
	return nil
}

// InvalidateEnrollment drops every cached list that depends on userID
// attending courseID. Payment verification calls it after enrolling.
func (s *Service) InvalidateEnrollment(ctx context.Context, userID, courseID int64) {
	cache.Invalidate(ctx, s.cache,
		cache.KeyEnrollmentsUser(userID),
		cache.KeyCoursesStudent(userID),
		cache.KeyVideosCourseUser(courseID, userID),
		cache.KeyCoursesAll,
	)
}
