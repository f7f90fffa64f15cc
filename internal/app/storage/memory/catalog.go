package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// CatalogStore implementation -------------------------------------------------

func (s *Store) decorateCourseLocked(course catalog.Course) catalog.Course {
	if teacher, ok := s.users[course.TeacherID]; ok {
		course.TeacherName = teacher.Username
	}
	count := 0
	for _, e := range s.enrollments {
		if e.CourseID == course.ID {
			count++
		}
	}
	course.CountStudents = count
	return course
}

func (s *Store) courseNameTakenLocked(course catalog.Course) bool {
	for _, existing := range s.courses {
		if existing.ID != course.ID && existing.TeacherID == course.TeacherID && strings.EqualFold(existing.Name, course.Name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCourse(_ context.Context, course catalog.Course) (catalog.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[course.TeacherID]; !ok {
		return catalog.Course{}, fmt.Errorf("teacher %d: %w", course.TeacherID, storage.ErrNotFound)
	}
	course.ID = 0
	if s.courseNameTakenLocked(course) {
		return catalog.Course{}, fmt.Errorf("course %s: %w", course.Name, storage.ErrConflict)
	}
	course.ID = s.nextIDLocked()
	course.CreatedAt = time.Now().UTC()
	s.courses[course.ID] = course
	return s.decorateCourseLocked(course), nil
}

func (s *Store) UpdateCourse(_ context.Context, course catalog.Course) (catalog.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.courses[course.ID]
	if !ok {
		return catalog.Course{}, fmt.Errorf("course %d: %w", course.ID, storage.ErrNotFound)
	}
	if s.courseNameTakenLocked(course) {
		return catalog.Course{}, fmt.Errorf("course %s: %w", course.Name, storage.ErrConflict)
	}
	course.CreatedAt = original.CreatedAt
	s.courses[course.ID] = course
	return s.decorateCourseLocked(course), nil
}

func (s *Store) GetCourse(_ context.Context, id int64) (catalog.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	course, ok := s.courses[id]
	if !ok {
		return catalog.Course{}, fmt.Errorf("course %d: %w", id, storage.ErrNotFound)
	}
	return s.decorateCourseLocked(course), nil
}

func (s *Store) ListCourses(_ context.Context, filter storage.CourseFilter) ([]catalog.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids map[int64]bool
	if filter.IDs != nil {
		ids = make(map[int64]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	result := make([]catalog.Course, 0)
	for _, course := range s.courses {
		if filter.TeacherID != 0 && course.TeacherID != filter.TeacherID {
			continue
		}
		if ids != nil && !ids[course.ID] {
			continue
		}
		result = append(result, s.decorateCourseLocked(course))
	}
	sortByID(result, func(c catalog.Course) int64 { return c.ID })
	return result, nil
}

func (s *Store) DeleteCourse(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return fmt.Errorf("course %d: %w", id, storage.ErrNotFound)
	}
	s.deleteCourseLocked(id)
	return nil
}

func (s *Store) deleteCourseLocked(id int64) {
	delete(s.courses, id)
	for vid, v := range s.videos {
		if v.CourseID == id {
			delete(s.videos, vid)
		}
	}
	for eid, e := range s.enrollments {
		if e.CourseID == id {
			delete(s.enrollments, eid)
		}
	}
}

func (s *Store) CreateVideo(_ context.Context, video catalog.Video) (catalog.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[video.CourseID]; !ok {
		return catalog.Video{}, fmt.Errorf("course %d: %w", video.CourseID, storage.ErrNotFound)
	}
	video.ID = s.nextIDLocked()
	video.CreatedAt = time.Now().UTC()
	s.videos[video.ID] = video
	return video, nil
}

func (s *Store) UpdateVideo(_ context.Context, video catalog.Video) (catalog.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.videos[video.ID]
	if !ok {
		return catalog.Video{}, fmt.Errorf("video %d: %w", video.ID, storage.ErrNotFound)
	}
	if _, ok := s.courses[video.CourseID]; !ok {
		return catalog.Video{}, fmt.Errorf("course %d: %w", video.CourseID, storage.ErrNotFound)
	}
	video.CreatedAt = original.CreatedAt
	s.videos[video.ID] = video
	return video, nil
}

func (s *Store) GetVideo(_ context.Context, id int64) (catalog.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.videos[id]
	if !ok {
		return catalog.Video{}, fmt.Errorf("video %d: %w", id, storage.ErrNotFound)
	}
	return video, nil
}

func (s *Store) ListVideos(_ context.Context, courseID int64) ([]catalog.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Video, 0)
	for _, video := range s.videos {
		if courseID == 0 || video.CourseID == courseID {
			result = append(result, video)
		}
	}
	sortByID(result, func(v catalog.Video) int64 { return v.ID })
	return result, nil
}

func (s *Store) DeleteVideo(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[id]; !ok {
		return fmt.Errorf("video %d: %w", id, storage.ErrNotFound)
	}
	delete(s.videos, id)
	return nil
}

func (s *Store) createEnrollmentLocked(e catalog.Enrollment) (catalog.Enrollment, error) {
	if _, ok := s.users[e.UserID]; !ok {
		return catalog.Enrollment{}, fmt.Errorf("user %d: %w", e.UserID, storage.ErrNotFound)
	}
	if _, ok := s.courses[e.CourseID]; !ok {
		return catalog.Enrollment{}, fmt.Errorf("course %d: %w", e.CourseID, storage.ErrNotFound)
	}
	for _, existing := range s.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return existing, fmt.Errorf("enrollment: %w", storage.ErrConflict)
		}
	}
	e.ID = s.nextIDLocked()
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	s.enrollments[e.ID] = e
	return e, nil
}

func (s *Store) CreateEnrollment(_ context.Context, e catalog.Enrollment) (catalog.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.createEnrollmentLocked(e)
	if err != nil {
		return catalog.Enrollment{}, err
	}
	return created, nil
}

func (s *Store) GetEnrollment(_ context.Context, id int64) (catalog.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[id]
	if !ok {
		return catalog.Enrollment{}, fmt.Errorf("enrollment %d: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (s *Store) FindEnrollment(_ context.Context, userID, courseID int64) (catalog.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e, nil
		}
	}
	return catalog.Enrollment{}, fmt.Errorf("enrollment %d/%d: %w", userID, courseID, storage.ErrNotFound)
}

func (s *Store) ListEnrollments(_ context.Context, filter storage.EnrollmentFilter) ([]catalog.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Enrollment, 0)
	for _, e := range s.enrollments {
		if filter.UserID != 0 && e.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != 0 && e.CourseID != filter.CourseID {
			continue
		}
		result = append(result, e)
	}
	sortByID(result, func(e catalog.Enrollment) int64 { return e.ID })
	return result, nil
}

func (s *Store) DeleteEnrollment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[id]; !ok {
		return fmt.Errorf("enrollment %d: %w", id, storage.ErrNotFound)
	}
	delete(s.enrollments, id)
	return nil
}
