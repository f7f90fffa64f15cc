package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/storage"
)

const courseSelect = `
	SELECT c.id, c.name, c.description, c.is_free, c.price, c.teacher_id, c.created_at,
		COALESCE(u.username, '') AS teacher_name,
		(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS count_students
	FROM courses c
	LEFT JOIN users u ON u.id = c.teacher_id`

const videoColumns = `id, course_id, title, description, video_url, size_bytes, is_free, created_at`

const enrollmentColumns = `id, user_id, course_id, enrolled_at`

// --- CatalogStore ------------------------------------------------------------

func (s *Store) CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO courses (name, description, is_free, price, teacher_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, course.Name, course.Description, course.IsFree, course.Price, course.TeacherID, time.Now().UTC()).Scan(&id)
	if err != nil {
		return catalog.Course{}, mapError(err, "course "+course.Name)
	}
	return s.GetCourse(ctx, id)
}

func (s *Store) UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE courses SET name = $2, description = $3, is_free = $4, price = $5, teacher_id = $6
		WHERE id = $1
	`, course.ID, course.Name, course.Description, course.IsFree, course.Price, course.TeacherID)
	if err != nil {
		return catalog.Course{}, mapError(err, "course "+course.Name)
	}
	if err := expectRows(result, fmt.Sprintf("course %d", course.ID)); err != nil {
		return catalog.Course{}, err
	}
	return s.GetCourse(ctx, course.ID)
}

func (s *Store) GetCourse(ctx context.Context, id int64) (catalog.Course, error) {
	var course catalog.Course
	if err := s.db.GetContext(ctx, &course, courseSelect+` WHERE c.id = $1`, id); err != nil {
		return catalog.Course{}, mapError(err, fmt.Sprintf("course %d", id))
	}
	return course, nil
}

func (s *Store) ListCourses(ctx context.Context, filter storage.CourseFilter) ([]catalog.Course, error) {
	var w where
	if filter.TeacherID != 0 {
		w.add("c.teacher_id = $%d", filter.TeacherID)
	}
	if filter.IDs != nil {
		w.add("c.id = ANY($%d)", pqInt64Array(filter.IDs))
	}
	courses := []catalog.Course{}
	err := s.db.SelectContext(ctx, &courses, courseSelect+w.String()+` ORDER BY c.id`, w.args...)
	return courses, err
}

func (s *Store) DeleteCourse(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("course %d", id))
}

func (s *Store) CreateVideo(ctx context.Context, video catalog.Video) (catalog.Video, error) {
	video.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO course_videos (course_id, title, description, video_url, size_bytes, is_free, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, video.CourseID, video.Title, video.Description, video.VideoURL, video.SizeBytes, video.IsFree, video.CreatedAt).Scan(&video.ID)
	if err != nil {
		return catalog.Video{}, mapError(err, fmt.Sprintf("course %d", video.CourseID))
	}
	return video, nil
}

func (s *Store) UpdateVideo(ctx context.Context, video catalog.Video) (catalog.Video, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE course_videos
		SET course_id = $2, title = $3, description = $4, video_url = $5, size_bytes = $6, is_free = $7
		WHERE id = $1
	`, video.ID, video.CourseID, video.Title, video.Description, video.VideoURL, video.SizeBytes, video.IsFree)
	if err != nil {
		return catalog.Video{}, mapError(err, fmt.Sprintf("course %d", video.CourseID))
	}
	if err := expectRows(result, fmt.Sprintf("video %d", video.ID)); err != nil {
		return catalog.Video{}, err
	}
	return s.GetVideo(ctx, video.ID)
}

func (s *Store) GetVideo(ctx context.Context, id int64) (catalog.Video, error) {
	var video catalog.Video
	if err := s.db.GetContext(ctx, &video, `SELECT `+videoColumns+` FROM course_videos WHERE id = $1`, id); err != nil {
		return catalog.Video{}, mapError(err, fmt.Sprintf("video %d", id))
	}
	return video, nil
}

func (s *Store) ListVideos(ctx context.Context, courseID int64) ([]catalog.Video, error) {
	var w where
	if courseID != 0 {
		w.add("course_id = $%d", courseID)
	}
	videos := []catalog.Video{}
	err := s.db.SelectContext(ctx, &videos, `SELECT `+videoColumns+` FROM course_videos`+w.String()+` ORDER BY id`, w.args...)
	return videos, err
}

func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM course_videos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("video %d", id))
}

func (s *Store) CreateEnrollment(ctx context.Context, e catalog.Enrollment) (catalog.Enrollment, error) {
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3) RETURNING id
	`, e.UserID, e.CourseID, e.EnrolledAt).Scan(&e.ID)
	if err != nil {
		return catalog.Enrollment{}, mapError(err, "enrollment")
	}
	return e, nil
}

func (s *Store) GetEnrollment(ctx context.Context, id int64) (catalog.Enrollment, error) {
	var e catalog.Enrollment
	if err := s.db.GetContext(ctx, &e, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id); err != nil {
		return catalog.Enrollment{}, mapError(err, fmt.Sprintf("enrollment %d", id))
	}
	return e, nil
}

func (s *Store) FindEnrollment(ctx context.Context, userID, courseID int64) (catalog.Enrollment, error) {
	var e catalog.Enrollment
	err := s.db.GetContext(ctx, &e, `
		SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2
	`, userID, courseID)
	if err != nil {
		return catalog.Enrollment{}, mapError(err, fmt.Sprintf("enrollment %d/%d", userID, courseID))
	}
	return e, nil
}

func (s *Store) ListEnrollments(ctx context.Context, filter storage.EnrollmentFilter) ([]catalog.Enrollment, error) {
	var w where
	if filter.UserID != 0 {
		w.add("user_id = $%d", filter.UserID)
	}
	if filter.CourseID != 0 {
		w.add("course_id = $%d", filter.CourseID)
	}
	enrollments := []catalog.Enrollment{}
	err := s.db.SelectContext(ctx, &enrollments, `SELECT `+enrollmentColumns+` FROM enrollments`+w.String()+` ORDER BY id`, w.args...)
	return enrollments, err
}

func (s *Store) DeleteEnrollment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("enrollment %d", id))
}
