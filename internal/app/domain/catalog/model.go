// Package catalog holds courses, their videos and student enrolments.
package catalog

import "time"

// MaxVideoDescription bounds VideoCourse.Description.
const MaxVideoDescription = 360

// Course is a priced or free course owned by a teacher.
type Course struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description_course" db:"description"`
	IsFree        bool      `json:"is_free" db:"is_free"`
	Price         int64     `json:"price" db:"price"`
	TeacherID     int64     `json:"teacher" db:"teacher_id"`
	TeacherName   string    `json:"teacher_name,omitempty" db:"teacher_name"`
	CountStudents int       `json:"count_students" db:"count_students"`
	ShortCode     string    `json:"short_code,omitempty" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Video is a lesson attached to a course.
type Video struct {
	ID          int64     `json:"id" db:"id"`
	CourseID    int64     `json:"course" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description_video" db:"description"`
	VideoURL    string    `json:"video" db:"video_url"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	IsFree      bool      `json:"is_free" db:"is_free"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Enrollment records a user attending a course.
type Enrollment struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user" db:"user_id"`
	CourseID   int64     `json:"course" db:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}
