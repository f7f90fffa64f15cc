package account

import (
	"regexp"
	"time"
)

// Role distinguishes students from teachers. Administrators are users with
// IsStaff set and may carry either role or none.
type Role string

const (
	RoleStudent Role = "ST"
	RoleTeacher Role = "TR"
	RoleNone    Role = ""
)

// PhonePattern validates Iranian mobile numbers, with or without the leading 0.
var PhonePattern = regexp.MustCompile(`^(0)?9\d{9}$`)

// User is an authenticated principal.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	PhoneNumber  string     `json:"phone_number" db:"phone_number"`
	Role         Role       `json:"role" db:"role"`
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	DateJoined   time.Time  `json:"date_joined" db:"date_joined"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// University is a higher education institution.
type University struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name_uni" db:"name"`
	City string `json:"city" db:"city"`
}

// EducationStudy is a field of study.
type EducationStudy struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name_edu" db:"name"`
}

// Student links a user to a university and field of study.
type Student struct {
	UserID           int64 `json:"user" db:"user_id"`
	UniversityID     int64 `json:"university" db:"university_id"`
	EducationStudyID int64 `json:"education_study" db:"education_study_id"`
}

// Teacher links a user to the universities they teach at.
type Teacher struct {
	UserID        int64   `json:"user" db:"user_id"`
	UniversityIDs []int64 `json:"universities" db:"-"`
}
