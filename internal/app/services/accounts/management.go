package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// StudentView joins a student profile with its user and lookups.
type StudentView struct {
	ID             int64                  `json:"id"`
	User           account.User           `json:"user"`
	PhoneNumber    string                 `json:"phone_number"`
	University     account.University     `json:"university"`
	EducationStudy account.EducationStudy `json:"education_study"`
}

// TeacherView joins a teacher profile with its user and universities.
type TeacherView struct {
	ID           int64                `json:"id"`
	User         account.User         `json:"user"`
	Universities []account.University `json:"university"`
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName      *string  `json:"first_name"`
	LastName       *string  `json:"last_name"`
	Email          *string  `json:"email"`
	PhoneNumber    *string  `json:"phone_number"`
	IsActive       *bool    `json:"is_active"`
	University     *int64   `json:"university"`
	EducationStudy *int64   `json:"education_study"`
	Universities   *[]int64 `json:"universities"`
}

// WithAudit attaches a recorder for management changes.
func (s *Service) WithAudit(rec audit.Recorder) *Service {
	s.audit = rec
	return s
}

func (s *Service) record(ctx context.Context, action domainaudit.Action, model string, id int64, repr string) {
	if s.audit != nil {
		s.audit.Record(ctx, action, model, id, repr)
	}
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (account.User, error) {
	return s.users.GetUser(ctx, id)
}

// ListStudents returns every student profile.
func (s *Service) ListStudents(ctx context.Context) ([]StudentView, error) {
	profiles, err := s.users.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]StudentView, 0, len(profiles))
	for _, p := range profiles {
		view, err := s.studentView(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetStudent returns one student by user id.
func (s *Service) GetStudent(ctx context.Context, id int64) (StudentView, error) {
	profile, err := s.users.GetStudent(ctx, id)
	if err != nil {
		return StudentView{}, err
	}
	return s.studentView(ctx, profile)
}

func (s *Service) studentView(ctx context.Context, p account.Student) (StudentView, error) {
	user, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return StudentView{}, fmt.Errorf("student %d user: %w", p.UserID, err)
	}
	view := StudentView{ID: p.UserID, User: user, PhoneNumber: user.PhoneNumber}
	if uni, err := s.users.GetUniversity(ctx, p.UniversityID); err == nil {
		view.University = uni
	}
	if edu, err := s.users.GetEducationStudy(ctx, p.EducationStudyID); err == nil {
		view.EducationStudy = edu
	}
	return view, nil
}

// UpdateStudent applies a partial update to the user and profile.
func (s *Service) UpdateStudent(ctx context.Context, id int64, upd ProfileUpdate) (StudentView, error) {
	profile, err := s.users.GetStudent(ctx, id)
	if err != nil {
		return StudentView{}, err
	}
	if _, err := s.applyUserUpdate(ctx, id, upd); err != nil {
		return StudentView{}, err
	}
	if upd.University != nil {
		profile.UniversityID = *upd.University
	}
	if upd.EducationStudy != nil {
		profile.EducationStudyID = *upd.EducationStudy
	}
	if upd.University != nil || upd.EducationStudy != nil {
		if _, err := s.users.UpdateStudent(ctx, profile); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return StudentView{}, apperrors.BadRequest("University or education study not found.")
			}
			return StudentView{}, err
		}
	}
	view, err := s.GetStudent(ctx, id)
	if err == nil {
		s.record(ctx, domainaudit.ActionChange, "student", id, view.User.Username)
	}
	return view, err
}

// DeleteStudent removes the profile together with its user.
func (s *Service) DeleteStudent(ctx context.Context, id int64) error {
	view, err := s.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.forgetPrincipal(ctx, id)
	s.record(ctx, domainaudit.ActionDelete, "student", id, view.User.Username)
	return nil
}

// ListTeachers returns teachers, optionally filtered by a case-insensitive
// prefix of their username or full name.
func (s *Service) ListTeachers(ctx context.Context, name string) ([]TeacherView, error) {
	profiles, err := s.users.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	views := make([]TeacherView, 0, len(profiles))
	for _, p := range profiles {
		view, err := s.teacherView(ctx, p)
		if err != nil {
			return nil, err
		}
		if name != "" &&
			!strings.HasPrefix(strings.ToLower(view.User.Username), name) &&
			!strings.HasPrefix(strings.ToLower(view.User.FullName()), name) {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// GetTeacher returns one teacher by user id.
func (s *Service) GetTeacher(ctx context.Context, id int64) (TeacherView, error) {
	profile, err := s.users.GetTeacher(ctx, id)
	if err != nil {
		return TeacherView{}, err
	}
	return s.teacherView(ctx, profile)
}

func (s *Service) teacherView(ctx context.Context, p account.Teacher) (TeacherView, error) {
	user, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return TeacherView{}, fmt.Errorf("teacher %d user: %w", p.UserID, err)
	}
	view := TeacherView{ID: p.UserID, User: user, Universities: []account.University{}}
	for _, uid := range p.UniversityIDs {
		if uni, err := s.users.GetUniversity(ctx, uid); err == nil {
			view.Universities = append(view.Universities, uni)
		}
	}
	return view, nil
}

// UpdateTeacher applies a partial update to the user and profile.
func (s *Service) UpdateTeacher(ctx context.Context, id int64, upd ProfileUpdate) (TeacherView, error) {
	profile, err := s.users.GetTeacher(ctx, id)
	if err != nil {
		return TeacherView{}, err
	}
	if _, err := s.applyUserUpdate(ctx, id, upd); err != nil {
		return TeacherView{}, err
	}
	if upd.Universities != nil {
		profile.UniversityIDs = *upd.Universities
		if _, err := s.users.UpdateTeacher(ctx, profile); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return TeacherView{}, apperrors.Validation("universities", "University not found.")
			}
			return TeacherView{}, err
		}
	}
	view, err := s.GetTeacher(ctx, id)
	if err == nil {
		s.record(ctx, domainaudit.ActionChange, "teacher", id, view.User.Username)
	}
	return view, err
}

// DeleteTeacher removes the profile together with its user and courses.
func (s *Service) DeleteTeacher(ctx context.Context, id int64) error {
	view, err := s.GetTeacher(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.forgetPrincipal(ctx, id)
	s.record(ctx, domainaudit.ActionDelete, "teacher", id, view.User.Username)
	return nil
}

func (s *Service) applyUserUpdate(ctx context.Context, id int64, upd ProfileUpdate) (account.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return account.User{}, err
	}
	changed := false
	if upd.FirstName != nil {
		user.FirstName, changed = strings.TrimSpace(*upd.FirstName), true
	}
	if upd.LastName != nil {
		user.LastName, changed = strings.TrimSpace(*upd.LastName), true
	}
	if upd.Email != nil {
		user.Email, changed = strings.TrimSpace(*upd.Email), true
	}
	if upd.PhoneNumber != nil {
		phone := strings.TrimSpace(*upd.PhoneNumber)
		if !account.PhonePattern.MatchString(phone) {
			return account.User{}, apperrors.Validation("phone_number", "Mobile number is not valid.")
		}
		user.PhoneNumber, changed = phone, true
	}
	if upd.IsActive != nil {
		user.IsActive, changed = *upd.IsActive, true
	}
	if !changed {
		return user, nil
	}
	updated, err := s.users.UpdateUser(ctx, user)
	if errors.Is(err, storage.ErrConflict) {
		return account.User{}, apperrors.BadRequest("Email or phone number is already registered.")
	}
	if err == nil {
		s.forgetPrincipal(ctx, id)
	}
	return updated, err
}

// ListUniversities returns every university.
func (s *Service) ListUniversities(ctx context.Context) ([]account.University, error) {
	return s.users.ListUniversities(ctx)
}

// CreateUniversity adds a university.
func (s *Service) CreateUniversity(ctx context.Context, uni account.University) (account.University, error) {
	uni.Name = strings.TrimSpace(uni.Name)
	uni.City = strings.TrimSpace(uni.City)
	if uni.Name == "" {
		return account.University{}, apperrors.Validation("name_uni", "This field is required.")
	}
	if uni.City == "" {
		return account.University{}, apperrors.Validation("city", "This field is required.")
	}
	created, err := s.users.CreateUniversity(ctx, uni)
	if err != nil {
		return account.University{}, err
	}
	s.record(ctx, domainaudit.ActionAdd, "university", created.ID, created.Name)
	return created, nil
}

// ListEducationStudies returns every field of study.
func (s *Service) ListEducationStudies(ctx context.Context) ([]account.EducationStudy, error) {
	return s.users.ListEducationStudies(ctx)
}

// CreateEducationStudy adds a field of study.
func (s *Service) CreateEducationStudy(ctx context.Context, edu account.EducationStudy) (account.EducationStudy, error) {
	edu.Name = strings.TrimSpace(edu.Name)
	if edu.Name == "" {
		return account.EducationStudy{}, apperrors.Validation("name_edu", "This field is required.")
	}
	created, err := s.users.CreateEducationStudy(ctx, edu)
	if err != nil {
		return account.EducationStudy{}, err
	}
	s.record(ctx, domainaudit.ActionAdd, "education_study", created.ID, created.Name)
	return created, nil
}
