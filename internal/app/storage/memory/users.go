package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// UserStore implementation ----------------------------------------------------

func (s *Store) uniqueUserLocked(user account.User) error {
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return fmt.Errorf("username %s: %w", user.Username, storage.ErrConflict)
		}
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("email %s: %w", user.Email, storage.ErrConflict)
		}
		if user.PhoneNumber != "" && existing.PhoneNumber == user.PhoneNumber {
			return fmt.Errorf("phone %s: %w", user.PhoneNumber, storage.ErrConflict)
		}
	}
	return nil
}

func (s *Store) createUserLocked(user account.User) (account.User, error) {
	user.ID = 0
	if err := s.uniqueUserLocked(user); err != nil {
		return account.User{}, err
	}
	user.ID = s.nextIDLocked()
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) CreateUser(_ context.Context, user account.User) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(user)
}

func (s *Store) UpdateUser(_ context.Context, user account.User) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[user.ID]
	if !ok {
		return account.User{}, fmt.Errorf("user %d: %w", user.ID, storage.ErrNotFound)
	}
	if err := s.uniqueUserLocked(user); err != nil {
		return account.User{}, err
	}
	user.DateJoined = original.DateJoined
	if user.PasswordHash == "" {
		user.PasswordHash = original.PasswordHash
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return account.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return user, nil
}

func (s *Store) findUser(match func(account.User) bool, what string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return account.User{}, fmt.Errorf("user %s: %w", what, storage.ErrNotFound)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (account.User, error) {
	return s.findUser(func(u account.User) bool { return strings.EqualFold(u.Username, username) }, username)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (account.User, error) {
	return s.findUser(func(u account.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (account.User, error) {
	return s.findUser(func(u account.User) bool { return u.PhoneNumber == phone }, phone)
}

func (s *Store) ListUsers(_ context.Context) ([]account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.User, 0, len(s.users))
	for _, user := range s.users {
		result = append(result, user)
	}
	sortByID(result, func(u account.User) int64 { return u.ID })
	return result, nil
}

// DeleteUser removes the user and everything owned by them.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	s.deleteUserLocked(id)
	return nil
}

func (s *Store) deleteUserLocked(id int64) {
	delete(s.users, id)
	delete(s.students, id)
	delete(s.teachers, id)
	for cid, course := range s.courses {
		if course.TeacherID == id {
			s.deleteCourseLocked(cid)
		}
	}
	for eid, e := range s.enrollments {
		if e.UserID == id {
			delete(s.enrollments, eid)
		}
	}
	for aid, a := range s.articles {
		if a.OwnerID == id {
			s.deleteArticleLocked(aid)
		}
	}
	for cid, c := range s.comments {
		if c.UserID == id {
			delete(s.comments, cid)
		}
	}
	if cart, ok := s.carts[id]; ok {
		for iid, item := range s.cartItems {
			if item.CartID == cart.ID {
				delete(s.cartItems, iid)
			}
		}
		delete(s.carts, id)
	}
	for oid, o := range s.orders {
		if o.BuyerID == id {
			delete(s.orders, oid)
			delete(s.orderItems, oid)
		}
	}
	for pid, p := range s.payments {
		if p.UserID == id {
			delete(s.payments, pid)
		}
	}
	for rid, room := range s.rooms {
		if room.UserID == id {
			s.deleteRoomLocked(rid)
		}
	}
}

func (s *Store) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	at = at.UTC()
	user.LastLogin = &at
	s.users[id] = user
	return nil
}

func (s *Store) RegisterStudent(_ context.Context, user account.User, profile account.Student) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.universities[profile.UniversityID]; !ok {
		return account.User{}, fmt.Errorf("university %d: %w", profile.UniversityID, storage.ErrNotFound)
	}
	if _, ok := s.studies[profile.EducationStudyID]; !ok {
		return account.User{}, fmt.Errorf("education study %d: %w", profile.EducationStudyID, storage.ErrNotFound)
	}
	created, err := s.createUserLocked(user)
	if err != nil {
		return account.User{}, err
	}
	profile.UserID = created.ID
	s.students[created.ID] = profile
	return created, nil
}

func (s *Store) RegisterTeacher(_ context.Context, user account.User, profile account.Teacher) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uid := range profile.UniversityIDs {
		if _, ok := s.universities[uid]; !ok {
			return account.User{}, fmt.Errorf("university %d: %w", uid, storage.ErrNotFound)
		}
	}
	created, err := s.createUserLocked(user)
	if err != nil {
		return account.User{}, err
	}
	profile.UserID = created.ID
	profile.UniversityIDs = append([]int64(nil), profile.UniversityIDs...)
	s.teachers[created.ID] = profile
	return created, nil
}

func (s *Store) GetStudent(_ context.Context, userID int64) (account.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.students[userID]
	if !ok {
		return account.Student{}, fmt.Errorf("student %d: %w", userID, storage.ErrNotFound)
	}
	return profile, nil
}

func (s *Store) ListStudents(_ context.Context) ([]account.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Student, 0, len(s.students))
	for _, profile := range s.students {
		result = append(result, profile)
	}
	sortByID(result, func(p account.Student) int64 { return p.UserID })
	return result, nil
}

func (s *Store) UpdateStudent(_ context.Context, profile account.Student) (account.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[profile.UserID]; !ok {
		return account.Student{}, fmt.Errorf("student %d: %w", profile.UserID, storage.ErrNotFound)
	}
	if _, ok := s.universities[profile.UniversityID]; !ok {
		return account.Student{}, fmt.Errorf("university %d: %w", profile.UniversityID, storage.ErrNotFound)
	}
	if _, ok := s.studies[profile.EducationStudyID]; !ok {
		return account.Student{}, fmt.Errorf("education study %d: %w", profile.EducationStudyID, storage.ErrNotFound)
	}
	s.students[profile.UserID] = profile
	return profile, nil
}

func (s *Store) GetTeacher(_ context.Context, userID int64) (account.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.teachers[userID]
	if !ok {
		return account.Teacher{}, fmt.Errorf("teacher %d: %w", userID, storage.ErrNotFound)
	}
	profile.UniversityIDs = append([]int64(nil), profile.UniversityIDs...)
	return profile, nil
}

func (s *Store) ListTeachers(_ context.Context) ([]account.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Teacher, 0, len(s.teachers))
	for _, profile := range s.teachers {
		profile.UniversityIDs = append([]int64(nil), profile.UniversityIDs...)
		result = append(result, profile)
	}
	sortByID(result, func(p account.Teacher) int64 { return p.UserID })
	return result, nil
}

func (s *Store) UpdateTeacher(_ context.Context, profile account.Teacher) (account.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teachers[profile.UserID]; !ok {
		return account.Teacher{}, fmt.Errorf("teacher %d: %w", profile.UserID, storage.ErrNotFound)
	}
	for _, uid := range profile.UniversityIDs {
		if _, ok := s.universities[uid]; !ok {
			return account.Teacher{}, fmt.Errorf("university %d: %w", uid, storage.ErrNotFound)
		}
	}
	profile.UniversityIDs = append([]int64(nil), profile.UniversityIDs...)
	s.teachers[profile.UserID] = profile
	return profile, nil
}

func (s *Store) CreateUniversity(_ context.Context, uni account.University) (account.University, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.universities {
		if strings.EqualFold(existing.Name, uni.Name) && strings.EqualFold(existing.City, uni.City) {
			return account.University{}, fmt.Errorf("university %s: %w", uni.Name, storage.ErrConflict)
		}
	}
	uni.ID = s.nextIDLocked()
	s.universities[uni.ID] = uni
	return uni, nil
}

func (s *Store) GetUniversity(_ context.Context, id int64) (account.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uni, ok := s.universities[id]
	if !ok {
		return account.University{}, fmt.Errorf("university %d: %w", id, storage.ErrNotFound)
	}
	return uni, nil
}

func (s *Store) ListUniversities(_ context.Context) ([]account.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.University, 0, len(s.universities))
	for _, uni := range s.universities {
		result = append(result, uni)
	}
	sortByID(result, func(u account.University) int64 { return u.ID })
	return result, nil
}

func (s *Store) CreateEducationStudy(_ context.Context, edu account.EducationStudy) (account.EducationStudy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.studies {
		if strings.EqualFold(existing.Name, edu.Name) {
			return account.EducationStudy{}, fmt.Errorf("education study %s: %w", edu.Name, storage.ErrConflict)
		}
	}
	edu.ID = s.nextIDLocked()
	s.studies[edu.ID] = edu
	return edu, nil
}

func (s *Store) GetEducationStudy(_ context.Context, id int64) (account.EducationStudy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edu, ok := s.studies[id]
	if !ok {
		return account.EducationStudy{}, fmt.Errorf("education study %d: %w", id, storage.ErrNotFound)
	}
	return edu, nil
}

func (s *Store) ListEducationStudies(_ context.Context) ([]account.EducationStudy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.EducationStudy, 0, len(s.studies))
	for _, edu := range s.studies {
		result = append(result, edu)
	}
	sortByID(result, func(e account.EducationStudy) int64 { return e.ID })
	return result, nil
}
