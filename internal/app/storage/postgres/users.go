package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/EduShopX/edushop/internal/app/domain/account"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
	COALESCE(phone_number, '') AS phone_number, role, is_staff, is_active, date_joined, last_login`

// --- UserStore ---------------------------------------------------------------

func insertUser(ctx context.Context, q sqlx.ExtContext, user account.User) (account.User, error) {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	err := q.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone_number, role, is_staff, is_active, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, nullString(user.PhoneNumber),
		string(user.Role), user.IsStaff, user.IsActive, user.DateJoined).Scan(&user.ID)
	if err != nil {
		return account.User{}, mapError(err, "user "+user.Username)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user account.User) (account.User, error) {
	return insertUser(ctx, s.db, user)
}

// UpdateUser keeps the stored password hash when user.PasswordHash is empty.
func (s *Store) UpdateUser(ctx context.Context, user account.User) (account.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, password_hash = COALESCE(NULLIF($4, ''), password_hash),
			first_name = $5, last_name = $6, phone_number = $7, role = $8, is_staff = $9, is_active = $10
		WHERE id = $1
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		nullString(user.PhoneNumber), string(user.Role), user.IsStaff, user.IsActive)
	if err != nil {
		return account.User{}, mapError(err, "user "+user.Username)
	}
	if err := expectRows(result, fmt.Sprintf("user %d", user.ID)); err != nil {
		return account.User{}, err
	}
	return s.GetUser(ctx, user.ID)
}

func (s *Store) getUserWhere(ctx context.Context, clause string, arg interface{}, what string) (account.User, error) {
	var user account.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE `+clause, arg)
	if err != nil {
		return account.User{}, mapError(err, "user "+what)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (account.User, error) {
	return s.getUserWhere(ctx, "id = $1", id, fmt.Sprint(id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (account.User, error) {
	return s.getUserWhere(ctx, "LOWER(username) = LOWER($1)", username, username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	return s.getUserWhere(ctx, "LOWER(email) = LOWER($1)", email, email)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (account.User, error) {
	return s.getUserWhere(ctx, "phone_number = $1", phone, phone)
}

func (s *Store) ListUsers(ctx context.Context) ([]account.User, error) {
	var users []account.User
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("user %d", id))
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("user %d", id))
}

func (s *Store) RegisterStudent(ctx context.Context, user account.User, profile account.Student) (account.User, error) {
	var created account.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = insertUser(ctx, tx, user)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO students (user_id, university_id, education_study_id)
			VALUES ($1, $2, $3)
		`, created.ID, profile.UniversityID, profile.EducationStudyID)
		return mapError(err, "student profile")
	})
	if err != nil {
		return account.User{}, err
	}
	return created, nil
}

func (s *Store) RegisterTeacher(ctx context.Context, user account.User, profile account.Teacher) (account.User, error) {
	var created account.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = insertUser(ctx, tx, user)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO teachers (user_id) VALUES ($1)`, created.ID); err != nil {
			return mapError(err, "teacher profile")
		}
		return replaceTeacherUniversities(ctx, tx, created.ID, profile.UniversityIDs)
	})
	if err != nil {
		return account.User{}, err
	}
	return created, nil
}

func replaceTeacherUniversities(ctx context.Context, tx *sqlx.Tx, teacherID int64, universityIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_universities WHERE teacher_id = $1`, teacherID); err != nil {
		return err
	}
	for _, uid := range universityIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teacher_universities (teacher_id, university_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, teacherID, uid); err != nil {
			return mapError(err, fmt.Sprintf("university %d", uid))
		}
	}
	return nil
}

func (s *Store) GetStudent(ctx context.Context, userID int64) (account.Student, error) {
	var profile account.Student
	err := s.db.GetContext(ctx, &profile, `
		SELECT user_id, university_id, education_study_id FROM students WHERE user_id = $1
	`, userID)
	if err != nil {
		return account.Student{}, mapError(err, fmt.Sprintf("student %d", userID))
	}
	return profile, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]account.Student, error) {
	var profiles []account.Student
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT user_id, university_id, education_study_id FROM students ORDER BY user_id
	`)
	return profiles, err
}

func (s *Store) UpdateStudent(ctx context.Context, profile account.Student) (account.Student, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE students SET university_id = $2, education_study_id = $3 WHERE user_id = $1
	`, profile.UserID, profile.UniversityID, profile.EducationStudyID)
	if err != nil {
		return account.Student{}, mapError(err, "student profile")
	}
	if err := expectRows(result, fmt.Sprintf("student %d", profile.UserID)); err != nil {
		return account.Student{}, err
	}
	return profile, nil
}

type teacherUniversity struct {
	TeacherID    int64 `db:"teacher_id"`
	UniversityID int64 `db:"university_id"`
}

func (s *Store) loadTeachers(ctx context.Context, clause string, args ...interface{}) ([]account.Teacher, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM teachers`+clause+` ORDER BY user_id`, args...); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var links []teacherUniversity
	if err := s.db.SelectContext(ctx, &links, `
		SELECT teacher_id, university_id FROM teacher_universities
		WHERE teacher_id = ANY($1) ORDER BY university_id
	`, pqInt64Array(ids)); err != nil {
		return nil, err
	}
	byTeacher := make(map[int64][]int64, len(ids))
	for _, l := range links {
		byTeacher[l.TeacherID] = append(byTeacher[l.TeacherID], l.UniversityID)
	}
	teachers := make([]account.Teacher, 0, len(ids))
	for _, id := range ids {
		teachers = append(teachers, account.Teacher{UserID: id, UniversityIDs: byTeacher[id]})
	}
	return teachers, nil
}

func (s *Store) GetTeacher(ctx context.Context, userID int64) (account.Teacher, error) {
	teachers, err := s.loadTeachers(ctx, ` WHERE user_id = $1`, userID)
	if err != nil {
		return account.Teacher{}, err
	}
	if len(teachers) == 0 {
		return account.Teacher{}, mapError(errNoRows, fmt.Sprintf("teacher %d", userID))
	}
	return teachers[0], nil
}

func (s *Store) ListTeachers(ctx context.Context) ([]account.Teacher, error) {
	return s.loadTeachers(ctx, "")
}

func (s *Store) UpdateTeacher(ctx context.Context, profile account.Teacher) (account.Teacher, error) {
	if _, err := s.GetTeacher(ctx, profile.UserID); err != nil {
		return account.Teacher{}, err
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return replaceTeacherUniversities(ctx, tx, profile.UserID, profile.UniversityIDs)
	})
	if err != nil {
		return account.Teacher{}, err
	}
	return profile, nil
}

func (s *Store) CreateUniversity(ctx context.Context, uni account.University) (account.University, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO universities (name, city) VALUES ($1, $2) RETURNING id
	`, uni.Name, uni.City).Scan(&uni.ID)
	if err != nil {
		return account.University{}, mapError(err, "university "+uni.Name)
	}
	return uni, nil
}

func (s *Store) GetUniversity(ctx context.Context, id int64) (account.University, error) {
	var uni account.University
	if err := s.db.GetContext(ctx, &uni, `SELECT id, name, city FROM universities WHERE id = $1`, id); err != nil {
		return account.University{}, mapError(err, fmt.Sprintf("university %d", id))
	}
	return uni, nil
}

func (s *Store) ListUniversities(ctx context.Context) ([]account.University, error) {
	var unis []account.University
	err := s.db.SelectContext(ctx, &unis, `SELECT id, name, city FROM universities ORDER BY id`)
	return unis, err
}

func (s *Store) CreateEducationStudy(ctx context.Context, edu account.EducationStudy) (account.EducationStudy, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO education_studies (name) VALUES ($1) RETURNING id
	`, edu.Name).Scan(&edu.ID)
	if err != nil {
		return account.EducationStudy{}, mapError(err, "education study "+edu.Name)
	}
	return edu, nil
}

func (s *Store) GetEducationStudy(ctx context.Context, id int64) (account.EducationStudy, error) {
	var edu account.EducationStudy
	if err := s.db.GetContext(ctx, &edu, `SELECT id, name FROM education_studies WHERE id = $1`, id); err != nil {
		return account.EducationStudy{}, mapError(err, fmt.Sprintf("education study %d", id))
	}
	return edu, nil
}

func (s *Store) ListEducationStudies(ctx context.Context) ([]account.EducationStudy, error) {
	var studies []account.EducationStudy
	err := s.db.SelectContext(ctx, &studies, `SELECT id, name FROM education_studies ORDER BY id`)
	return studies, err
}
