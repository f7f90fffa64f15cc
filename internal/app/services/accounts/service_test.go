package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

type fixture struct {
	store *memory.Store
	queue *taskstest.Recorder
	svc   *Service
	uni   account.University
	edu   account.EducationStudy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, pub, _, err := auth.LoadKeys("", "")
	require.NoError(t, err)
	tokens := auth.NewTokens(priv, pub, auth.Config{}, auth.NewMemoryBlacklist())

	store := memory.New()
	ctx := context.Background()
	uni, err := store.CreateUniversity(ctx, account.University{Name: "Sharif", City: "Tehran"})
	require.NoError(t, err)
	edu, err := store.CreateEducationStudy(ctx, account.EducationStudy{Name: "Computer Engineering"})
	require.NoError(t, err)

	queue := taskstest.New()
	return &fixture{store: store, queue: queue, svc: New(store, tokens, queue, nil), uni: uni, edu: edu}
}

func (f *fixture) input(username, phone string) RegisterInput {
	return RegisterInput{
		Username:       username,
		Password:       "s3cret-pass",
		Email:          username + "@example.com",
		FirstName:      "Sara",
		LastName:       "Karimi",
		PhoneNumber:    phone,
		University:     f.uni.ID,
		EducationStudy: f.edu.ID,
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	se := apperrors.GetServiceError(err)
	require.NotNil(t, se, "expected service error, got %v", err)
	field, _ := se.Details["field"].(string)
	return field
}

func TestRegisterStudentCreatesProfileAndQueuesWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.RegisterStudent(ctx, f.input("sara", "09121234567"))
	require.NoError(t, err)
	assert.Equal(t, account.RoleStudent, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	profile, err := f.store.GetStudent(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.edu.ID, profile.EducationStudyID)

	calls := f.queue.Calls(TaskWelcomeEmail)
	require.Len(t, calls, 1)
	var args WelcomeArgs
	require.NoError(t, json.Unmarshal(calls[0].Args, &args))
	assert.Equal(t, WelcomeArgs{To: "sara@example.com", Subject: "EduShopX", Username: "sara"}, args)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RegisterStudent(ctx, f.input("first", "09121234567"))
	require.NoError(t, err)

	bad := f.input("second", "12345")
	_, err = f.svc.RegisterStudent(ctx, bad)
	assert.Equal(t, "phone_number", fieldOf(t, err))

	dupName := f.input("first", "09127654321")
	dupName.Email = "other@example.com"
	_, err = f.svc.RegisterStudent(ctx, dupName)
	assert.Equal(t, "username", fieldOf(t, err))

	dupPhone := f.input("third", "09121234567")
	_, err = f.svc.RegisterTeacher(ctx, dupPhone)
	assert.Equal(t, "phone_number", fieldOf(t, err))

	noUni := f.input("fourth", "09350000000")
	noUni.University = 999
	_, err = f.svc.RegisterTeacher(ctx, noUni)
	assert.Equal(t, "university", fieldOf(t, err))

	noEdu := f.input("fifth", "09350000001")
	noEdu.EducationStudy = 999
	_, err = f.svc.RegisterStudent(ctx, noEdu)
	assert.Equal(t, "education_study", fieldOf(t, err))
}

func TestLoginRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.RegisterTeacher(ctx, f.input("reza", "09121111111"))
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "reza", "wrong")
	assert.Equal(t, 401, apperrors.HTTPStatus(err))

	pair, err := f.svc.Login(ctx, "reza", "s3cret-pass")
	require.NoError(t, err)
	stored, err := f.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	require.NoError(t, f.svc.Verify(ctx, pair.Access))

	rotated, err := f.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, pair.Refresh)
	assert.Error(t, err, "rotated refresh token must be blacklisted")

	require.NoError(t, f.svc.Blacklist(ctx, rotated.Refresh))
	assert.Error(t, f.svc.Verify(ctx, rotated.Refresh))
	assert.Error(t, f.svc.Blacklist(ctx, "not-a-token"))
}

func TestLoginRefusesInactiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.RegisterStudent(ctx, f.input("nima", "09122222222"))
	require.NoError(t, err)
	inactive := false
	_, err = f.svc.UpdateStudent(ctx, user.ID, ProfileUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "nima", "s3cret-pass")
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

func TestLoadPrincipalFollowsStoredUser(t *testing.T) {
	f := newFixture(t)
	f.svc.WithCache(cache.NewMemory())
	ctx := context.Background()
	user, err := f.svc.RegisterStudent(ctx, f.input("nima", "09122222222"))
	require.NoError(t, err)

	p, err := f.svc.LoadPrincipal(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{UserID: user.ID, Role: account.RoleStudent}, p)

	stored, err := f.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	stored.IsStaff = true
	_, err = f.store.UpdateUser(ctx, stored)
	require.NoError(t, err)
	p, err = f.svc.LoadPrincipal(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, p.IsStaff, "served from cache until the entry expires or is invalidated")

	inactive := false
	_, err = f.svc.UpdateStudent(ctx, user.ID, ProfileUpdate{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.LoadPrincipal(ctx, user.ID)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))

	require.NoError(t, f.svc.DeleteStudent(ctx, user.ID))
	_, err = f.svc.LoadPrincipal(ctx, user.ID)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

func TestManagementUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.RegisterTeacher(ctx, f.input("ali", "09123333333"))
	require.NoError(t, err)
	other, err := f.store.CreateUniversity(ctx, account.University{Name: "Amirkabir", City: "Tehran"})
	require.NoError(t, err)

	name := "Alireza"
	unis := []int64{f.uni.ID, other.ID}
	view, err := f.svc.UpdateTeacher(ctx, user.ID, ProfileUpdate{FirstName: &name, Universities: &unis})
	require.NoError(t, err)
	assert.Equal(t, "Alireza", view.User.FirstName)
	assert.Len(t, view.Universities, 2)

	found, err := f.svc.ListTeachers(ctx, "alir")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	none, err := f.svc.ListTeachers(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, f.svc.DeleteTeacher(ctx, user.ID))
	_, err = f.store.GetUser(ctx, user.ID)
	assert.Error(t, err, "deleting the profile deletes the user")
}

func TestWelcomeEmailHandler(t *testing.T) {
	sender := mail.NewLogSender(nil)
	handler := WelcomeEmailHandler(sender)
	raw, _ := json.Marshal(WelcomeArgs{To: "a@example.com", Subject: "Welcome", Username: "a"})

	_, err := handler(context.Background(), &tasks.Task{Name: TaskWelcomeEmail, Args: raw})
	require.NoError(t, err)
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"a@example.com"}, sent[0].To)

	_, err = handler(context.Background(), &tasks.Task{Name: TaskWelcomeEmail, Args: json.RawMessage(`[1]`)})
	assert.True(t, errors.Is(err, tasks.ErrNoRetry))
}

func TestCreateSuperuser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateSuperuser(ctx, "root", "root@example.com", "admin-pass")
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsActive)
	assert.Equal(t, account.RoleNone, user.Role)

	pair, err := f.svc.Login(ctx, "root", "admin-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)

	_, err = f.svc.CreateSuperuser(ctx, "root", "", "other")
	var se *apperrors.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "username", se.Details["field"])

	_, err = f.svc.CreateSuperuser(ctx, "admin2", "not-an-email", "x")
	require.Error(t, err)
}
