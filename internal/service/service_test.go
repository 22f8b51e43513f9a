package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aasim911-prog/department/internal/cache"
	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/models"
)

const (
	mathID = "0b7b2a3e-5a1f-4c55-9a51-3f0d2e6c1a01"
	physID = "0b7b2a3e-5a1f-4c55-9a51-3f0d2e6c1a02"
	algoID = "0b7b2a3e-5a1f-4c55-9a51-3f0d2e6c1a03"
)

var (
	teacher  = models.Identity{Subject: "rao@dept.edu", Role: models.RoleTeacher}
	student1 = models.Identity{Subject: "21CS001", Role: models.RoleStudent}
	student2 = models.Identity{Subject: "21CS002", Role: models.RoleStudent}
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	users    *fakeUserRepo
	subjects *fakeSubjectRepo
	marks    *fakeMarkRepo
	pub      *fakePublisher
	cache    *cache.Cache[SummarySlot]
	storage  *fakeStorage

	userSvc    UserService
	subjectSvc SubjectService
	markSvc    MarkService
	dashSvc    DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()

	fx := &fixture{
		users: &fakeUserRepo{users: []*models.User{
			{ID: "u-teacher", AuthSubject: teacher.Subject, Name: "Rao", Role: models.RoleTeacher, Department: "CSE", Email: ptr("rao@dept.edu")},
			{ID: "u-s1", AuthSubject: student1.Subject, Name: "Asha", Role: models.RoleStudent, Department: "CSE", StudentID: ptr("21CS001"), Semester: ptr(3)},
			{ID: "u-s2", AuthSubject: student2.Subject, Name: "Ravi", Role: models.RoleStudent, Department: "CSE", StudentID: ptr("21CS002"), Semester: ptr(3)},
		}},
		subjects: newFakeSubjectRepo(
			models.Subject{ID: mathID, Name: "Mathematics I", Code: "MA101", Semester: 1, Credits: 3, Department: "CSE"},
			models.Subject{ID: physID, Name: "Physics", Code: "PH101", Semester: 1, Credits: 4, Department: "CSE"},
			models.Subject{ID: algoID, Name: "Algorithms", Code: "CS201", Semester: 2, Credits: 4, Department: "CSE"},
		),
		pub:     &fakePublisher{},
		cache:   cache.New[SummarySlot](time.Minute),
		storage: &fakeStorage{},
	}
	fx.marks = newFakeMarkRepo(fx.subjects)

	m := metrics.New(prometheus.NewRegistry())
	agg, err := grading.NewAggregator(grading.DefaultPolicy())
	require.NoError(t, err)

	fx.userSvc = NewUserService(fx.users, log)
	fx.subjectSvc = NewSubjectService(fx.subjects, fx.marks, fx.users, fx.cache, fx.pub, m, log)
	fx.markSvc = NewMarkService(fx.marks, fx.subjects, fx.users, grading.DefaultPolicy(), fx.cache, fx.pub, m, log)
	fx.dashSvc = NewDashboardService(fx.users, fx.subjects, fx.marks, agg, fx.cache, fx.storage, m, log, DashboardConfig{})

	return fx
}

func (fx *fixture) upload(t *testing.T, studentID, subjectID string, i1, i2, i3, final *float64) *models.UploadMarksResponse {
	t.Helper()
	resp, err := fx.markSvc.UploadMarks(context.Background(), teacher, &models.UploadMarksRequest{
		StudentID: studentID,
		SubjectID: subjectID,
		Internal1: i1,
		Internal2: i2,
		Internal3: i3,
		FinalExam: final,
	})
	require.NoError(t, err)
	return resp
}

func (fx *fixture) seedTranscript(t *testing.T) {
	t.Helper()
	fx.upload(t, "21CS001", mathID, ptr(30.0), ptr(30.0), ptr(30.0), ptr(80.0))
	fx.upload(t, "21CS001", physID, ptr(35.0), ptr(35.0), ptr(35.0), ptr(90.0))
	fx.upload(t, "21CS001", algoID, ptr(40.0), ptr(40.0), ptr(40.0), ptr(100.0))
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher needs email", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.userSvc.Register(ctx, models.Identity{Subject: "new", Role: models.RoleTeacher},
			&models.CreateUserRequest{Name: "Iyer", Department: "CSE"})
		var verr *grading.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "email", verr.Fields[0].Field)
	})

	t.Run("student registered", func(t *testing.T) {
		fx := newFixture(t)
		user, err := fx.userSvc.Register(ctx, models.Identity{Subject: "21CS050", Role: models.RoleStudent},
			&models.CreateUserRequest{Name: "Meera", Department: "CSE", StudentID: ptr(" 21CS050 "), Semester: ptr(1)})
		require.NoError(t, err)
		assert.Equal(t, models.RoleStudent, user.Role)
		assert.Equal(t, "21CS050", *user.StudentID)

		profile, err := fx.userSvc.GetProfile(ctx, models.Identity{Subject: "21CS050", Role: models.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, user.ID, profile.ID)
	})

	t.Run("profile exists", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.userSvc.Register(ctx, student1,
			&models.CreateUserRequest{Name: "Asha", Department: "CSE", StudentID: ptr("21CS001"), Semester: ptr(3)})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("duplicate student id", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.userSvc.Register(ctx, models.Identity{Subject: "other", Role: models.RoleStudent},
			&models.CreateUserRequest{Name: "Copy", Department: "CSE", StudentID: ptr("21CS001"), Semester: ptr(3)})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("bad request fields", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.userSvc.Register(ctx, models.Identity{Subject: "x", Role: models.RoleTeacher},
			&models.CreateUserRequest{Name: "A", Department: "CSE", Email: ptr("not-an-email")})
		var verr *grading.ValidationError
		require.True(t, errors.As(err, &verr))
		fields := map[string]bool{}
		for _, f := range verr.Fields {
			fields[f.Field] = true
		}
		assert.True(t, fields["name"])
		assert.True(t, fields["email"])
	})

	t.Run("unknown profile", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.userSvc.GetProfile(ctx, models.Identity{Subject: "ghost", Role: models.RoleStudent})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserService_ListStudentsClampsLimit(t *testing.T) {
	fx := newFixture(t)

	resp, err := fx.userSvc.ListStudents(context.Background(), models.StudentFilter{Department: "CSE", Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxStudentLimit, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.Equal(t, 2, resp.Total)
}

func TestSubjectService_Create(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	subject, err := fx.subjectSvc.CreateSubject(ctx, teacher, &models.CreateSubjectRequest{
		Name: "Operating Systems", Code: "cs301", Semester: 3, Credits: 4, Department: "CSE",
	})
	require.NoError(t, err)
	assert.Equal(t, "CS301", subject.Code)
	require.NotNil(t, subject.CreatedBy)
	assert.Equal(t, "u-teacher", *subject.CreatedBy)

	_, err = fx.subjectSvc.CreateSubject(ctx, teacher, &models.CreateSubjectRequest{
		Name: "Operating Systems II", Code: "CS301", Semester: 3, Credits: 3, Department: "CSE",
	})
	assert.ErrorIs(t, err, ErrSubjectExists)

	_, err = fx.subjectSvc.CreateSubject(ctx, teacher, &models.CreateSubjectRequest{
		Name: "Lab", Code: "CS399", Semester: 9, Credits: 7, Department: "CSE",
	})
	var verr *grading.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)
}

func TestSubjectService_Delete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	_, err := fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	_, cached := fx.cache.Get(cache.Key{StudentID: "21CS001", Semester: 1})
	require.True(t, cached)
	published := len(fx.pub.events)

	require.NoError(t, fx.subjectSvc.DeleteSubject(ctx, physID))

	_, cached = fx.cache.Get(cache.Key{StudentID: "21CS001", Semester: 1})
	assert.False(t, cached)
	require.Len(t, fx.pub.events, published+1)
	assert.Equal(t, models.EventSubjectDeleted, fx.pub.events[published].Type)

	assert.ErrorIs(t, fx.subjectSvc.DeleteSubject(ctx, physID), ErrSubjectNotFound)
}

func TestMarkService_Upload(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	resp := fx.upload(t, "21CS001", mathID, ptr(30.0), ptr(30.0), ptr(30.0), ptr(78.0))
	assert.True(t, resp.Created)
	require.NotNil(t, resp.GradePoint)
	assert.Equal(t, 8.0, *resp.GradePoint)
	assert.Equal(t, 1, resp.Mark.Semester)
	require.NotNil(t, resp.Mark.UploadedBy)

	again := fx.upload(t, "21CS001", mathID, ptr(40.0), ptr(40.0), ptr(40.0), ptr(95.0))
	assert.False(t, again.Created)
	assert.Equal(t, resp.Mark.ID, again.Mark.ID)
	assert.Equal(t, 10.0, *again.GradePoint)

	noFinal := fx.upload(t, "21CS002", mathID, ptr(20.0), nil, nil, nil)
	assert.Nil(t, noFinal.GradePoint)

	require.Len(t, fx.pub.events, 3)
	assert.Equal(t, models.EventMarksUploaded, fx.pub.events[0].Type)
	assert.Equal(t, 1, fx.pub.events[0].Semester)

	marks, err := fx.markSvc.GetSubjectMarks(ctx, mathID)
	require.NoError(t, err)
	assert.Len(t, marks, 2)
}

func TestMarkService_UploadRejects(t *testing.T) {
	tests := []struct {
		name  string
		req   models.UploadMarksRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "internal above bound",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: mathID, Internal1: ptr(41.0), FinalExam: ptr(50.0)},
			check: func(t *testing.T, err error) {
				var verr *grading.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "internal1", verr.Fields[0].Field)
			},
		},
		{
			name: "final negative",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: mathID, FinalExam: ptr(-1.0)},
			check: func(t *testing.T, err error) {
				var verr *grading.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "final_exam", verr.Fields[0].Field)
			},
		},
		{
			name: "final finer than stored precision",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: mathID, Internal1: ptr(40.0), Internal2: ptr(40.0), FinalExam: ptr(95.996)},
			check: func(t *testing.T, err error) {
				var verr *grading.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "final_exam", verr.Fields[0].Field)
			},
		},
		{
			name: "subject id not a uuid",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: "math"},
			check: func(t *testing.T, err error) {
				var verr *grading.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "subject_id", verr.Fields[0].Field)
			},
		},
		{
			name: "unknown student",
			req:  models.UploadMarksRequest{StudentID: "99XX999", SubjectID: mathID, FinalExam: ptr(50.0)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrStudentNotFound)
			},
		},
		{
			name: "teacher is not a student",
			req:  models.UploadMarksRequest{StudentID: "rao", SubjectID: mathID, FinalExam: ptr(50.0)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrStudentNotFound)
			},
		},
		{
			name: "unknown subject",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: "0b7b2a3e-5a1f-4c55-9a51-3f0d2e6c1aff", FinalExam: ptr(50.0)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSubjectNotFound)
			},
		},
		{
			name: "semester mismatch",
			req:  models.UploadMarksRequest{StudentID: "21CS001", SubjectID: mathID, Semester: ptr(2), FinalExam: ptr(50.0)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSemesterMismatch)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			_, err := fx.markSvc.UploadMarks(context.Background(), teacher, &tt.req)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, fx.pub.events)
		})
	}
}

func TestMarkService_StudentMarksAccess(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	marks, err := fx.markSvc.GetStudentMarks(ctx, student1, "21CS001")
	require.NoError(t, err)
	assert.Len(t, marks, 3)

	_, err = fx.markSvc.GetStudentMarks(ctx, student2, "21CS001")
	assert.ErrorIs(t, err, ErrForbidden)

	marks, err = fx.markSvc.GetStudentMarks(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Len(t, marks, 3)
}

func TestDashboardService_GetDashboard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	d, err := fx.dashSvc.GetDashboard(ctx, student1, "21CS001")
	require.NoError(t, err)

	assert.Equal(t, "Asha", d.Student.Name)
	require.Len(t, d.SemesterData, grading.LastSemester)

	first := d.SemesterData["semester_1"]
	assert.Equal(t, 8.57, first.SGPA)
	assert.Equal(t, 7, first.TotalCredits)
	assert.Equal(t, string(grading.TierGood), first.Tier)
	require.Len(t, first.Subjects, 2)
	assert.Equal(t, "MA101", first.Subjects[0].Subject.Code)
	assert.Equal(t, 8.0, *first.Subjects[0].GradePoint)
	assert.Equal(t, "#3b82f6", first.Subjects[0].Color)

	second := d.SemesterData["semester_2"]
	assert.Equal(t, 10.0, second.SGPA)

	empty := d.SemesterData["semester_5"]
	assert.Equal(t, 0.0, empty.SGPA)
	assert.NotNil(t, empty.Subjects)
	assert.Empty(t, empty.Subjects)

	assert.Equal(t, []models.TrendPoint{{Semester: 1, SGPA: 8.57}, {Semester: 2, SGPA: 10}}, d.Trend)
	assert.Equal(t, 9.09, d.CGPA)
	assert.Equal(t, 11, d.TotalCredits)
	assert.Equal(t, "2024.1", d.GradingVersion)
	assert.Empty(t, d.Anomalies)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"semester_8":`)
	assert.Contains(t, string(raw), `"anomalies":[]`)
}

func TestDashboardService_CacheAndInvalidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	_, err := fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.marks.listCalls())

	_, err = fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.marks.listCalls(), "second read served from cache")

	fx.upload(t, "21CS001", algoID, ptr(20.0), ptr(20.0), ptr(20.0), ptr(60.0))
	_, cached := fx.cache.Get(cache.Key{StudentID: "21CS001", Semester: 2})
	assert.False(t, cached)
	_, cached = fx.cache.Get(cache.Key{StudentID: "21CS001", Semester: 1})
	assert.True(t, cached)

	d, err := fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.marks.listCalls())
	// 120/220 = 54.5% gives 6
	assert.Equal(t, 6.0, d.SemesterData["semester_2"].SGPA)
}

func TestDashboardService_UploadDuringAggregation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	fx.marks.mu.Lock()
	fx.marks.afterRead = func() {
		fx.upload(t, "21CS001", algoID, ptr(0.0), ptr(0.0), ptr(0.0), ptr(0.0))
	}
	fx.marks.mu.Unlock()

	d, err := fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 10.0, d.SemesterData["semester_2"].SGPA, "read started before the upload")

	_, cached := fx.cache.Get(cache.Key{StudentID: "21CS001", Semester: 2})
	assert.False(t, cached, "summary read before the upload must not be cached")

	d, err = fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.marks.listCalls())
	assert.Equal(t, 0.0, d.SemesterData["semester_2"].SGPA)

	_, err = fx.dashSvc.GetDashboard(ctx, teacher, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.marks.listCalls(), "fresh summaries are cached again")
}

func TestDashboardService_Access(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.dashSvc.GetDashboard(ctx, student2, "21CS001")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = fx.dashSvc.GetDashboard(ctx, student2, "00XX000")
	assert.ErrorIs(t, err, ErrForbidden, "students cannot look up other ids")

	_, err = fx.dashSvc.GetDashboard(ctx, teacher, "00XX000")
	assert.ErrorIs(t, err, ErrStudentNotFound)

	d, err := fx.dashSvc.GetDashboard(ctx, student2, "21CS002")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.CGPA)
	assert.Empty(t, d.Trend)
	assert.Empty(t, d.Tier)
}

func TestDashboardService_Export(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedTranscript(t)

	resp, err := fx.dashSvc.ExportTranscript(ctx, student1, "21CS001")
	require.NoError(t, err)
	assert.Contains(t, resp.URL, resp.ObjectKey)
	assert.Equal(t, int64(900), resp.ExpiresIn)

	stored := fx.storage.objects[resp.ObjectKey]
	require.NotEmpty(t, stored)
	var d models.Dashboard
	require.NoError(t, json.Unmarshal(stored, &d))
	assert.Equal(t, 9.09, d.CGPA)

	noStorage := NewDashboardService(fx.users, fx.subjects, fx.marks, mustAggregator(t), fx.cache, nil, nil, zerolog.Nop(), DashboardConfig{})
	_, err = noStorage.ExportTranscript(ctx, teacher, "21CS001")
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func mustAggregator(t *testing.T) *grading.Aggregator {
	t.Helper()
	agg, err := grading.NewAggregator(grading.DefaultPolicy())
	require.NoError(t, err)
	return agg
}
