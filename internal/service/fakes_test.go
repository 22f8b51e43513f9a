package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users []*models.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StudentID != nil && user.StudentID != nil && *u.StudentID == *user.StudentID {
			return repository.ErrDuplicate
		}
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return repository.ErrDuplicate
		}
	}
	r.users = append(r.users, user)
	return nil
}

func (r *fakeUserRepo) find(match func(*models.User) bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r *fakeUserRepo) GetBySubject(_ context.Context, subject string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.AuthSubject == subject }), nil
}

func (r *fakeUserRepo) GetByStudentID(_ context.Context, studentID string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.StudentID != nil && *u.StudentID == studentID }), nil
}

func (r *fakeUserRepo) ListStudents(_ context.Context, filter models.StudentFilter) ([]models.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.Role == models.RoleStudent && (filter.Department == "" || u.Department == filter.Department) {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

type fakeSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]models.Subject
}

func newFakeSubjectRepo(subjects ...models.Subject) *fakeSubjectRepo {
	r := &fakeSubjectRepo{subjects: make(map[string]models.Subject)}
	for _, s := range subjects {
		r.subjects[s.ID] = s
	}
	return r
}

func (r *fakeSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.Department == subject.Department && s.Semester == subject.Semester && s.Code == subject.Code {
			return repository.ErrDuplicate
		}
	}
	r.subjects[subject.ID] = *subject
	return nil
}

func (r *fakeSubjectRepo) GetByID(_ context.Context, id string) (*models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSubjectRepo) GetByIDs(_ context.Context, ids []string) ([]models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Subject, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.subjects[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubjectRepo) List(_ context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Subject, 0)
	for _, s := range r.subjects {
		if filter.Semester > 0 && s.Semester != filter.Semester {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *fakeSubjectRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[id]; !ok {
		return false, nil
	}
	delete(r.subjects, id)
	return true, nil
}

type fakeMarkRepo struct {
	mu       sync.Mutex
	marks    map[string]models.Mark
	subjects *fakeSubjectRepo
	lists    int

	// afterRead runs once, between reading marks and returning them.
	afterRead func()
}

func newFakeMarkRepo(subjects *fakeSubjectRepo) *fakeMarkRepo {
	return &fakeMarkRepo{marks: make(map[string]models.Mark), subjects: subjects}
}

func (r *fakeMarkRepo) Upsert(_ context.Context, mark *models.Mark) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mark.StudentID + "/" + mark.SubjectID
	if existing, ok := r.marks[key]; ok {
		mark.ID = existing.ID
		mark.CreatedAt = existing.CreatedAt
		r.marks[key] = *mark
		return false, nil
	}
	r.marks[key] = *mark
	return true, nil
}

func (r *fakeMarkRepo) ListByStudent(ctx context.Context, studentID string) ([]models.MarkWithSubject, error) {
	r.mu.Lock()
	r.lists++
	var marks []models.Mark
	for _, m := range r.marks {
		if m.StudentID == studentID {
			marks = append(marks, m)
		}
	}
	hook := r.afterRead
	r.afterRead = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}

	out := make([]models.MarkWithSubject, 0, len(marks))
	for _, m := range marks {
		s, _ := r.subjects.GetByID(ctx, m.SubjectID)
		if s == nil {
			continue
		}
		out = append(out, models.MarkWithSubject{Mark: m, SubjectName: s.Name, SubjectCode: s.Code, Credits: s.Credits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectCode < out[j].SubjectCode })
	return out, nil
}

func (r *fakeMarkRepo) ListBySubject(_ context.Context, subjectID string) ([]models.MarkWithStudent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MarkWithStudent, 0)
	for _, m := range r.marks {
		if m.SubjectID == subjectID {
			out = append(out, models.MarkWithStudent{Mark: m})
		}
	}
	return out, nil
}

func (r *fakeMarkRepo) ListStudentIDsBySubject(_ context.Context, subjectID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.marks {
		if m.SubjectID == subjectID {
			ids = append(ids, m.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeMarkRepo) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.MarksChangedEvent
}

func (p *fakePublisher) PublishMarksChanged(_ context.Context, event *models.MarksChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeStorage struct {
	objects map[string][]byte
}

func (s *fakeStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://storage.local/" + key + "?signed=1", nil
}
