package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vmxio.com/peer-learn/internal/scoring"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	events *recordingPublisher
	clock  *testClock
}

// a Wednesday
var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := OpenDB("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	f := &fixture{events: &recordingPublisher{}, clock: &testClock{now: testNow}}
	f.engine = NewEngine(db, WithPublisher(f.events), WithClock(f.clock.Now))
	return f
}

func (f *fixture) user(t *testing.T, name string) *User {
	t.Helper()
	u, err := f.engine.EnsureUser(context.Background(), name)
	if err != nil {
		t.Fatalf("ensure user %s: %v", name, err)
	}
	return u
}

// group creates a group owned by the first user and joins the rest.
func (f *fixture) group(t *testing.T, users ...*User) *Group {
	t.Helper()
	ctx := context.Background()
	g, err := f.engine.CreateGroup(ctx, "study group", users[0].ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, u := range users[1:] {
		if _, err := f.engine.JoinGroup(ctx, g.ID, u.ID); err != nil {
			t.Fatalf("join %s: %v", u.PublicID, err)
		}
	}
	return g
}

func (f *fixture) users(t *testing.T, names ...string) []*User {
	t.Helper()
	out := make([]*User, len(names))
	for i, n := range names {
		out[i] = f.user(t, n)
	}
	return out
}

func (f *fixture) task(t *testing.T, in CreateTaskInput) *Task {
	t.Helper()
	if in.Title == "" {
		in.Title = "Write a blog post"
	}
	if in.Description == "" {
		in.Description = "Explain interfaces"
	}
	task, err := f.engine.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "alice")
	if a.ID != b.ID {
		t.Fatalf("EnsureUser created two users: %s, %s", a.ID, b.ID)
	}
	if a.Rating != scoring.DefaultRating {
		t.Errorf("initial rating = %v, want %v", a.Rating, scoring.DefaultRating)
	}
}

func TestGroupMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	us := f.users(t, "owner", "member")
	g := f.group(t, us...)

	_, err := f.engine.JoinGroup(ctx, g.ID, us[1].ID)
	wantKind(t, err, ErrAlreadyMember)

	_, err = f.engine.JoinGroup(ctx, "missing", us[1].ID)
	wantKind(t, err, ErrNotFound)

	_, err = f.engine.CreateGroup(ctx, " x ", us[0].ID)
	wantKind(t, err, ErrInvalidInput)
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)
	us := f.users(t, "owner", "member")
	g := f.group(t, us...)

	due := testNow.Add(48 * time.Hour)
	task := f.task(t, CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, DueDate: &due})

	if task.PointValue != defaultPointValue {
		t.Errorf("PointValue = %d, want %d", task.PointValue, defaultPointValue)
	}
	if task.VotingThreshold != defaultVotingThreshold {
		t.Errorf("VotingThreshold = %v, want %v", task.VotingThreshold, defaultVotingThreshold)
	}
	if task.TaskType != scoring.TaskManual {
		t.Errorf("TaskType = %v, want MANUAL", task.TaskType)
	}
	if task.VotingDeadline == nil || !task.VotingDeadline.Equal(due.Add(votingGrace)) {
		t.Errorf("VotingDeadline = %v, want %v", task.VotingDeadline, due.Add(votingGrace))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	us := f.users(t, "owner", "member", "outsider")
	g := f.group(t, us[0], us[1])

	tests := []struct {
		name string
		in   CreateTaskInput
		want error
	}{
		{
			name: "member without admin role",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[1].ID, Title: "t", Description: "d"},
			want: ErrForbidden,
		},
		{
			name: "outsider",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[2].ID, Title: "t", Description: "d"},
			want: ErrNotGroupMember,
		},
		{
			name: "missing title",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, Description: "d"},
			want: ErrInvalidInput,
		},
		{
			name: "threshold above one",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, Title: "t", Description: "d", VotingThreshold: floatPtr(1.5)},
			want: ErrInvalidInput,
		},
		{
			name: "auto quiz without questions",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, Title: "t", Description: "d", TaskType: "AUTO_QUIZ"},
			want: ErrInvalidInput,
		},
		{
			name: "answer index out of range",
			in: CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, Title: "t", Description: "d", TaskType: "HYBRID",
				Questions: []QuestionInput{{Prompt: "q", Choices: []string{"a", "b"}, AnswerIndex: 2}}},
			want: ErrInvalidInput,
		},
		{
			name: "unknown task type",
			in:   CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, Title: "t", Description: "d", TaskType: "essay"},
			want: ErrInvalidInput,
		},
		{
			name: "unknown group",
			in:   CreateTaskInput{GroupID: "nope", CreatorID: us[0].ID, Title: "t", Description: "d"},
			want: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateTask(context.Background(), tt.in)
			wantKind(t, err, tt.want)
		})
	}
}

func TestGetTaskChecksMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	us := f.users(t, "owner", "member", "outsider")
	g := f.group(t, us[0], us[1])
	task := f.task(t, CreateTaskInput{GroupID: g.ID, CreatorID: us[0].ID, TaskType: "AUTO_QUIZ",
		Questions: []QuestionInput{
			{Prompt: "first", Choices: []string{"a", "b"}, AnswerIndex: 1},
			{Prompt: "second", Choices: []string{"a", "b", "c"}, AnswerIndex: 2, Points: intPtr(3)},
		}})

	got, err := f.engine.GetTask(ctx, task.ID, us[1].ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.Questions) != 2 || got.Questions[0].Prompt != "first" || got.Questions[1].Points != 3 {
		t.Fatalf("questions = %+v", got.Questions)
	}

	_, err = f.engine.GetTask(ctx, task.ID, us[2].ID)
	wantKind(t, err, ErrNotGroupMember)

	list, err := f.engine.ListTasks(ctx, g.ID, us[1].ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListTasks = %d tasks, %v", len(list), err)
	}
}
