package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
)

type bufferWriter struct{ lines []string }

func (w *bufferWriter) Printf(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{"record not found", gorm.ErrRecordNotFound, false},
		{"wrapped record not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), false},
		{"database error", errors.New("disk I/O error"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &bufferWriter{}
			l := newGormLogger(w)
			l.Trace(context.Background(), time.Now(), func() (string, int64) {
				return "SELECT * FROM users WHERE public_id = 'x'", 0
			}, tt.err)
			if got := len(w.lines) > 0; got != tt.wantLog {
				t.Errorf("logged = %v (%q), want %v", got, strings.Join(w.lines, "|"), tt.wantLog)
			}
		})
	}
}

func TestMissingRowLookupIsQuiet(t *testing.T) {
	f := newFixture(t)
	w := &bufferWriter{}
	db := f.engine.db.Session(&gorm.Session{Logger: newGormLogger(w)})

	// EnsureUser's first-sight path
	var u User
	if err := db.First(&u, "public_id = ?", "newcomer").Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First = %v, want ErrRecordNotFound", err)
	}
	if len(w.lines) != 0 {
		t.Errorf("missing row logged: %q", w.lines)
	}
}
