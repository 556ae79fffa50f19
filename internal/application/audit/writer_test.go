package audit_test

import (
	"context"
	"errors"
	"testing"

	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type record struct{ n int }

func TestBestEffortWriter(t *testing.T) {
	tests := []struct {
		name    string
		write   appaudit.WriteFunc[record]
		wantOK  bool
		wantLog string
	}{
		{
			name:   "success",
			write:  func(ctx context.Context, r *record) error { return nil },
			wantOK: true,
		},
		{
			name:    "error is swallowed",
			write:   func(ctx context.Context, r *record) error { return errors.New("boom") },
			wantLog: "Best-effort write failed",
		},
		{
			name:    "panic is swallowed",
			write:   func(ctx context.Context, r *record) error { panic("nil map") },
			wantLog: "Best-effort write panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.ErrorLevel)
			w := appaudit.NewBestEffortWriter("test.write", tt.write, 0, zap.New(core))

			var ok bool
			assert.NotPanics(t, func() { ok = w.Write(context.Background(), &record{n: 1}) })
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantLog != "" {
				assert.Equal(t, 1, recorded.FilterMessage(tt.wantLog).Len())
			}
		})
	}
}

func TestStrictWriter(t *testing.T) {
	storeErr := errors.New("constraint violation")
	w := appaudit.NewStrictWriter[record]("test.write", func(ctx context.Context, r *record) error {
		if r.n < 0 {
			return storeErr
		}
		return nil
	}, nil)

	assert.NoError(t, w.Write(context.Background(), &record{n: 1}))

	err := w.Write(context.Background(), &record{n: -1})
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "test.write")

	assert.Error(t, w.Write(context.Background(), nil))
}
