package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		vector     Pinger
		document   Pinger
		wantStatus Status
		wantChecks map[string]CheckResult
	}{
		{
			name: "all up", vector: up, document: up, wantStatus: Healthy,
			wantChecks: map[string]CheckResult{ComponentVectorStore: CheckOK, ComponentDocumentStore: CheckOK},
		},
		{
			name: "vector store down", vector: down, document: up, wantStatus: Degraded,
			wantChecks: map[string]CheckResult{ComponentVectorStore: CheckError, ComponentDocumentStore: CheckOK},
		},
		{
			name: "all down", vector: down, document: down, wantStatus: Unhealthy,
			wantChecks: map[string]CheckResult{ComponentVectorStore: CheckError, ComponentDocumentStore: CheckError},
		},
		{
			name: "document store absent", vector: up, document: nil, wantStatus: Healthy,
			wantChecks: map[string]CheckResult{ComponentVectorStore: CheckOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.vector, tt.document).Check(context.Background())
			if r.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", r.Status, tt.wantStatus)
			}
			if len(r.Checks) != len(tt.wantChecks) {
				t.Fatalf("checks = %v, want %v", r.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if r.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, r.Checks[k], v)
				}
			}
			if r.Version == "" {
				t.Error("version missing")
			}
		})
	}
}

func TestCheck_PingTimeout(t *testing.T) {
	hang := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s := New(hang, up)
	s.timeout = 20 * time.Millisecond

	r := s.Check(context.Background())
	if r.Checks[ComponentVectorStore] != CheckError || r.Status != Degraded {
		t.Errorf("report = %+v", r)
	}
}
