// Package health reports whether the vector store and the document store answer.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/pairfecto/backend/internal/version"
)

// Status is the overall verdict.
type Status string

// Overall verdicts.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the verdict for one component.
type CheckResult string

// Component verdicts.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentVectorStore   = "vector_store"
	ComponentDocumentStore = "document_store"
)

const pingTimeout = 2 * time.Second

// Report is the body of GET /health.
type Report struct {
	Status  Status                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]CheckResult `json:"checks"`
}

// Service pings its components concurrently, each under its own timeout.
type Service struct {
	components map[string]Pinger
	timeout    time.Duration
}

// New takes the two stores. A nil store is left out of the report.
func New(vectorStore, documentStore Pinger) *Service {
	components := make(map[string]Pinger, 2)
	if vectorStore != nil {
		components[ComponentVectorStore] = vectorStore
	}
	if documentStore != nil {
		components[ComponentDocumentStore] = documentStore
	}
	return &Service{components: components, timeout: pingTimeout}
}

// Check is Healthy when every component answers, Unhealthy when none does.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.components))
	)
	for name, p := range s.components {
		wg.Go(func() {
			res := s.probe(ctx, p)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	return Report{Status: verdict(checks), Version: version.Version, Checks: checks}
}

func (s *Service) probe(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}

func verdict(checks map[string]CheckResult) Status {
	failed := 0
	for _, r := range checks {
		if r == CheckError {
			failed++
		}
	}
	switch {
	case failed == 0:
		return Healthy
	case failed == len(checks):
		return Unhealthy
	default:
		return Degraded
	}
}
