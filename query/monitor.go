package query

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/ragline/core"
)

// QueryMonitor provides hooks to observe how a question is answered.
// Implement this interface to trace intermediate steps and results.
type QueryMonitor interface {
	Start(query string, topK int)
	AfterEmbedding(dims int, elapsed time.Duration)
	AfterRetrieval(hits []core.Hit, elapsed time.Duration)
	AfterContextAssembly(context string, usedHits int)
	AfterGeneration(answer string, elapsed time.Duration)
	Finish(resp *core.QueryResponse, err error)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                        {}
func (n *noopMonitor) AfterEmbedding(_ int, _ time.Duration)        {}
func (n *noopMonitor) AfterRetrieval(_ []core.Hit, _ time.Duration) {}
func (n *noopMonitor) AfterContextAssembly(_ string, _ int)         {}
func (n *noopMonitor) AfterGeneration(_ string, _ time.Duration)    {}
func (n *noopMonitor) Finish(_ *core.QueryResponse, _ error)        {}

// ExplainMonitor writes a human-readable trace of each step to w.
type ExplainMonitor struct {
	w     io.Writer
	start time.Time
}

var _ QueryMonitor = (*ExplainMonitor)(nil)

// NewExplainMonitor creates a monitor writing to w.
func NewExplainMonitor(w io.Writer) *ExplainMonitor {
	return &ExplainMonitor{w: w}
}

func (m *ExplainMonitor) Start(query string, topK int) {
	m.start = time.Now()
	fmt.Fprintf(m.w, "query: %q (top_k=%d)\n", query, topK)
}

func (m *ExplainMonitor) AfterEmbedding(dims int, elapsed time.Duration) {
	fmt.Fprintf(m.w, "embedded query: %d dimensions in %s\n", dims, elapsed.Round(time.Millisecond))
}

func (m *ExplainMonitor) AfterRetrieval(hits []core.Hit, elapsed time.Duration) {
	fmt.Fprintf(m.w, "retrieved %d hits in %s\n", len(hits), elapsed.Round(time.Millisecond))
	for i, hit := range hits {
		fmt.Fprintf(m.w, "  %d. %s (score %.4f)\n", i+1, hit.DocID, hit.Score)
	}
}

func (m *ExplainMonitor) AfterContextAssembly(context string, usedHits int) {
	fmt.Fprintf(m.w, "context: %d characters from %d hits\n", len([]rune(context)), usedHits)
}

func (m *ExplainMonitor) AfterGeneration(answer string, elapsed time.Duration) {
	fmt.Fprintf(m.w, "generated %d characters in %s\n", len([]rune(answer)), elapsed.Round(time.Millisecond))
}

func (m *ExplainMonitor) Finish(_ *core.QueryResponse, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "failed after %s: %v\n", time.Since(m.start).Round(time.Millisecond), err)
		return
	}
	fmt.Fprintf(m.w, "done in %s\n", time.Since(m.start).Round(time.Millisecond))
}
