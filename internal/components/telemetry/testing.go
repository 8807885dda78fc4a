package telemetry

import (
	"fmt"
	"sync"
)

// RecordingAPI keeps every report in memory so tests can assert on which
// components reported themselves broken.
type RecordingAPI struct {
	mu       sync.Mutex
	broken   []string
	warnings []string
	counts   map[string]int64
}

func NewRecordingAPI() *RecordingAPI {
	return &RecordingAPI{counts: map[string]int64{}}
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken = append(r.broken, id)
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, id)
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id] = count
}

// Broken returns the ids passed to ReportBroken in order.
func (r *RecordingAPI) Broken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.broken...)
}

// Warnings returns the ids passed to ReportWarning in order.
func (r *RecordingAPI) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Count returns the last count reported for id.
func (r *RecordingAPI) Count(id string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count, ok := r.counts[id]
	return count, ok
}

func (r *RecordingAPI) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("broken=%v warnings=%v", r.broken, r.warnings)
}
