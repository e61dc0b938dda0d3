// Package timing records per-step wall-clock durations for a single
// analysis run and rolls them up into a report.
package timing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// StepTiming is one sealed measurement. A step is sealed exactly once,
// on every exit path of the tracked function.
type StepTiming struct {
	Step       string    `json:"step"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs float64   `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// CategorySummary aggregates the steps sharing a name prefix.
type CategorySummary struct {
	Steps    int     `json:"steps"`
	TotalMs  float64 `json:"total_ms"`
	AvgMs    float64 `json:"avg_ms"`
	Failures int     `json:"failures"`
}

// Report is the rollup returned once an analysis completes.
type Report struct {
	TotalTimeMs     float64                    `json:"total_time_ms"`
	TrackedTimeMs   float64                    `json:"tracked_time_ms"`
	OverheadMs      float64                    `json:"overhead_ms"`
	StepsTracked    int                        `json:"steps_tracked"`
	SuccessfulSteps int                        `json:"successful_steps"`
	FailedSteps     int                        `json:"failed_steps"`
	Categories      map[string]CategorySummary `json:"categories"`
	Steps           []StepTiming               `json:"steps"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// Recorder accumulates step timings. Safe for concurrent use; fan-out
// branches record into the same recorder.
type Recorder struct {
	mu      sync.Mutex
	started time.Time
	steps   []StepTiming
}

func NewRecorder() *Recorder {
	return &Recorder{started: time.Now()}
}

// Track runs fn and seals a timing for it. A panic inside fn is recorded
// as a failed step before the panic resumes.
func (r *Recorder) Track(step string, fn func() error) error {
	start := time.Now()
	var err error
	defer func() {
		if p := recover(); p != nil {
			r.seal(step, start, false, fmt.Sprintf("panic: %v", p))
			panic(p)
		}
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		r.seal(step, start, err == nil, msg)
	}()
	err = fn()
	return err
}

func (r *Recorder) seal(step string, start time.Time, success bool, errMsg string) {
	end := time.Now()
	st := StepTiming{
		Step:       step,
		StartedAt:  start.UTC(),
		EndedAt:    end.UTC(),
		DurationMs: roundMs(end.Sub(start)),
		Success:    success,
		Error:      errMsg,
	}
	r.mu.Lock()
	r.steps = append(r.steps, st)
	r.mu.Unlock()
}

// Report snapshots everything sealed so far. TrackedTimeMs can exceed
// TotalTimeMs when steps ran concurrently; OverheadMs floors at zero.
func (r *Recorder) Report() *Report {
	r.mu.Lock()
	steps := make([]StepTiming, len(r.steps))
	copy(steps, r.steps)
	r.mu.Unlock()

	sort.Slice(steps, func(i, j int) bool { return steps[i].StartedAt.Before(steps[j].StartedAt) })

	rep := &Report{
		TotalTimeMs:  roundMs(time.Since(r.started)),
		StepsTracked: len(steps),
		Categories:   make(map[string]CategorySummary),
		Steps:        steps,
		GeneratedAt:  time.Now().UTC(),
	}

	for _, st := range steps {
		rep.TrackedTimeMs += st.DurationMs
		if st.Success {
			rep.SuccessfulSteps++
		} else {
			rep.FailedSteps++
		}
		cat := rep.Categories[category(st.Step)]
		cat.Steps++
		cat.TotalMs = round2(cat.TotalMs + st.DurationMs)
		if !st.Success {
			cat.Failures++
		}
		rep.Categories[category(st.Step)] = cat
	}
	for name, cat := range rep.Categories {
		cat.AvgMs = round2(cat.TotalMs / float64(cat.Steps))
		rep.Categories[name] = cat
	}

	rep.TrackedTimeMs = round2(rep.TrackedTimeMs)
	if overhead := rep.TotalTimeMs - rep.TrackedTimeMs; overhead > 0 {
		rep.OverheadMs = round2(overhead)
	}
	return rep
}

// category groups steps by the token before the first underscore, so
// demographics_total and demographics_geocode roll up together.
func category(step string) string {
	if i := strings.Index(step, "_"); i > 0 {
		return step[:i]
	}
	return step
}

func roundMs(d time.Duration) float64 {
	return round2(d.Seconds() * 1000)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
