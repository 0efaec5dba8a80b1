package telemetry

import "sync"

// Report is a single call made against a Recorder.
type Report struct {
	Kind   string
	ID     string
	Params []any
}

// Recorder is an API that keeps everything reported to it, it is meant
// to be used in tests to assert that breakage is actually reported.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add("count", id, []any{count})
}

// Reports returns a copy of all reports of the given kind ("broken", "warning", "debug", "count").
func (r *Recorder) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if rep.Kind == kind {
			out = append(out, rep)
		}
	}
	return out
}
