package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	opsCommitted     atomic.Int64
	eventsDispatched atomic.Int64
	eventsFailed     atomic.Int64
	snapshotsSaved   atomic.Int64
	snapshotsFailed  atomic.Int64
	activityRecorded atomic.Int64

	rejectedMu sync.Mutex
	rejected   = map[rejectKey]int64{}
)

type rejectKey struct {
	op   string
	kind string
}

func ObserveCommitted() { opsCommitted.Add(1) }

func ObserveRejected(op, kind string) {
	rejectedMu.Lock()
	rejected[rejectKey{op: op, kind: kind}]++
	rejectedMu.Unlock()
}

func ObserveEventDispatched() { eventsDispatched.Add(1) }

func ObserveEventFailed() { eventsFailed.Add(1) }

func ObserveSnapshot(err error) {
	if err != nil {
		snapshotsFailed.Add(1)
		return
	}
	snapshotsSaved.Add(1)
}

func ObserveActivity(n int) { activityRecorded.Add(int64(n)) }

// Rejected returns the rejection count for an operation and kind.
func Rejected(op, kind string) int64 {
	rejectedMu.Lock()
	defer rejectedMu.Unlock()
	return rejected[rejectKey{op: op, kind: kind}]
}

func Committed() int64 { return opsCommitted.Load() }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP neuralforge_operations_committed_total Operations applied to the ledger state.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_operations_committed_total counter\n")
	fmt.Fprintf(w, "neuralforge_operations_committed_total %d\n", opsCommitted.Load())

	fmt.Fprintf(w, "# HELP neuralforge_operations_rejected_total Operations rejected without side effects, by kind.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_operations_rejected_total counter\n")
	rejectedMu.Lock()
	keys := make([]rejectKey, 0, len(rejected))
	for k := range rejected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].op != keys[j].op {
			return keys[i].op < keys[j].op
		}
		return keys[i].kind < keys[j].kind
	})
	for _, k := range keys {
		fmt.Fprintf(w, "neuralforge_operations_rejected_total{op=%q,kind=%q} %d\n", k.op, k.kind, rejected[k])
	}
	rejectedMu.Unlock()

	fmt.Fprintf(w, "# HELP neuralforge_events_dispatched_total Committed events handed to sinks.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_events_dispatched_total counter\n")
	fmt.Fprintf(w, "neuralforge_events_dispatched_total %d\n", eventsDispatched.Load())

	fmt.Fprintf(w, "# HELP neuralforge_events_failed_total Sink deliveries that returned an error.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_events_failed_total counter\n")
	fmt.Fprintf(w, "neuralforge_events_failed_total %d\n", eventsFailed.Load())

	fmt.Fprintf(w, "# HELP neuralforge_snapshots_saved_total State snapshots persisted.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_snapshots_saved_total counter\n")
	fmt.Fprintf(w, "neuralforge_snapshots_saved_total %d\n", snapshotsSaved.Load())

	fmt.Fprintf(w, "# HELP neuralforge_snapshots_failed_total State snapshot writes that failed.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_snapshots_failed_total counter\n")
	fmt.Fprintf(w, "neuralforge_snapshots_failed_total %d\n", snapshotsFailed.Load())

	fmt.Fprintf(w, "# HELP neuralforge_activity_entries_total Activity feed entries written.\n")
	fmt.Fprintf(w, "# TYPE neuralforge_activity_entries_total counter\n")
	fmt.Fprintf(w, "neuralforge_activity_entries_total %d\n", activityRecorded.Load())
}
