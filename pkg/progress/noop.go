package progress

// NoopReporter records nothing and returns stable, well-formed placeholder
// task IDs — the default reporter for scripts, piping, and tests (spec.md
// §4.7).
type NoopReporter struct {
	reg *registry
}

// NewNoopReporter constructs a NoopReporter. It still allocates real,
// namespaced task IDs (rather than a constant placeholder) so callers that
// round-trip IDs through UpdateTask/FinishTask/GetTaskInfo behave
// identically regardless of which Reporter is wired in.
func NewNoopReporter() *NoopReporter {
	return &NoopReporter{reg: newRegistry()}
}

func (n *NoopReporter) IsActive() bool { return false }

func (n *NoopReporter) AddTask(name string, kind Kind, total int64, description string, parentTaskID string, phase, totalPhases int) string {
	return n.reg.add(name, kind, total, description, parentTaskID, phase, totalPhases)
}

func (n *NoopReporter) UpdateTask(taskID string, completed *int64, total *int64, description *string) {
	n.reg.update(taskID, completed, total, description)
}

func (n *NoopReporter) FinishTask(taskID string, success bool, description string) {
	n.reg.finish(taskID, success, description)
}

func (n *NoopReporter) GetTaskInfo(taskID string) (TaskInfo, bool) {
	return n.reg.info(taskID)
}

var _ Reporter = (*NoopReporter)(nil)
