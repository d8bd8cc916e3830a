package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// RefreshHz is the default render loop frequency (spec.md §4.7).
const RefreshHz = 4

// laneOf maps a task Kind to one of the three visible lanes.
func laneOf(kind Kind) string {
	switch kind {
	case KindAPIFetching:
		return "API"
	case KindDownload:
		return "Downloads"
	default:
		return "Post-processing"
	}
}

// TerminalReporter owns a background render loop and one mpb bar per task
// while active (spec.md §4.7). It suppresses logrus output at Info and
// below while a session is running and restores the previous level on
// Stop.
//
// Grounded on terassyi-tomei's internal/ui.ProgressManager: isatty-gated
// TTY detection, one mpb.Bar per tracked unit of work, non-interactive
// fallback that simply appends lines instead of redrawing in place.
type TerminalReporter struct {
	reg    *registry
	w      io.Writer
	isTTY  bool
	logger *logrus.Logger

	mu           sync.Mutex
	active       bool
	progress     *mpb.Progress
	bars         map[string]*mpb.Bar
	savedLevel   logrus.Level
	stopRender   chan struct{}
	renderDone   chan struct{}
	printedLines map[string]bool // non-interactive dedup (spec.md §4.7 renderer design)
}

// NewTerminalReporter builds a TerminalReporter writing to w. logger, if
// non-nil, has its level lowered to Warn while a session is active and
// restored on Stop (spec.md §4.7: "suppresses direct log output at INFO
// and below while active, and restores the logger on shutdown").
func NewTerminalReporter(w io.Writer, logger *logrus.Logger) *TerminalReporter {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	return &TerminalReporter{
		reg:          newRegistry(),
		w:            w,
		isTTY:        isTTY,
		logger:       logger,
		bars:         make(map[string]*mpb.Bar),
		printedLines: make(map[string]bool),
	}
}

// StartSession spawns the render loop (spec.md §4.7 lifecycle).
func (t *TerminalReporter) StartSession(totalOperations int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return
	}
	t.active = true
	if t.logger != nil {
		t.savedLevel = t.logger.GetLevel()
		if t.savedLevel < logrus.WarnLevel {
			t.logger.SetLevel(logrus.WarnLevel)
		}
	}
	if t.isTTY {
		t.progress = mpb.New(mpb.WithOutput(t.w), mpb.WithWidth(40), mpb.WithRefreshRate(time.Second/RefreshHz))
	}
	t.stopRender = make(chan struct{})
	t.renderDone = make(chan struct{})
	go t.renderLoop()
}

// StopSession cancels the render loop, performs a final cleanup render, and
// restores the logger level.
func (t *TerminalReporter) StopSession() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	stop := t.stopRender
	done := t.renderDone
	t.mu.Unlock()

	close(stop)
	<-done

	t.mu.Lock()
	if t.progress != nil {
		t.progress.Wait()
		t.progress = nil
	}
	if t.logger != nil {
		t.logger.SetLevel(t.savedLevel)
	}
	t.mu.Unlock()
}

// renderLoop ticks at RefreshHz; rendering exceptions never propagate —
// they're recovered and logged, per spec.md §4.7 "Failure handling inside
// the renderer never propagates to callers".
func (t *TerminalReporter) renderLoop() {
	defer close(t.renderDone)
	ticker := time.NewTicker(time.Second / RefreshHz)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopRender:
			t.renderOnce()
			return
		case <-ticker.C:
			t.renderOnce()
		}
	}
}

func (t *TerminalReporter) renderOnce() {
	defer func() {
		if r := recover(); r != nil {
			if t.logger != nil {
				t.logger.Warnf("progress render recovered from panic: %v", r)
			}
		}
	}()

	snap := t.reg.snapshot()
	if t.isTTY {
		t.renderTTY(snap)
	} else {
		t.renderPlain(snap)
	}
}

func (t *TerminalReporter) renderTTY(snap []task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == nil {
		return
	}
	for _, tk := range snap {
		bar, ok := t.bars[tk.id]
		if !ok {
			bar = t.newBar(tk)
			t.bars[tk.id] = bar
		}
		if tk.total > 0 {
			bar.SetTotal(tk.total, false)
		}
		bar.SetCurrent(tk.completed)
		if tk.finished {
			bar.SetTotal(bar.Current(), true)
			delete(t.bars, tk.id)
		}
	}
}

func (t *TerminalReporter) newBar(tk task) *mpb.Bar {
	label := fmt.Sprintf("  [%s] %-20s", laneOf(tk.kind), truncate(tk.name, 20))
	return t.progress.AddBar(0,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(decor.Name(label)),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
}

func (t *TerminalReporter) renderPlain(snap []task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tk := range snap {
		if !tk.finished {
			continue
		}
		key := tk.id
		if t.printedLines[key] {
			continue
		}
		t.printedLines[key] = true
		mark := "done"
		if !tk.success {
			mark = "failed"
		}
		fmt.Fprintf(t.w, "  [%s] %s %s (%s)\n", laneOf(tk.kind), tk.name, mark, tk.finishedNote)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func (t *TerminalReporter) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *TerminalReporter) AddTask(name string, kind Kind, total int64, description string, parentTaskID string, phase, totalPhases int) string {
	return t.reg.add(name, kind, total, description, parentTaskID, phase, totalPhases)
}

func (t *TerminalReporter) UpdateTask(taskID string, completed *int64, total *int64, description *string) {
	t.reg.update(taskID, completed, total, description)
}

func (t *TerminalReporter) FinishTask(taskID string, success bool, description string) {
	t.reg.finish(taskID, success, description)
}

func (t *TerminalReporter) GetTaskInfo(taskID string) (TaskInfo, bool) {
	return t.reg.info(taskID)
}

var _ Reporter = (*TerminalReporter)(nil)
