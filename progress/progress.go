// Package progress reports pipeline progress to the terminal or, for
// machine consumers, as JSON lines.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/factgate/sym"
)

// Emitter receives progress from long-running commands.
//
// Implementations:
//   - CLIEmitter: pterm output for people
//   - JSONEmitter: one JSON event per line
type Emitter interface {
	// EmitStage announces that a stage started.
	EmitStage(stage, message string)
	// EmitProgress reports that done of total units finished.
	EmitProgress(stage string, done, total int, item string)
	// EmitComplete reports the final counts of a stage.
	EmitComplete(stage string, summary map[string]any)
	// EmitError reports a failed stage.
	EmitError(stage string, err error)
	// EmitInfo is an informational message.
	EmitInfo(message string)
}

// Event is one JSON progress line.
type Event struct {
	Type      string         `json:"type"` // "stage", "progress", "complete", "error", "info"
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// CLIEmitter prints progress with pterm.
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a terminal emitter. Per-item progress and summary
// details need verbosity >= 1.
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

func glyph(stage string) string {
	if g := sym.Glyph(stage); g != "" {
		return g
	}
	return "•"
}

// EmitStage prints a stage banner.
func (e *CLIEmitter) EmitStage(stage, message string) {
	pterm.Printf("%s %s: %s\n", glyph(stage), pterm.LightCyan(stage), message)
}

// EmitProgress prints one line per finished unit.
func (e *CLIEmitter) EmitProgress(stage string, done, total int, item string) {
	if e.verbosity < 1 {
		return
	}
	pterm.Printf("  [%s/%d] %s\n", pterm.Green(fmt.Sprintf("%d", done)), total, item)
}

// EmitComplete prints the summary, keys in sorted order.
func (e *CLIEmitter) EmitComplete(stage string, summary map[string]any) {
	pterm.Success.Printf("%s complete\n", stage)
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pterm.Printf("  %s: %v\n", k, summary[k])
	}
}

// EmitError prints an error.
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints an informational message when verbose.
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.Println(message)
	}
}

// JSONEmitter writes one Event per line.
type JSONEmitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	now     func() time.Time
}

// NewJSONEmitter writes events to w, or to stdout when w is nil.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONEmitter{encoder: json.NewEncoder(w), now: time.Now}
}

func (e *JSONEmitter) emit(typ string, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.encoder.Encode(Event{Type: typ, Timestamp: e.now(), Data: data})
}

// EmitStage emits a "stage" event.
func (e *JSONEmitter) EmitStage(stage, message string) {
	e.emit("stage", map[string]any{"stage": stage, "message": message})
}

// EmitProgress emits a "progress" event.
func (e *JSONEmitter) EmitProgress(stage string, done, total int, item string) {
	e.emit("progress", map[string]any{"stage": stage, "done": done, "total": total, "item": item})
}

// EmitComplete emits a "complete" event carrying the summary plus the stage.
func (e *JSONEmitter) EmitComplete(stage string, summary map[string]any) {
	data := make(map[string]any, len(summary)+1)
	for k, v := range summary {
		data[k] = v
	}
	data["stage"] = stage
	e.emit("complete", data)
}

// EmitError emits an "error" event.
func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]any{"stage": stage, "error": err.Error()})
}

// EmitInfo emits an "info" event.
func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]any{"message": message})
}

// New picks the JSON emitter when jsonOut is set, otherwise the terminal one.
func New(jsonOut bool, verbosity int) Emitter {
	if jsonOut {
		return NewJSONEmitter(nil)
	}
	return NewCLIEmitter(verbosity)
}
