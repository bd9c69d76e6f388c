package debug

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// Capture is a logger that records JSON lines for assertions
type Capture struct {
	Logger zerolog.Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

// NewCapture captures every level
func NewCapture(t testing.TB) *Capture {
	t.Helper()
	c := &Capture{}
	c.Logger = zerolog.New(c).Level(zerolog.TraceLevel)
	return c
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Output returns everything written so far
func (c *Capture) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Records decodes each captured line; undecodable lines are skipped
func (c *Capture) Records() []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(c.Output()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// Find returns the records whose message equals msg
func (c *Capture) Find(msg string) []map[string]any {
	var out []map[string]any
	for _, rec := range c.Records() {
		if rec[zerolog.MessageFieldName] == msg {
			out = append(out, rec)
		}
	}
	return out
}
