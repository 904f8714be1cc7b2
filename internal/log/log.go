// Package log configures the apex/log handler used across warmcache.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
)

// EnvLevel selects the log level.
const EnvLevel = "WARMCACHE_LOG"

// InitLogger sets up Apex with a custom handler writing to stderr and a log
// level from the WARMCACHE_LOG env variable.
func InitLogger() {
	level, err := log.ParseLevel(strings.ToLower(os.Getenv(EnvLevel)))
	if err != nil {
		level = log.ErrorLevel
	}
	log.SetHandler(NewHandler(os.Stderr))
	log.SetLevel(level)
}

// Handler formats one line per entry: time, level initial, message, fields.
type Handler struct {
	w   io.Writer
	now func() time.Time
}

// NewHandler returns a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w, now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	timestamp := h.now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())

	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", timestamp, level, e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}
