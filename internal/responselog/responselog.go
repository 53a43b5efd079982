// Package responselog keeps the raw per-target vendor replies of a run as a plain text log,
// and turns such a log back into records for after-the-fact statistics.
package responselog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xiansir-zhe/cloud-tool/internal/batch"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/tencent"
)

// Writer appends one blank-line separated entry per target. It implements batch.Sink
// and is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

var _ batch.Sink = (*Writer)(nil)

// Record implements batch.Sink.
func (lw *Writer) Record(op core.Operation, targetID string, reply tencent.Reply, err error) {
	var line string
	var de *tencent.DecodeError
	if errors.As(err, &de) {
		line = fmt.Sprintf("%s response: %s", Label(op, targetID), oneLine(string(de.Body)))
	} else if err != nil {
		line = fmt.Sprintf("%s error: %s", Label(op, targetID), oneLine(err.Error()))
	} else {
		data, merr := json.Marshal(reply)
		if merr != nil {
			data = []byte(fmt.Sprintf("%q", merr.Error()))
		}
		line = fmt.Sprintf("%s response: %s", Label(op, targetID), data)
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.err != nil {
		return
	}
	_, lw.err = io.WriteString(lw.w, line+"\n\n")
}

// Err returns the first write error, if any.
func (lw *Writer) Err() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.err
}

// Label is the human prefix of an entry for op on targetID.
func Label(op core.Operation, targetID string) string {
	switch op {
	case core.OpStopInstances:
		return fmt.Sprintf("Instance %s stop", targetID)
	case core.OpStartInstances:
		return fmt.Sprintf("Instance %s start", targetID)
	case core.OpCreateImage:
		return fmt.Sprintf("Create image for instance %s", targetID)
	case core.OpDeleteImage:
		return fmt.Sprintf("Delete image %s", targetID)
	case core.OpCreateSnapshot:
		return fmt.Sprintf("Create snapshot for disk %s", targetID)
	case core.OpDeleteSnapshot:
		return fmt.Sprintf("Delete snapshot %s", targetID)
	}
	return fmt.Sprintf("Target %s", targetID)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// entryRe finds "<target> [stop |start ](response|error): <payload>".
var entryRe = regexp.MustCompile(`(\S+) (?:stop |start )?(response|error):\s?(.*)$`)

// Parse reads a response log. Every recognised entry becomes one record:
// replies are classified like live ones, error entries are failures, and
// payloads that are not JSON objects are parse errors. Other lines are skipped.
func Parse(r io.Reader) ([]core.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records []core.Record
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target, kind, payload := m[1], m[2], m[3]

		rec := core.Record{TargetID: target}
		if kind == "error" {
			rec.Status = core.StatusFailure
			rec.ErrorMessage = payload
		} else {
			var reply tencent.Reply
			if err := json.Unmarshal([]byte(payload), &reply); err != nil || reply == nil {
				rec.Status = core.StatusParseError
				rec.ErrorMessage = "unable to parse response"
				if err != nil {
					rec.ErrorMessage += ": " + err.Error()
				}
			} else {
				out := batch.Classify(reply, "")
				rec.Status = out.Status
				rec.ErrorMessage = out.ErrorMessage
				rec.RequestID = out.RequestID
			}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading response log: %w", err)
	}
	return records, nil
}

// Stamp sets t on every record that has no timestamp.
func Stamp(records []core.Record, t time.Time) {
	for i := range records {
		if records[i].Timestamp.IsZero() {
			records[i].Timestamp = t
		}
	}
}
