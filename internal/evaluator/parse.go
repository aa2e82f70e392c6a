package evaluator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/me/flakeci/pkg/model"
)

// maxRecordSize bounds a single output line.
const maxRecordSize = 16 << 20

// record is one line of nix-eval-jobs output.
type record struct {
	Attr     string            `json:"attr"`
	AttrPath []string          `json:"attrPath"`
	DrvPath  string            `json:"drvPath"`
	Outputs  map[string]string `json:"outputs"`
	Error    string            `json:"error"`
}

func (r record) attr() string {
	if r.Attr != "" {
		return r.Attr
	}
	return strings.Join(r.AttrPath, ".")
}

// ParseOutput reads newline-delimited JSON records. A line that is not a
// JSON object, or an object with neither drvPath nor error, becomes a failed
// target; it never aborts the remaining lines. parsed counts the lines that
// decoded as JSON objects. err is only set when reading r fails.
func ParseOutput(r io.Reader) (targets []model.TargetOutcome, parsed int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var rec record
		if !strings.HasPrefix(line, "{") {
			targets = append(targets, model.TargetOutcome{
				Error: fmt.Sprintf("malformed record on line %d: not a JSON object", lineNo),
			})
			continue
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			targets = append(targets, model.TargetOutcome{
				Error: fmt.Sprintf("malformed record on line %d: %v", lineNo, err),
			})
			continue
		}
		parsed++

		t := model.TargetOutcome{AttrPath: rec.attr()}
		switch {
		case rec.Error != "":
			t.Error = rec.Error
		case rec.DrvPath == "":
			t.Error = fmt.Sprintf("record on line %d has neither drvPath nor error", lineNo)
		default:
			t.DrvPath = rec.DrvPath
			t.Outputs = rec.Outputs
		}
		targets = append(targets, t)
	}
	return targets, parsed, sc.Err()
}
