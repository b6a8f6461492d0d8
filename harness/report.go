package harness

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode is the canonical encoding mode used for reports, so that
// equal reports encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("harness: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ProgramResult records the outcome of one submitted program.
type ProgramResult struct {
	Index    int           `cbor:"index"`
	Bytes    int           `cbor:"bytes"`
	Duration time.Duration `cbor:"duration_ns"`
	Error    string        `cbor:"error,omitempty"`
}

// Failed reports whether the program's submission failed.
func (r *ProgramResult) Failed() bool {
	return r.Error != ""
}

// RunReport describes one complete thread set run.
type RunReport struct {
	ID       string          `cbor:"id"`
	Device   string          `cbor:"device"`
	Started  time.Time       `cbor:"started"`
	Finished time.Time       `cbor:"finished"`
	Programs []ProgramResult `cbor:"programs"`
}

// Failures returns the number of programs that failed.
func (r *RunReport) Failures() int {
	n := 0
	for i := range r.Programs {
		if r.Programs[i].Failed() {
			n++
		}
	}
	return n
}

// MarshalReport serializes a RunReport to CBOR bytes.
func MarshalReport(r *RunReport) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a RunReport from CBOR bytes.
func UnmarshalReport(data []byte) (*RunReport, error) {
	var r RunReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("harness: unmarshal report: %w", err)
	}
	return &r, nil
}
