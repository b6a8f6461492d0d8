// Package harness builds and launches groups of bufio test programs.
//
// A ThreadSet collects compiled programs while the caller builds them,
// then submits every program to the device at once, each from its own
// goroutine, and waits for all of them to finish.
package harness

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/bufgrind/bytecode"
	"github.com/chazu/bufgrind/device"
)

var log = commonlog.GetLogger("bufgrind.harness")

var (
	// ErrAlreadyRun indicates the thread set has left its collecting
	// phase. Sets run once and cannot be reused.
	ErrAlreadyRun = errors.New("thread set already run")

	// ErrNoDevice indicates the thread set was created without a device.
	ErrNoDevice = errors.New("thread set has no device")
)

// ThreadSet collects programs and runs them concurrently against one
// device. It moves from collecting to running exactly once.
//
// A ThreadSet is not safe for concurrent collection; build programs
// from a single goroutine, then call Run.
type ThreadSet struct {
	dev      device.Device
	submit   func(device.Device, []byte) error
	programs [][]byte
	ran      bool
}

// NewThreadSet creates an empty, collecting thread set for the device.
func NewThreadSet(dev device.Device) *ThreadSet {
	return &ThreadSet{
		dev:    dev,
		submit: device.Submit,
	}
}

// Program builds one program and registers it with the set. The build
// function receives a fresh builder; when it returns nil the harness
// appends the trailing HALT and registers the compiled bytes. When it
// returns an error nothing is registered and the error is returned.
func (ts *ThreadSet) Program(build func(*bytecode.Program) error) error {
	if ts.ran {
		return fmt.Errorf("harness: program after run: %w", ErrAlreadyRun)
	}

	p := bytecode.NewProgram()
	if err := build(p); err != nil {
		return fmt.Errorf("harness: build program %d: %w", len(ts.programs), err)
	}

	p.Halt()
	ts.programs = append(ts.programs, p.Compile())
	return nil
}

// Count returns the number of registered programs.
func (ts *ThreadSet) Count() int {
	return len(ts.programs)
}

// Run submits every registered program, one goroutine per program, and
// waits for all of them. Programs run in no particular order and there
// is no cancellation: Run returns only when every submission has
// finished. A failing program does not stop the others; every failure
// is collected, wrapped with its program index, and the whole batch is
// returned as one joined error. The report covers all programs whether
// or not they failed.
func (ts *ThreadSet) Run() (*RunReport, error) {
	if ts.ran {
		return nil, fmt.Errorf("harness: %w", ErrAlreadyRun)
	}
	if ts.dev == nil {
		return nil, fmt.Errorf("harness: %w", ErrNoDevice)
	}
	ts.ran = true

	report := &RunReport{
		ID:       uuid.NewString(),
		Device:   ts.dev.Path(),
		Started:  time.Now().UTC(),
		Programs: make([]ProgramResult, len(ts.programs)),
	}

	log.Infof("running %d programs against %s", len(ts.programs), ts.dev.Path())
	if log.AllowLevel(commonlog.Debug) {
		for i, code := range ts.programs {
			if listing, err := bytecode.Disassemble(code); err == nil {
				log.Debugf("program %d:\n%s", i, listing)
			}
		}
	}

	errs := make([]error, len(ts.programs))
	var wg sync.WaitGroup
	for i, code := range ts.programs {
		wg.Add(1)
		go func(i int, code []byte) {
			defer wg.Done()

			start := time.Now()
			err := ts.submitOne(code)

			res := &report.Programs[i]
			res.Index = i
			res.Bytes = len(code)
			res.Duration = time.Since(start)
			if err != nil {
				res.Error = err.Error()
				errs[i] = err
			}
		}(i, code)
	}
	wg.Wait()

	report.Finished = time.Now().UTC()

	var failures []error
	for i, err := range errs {
		if err != nil {
			log.Errorf("program %d failed: %v", i, err)
			failures = append(failures, fmt.Errorf("program %d: %w", i, err))
		}
	}
	if len(failures) > 0 {
		return report, errors.Join(failures...)
	}

	log.Infof("all %d programs finished", len(ts.programs))
	return report, nil
}

// submitOne shields the harness from panics in the transport so that a
// single program cannot take down the whole run.
func (ts *ThreadSet) submitOne(code []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panic: %v", r)
		}
	}()
	return ts.submit(ts.dev, code)
}
