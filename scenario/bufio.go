package scenario

import (
	"math/rand"

	"github.com/chazu/bufgrind/bytecode"
	"github.com/chazu/bufgrind/harness"
)

func init() {
	Register("/bufio/create", create)
	Register("/bufio/empty-program", emptyProgram)
	Register("/bufio/new-buf", newBuf)
	Register("/bufio/stamper", stamper)
	Register("/bufio/many-stampers", manyStampers)
	Register("/bufio/writeback-many", writebackMany)
}

// create launches an empty thread set: no programs, just the
// collect/run/join cycle.
func create(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	return ts.Run()
}

// emptyProgram submits a program with no instructions of its own; the
// payload is the bare HALT the harness appends.
func emptyProgram(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	if err := ts.Program(func(*bytecode.Program) error { return nil }); err != nil {
		return nil, err
	}
	return ts.Run()
}

// doNewBuf emits a loop that gets and releases gets buffers, one block
// at a time starting at base.
func doNewBuf(p *bytecode.Program, base, gets uint32) error {
	block := p.AllocReg()
	increment := p.AllocReg()
	loopCounter := p.AllocReg()
	buf := p.AllocReg()

	p.Lit(base, block)
	p.Lit(1, increment)
	p.Lit(gets, loopCounter)

	if err := p.Label("loop"); err != nil {
		return err
	}
	p.NewBuf(block, buf)
	p.PutBuf(buf)
	p.Add(block, increment)
	return p.Loop("loop", loopCounter)
}

func newBuf(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	for t := 0; t < f.Threads; t++ {
		base := uint32(t * f.Gets)
		if err := ts.Program(func(p *bytecode.Program) error {
			return doNewBuf(p, base, uint32(f.Gets))
		}); err != nil {
			return nil, err
		}
	}
	return ts.Run()
}

// doStamper emits the stamp/write/verify loop over gets blocks
// starting at base.
func doStamper(p *bytecode.Program, base, gets uint32) error {
	block := p.AllocReg()
	increment := p.AllocReg()
	loopCounter := p.AllocReg()
	buf := p.AllocReg()
	pattern := p.AllocReg()

	p.Lit(base, block)
	p.Lit(1, increment)
	p.Lit(gets, loopCounter)
	p.Lit(uint32(rand.Intn(1025)), pattern)

	if err := p.Label("loop"); err != nil {
		return err
	}

	// stamp
	p.NewBuf(block, buf)
	p.Stamp(buf, pattern)
	p.MarkDirty(buf)
	p.PutBuf(buf)

	// write
	p.WriteSync()
	p.Forget(base)

	// re-read and verify
	p.ReadBuf(block, buf)
	p.Verify(buf, pattern)
	p.PutBuf(buf)

	p.Add(block, increment)
	p.Add(pattern, increment)
	return p.Loop("loop", loopCounter)
}

func stamper(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	if err := ts.Program(func(p *bytecode.Program) error {
		return doStamper(p, 0, uint32(f.Gets))
	}); err != nil {
		return nil, err
	}
	return ts.Run()
}

func manyStampers(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	for t := 0; t < f.Threads; t++ {
		base := uint32(t * f.Gets)
		if err := ts.Program(func(p *bytecode.Program) error {
			return doStamper(p, base, uint32(f.Gets))
		}); err != nil {
			return nil, err
		}
	}
	return ts.Run()
}

// doWriteback dirties blocks buffers and then runs a synchronous
// writeback, with checkpoints marking the phases.
func doWriteback(p *bytecode.Program, blocks uint32) error {
	block := p.AllocReg()
	increment := p.AllocReg()
	loopCounter := p.AllocReg()
	buf := p.AllocReg()

	p.Lit(0, block)
	p.Lit(1, increment)

	p.Lit(blocks, loopCounter)
	p.Checkpoint(loopCounter)

	if err := p.Label("loop"); err != nil {
		return err
	}

	p.NewBuf(block, buf)
	p.MarkDirty(buf)
	p.PutBuf(buf)

	p.Add(block, increment)
	if err := p.Loop("loop", loopCounter); err != nil {
		return err
	}

	p.Checkpoint(loopCounter)
	p.WriteSync()
	p.Checkpoint(loopCounter)
	return nil
}

// writebackMany is mainly here as a benchmark.
func writebackMany(f *Fixture) (*harness.RunReport, error) {
	ts := harness.NewThreadSet(f.Dev)
	if err := ts.Program(func(p *bytecode.Program) error {
		return doWriteback(p, uint32(f.Blocks))
	}); err != nil {
		return nil, err
	}
	return ts.Run()
}
