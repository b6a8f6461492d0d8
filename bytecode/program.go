// Package bytecode assembles programs for the dm-bufio test target.
// A program is a flat little-endian byte sequence that the kernel-side
// interpreter executes instruction by instruction until it hits HALT.
package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Reg identifies one of the interpreter's 256 registers.
type Reg uint8

var (
	// ErrUnknownLabel indicates a branch referenced a label that has not
	// been bound yet. Labels resolve at emission time, so branches can
	// only target earlier code.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrDuplicateLabel indicates an attempt to bind a label name twice.
	ErrDuplicateLabel = errors.New("duplicate label")
)

// Program assembles a single bufio test program.
//
// Emission is append-only: each instruction method packs its tag and
// operands onto the end of the buffer. Labels bind to the current byte
// offset and branch instructions resolve them eagerly, which keeps the
// assembler single-pass at the cost of forward jumps.
type Program struct {
	code    []byte
	labels  map[string]int
	nextReg int
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{
		code:   make([]byte, 0, 64),
		labels: make(map[string]int),
	}
}

// AllocReg returns the next free register. Registers are handed out in
// increasing order starting at 0. Panics if all 256 registers are in use.
func (p *Program) AllocReg() Reg {
	if p.nextReg > 0xFF {
		panic("bytecode: register file exhausted")
	}
	r := Reg(p.nextReg)
	p.nextReg++
	return r
}

// Label binds name to the current byte offset so that later branches
// can target it. Binding the same name twice is an error.
func (p *Program) Label(name string) error {
	if off, dup := p.labels[name]; dup {
		return fmt.Errorf("bytecode: label %q already bound at offset %d: %w", name, off, ErrDuplicateLabel)
	}
	p.labels[name] = len(p.code)
	return nil
}

// resolve maps a label name to its bound offset.
func (p *Program) resolve(name string) (uint16, error) {
	addr, ok := p.labels[name]
	if !ok {
		return 0, fmt.Errorf("bytecode: resolve %q: %w", name, ErrUnknownLabel)
	}
	return uint16(addr), nil
}

// Jmp emits an unconditional jump to a previously bound label.
// Nothing is emitted if the label cannot be resolved.
func (p *Program) Jmp(label string) error {
	addr, err := p.resolve(label)
	if err != nil {
		return err
	}
	p.emit(OpJmp)
	p.emitU16(addr)
	return nil
}

// Bnz emits a branch to label taken while reg is nonzero.
func (p *Program) Bnz(label string, reg Reg) error {
	addr, err := p.resolve(label)
	if err != nil {
		return err
	}
	p.emit(OpBnz)
	p.emitU16(addr)
	p.emitReg(reg)
	return nil
}

// Bz emits a branch to label taken while reg is zero.
func (p *Program) Bz(label string, reg Reg) error {
	addr, err := p.resolve(label)
	if err != nil {
		return err
	}
	p.emit(OpBz)
	p.emitU16(addr)
	p.emitReg(reg)
	return nil
}

// Loop emits a counted loop: the interpreter decrements reg and
// branches back to label while it remains nonzero.
func (p *Program) Loop(label string, reg Reg) error {
	addr, err := p.resolve(label)
	if err != nil {
		return err
	}
	p.emit(OpLoop)
	p.emitU16(addr)
	p.emitReg(reg)
	return nil
}

// Halt emits the instruction that stops the interpreter.
func (p *Program) Halt() {
	p.emit(OpHalt)
}

// Lit loads the immediate value into reg.
func (p *Program) Lit(value uint32, reg Reg) {
	p.emit(OpLit)
	p.emitU32(value)
	p.emitReg(reg)
}

// Sub subtracts reg2 from reg1, leaving the result in reg1.
func (p *Program) Sub(reg1, reg2 Reg) {
	p.emit(OpSub)
	p.emitReg(reg1)
	p.emitReg(reg2)
}

// Add adds reg2 to reg1, leaving the result in reg1.
func (p *Program) Add(reg1, reg2 Reg) {
	p.emit(OpAdd)
	p.emitReg(reg1)
	p.emitReg(reg2)
}

// DownRead takes the rw-semaphore at the given slot for reading.
func (p *Program) DownRead(lock uint8) {
	p.emit(OpDownRead)
	p.code = append(p.code, lock)
}

// UpRead releases a read hold on the rw-semaphore at the given slot.
func (p *Program) UpRead(lock uint8) {
	p.emit(OpUpRead)
	p.code = append(p.code, lock)
}

// DownWrite takes the rw-semaphore at the given slot for writing.
func (p *Program) DownWrite(lock uint8) {
	p.emit(OpDownWrite)
	p.code = append(p.code, lock)
}

// UpWrite releases a write hold on the rw-semaphore at the given slot.
func (p *Program) UpWrite(lock uint8) {
	p.emit(OpUpWrite)
	p.code = append(p.code, lock)
}

// InitBarrier is reserved. The tag is allocated in the instruction set
// but the assembler emits nothing for it yet.
func (p *Program) InitBarrier() {}

// WaitBarrier is reserved. The tag is allocated in the instruction set
// but the assembler emits nothing for it yet.
func (p *Program) WaitBarrier() {}

// NewBuf gets the buffer for the block held in blockReg without reading
// it from disk, leaving the buffer handle in destReg.
func (p *Program) NewBuf(blockReg, destReg Reg) {
	p.emit(OpNewBuf)
	p.emitReg(blockReg)
	p.emitReg(destReg)
}

// ReadBuf gets the buffer for the block held in blockReg, reading it
// from disk if needed, leaving the buffer handle in destReg.
func (p *Program) ReadBuf(blockReg, destReg Reg) {
	p.emit(OpReadBuf)
	p.emitReg(blockReg)
	p.emitReg(destReg)
}

// GetBuf gets the buffer for the block held in blockReg only if it is
// already cached, leaving the buffer handle in destReg.
func (p *Program) GetBuf(blockReg, destReg Reg) {
	p.emit(OpGetBuf)
	p.emitReg(blockReg)
	p.emitReg(destReg)
}

// PutBuf releases the buffer handle held in reg.
func (p *Program) PutBuf(reg Reg) {
	p.emit(OpPutBuf)
	p.emitReg(reg)
}

// MarkDirty marks the buffer handle held in reg dirty.
func (p *Program) MarkDirty(reg Reg) {
	p.emit(OpMarkDirty)
	p.emitReg(reg)
}

// WriteAsync starts writeback of all dirty buffers.
func (p *Program) WriteAsync() {
	p.emit(OpWriteAsync)
}

// WriteSync writes all dirty buffers and waits for completion.
func (p *Program) WriteSync() {
	p.emit(OpWriteSync)
}

// Flush issues a flush to the underlying device.
func (p *Program) Flush() {
	p.emit(OpFlush)
}

// Forget drops the named block from the cache if it is clean.
func (p *Program) Forget(block uint32) {
	p.emit(OpForget)
	p.emitU32(block)
}

// ForgetRange drops count blocks starting at block from the cache.
func (p *Program) ForgetRange(block, count uint32) {
	p.emit(OpForgetRange)
	p.emitU32(block)
	p.emitU32(count)
}

// Stamp fills the buffer held in bufReg with the pattern in patternReg.
func (p *Program) Stamp(bufReg, patternReg Reg) {
	p.emit(OpStamp)
	p.emitReg(bufReg)
	p.emitReg(patternReg)
}

// Verify checks the buffer held in bufReg against the pattern in
// patternReg. The interpreter fails the run on a mismatch.
func (p *Program) Verify(bufReg, patternReg Reg) {
	p.emit(OpVerify)
	p.emitReg(bufReg)
	p.emitReg(patternReg)
}

// Checkpoint emits a progress marker carrying the value of reg.
func (p *Program) Checkpoint(reg Reg) {
	p.emit(OpCheckpoint)
	p.emitReg(reg)
}

// Compile returns the assembled program bytes. The result is a copy, so
// later emission does not affect it and callers cannot mutate the
// program through it.
func (p *Program) Compile() []byte {
	out := make([]byte, len(p.code))
	copy(out, p.code)
	return out
}

// Len returns the current length of the assembled program in bytes.
func (p *Program) Len() int {
	return len(p.code)
}

// RegCount returns the number of registers allocated so far.
func (p *Program) RegCount() int {
	return p.nextReg
}

func (p *Program) emit(op Opcode) {
	p.code = append(p.code, byte(op))
}

func (p *Program) emitReg(r Reg) {
	p.code = append(p.code, byte(r))
}

func (p *Program) emitU16(v uint16) {
	p.code = binary.LittleEndian.AppendUint16(p.code, v)
}

func (p *Program) emitU32(v uint32) {
	p.code = binary.LittleEndian.AppendUint32(p.code, v)
}
