package bytecode

import "fmt"

// Opcode is a single instruction tag in a bufio test program.
// The tag values are the wire format consumed by the kernel-side
// interpreter and must not be renumbered.
type Opcode byte

const (
	// ========================================================================
	// Control flow (0-3)
	// ========================================================================

	OpJmp  Opcode = 0 // Unconditional jump: JMP <addr:u16>
	OpBnz  Opcode = 1 // Branch if register nonzero: BNZ <addr:u16> <reg:u8>
	OpBz   Opcode = 2 // Branch if register zero: BZ <addr:u16> <reg:u8>
	OpHalt Opcode = 3 // Stop the interpreter

	// ========================================================================
	// Registers and arithmetic (4-6)
	// ========================================================================

	OpLit Opcode = 4 // Load immediate: LIT <value:u32> <reg:u8>
	OpSub Opcode = 5 // reg1 -= reg2: SUB <reg1:u8> <reg2:u8>
	OpAdd Opcode = 6 // reg1 += reg2: ADD <reg1:u8> <reg2:u8>

	// ========================================================================
	// Rw-semaphore operations (7-10)
	// ========================================================================

	OpDownRead  Opcode = 7  // Acquire shared: DOWN_READ <lock:u8>
	OpUpRead    Opcode = 8  // Release shared: UP_READ <lock:u8>
	OpDownWrite Opcode = 9  // Acquire exclusive: DOWN_WRITE <lock:u8>
	OpUpWrite   Opcode = 10 // Release exclusive: UP_WRITE <lock:u8>

	// ========================================================================
	// Barriers (11-12). Reserved: the interpreter accepts the tags but the
	// assembler emits nothing for them yet.
	// ========================================================================

	OpInitBarrier Opcode = 11 // Reserved: INIT_BARRIER
	OpWaitBarrier Opcode = 12 // Reserved: WAIT_BARRIER

	// ========================================================================
	// Buffer access (13-17)
	// ========================================================================

	OpNewBuf    Opcode = 13 // Get buffer without read: NEW_BUF <block_reg:u8> <dest_reg:u8>
	OpReadBuf   Opcode = 14 // Get buffer, read from disk: READ_BUF <block_reg:u8> <dest_reg:u8>
	OpGetBuf    Opcode = 15 // Get buffer if cached: GET_BUF <block_reg:u8> <dest_reg:u8>
	OpPutBuf    Opcode = 16 // Release buffer: PUT_BUF <reg:u8>
	OpMarkDirty Opcode = 17 // Mark buffer dirty: MARK_DIRTY <reg:u8>

	// ========================================================================
	// Writeback (18-20)
	// ========================================================================

	OpWriteAsync Opcode = 18 // Start writeback of dirty buffers
	OpWriteSync  Opcode = 19 // Write dirty buffers and wait
	OpFlush      Opcode = 20 // Issue a flush to the underlying device

	// ========================================================================
	// Cache invalidation (21-22)
	// ========================================================================

	OpForget      Opcode = 21 // Drop a clean buffer: FORGET <block:u32>
	OpForgetRange Opcode = 22 // Drop a run of buffers: FORGET_RANGE <block:u32> <count:u32>

	// ========================================================================
	// Counted loop (23)
	// ========================================================================

	OpLoop Opcode = 23 // Decrement reg, branch back while nonzero: LOOP <addr:u16> <reg:u8>

	// ========================================================================
	// Data stamping and checkpoints (24-26)
	// ========================================================================

	OpStamp      Opcode = 24 // Fill buffer with pattern: STAMP <buf_reg:u8> <pattern_reg:u8>
	OpVerify     Opcode = 25 // Check buffer contents: VERIFY <buf_reg:u8> <pattern_reg:u8>
	OpCheckpoint Opcode = 26 // Emit a progress marker: CHECKPOINT <reg:u8>
)

// OperandKind describes a single operand slot of an instruction.
type OperandKind byte

const (
	OperandAddr  OperandKind = iota // u16 byte offset into the program
	OperandReg                      // u8 register index
	OperandLock                     // u8 rw-semaphore index
	OperandLit                      // u32 immediate value
	OperandBlock                    // u32 block number
	OperandCount                    // u32 block count
)

// Width returns the encoded size of the operand in bytes.
func (k OperandKind) Width() int {
	switch k {
	case OperandAddr:
		return 2
	case OperandReg, OperandLock:
		return 1
	case OperandLit, OperandBlock, OperandCount:
		return 4
	default:
		return 0
	}
}

// String returns a short name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandAddr:
		return "addr"
	case OperandReg:
		return "reg"
	case OperandLock:
		return "lock"
	case OperandLit:
		return "lit"
	case OperandBlock:
		return "block"
	case OperandCount:
		return "count"
	default:
		return fmt.Sprintf("OperandKind(%d)", byte(k))
	}
}

// OpcodeInfo provides metadata about each opcode for encoding, decoding
// and disassembly.
type OpcodeInfo struct {
	Name     string        // Human-readable name
	Operands []OperandKind // Operand slots in encoding order
	Reserved bool          // Tag allocated but not emitted by the assembler
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Control flow
	OpJmp:  {Name: "JMP", Operands: []OperandKind{OperandAddr}},
	OpBnz:  {Name: "BNZ", Operands: []OperandKind{OperandAddr, OperandReg}},
	OpBz:   {Name: "BZ", Operands: []OperandKind{OperandAddr, OperandReg}},
	OpHalt: {Name: "HALT"},

	// Registers and arithmetic
	OpLit: {Name: "LIT", Operands: []OperandKind{OperandLit, OperandReg}},
	OpSub: {Name: "SUB", Operands: []OperandKind{OperandReg, OperandReg}},
	OpAdd: {Name: "ADD", Operands: []OperandKind{OperandReg, OperandReg}},

	// Rw-semaphores
	OpDownRead:  {Name: "DOWN_READ", Operands: []OperandKind{OperandLock}},
	OpUpRead:    {Name: "UP_READ", Operands: []OperandKind{OperandLock}},
	OpDownWrite: {Name: "DOWN_WRITE", Operands: []OperandKind{OperandLock}},
	OpUpWrite:   {Name: "UP_WRITE", Operands: []OperandKind{OperandLock}},

	// Barriers
	OpInitBarrier: {Name: "INIT_BARRIER", Reserved: true},
	OpWaitBarrier: {Name: "WAIT_BARRIER", Reserved: true},

	// Buffer access
	OpNewBuf:    {Name: "NEW_BUF", Operands: []OperandKind{OperandReg, OperandReg}},
	OpReadBuf:   {Name: "READ_BUF", Operands: []OperandKind{OperandReg, OperandReg}},
	OpGetBuf:    {Name: "GET_BUF", Operands: []OperandKind{OperandReg, OperandReg}},
	OpPutBuf:    {Name: "PUT_BUF", Operands: []OperandKind{OperandReg}},
	OpMarkDirty: {Name: "MARK_DIRTY", Operands: []OperandKind{OperandReg}},

	// Writeback
	OpWriteAsync: {Name: "WRITE_ASYNC"},
	OpWriteSync:  {Name: "WRITE_SYNC"},
	OpFlush:      {Name: "FLUSH"},

	// Cache invalidation
	OpForget:      {Name: "FORGET", Operands: []OperandKind{OperandBlock}},
	OpForgetRange: {Name: "FORGET_RANGE", Operands: []OperandKind{OperandBlock, OperandCount}},

	// Counted loop
	OpLoop: {Name: "LOOP", Operands: []OperandKind{OperandAddr, OperandReg}},

	// Stamping and checkpoints
	OpStamp:      {Name: "STAMP", Operands: []OperandKind{OperandReg, OperandReg}},
	OpVerify:     {Name: "VERIFY", Operands: []OperandKind{OperandReg, OperandReg}},
	OpCheckpoint: {Name: "CHECKPOINT", Operands: []OperandKind{OperandReg}},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	n := 0
	for _, k := range GetOpcodeInfo(op).Operands {
		n += k.Width()
	}
	return n
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsBranch returns true if this opcode transfers control to an address operand.
func (op Opcode) IsBranch() bool {
	return op == OpJmp || op == OpBnz || op == OpBz || op == OpLoop
}

// IsReserved returns true if the tag is allocated but not yet emitted.
func (op Opcode) IsReserved() bool {
	return GetOpcodeInfo(op).Reserved
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
