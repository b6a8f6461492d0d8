package bytecode

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	p := NewProgram()
	must(t, p.Label("start"))
	p.Lit(1000, 0)
	p.Lit(1, 1)
	p.Add(0, 1)
	p.Sub(0, 1)
	p.DownRead(0)
	p.UpRead(0)
	p.DownWrite(1)
	p.UpWrite(1)
	p.NewBuf(0, 2)
	p.ReadBuf(0, 2)
	p.GetBuf(0, 2)
	p.MarkDirty(2)
	p.PutBuf(2)
	p.Stamp(2, 3)
	p.Verify(2, 3)
	p.WriteAsync()
	p.WriteSync()
	p.Flush()
	p.Forget(42)
	p.ForgetRange(100, 50)
	p.Checkpoint(1)
	must(t, p.Jmp("start"))
	must(t, p.Bnz("start", 0))
	must(t, p.Bz("start", 0))
	must(t, p.Loop("start", 1))
	p.Halt()

	instrs, err := Decode(p.Compile())
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	want := []struct {
		op   Opcode
		args []uint32
	}{
		{OpLit, []uint32{1000, 0}},
		{OpLit, []uint32{1, 1}},
		{OpAdd, []uint32{0, 1}},
		{OpSub, []uint32{0, 1}},
		{OpDownRead, []uint32{0}},
		{OpUpRead, []uint32{0}},
		{OpDownWrite, []uint32{1}},
		{OpUpWrite, []uint32{1}},
		{OpNewBuf, []uint32{0, 2}},
		{OpReadBuf, []uint32{0, 2}},
		{OpGetBuf, []uint32{0, 2}},
		{OpMarkDirty, []uint32{2}},
		{OpPutBuf, []uint32{2}},
		{OpStamp, []uint32{2, 3}},
		{OpVerify, []uint32{2, 3}},
		{OpWriteAsync, nil},
		{OpWriteSync, nil},
		{OpFlush, nil},
		{OpForget, []uint32{42}},
		{OpForgetRange, []uint32{100, 50}},
		{OpCheckpoint, []uint32{1}},
		{OpJmp, []uint32{0}},
		{OpBnz, []uint32{0, 0}},
		{OpBz, []uint32{0, 0}},
		{OpLoop, []uint32{0, 1}},
		{OpHalt, nil},
	}

	if len(instrs) != len(want) {
		t.Fatalf("decoded %d instructions, want %d", len(instrs), len(want))
	}
	for i, w := range want {
		if instrs[i].Op != w.op {
			t.Errorf("instruction %d op = %s, want %s", i, instrs[i].Op, w.op)
		}
		if !reflect.DeepEqual(instrs[i].Args, w.args) {
			t.Errorf("instruction %d (%s) args = %v, want %v", i, w.op, instrs[i].Args, w.args)
		}
	}
}

func TestDecodeOffsets(t *testing.T) {
	p := NewProgram()
	p.Lit(5, 0)
	p.PutBuf(1)
	p.Halt()

	instrs, err := Decode(p.Compile())
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	wantOffsets := []int{0, 6, 8}
	for i, w := range wantOffsets {
		if instrs[i].Offset != w {
			t.Errorf("instruction %d offset = %d, want %d", i, instrs[i].Offset, w)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{27}},
		{"unknown high opcode", []byte{0xFF}},
		{"truncated lit", []byte{byte(OpLit), 1, 2}},
		{"truncated jmp", []byte{byte(OpJmp), 5}},
		{"truncated forget range", []byte{byte(OpForgetRange), 1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.code); err == nil {
				t.Errorf("Decode(%v) succeeded, want error", tt.code)
			}
		})
	}
}

func TestDisassemble(t *testing.T) {
	p := NewProgram()
	count := p.AllocReg()
	one := p.AllocReg()

	p.Lit(5, count)
	p.Lit(1, one)
	must(t, p.Label("top"))
	p.Sub(count, one)
	must(t, p.Loop("top", count))
	p.Halt()

	got, err := Disassemble(p.Compile())
	if err != nil {
		t.Fatalf("Disassemble() failed: %v", err)
	}

	want := strings.Join([]string{
		"0000  LIT 5 r0",
		"0006  LIT 1 r1",
		"000C  SUB r0 r1",
		"000F  LOOP 000C r0",
		"0013  HALT",
	}, "\n") + "\n"

	if got != want {
		t.Errorf("Disassemble() =\n%s\nwant:\n%s", got, want)
	}
}
