package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleProgram(t *testing.T) {
	output := validProgram().Disassemble()

	for _, want := range []string{
		"; C0 bytecode v11 (64-bit)",
		"; Int pool:",
		"1048576",
		"; String pool:",
		`"hi"`,
		"; Natives:",
		"table=0 args=1",
		"; === main (#0) args=0 locals=1 ===",
		"; === id (#1) args=1 locals=1 ===",
		"ildc           #0 ; 1048576",
		`aldc           @0 ; "hi"`,
		"invokestatic   #1 ; id",
		"invokenative   #0 ; table=0",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleFunction(t *testing.T) {
	p := NewProgram()
	var b Builder
	b.BIPush(-3)
	b.BIPush(4)
	jmp := b.EmitJump(OpIfICmpLt)
	b.EmitByte(OpNewArray, 4)
	b.Emit(OpReturn)
	b.PatchJump(jmp)
	b.Emit(OpAConstNull)
	b.Emit(OpReturn)
	p.AddFunction(Function{Code: b.Code})

	output := p.DisassembleFunction(0)
	lines := strings.Split(strings.TrimSpace(output), "\n")

	want := []string{
		"; === fn0 (#0) args=0 locals=0 ===",
		"0000  bipush         -3",
		"0002  bipush         4",
		"0004  if_icmplt      +6 -> 000A",
		"0007  newarray       4",
		"0009  return",
		"000A  aconst_null",
		"000B  return",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), output)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDisassembleTruncated(t *testing.T) {
	p := NewProgram()
	p.AddFunction(Function{Code: []byte{byte(OpILdc), 0x00}})
	if output := p.DisassembleFunction(0); !strings.Contains(output, "<truncated>") {
		t.Errorf("truncated instruction not flagged:\n%s", output)
	}
}

func TestDisassembleUnknown(t *testing.T) {
	p := NewProgram()
	p.AddFunction(Function{Code: []byte{0xEE, byte(OpReturn)}})
	output := p.DisassembleFunction(0)
	if !strings.Contains(output, "UNKNOWN(0xEE)") || !strings.Contains(output, "0001  return") {
		t.Errorf("unknown opcode listing:\n%s", output)
	}
}
