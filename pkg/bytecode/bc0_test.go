package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

const sampleBC0 = `C0 C0 FF EE       # magic number
00 17             # version 11, arch = 1 (64 bits)

00 01             # int pool count
# int pool
00 01 86 A0

00 06             # string pool total size
# string pool
68 65 6C 6C 6F 00  # "hello"

00 02             # function count
# function_pool

#<main>
00 00             # number of arguments = 0
00 01             # number of local variables = 1
00 0B             # code length = 11 bytes
13 00 00          # ildc 0             # c[0] = 100000
36 00             # vstore 0           # x = 100000;
15 00             # vload 0            # x
B8 00 01          # invokestatic 1     # twice(x)
B0                # return             #

#<twice>
00 01             # number of arguments = 1
00 01             # number of local variables = 1
00 06             # code length = 6 bytes
15 00             # vload 0            # x
15 00             # vload 0            # x
60                # iadd               # (x + x)
B0                # return             #

00 01             # native count
# native pool
00 01 00 0A       # table index 10
`

func TestParseBC0(t *testing.T) {
	p, err := ParseBC0(strings.NewReader(sampleBC0))
	if err != nil {
		t.Fatalf("ParseBC0 failed: %v", err)
	}

	if p.Version != 0x17 {
		t.Errorf("version = %#x, want 0x17", p.Version)
	}
	if len(p.Ints) != 1 || p.Ints[0] != 100000 {
		t.Errorf("ints = %v, want [100000]", p.Ints)
	}
	if p.StringAt(0) != "hello" {
		t.Errorf("string 0 = %q, want hello", p.StringAt(0))
	}
	if len(p.Functions) != 2 {
		t.Fatalf("functions = %d, want 2", len(p.Functions))
	}
	main, twice := p.Functions[0], p.Functions[1]
	if main.Name != "main" || twice.Name != "twice" {
		t.Errorf("names = %q, %q", main.Name, twice.Name)
	}
	if main.NumVars != 1 || len(main.Code) != 11 {
		t.Errorf("main vars %d code %d", main.NumVars, len(main.Code))
	}
	if twice.NumArgs != 1 || !bytes.Equal(twice.Code, []byte{0x15, 0, 0x15, 0, 0x60, 0xB0}) {
		t.Errorf("twice = %+v", twice)
	}
	if len(p.Natives) != 1 || p.Natives[0].NumArgs != 1 || p.Natives[0].TableIndex != 10 {
		t.Errorf("natives = %+v", p.Natives)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func equalPrograms(t *testing.T, got, want *Program, names bool) {
	t.Helper()
	if got.Version != want.Version {
		t.Errorf("version = %#x, want %#x", got.Version, want.Version)
	}
	if len(got.Ints) != len(want.Ints) {
		t.Fatalf("ints = %v, want %v", got.Ints, want.Ints)
	}
	for i := range want.Ints {
		if got.Ints[i] != want.Ints[i] {
			t.Errorf("int %d = %d, want %d", i, got.Ints[i], want.Ints[i])
		}
	}
	if !bytes.Equal(got.Strings, want.Strings) {
		t.Errorf("strings = %q, want %q", got.Strings, want.Strings)
	}
	if len(got.Functions) != len(want.Functions) {
		t.Fatalf("functions = %d, want %d", len(got.Functions), len(want.Functions))
	}
	for i, w := range want.Functions {
		g := got.Functions[i]
		if g.NumArgs != w.NumArgs || g.NumVars != w.NumVars || !bytes.Equal(g.Code, w.Code) {
			t.Errorf("function %d = %+v, want %+v", i, g, w)
		}
		if names && g.Name != w.Name {
			t.Errorf("function %d name = %q, want %q", i, g.Name, w.Name)
		}
	}
	if len(got.Natives) != len(want.Natives) {
		t.Fatalf("natives = %v, want %v", got.Natives, want.Natives)
	}
	for i := range want.Natives {
		if got.Natives[i] != want.Natives[i] {
			t.Errorf("native %d = %+v, want %+v", i, got.Natives[i], want.Natives[i])
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	want := validProgram()
	got, err := DecodeBC0(EncodeBC0(want))
	if err != nil {
		t.Fatalf("DecodeBC0 failed: %v", err)
	}
	equalPrograms(t, got, want, false)
}

func TestTextRoundTrip(t *testing.T) {
	want := validProgram()
	want.Ints = append(want.Ints, -1, -2147483648)

	var buf bytes.Buffer
	if err := WriteBC0(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ParseBC0(&buf)
	if err != nil {
		t.Fatalf("ParseBC0 of WriteBC0 output failed: %v\n%s", err, buf.String())
	}
	equalPrograms(t, got, want, true)
}

func TestWriteBC0Listing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBC0(&buf, validProgram()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"C0 C0 FF EE       # magic number",
		"#<main>",
		"#<id>",
		"# invokestatic",
		`# "hi"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeBC0Errors(t *testing.T) {
	good := EncodeBC0(validProgram())

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "too short"},
		{"bad magic", append([]byte{0xC0, 0xC0, 0xFF, 0xEF}, good[4:]...), "magic"},
		{"newer version", append(append([]byte{}, good[:4]...), append([]byte{0x00, 0x19}, good[6:]...)...), "newer"},
		{"32-bit", append(append([]byte{}, good[:4]...), append([]byte{0x00, 0x16}, good[6:]...)...), "32-bit"},
		{"truncated", good[:len(good)-1], "unexpected end"},
		{"trailing", append(append([]byte{}, good...), 0x00), "trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBC0(tt.data)
			if err == nil {
				t.Fatal("DecodeBC0 should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseBC0Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"odd digit", "C0 C0 FF E"},
		{"not hex", "C0 C0 FF EG"},
		{"glued bytes", "C0C0 FF EE"},
		{"truncated", "C0 C0 FF EE 00 17 00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBC0(strings.NewReader(tt.src)); err == nil {
				t.Error("ParseBC0 should fail")
			}
		})
	}
}
