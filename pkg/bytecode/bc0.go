package bytecode

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BC0Magic is the leading word of every .bc0 file.
var BC0Magic = []byte{0xC0, 0xC0, 0xFF, 0xEE}

// ParseBC0 reads the textual .bc0 format: whitespace-separated hex byte
// pairs with '#' comments running to end of line. A comment of the form
// "#<name>" directly preceding a function header names that function.
func ParseBC0(r io.Reader) (*Program, error) {
	var data []byte
	names := make(map[int]string)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text, comment, _ := strings.Cut(sc.Text(), "#")
		for _, tok := range strings.Fields(text) {
			if len(tok) != 2 {
				return nil, fmt.Errorf("bc0 line %d: bad byte %q", line, tok)
			}
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bc0 line %d: bad byte %q: %w", line, tok, err)
			}
			data = append(data, byte(b))
		}
		comment = strings.TrimSpace(comment)
		if len(comment) > 2 && comment[0] == '<' && comment[len(comment)-1] == '>' {
			names[len(data)] = comment[1 : len(comment)-1]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading bc0: %w", err)
	}

	return decodeBC0(data, names)
}

// DecodeBC0 decodes the binary image of a .bc0 file (the bytes the hex text
// denotes).
func DecodeBC0(data []byte) (*Program, error) {
	return decodeBC0(data, nil)
}

type bc0Reader struct {
	data []byte
	pos  int
}

func (r *bc0Reader) u16(what string) (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of bytecode reading %s at byte %d", what, r.pos)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *bc0Reader) bytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading %s: need %d bytes at byte %d", what, n, r.pos)
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

func decodeBC0(data []byte, names map[int]string) (*Program, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}
	if !bytes.Equal(data[:4], BC0Magic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected % X, got % X", BC0Magic, data[:4])
	}

	r := &bc0Reader{data: data, pos: 4}
	p := &Program{}

	var err error
	if p.Version, err = r.u16("version"); err != nil {
		return nil, err
	}
	if p.Version>>1 > FormatVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", p.Version>>1, FormatVersion)
	}
	if p.Version&Arch64 == 0 {
		return nil, fmt.Errorf("bytecode compiled for 32-bit addresses, only 64-bit is supported")
	}

	// Integer pool
	intCount, err := r.u16("int pool count")
	if err != nil {
		return nil, err
	}
	p.Ints = make([]int32, intCount)
	for i := range p.Ints {
		raw, err := r.bytes(4, fmt.Sprintf("int constant %d", i))
		if err != nil {
			return nil, err
		}
		p.Ints[i] = int32(binary.BigEndian.Uint32(raw))
	}

	// String pool
	strSize, err := r.u16("string pool size")
	if err != nil {
		return nil, err
	}
	if p.Strings, err = r.bytes(int(strSize), "string pool"); err != nil {
		return nil, err
	}

	// Function pool
	fnCount, err := r.u16("function count")
	if err != nil {
		return nil, err
	}
	p.Functions = make([]Function, fnCount)
	for i := range p.Functions {
		f := &p.Functions[i]
		f.Name = names[r.pos]
		if f.NumArgs, err = r.u16(fmt.Sprintf("function %d argument count", i)); err != nil {
			return nil, err
		}
		if f.NumVars, err = r.u16(fmt.Sprintf("function %d local count", i)); err != nil {
			return nil, err
		}
		codeLen, err := r.u16(fmt.Sprintf("function %d code length", i))
		if err != nil {
			return nil, err
		}
		if f.Code, err = r.bytes(int(codeLen), fmt.Sprintf("function %d code", i)); err != nil {
			return nil, err
		}
	}

	// Native pool
	nativeCount, err := r.u16("native count")
	if err != nil {
		return nil, err
	}
	p.Natives = make([]Native, nativeCount)
	for i := range p.Natives {
		n := &p.Natives[i]
		if n.NumArgs, err = r.u16(fmt.Sprintf("native %d argument count", i)); err != nil {
			return nil, err
		}
		if n.TableIndex, err = r.u16(fmt.Sprintf("native %d table index", i)); err != nil {
			return nil, err
		}
	}

	if r.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after native pool", len(data)-r.pos)
	}
	return p, nil
}

// EncodeBC0 returns the binary image of p.
func EncodeBC0(p *Program) []byte {
	buf := make([]byte, 0, 16+len(p.Strings)+4*len(p.Ints))
	buf = append(buf, BC0Magic...)
	buf = binary.BigEndian.AppendUint16(buf, p.Version)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Ints)))
	for _, v := range p.Ints {
		buf = binary.BigEndian.AppendUint32(buf, uint32(v))
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Strings)))
	buf = append(buf, p.Strings...)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Functions)))
	for _, f := range p.Functions {
		buf = binary.BigEndian.AppendUint16(buf, f.NumArgs)
		buf = binary.BigEndian.AppendUint16(buf, f.NumVars)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Code)))
		buf = append(buf, f.Code...)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Natives)))
	for _, n := range p.Natives {
		buf = binary.BigEndian.AppendUint16(buf, n.NumArgs)
		buf = binary.BigEndian.AppendUint16(buf, n.TableIndex)
	}
	return buf
}

// WriteBC0 writes p in the commented textual .bc0 format. The output parses
// back to an identical program, function names included.
func WriteBC0(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "C0 C0 FF EE       # magic number\n")
	fmt.Fprintf(bw, "%s       # version %d, arch = %d (%d bits)\n",
		hexBytes(binary.BigEndian.AppendUint16(nil, p.Version)), p.Version>>1, p.Version&1, 32<<(p.Version&1))
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "%s             # int pool count\n", hexU16(uint16(len(p.Ints))))
	fmt.Fprintf(bw, "# int pool\n")
	for _, v := range p.Ints {
		fmt.Fprintf(bw, "%s\n", hexBytes(binary.BigEndian.AppendUint32(nil, uint32(v))))
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "%s             # string pool total size\n", hexU16(uint16(len(p.Strings))))
	fmt.Fprintf(bw, "# string pool\n")
	for off := 0; off < len(p.Strings); {
		end := off
		for end < len(p.Strings) && p.Strings[end] != 0 {
			end++
		}
		if end < len(p.Strings) {
			end++
		}
		fmt.Fprintf(bw, "%s  # %q\n", hexBytes(p.Strings[off:end]), strings.TrimSuffix(string(p.Strings[off:end]), "\x00"))
		off = end
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "%s             # function count\n", hexU16(uint16(len(p.Functions))))
	fmt.Fprintf(bw, "# function_pool\n\n")
	for i, f := range p.Functions {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("fn%d", i)
		}
		fmt.Fprintf(bw, "#<%s>\n", name)
		fmt.Fprintf(bw, "%s             # number of arguments = %d\n", hexU16(f.NumArgs), f.NumArgs)
		fmt.Fprintf(bw, "%s             # number of local variables = %d\n", hexU16(f.NumVars), f.NumVars)
		fmt.Fprintf(bw, "%s             # code length = %d bytes\n", hexU16(uint16(len(f.Code))), len(f.Code))
		for pc := 0; pc < len(f.Code); {
			op := Opcode(f.Code[pc])
			n := op.InstructionLen()
			if pc+n > len(f.Code) {
				n = len(f.Code) - pc
			}
			fmt.Fprintf(bw, "%-18s# %s\n", hexBytes(f.Code[pc:pc+n]), op)
			pc += n
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintf(bw, "%s             # native count\n", hexU16(uint16(len(p.Natives))))
	fmt.Fprintf(bw, "# native pool\n")
	for _, n := range p.Natives {
		fmt.Fprintf(bw, "%s %s       # table index %d\n", hexU16(n.NumArgs), hexU16(n.TableIndex), n.TableIndex)
	}

	return bw.Flush()
}

func hexU16(v uint16) string {
	return hexBytes(binary.BigEndian.AppendUint16(nil, v))
}

func hexBytes(b []byte) string {
	return fmt.Sprintf("% X", b)
}
