package bytecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

// SnapshotExt is the file extension of CBOR program snapshots.
const SnapshotExt = ".c0b"

var log = commonlog.GetLogger("c0vm.bytecode")

// cborEncMode uses canonical mode so that equal programs encode to equal
// bytes, which Hash relies on.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	return &p, nil
}

// Hash returns the hex SHA-256 of the program's canonical encoding.
// Function names are debug information and do not contribute.
func (p *Program) Hash() string {
	stripped := *p
	stripped.Functions = make([]Function, len(p.Functions))
	for i, f := range p.Functions {
		f.Name = ""
		stripped.Functions[i] = f
	}
	data, err := cborEncMode.Marshal(&stripped)
	if err != nil {
		// Program holds only plain data; canonical encoding cannot fail.
		panic(fmt.Sprintf("bytecode: hash encoding: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads a program from path. Files ending in .c0b are CBOR snapshots;
// anything else is read as .bc0, either textual hex or its raw binary image.
// The loaded program is validated before it is returned.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var p *Program
	switch {
	case filepath.Ext(path) == SnapshotExt:
		p, err = UnmarshalProgram(data)
	case bytes.HasPrefix(data, BC0Magic):
		p, err = DecodeBC0(data)
	default:
		p, err = ParseBC0(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program %s: %w", path, err)
	}

	log.Infof("loaded %s: %d functions, %d ints, %d string bytes, %d natives",
		path, len(p.Functions), len(p.Ints), len(p.Strings), len(p.Natives))
	return p, nil
}

// Save writes a CBOR snapshot of p to path.
func Save(path string, p *Program) error {
	data, err := MarshalProgram(p)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
