package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const spirvMagic uint32 = 0x07230203

var ErrNotSPIRV = errors.New("not a SPIR-V module")

// ReadSPIRV reads a compiled shader module and checks its header.
func ReadSPIRV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// ValidateSPIRV checks the magic number and that the module is a whole
// number of 32-bit words.
func ValidateSPIRV(data []byte) error {
	if len(data) < 4 || len(data)%4 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrNotSPIRV, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != spirvMagic {
		return fmt.Errorf("%w: magic %#08x", ErrNotSPIRV, magic)
	}
	return nil
}

// ShaderPair loads <dir>/<name>.vert.spv and <dir>/<name>.frag.spv.
func ShaderPair(dir, name string) (vertex, fragment []byte, err error) {
	if vertex, err = ReadSPIRV(filepath.Join(dir, name+".vert.spv")); err != nil {
		return nil, nil, err
	}
	if fragment, err = ReadSPIRV(filepath.Join(dir, name+".frag.spv")); err != nil {
		return nil, nil, err
	}
	return vertex, fragment, nil
}
