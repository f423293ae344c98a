package scene

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"blenderer/internal/faults"
)

// LoadDescriptor reads scene metadata from a YAML file. Unknown keys are
// rejected.
func LoadDescriptor(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, faults.Wrap(faults.ErrConfiguration, "validate", "read scene descriptor", path, err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor decodes a YAML scene descriptor.
func ParseDescriptor(data []byte) (Metadata, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var meta Metadata
	if err := decoder.Decode(&meta); err != nil {
		if errors.Is(err, io.EOF) {
			return Metadata{}, faults.Wrap(faults.ErrConfiguration, "validate", "parse scene descriptor", "descriptor is empty", nil)
		}
		return Metadata{}, faults.Wrap(faults.ErrConfiguration, "validate", "parse scene descriptor", "", err)
	}
	if meta.FrameEnd < meta.FrameStart {
		return Metadata{}, faults.Wrap(faults.ErrConfiguration, "validate", "parse scene descriptor", "frame_end precedes frame_start", nil)
	}
	return meta, nil
}
