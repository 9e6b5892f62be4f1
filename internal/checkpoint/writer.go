package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/born-ml/fusedopt/internal/tensor"
)

// Snapshot is the in-memory form of an optimizer checkpoint: state tensors
// keyed by name, the optimizer configuration they were produced under, and
// free-form metadata.
type Snapshot struct {
	Optimizer OptimizerMeta
	Tensors   map[string]*tensor.RawTensor
	Metadata  map[string]string
}

// Save writes snap to path in .bopt format.
func Save(path string, snap Snapshot) error {
	//nolint:gosec // G304: checkpoint paths come from the caller
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, snap); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Write writes snap to w. Tensors are laid out in lexicographic name order,
// so the same snapshot always produces the same bytes. All tensors must be
// contiguous.
func Write(w io.Writer, snap Snapshot) error {
	names := make([]string, 0, len(snap.Tensors))
	for name, raw := range snap.Tensors {
		if raw == nil {
			return fmt.Errorf("tensor %q is nil", name)
		}
		if !raw.IsContiguous() {
			return fmt.Errorf("tensor %q is not contiguous", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		Optimizer:     snap.Optimizer,
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      snap.Metadata,
	}

	// Tensor offsets accumulate in name order; the data section is packed.
	var offset int64
	for _, name := range names {
		raw := snap.Tensors[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	// Collect the data section so the checksum is known before the fixed
	// header goes out.
	data := make([]byte, 0, offset)
	for _, name := range names {
		raw := snap.Tensors[name]
		data = append(data, raw.Data()[:raw.ByteSize()]...)
	}
	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	// Fixed 64-byte header.
	fixed := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes "BOPT"
	copy(fixed[0:4], MagicBytes)

	// 0x04-0x07: Version
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)

	// 0x08-0x0B: Flags, 0x0C-0x0F: Reserved (both zero)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))

	// 0x20-0x3F: SHA-256 checksum
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	// Pad so the data section starts on a 64-byte boundary.
	currentPos := int64(FixedHeaderSize) + int64(len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}
