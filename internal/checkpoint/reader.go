package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	"github.com/born-ml/fusedopt/internal/tensor"
)

// File provides memory-mapped access to a .bopt checkpoint. Only the header
// is parsed up front; tensor bytes are touched on demand through the OS page
// cache.
type File struct {
	file       *os.File
	data       []byte // mmap'd region (read-only)
	size       int64
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	closed     bool
}

// Open memory-maps the checkpoint at path, parses and validates its header,
// and verifies the data checksum. Always call Close when done (use defer).
func Open(path string) (*File, error) {
	return open(path, true)
}

// OpenUnverified is Open without the checksum pass. Structural validation
// still runs; use VerifyChecksum to check data integrity separately.
func OpenUnverified(path string) (*File, error) {
	return open(path, false)
}

func open(path string, verify bool) (*File, error) {
	//nolint:gosec // G304: checkpoint paths come from the caller
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < FixedHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("file too small: %d bytes (minimum %d required)", stat.Size(), FixedHeaderSize)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	f := &File{
		file: file,
		data: data,
		size: stat.Size(),
	}

	if err := f.parseHeader(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if verify {
		if err := f.VerifyChecksum(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// parseHeader reads the fixed header and the JSON header from the mapped
// region and validates the tensor layout.
func (f *File) parseHeader() error {
	if string(f.data[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(f.data[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	f.flags = binary.LittleEndian.Uint32(f.data[8:12])

	headerSize := binary.LittleEndian.Uint64(f.data[16:24])
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	dataSize := binary.LittleEndian.Uint64(f.data[24:32])
	if dataSize > math.MaxInt64 {
		return fmt.Errorf("data size too large: %d", dataSize)
	}
	f.dataSize = int64(dataSize)

	copy(f.checksum[:], f.data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	if headerEnd > f.size {
		return fmt.Errorf("header extends beyond file: header_end=%d, file_size=%d", headerEnd, f.size)
	}

	if err := json.Unmarshal(f.data[FixedHeaderSize:headerEnd], &f.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	// The data section starts at the next 64-byte boundary.
	f.dataOffset = ((headerEnd + HeaderAlignment - 1) / HeaderAlignment) * HeaderAlignment
	if f.dataSize > f.size-f.dataOffset {
		return fmt.Errorf("%w: data section [%d-%d] exceeds file size %d",
			ErrOutOfBounds, f.dataOffset, f.dataOffset+f.dataSize, f.size)
	}

	return ValidateHeader(&f.header, f.dataSize)
}

// VerifyChecksum recomputes the SHA-256 of the data section and compares it
// against the checksum stored in the fixed header.
func (f *File) VerifyChecksum() error {
	if f.closed {
		return fmt.Errorf("reader is closed")
	}
	computed := ComputeChecksum(f.data[f.dataOffset : f.dataOffset+f.dataSize])
	return ValidateChecksum(computed, f.checksum)
}

// Close unmaps and closes the file.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.data != nil {
		err = munmapFile(f.data)
		f.data = nil
	}
	if closeErr := f.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Header returns the parsed file header.
func (f *File) Header() Header {
	return f.header
}

// Checksum returns the stored SHA-256 checksum of the data section.
func (f *File) Checksum() [32]byte {
	return f.checksum
}

// DataSize returns the size of the data section in bytes.
func (f *File) DataSize() int64 {
	return f.dataSize
}

// TensorNames returns the names of all tensors in file order.
func (f *File) TensorNames() []string {
	names := make([]string, len(f.header.Tensors))
	for i, t := range f.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns metadata about a specific tensor.
func (f *File) TensorInfo(name string) (*TensorMeta, error) {
	for i := range f.header.Tensors {
		if f.header.Tensors[i].Name == name {
			return &f.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
}

// TensorData returns a zero-copy slice into the mapped data section. The
// bytes are read-only and valid only while the file is open.
func (f *File) TensorData(name string) ([]byte, error) {
	if f.closed {
		return nil, fmt.Errorf("reader is closed")
	}
	meta, err := f.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	start := f.dataOffset + meta.Offset
	return f.data[start : start+meta.Size], nil
}

// LoadTensor copies one tensor out of the file into a freshly allocated CPU
// tensor.
func (f *File) LoadTensor(name string) (*tensor.RawTensor, error) {
	meta, err := f.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dt, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", meta.DType)
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	data, err := f.TensorData(name)
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data)
	return raw, nil
}

// ReadAll copies every tensor out of the file.
func (f *File) ReadAll() (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(f.header.Tensors))
	for _, meta := range f.header.Tensors {
		raw, err := f.LoadTensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		tensors[meta.Name] = raw
	}
	return tensors, nil
}

// Load reads the whole checkpoint at path into memory, verifying the
// checksum along the way.
func Load(path string) (Snapshot, error) {
	f, err := Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = f.Close() }()

	tensors, err := f.ReadAll()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Optimizer: f.header.Optimizer,
		Tensors:   tensors,
		Metadata:  f.header.Metadata,
	}, nil
}
