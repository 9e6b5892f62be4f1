package checkpoint

// Format constants.
const (
	MagicBytes      = "BOPT"
	FormatVersion   = 1
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Header represents the JSON header in a .bopt file.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the .bopt format
	Optimizer     OptimizerMeta     `json:"optimizer"`          // Optimizer identity and hyperparameters
	Tensors       []TensorMeta      `json:"tensors"`            // Tensor metadata, in file order
	Metadata      map[string]string `json:"metadata,omitempty"` // Custom metadata
}

// OptimizerMeta records the optimizer configuration a snapshot was taken
// under. Type names the decay coupling ("adam" or "adamw").
type OptimizerMeta struct {
	Type        string  `json:"type"`
	Step        int64   `json:"step"`
	LR          float64 `json:"lr"`
	Beta1       float64 `json:"beta1"`
	Beta2       float64 `json:"beta2"`
	Eps         float64 `json:"eps"`
	WeightDecay float64 `json:"weight_decay"`
	AMSGrad     bool    `json:"amsgrad,omitempty"`
	Maximize    bool    `json:"maximize,omitempty"`
}

// TensorMeta describes a tensor in the .bopt file.
type TensorMeta struct {
	Name   string `json:"name"`   // State tensor name (e.g., "weight.exp_avg")
	DType  string `json:"dtype"`  // Data type name as produced by tensor.DataType.String
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}
