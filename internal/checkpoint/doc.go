// Package checkpoint implements the .bopt binary format for saving and
// restoring optimizer state.
//
// A .bopt file carries the moment buffers of an optimizer run together with
// the hyperparameters and timestep needed to resume training:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00  Magic "BOPT"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE, reserved)
//	    0x0C  Reserved
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 checksum of the data section
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// Tensors are laid out in lexicographic name order, so saving the same
// snapshot twice produces byte-identical files.
//
// Example usage:
//
//	// Save a snapshot
//	err := checkpoint.Save("adam.bopt", checkpoint.Snapshot{
//	    Optimizer: checkpoint.OptimizerMeta{Type: "adamw", Step: 1200, LR: 3e-4},
//	    Tensors:   stateTensors,
//	})
//
//	// Load it back
//	snap, err := checkpoint.Load("adam.bopt")
package checkpoint
