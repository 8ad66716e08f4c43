// Package serialization provides the native .kiln format for saving and
// loading kiln model weights and optimizer state.
//
//	Format Structure:
//	  [72 bytes: fixed header]
//	    0x00  Magic "KILN"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE)
//	    0x0C  Reserved
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 of the data section (32 bytes)
//	    0x40  Optimizer step counter (int64 LE, zero without optimizer state)
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: little-endian float32, row-major, one tensor after another]
//
// Tensor names are slash-separated keys: "<layer>/<param>" for weights
// (e.g. "conv_2d_1/filters") and "optimizer/<layer>/<param>/<moment>" for
// optimizer state.
//
// Example usage:
//
//	// Save
//	w, err := serialization.NewWriter("model.kiln")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//	err = w.Write(tensors, serialization.Header{ModelType: "sequential"})
//
//	// Load
//	r, err := serialization.NewReader("model.kiln")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	err = r.LoadInto("dense_1/weights", weights)
package serialization
