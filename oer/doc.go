// Package oer implements the runtime buffer primitives used by OER
// (ITU-T X.696 Octet Encoding Rules) encoders and decoders.
//
// An Encoder writes into a fixed caller provided buffer and a Decoder reads
// from one. Neither grows or reallocates: running out of space latches
// ErrOutOfMemory on the encoder and running out of input latches
// ErrOutOfData on the decoder. Once an error is latched every later
// operation is a no-op, so a sequence of calls can be issued without
// checking errors in between and the outcome is read once from Result.
//
//	e := oer.NewEncoder(make([]byte, 16))
//	e.AppendInteger8(1)
//	e.AppendLengthDeterminant(300)
//	n, err := e.Result() // 4, nil
//
// # Length determinants
//
// AppendLengthDeterminant and ReadLengthDeterminant use the short form for
// lengths below 128 and the long form (0x80 | octet count, then the length
// big-endian) otherwise:
//
//	0..127          L
//	128..255        0x81 L
//	256..65535      0x82 L>>8 L
//	65536..2^24-1   0x83 L>>16 L>>8 L
//	2^24..          0x84 L>>24 L>>16 L>>8 L
//
// # Generated code
//
// The declarations in primitives.go are self-contained and only import the
// standard library. Source exposes that file so the generator can embed a
// private, renamed copy of the primitives a generated file actually uses.
package oer
