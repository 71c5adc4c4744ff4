// Package fixpt is the fixed-point numeric kernel used by the FFT task:
// block normalization, an in-place radix-2 FFT over interleaved complex
// int32 data, reconstruction of a real-input spectrum and a saturating
// squared magnitude.
//
// All routines work in place on caller-provided buffers and never allocate.
// Unsupported transform sizes leave the buffer untouched; callers detect the
// failure through SupportedLogSize or by observing that nothing changed.
package fixpt
