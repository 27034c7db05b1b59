// Package audio provides the sample-level building blocks of the voxwire
// pipeline: conversion between float samples and 16-bit PCM, little-endian
// byte packing, base64 transport framing, and linear-interpolation
// resampling.
//
// All functions are pure and allocation-predictable; none hold state. The
// stateful pipeline stages live in the capture and playback subpackages.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"
)

// FloatToPCM16 converts float samples in [-1, 1] to 16-bit signed PCM.
// Each sample is clamped to [-1, 1], scaled by 32767, and rounded to the
// nearest integer. Lossy (quantization), deterministic, no side effects.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(math.Round(float64(s) * 32767))
	}
	return out
}

// PCM16ToFloat converts 16-bit signed PCM samples to floats by dividing by
// 32768. A round-trip through FloatToPCM16 and back stays within one
// quantization step (1/32768) of the original for all inputs in [-1, 1].
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
// A trailing odd byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// PCM16BytesToFloat decodes little-endian int16 PCM bytes directly to float
// samples. Equivalent to PCM16ToFloat(BytesToInt16s(b)) without the
// intermediate slice.
func PCM16BytesToFloat(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		s := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// DecodeError reports a malformed base64 transport payload. Callers drop the
// offending message and keep the session alive; see the transport packages.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode base64 payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodePayload frames raw bytes as standard base64 for JSON transport
// envelopes.
func EncodePayload(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodePayload reverses EncodePayload. Malformed input returns a
// *DecodeError rather than silently truncating.
func DecodePayload(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return b, nil
}
