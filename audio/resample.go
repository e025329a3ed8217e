// Package audio converts captured microphone samples into the wire PCM
// format expected by the remote translation service.
package audio

import (
	"math"

	"go.dubash.app/dubash/internal/types"
)

// WireRate is the fixed sample rate of outbound audio frames.
const WireRate = 16000

// Downsample converts samples from srcRate to dstRate using linear
// interpolation. If the rates match, the input is returned unchanged.
func Downsample(src []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return src
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(src)) / ratio)
	out := make([]float32, n)

	for i := range out {
		pos := float64(i) * ratio
		lo := int(pos)
		hi := lo + 1
		if hi > len(src)-1 {
			hi = len(src) - 1
		}
		frac := float32(pos - float64(lo))
		out[i] = src[lo]*(1-frac) + src[hi]*frac
	}

	return out
}

// EncodePCM16 converts float samples in [-1, 1] to little-endian signed
// 16-bit PCM. Values are scaled by 32768 and truncated toward negative
// infinity, then clamped to the int16 range. The rounding mode is part of
// the wire contract and must stay bit-reproducible.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int(math.Floor(float64(s) * 32768))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM back to float
// samples. A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768
	}
	return out
}

// Encode downsamples one captured frame from its native rate to the wire
// rate and packs it as a WireFrame. Pure function of its inputs; called
// once per captured frame and never blocks.
func Encode(src []float32, srcRate int) types.WireFrame {
	return types.WireFrame{
		Data:       EncodePCM16(Downsample(src, srcRate, WireRate)),
		SampleRate: WireRate,
	}
}
