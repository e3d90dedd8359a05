// Package digest turns large rendered payloads into short comparable tokens.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultAudioBins is the number of frequency bins kept in an audio signature.
const DefaultAudioBins = 100

var ErrUnavailable = errors.New("digest primitive unavailable")

// Digester hashes a payload to a fixed-length hex string. The same payload
// must always produce the same string.
type Digester interface {
	Digest(payload []byte) (string, error)
}

// SHA256 is the production digester. Browser probes hash with SubtleCrypto
// SHA-256, so the output matches hashes computed client side.
type SHA256 struct{}

func (SHA256) Digest(payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Text digests a string payload.
func Text(d Digester, s string) (string, error) {
	if d == nil {
		return "", ErrUnavailable
	}
	h, err := d.Digest([]byte(s))
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return h, nil
}

// AudioSignature builds the canonical text form of a frequency sample: the
// first n bins with two decimals, non-finite or missing bins as "0", joined
// by commas.
func AudioSignature(bins []*float64, n int) string {
	if n <= 0 {
		n = DefaultAudioBins
	}
	if len(bins) < n {
		n = len(bins)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		if bins[i] == nil {
			parts[i] = "0"
			continue
		}
		parts[i] = FormatFixed2(*bins[i])
	}
	return strings.Join(parts, ",")
}

// FormatFixed2 formats v like JavaScript's v.toFixed(2): exact ties round
// away from zero and negative zero prints without a sign. Non-finite values
// yield "0".
func FormatFixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if v == 0 {
		return "0.00"
	}
	abs := math.Abs(v)
	if abs >= 1e21 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	// A two-decimal tie is only representable in binary when abs is an odd
	// multiple of 1/8.
	eighths := abs * 8
	if eighths == math.Trunc(eighths) && math.Mod(eighths, 2) == 1 {
		j := uint64(eighths)
		n := (25*j + 1) / 2
		sign := ""
		if v < 0 {
			sign = "-"
		}
		return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
