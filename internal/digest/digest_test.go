package digest

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestSHA256KnownVector(t *testing.T) {
	got, err := Text(SHA256{}, "abc")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestTextWithoutDigester(t *testing.T) {
	if _, err := Text(nil, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFormatFixed2MatchesToFixed(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{math.Copysign(0, -1), "0.00"},
		{1, "1.00"},
		{0.125, "0.13"},
		{-0.125, "-0.13"},
		{-123.375, "-123.38"},
		{2.5, "2.50"},
		{-0.001, "-0.00"},
		{-87.12345, "-87.12"},
		{1.005, "1.00"},
		{math.Inf(-1), "0"},
		{math.NaN(), "0"},
	}
	for _, tc := range cases {
		if got := FormatFixed2(tc.in); got != tc.want {
			t.Errorf("FormatFixed2(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAudioSignatureCanonicalForm(t *testing.T) {
	bins := []*float64{f(-100.5), nil, f(-42.125), f(3)}
	if got := AudioSignature(bins, 100); got != "-100.50,0,-42.13,3.00" {
		t.Fatalf("unexpected signature %q", got)
	}

	long := make([]*float64, 150)
	for i := range long {
		long[i] = f(float64(-i))
	}
	sig := AudioSignature(long, 0)
	if n := len(strings.Split(sig, ",")); n != DefaultAudioBins {
		t.Fatalf("expected %d bins, got %d", DefaultAudioBins, n)
	}
}

func TestAudioDigestDeterministicAndSensitive(t *testing.T) {
	bins := []*float64{f(-61.25), f(-70.5), f(-80)}
	sig := AudioSignature(bins, DefaultAudioBins)

	a, err := Text(SHA256{}, sig)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, _ := Text(SHA256{}, sig)
	if a != b {
		t.Fatalf("digest not deterministic: %s vs %s", a, b)
	}

	bins[1] = f(-70.51)
	c, _ := Text(SHA256{}, AudioSignature(bins, DefaultAudioBins))
	if c == a {
		t.Fatalf("expected digest to change when one sample changes")
	}
}
