package sensors

import (
	"context"
	"errors"
	"time"

	"argus/internal/digest"
	"argus/internal/host"
	"argus/internal/types"
)

// Canvas digests the 2D text-and-shapes scene.
type Canvas struct {
	Render   *host.Render
	Digester digest.Digester
}

func (s Canvas) Collect(ctx context.Context) types.Result {
	return guard(func() types.Result {
		r := s.Render
		if r == nil {
			return types.Failure{Err: "Canvas 2D context not available"}
		}
		if r.Error != "" {
			return types.Failure{Err: r.Error}
		}
		if r.DataURL == "" {
			return types.Failure{Err: "canvas render is empty"}
		}
		h, err := digest.Text(s.Digester, r.DataURL)
		if err != nil {
			return types.Fail(err)
		}
		return types.Success{Fields: types.Fields{
			types.FieldDigest:       h,
			types.FieldPairedDigest: nil,
		}}
	})
}

// Graphics reports WebGL parameters and digests the fixed shaded triangle.
type Graphics struct {
	GL       *host.WebGL
	Digester digest.Digester
}

func (s Graphics) Collect(ctx context.Context) types.Result {
	return guard(func() types.Result {
		gl := s.GL
		if gl == nil {
			return types.Failure{Err: "WebGL not available"}
		}
		if gl.Error != "" {
			return types.Failure{Err: gl.Error}
		}
		if gl.DataURL == "" {
			return types.Failure{Err: "webgl render is empty"}
		}
		h, err := digest.Text(s.Digester, gl.DataURL)
		if err != nil {
			return types.Fail(err)
		}
		return types.Success{Fields: types.Fields{
			"vendor":                    opt(gl.Vendor),
			"renderer":                  opt(gl.Renderer),
			"unmaskedVendor":            opt(gl.UnmaskedVendor),
			"unmaskedRenderer":          opt(gl.UnmaskedRenderer),
			"version":                   opt(gl.Version),
			"shadingLanguageVersion":    opt(gl.ShadingLanguageVersion),
			"maxTextureSize":            opt(gl.MaxTextureSize),
			"maxViewportDims":           gl.MaxViewportDims,
			"maxRenderbufferSize":       opt(gl.MaxRenderbufferSize),
			"maxVertexAttribs":          opt(gl.MaxVertexAttribs),
			"maxVertexUniformVectors":   opt(gl.MaxVertexUniformVectors),
			"maxFragmentUniformVectors": opt(gl.MaxFragmentUniformVectors),
			"maxVaryingVectors":         opt(gl.MaxVaryingVectors),
			"aliasedLineWidthRange":     gl.AliasedLineWidthRange,
			"aliasedPointSizeRange":     gl.AliasedPointSizeRange,
			"extensions":                orEmpty(gl.Extensions),
			types.FieldDigest:           h,
		}}
	})
}

// DefaultAudioSettle is how long the audio graph runs before it is sampled.
const DefaultAudioSettle = 100 * time.Millisecond

// Audio digests the canonical frequency signature of the oscillator graph.
// It waits Settle before reading the sample; a cancelled context fails the
// sensor.
type Audio struct {
	Sample   *host.Audio
	Digester digest.Digester
	Settle   time.Duration
	Bins     int
}

func (s Audio) Collect(ctx context.Context) types.Result {
	return guard(func() types.Result {
		a := s.Sample
		if a == nil {
			return types.Failure{Err: "AudioContext not available"}
		}
		if a.Error != "" {
			return types.Failure{Err: a.Error}
		}
		if err := sleep(ctx, s.Settle); err != nil {
			return types.Fail(err)
		}
		if len(a.Bins) == 0 {
			return types.Fail(errors.New("audio sample is empty"))
		}
		h, err := digest.Text(s.Digester, digest.AudioSignature(a.Bins, s.Bins))
		if err != nil {
			return types.Fail(err)
		}
		return types.Success{Fields: types.Fields{
			types.FieldDigest: h,
			"sampleRate":      opt(a.SampleRate),
			"channelCount":    opt(a.ChannelCount),
			"maxChannelCount": opt(a.MaxChannelCount),
			"state":           opt(a.State),
		}}
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
