//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"math"
	"syscall/js"

	"github.com/himanishpuri/IntroMatch/internal/audio"
	"github.com/himanishpuri/IntroMatch/internal/features"
	"github.com/himanishpuri/IntroMatch/internal/matcher"
	"github.com/himanishpuri/IntroMatch/internal/media"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorFeaturizeFailed
	ErrorMatchFailed
)

// introFeaturize turns decoded samples into a z-scored MFCC payload.
// Args: audioArray, sampleRate, channels
// Returns: {error: number, data: {frames, dims, hop, sampleRate, payload} | string}
func introFeaturize(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array")
	}
	if sampleRateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	length := audioDataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}

	samples := make([]float32, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = float32(val.Float())
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	cfg := features.DefaultConfig()
	sig := &audio.Signal{
		SampleRate: cfg.SampleRate,
		Samples:    media.Resample(samples, sampleRate, cfg.SampleRate),
	}

	m, _, err := features.Featurize(sig, cfg, features.NewMFCC())
	if err != nil {
		return makeErrorResponse(ErrorFeaturizeFailed, fmt.Sprintf("Failed to featurize: %v", err))
	}
	if m.Empty() {
		return makeErrorResponse(ErrorFeaturizeFailed, "Audio is shorter than one frame")
	}

	data := js.Global().Get("Object").New()
	data.Set("frames", m.Frames)
	data.Set("dims", m.Dims)
	data.Set("hop", cfg.Hop)
	data.Set("sampleRate", cfg.SampleRate)
	data.Set("payload", features.EncodePayload(m))

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// introMatch slides a pattern over a target, both as returned by introFeaturize.
// Returns: {error: number, data: {matched, offset, introStart, confidence, distance} | string}
func introMatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: target, pattern")
	}

	target, err := matrixFrom(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("target: %v", err))
	}
	pattern, err := matrixFrom(args[1])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("pattern: %v", err))
	}

	res, err := matcher.Match(target, pattern)
	if err != nil {
		return makeErrorResponse(ErrorMatchFailed, fmt.Sprintf("Failed to match: %v", err))
	}

	hop := args[0].Get("hop").Int()
	rate := args[0].Get("sampleRate").Int()
	score := matcher.Interpret(res, hop, rate)

	data := js.Global().Get("Object").New()
	data.Set("matched", score.Matched)
	data.Set("offset", res.BestOffset)
	data.Set("confidence", score.Confidence)
	if score.Matched {
		data.Set("introStart", js.Null())
		if !math.IsNaN(score.IntroStartSeconds) {
			data.Set("introStart", score.IntroStartSeconds)
		}
		data.Set("distance", res.BestDistance)
	} else {
		data.Set("introStart", js.Null())
		data.Set("distance", js.Null())
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func matrixFrom(v js.Value) (*features.Matrix, error) {
	if v.Type() != js.TypeObject {
		return nil, fmt.Errorf("expected an object from introFeaturize")
	}
	for _, key := range []string{"frames", "dims", "hop", "sampleRate"} {
		if v.Get(key).Type() != js.TypeNumber {
			return nil, fmt.Errorf("%s must be a number", key)
		}
	}
	if v.Get("payload").Type() != js.TypeString {
		return nil, fmt.Errorf("payload must be a string")
	}
	return features.DecodePayload(v.Get("payload").String(), v.Get("frames").Int(), v.Get("dims").Int())
}

func stereoToMono(stereo []float32) []float32 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2
	}
	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, format string, args ...any) {
		if !console.IsUndefined() {
			console.Call(method, fmt.Sprintf(format, args...))
		}
	}

	done := make(chan struct{})

	js.Global().Set("introFeaturize", js.FuncOf(introFeaturize))
	js.Global().Set("introMatch", js.FuncOf(introMatch))
	logf("log", "IntroMatch WASM: introFeaturize and introMatch registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "IntroMatch WASM: window object is undefined")
	} else {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	}

	<-done
}
