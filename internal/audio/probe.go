// Package audio inspects wav files and splits oversized ones into chunks
// small enough for the transcriber's upload limit.
package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Info describes a wav file's format and length.
type Info struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Duration   time.Duration
}

// bytesPerFrame is the PCM payload size of one sample frame.
func (i *Info) bytesPerFrame() int64 {
	return int64(i.Channels) * int64(i.BitDepth) / 8
}

// Probe reads the wav header of path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("failed to read duration: %w", err)
	}
	return &Info{
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}
