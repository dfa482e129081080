package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Segment is one uploadable chunk of a source file. Offset is the chunk's
// start time within the source, in seconds; segment-local word timings are
// shifted by it when the full transcript is reassembled.
type Segment struct {
	Index  int
	Path   string
	Offset float64
}

// Split cuts path into wav chunks whose PCM payload stays within maxBytes,
// writing them into dir. A file that already fits is passed through untouched
// as a single segment pointing at the original path.
func Split(path, dir string, maxBytes int64) ([]Segment, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid max segment size %d", maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm data: %w", err)
	}

	frames := len(buf.Data) / info.Channels
	totalBytes := int64(frames) * info.bytesPerFrame()
	if totalBytes <= maxBytes {
		return []Segment{{Index: 0, Path: path, Offset: 0}}, nil
	}

	framesPerChunk := int(maxBytes / info.bytesPerFrame())
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var segments []Segment
	for start, index := 0, 0; start < frames; start, index = start+framesPerChunk, index+1 {
		end := start + framesPerChunk
		if end > frames {
			end = frames
		}
		chunkPath := filepath.Join(dir, fmt.Sprintf("%s_%03d.wav", base, index))
		chunk := &goaudio.IntBuffer{
			Format:         buf.Format,
			Data:           buf.Data[start*info.Channels : end*info.Channels],
			SourceBitDepth: info.BitDepth,
		}
		if err := writeChunk(chunkPath, chunk, info); err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			Index:  index,
			Path:   chunkPath,
			Offset: float64(start) / float64(info.SampleRate),
		})
	}
	return segments, nil
}

func writeChunk(path string, buf *goaudio.IntBuffer, info *Info) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}
	enc := wav.NewEncoder(out, info.SampleRate, info.BitDepth, info.Channels, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return fmt.Errorf("failed to write segment pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finalize segment: %w", err)
	}
	return out.Close()
}
