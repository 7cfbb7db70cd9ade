package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const wavHeaderSize = 44

var ErrInvalidParameters = errors.New("invalid audio parameters")

// Format describes raw interleaved little-endian PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what browsers send on the live endpoint after downsampling.
var DefaultFormat = Format{
	SampleRate:    16000,
	Channels:      1,
	BitsPerSample: 16,
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitsPerSample <= 0 {
		return fmt.Errorf("%w: sample_rate=%d channels=%d bits_per_sample=%d",
			ErrInvalidParameters, f.SampleRate, f.Channels, f.BitsPerSample)
	}
	if f.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: bits_per_sample=%d is not byte aligned", ErrInvalidParameters, f.BitsPerSample)
	}
	return nil
}

func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration returns how long n bytes of PCM play for.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Wrap prefixes samples with a canonical PCM WAV header. The sample bytes are
// copied as-is.
func Wrap(samples []byte, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Channels > math.MaxUint16 || f.BitsPerSample > math.MaxUint16 || f.BlockAlign() > math.MaxUint16 {
		return nil, fmt.Errorf("%w: header field overflow", ErrInvalidParameters)
	}
	if uint64(f.BytesPerSecond()) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: byte rate overflow", ErrInvalidParameters)
	}
	if uint64(len(samples))+wavHeaderSize-8 > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes exceed the RIFF size limit", ErrInvalidParameters, len(samples))
	}

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize - 8 + len(samples)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesPerSecond()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(samples)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	buf.Write(samples)
	return buf.Bytes(), nil
}
