package audio

import (
	"bytes"
	"encoding/binary"
)

// unknownSize is written into the RIFF and data size fields of a WAV stream
// whose length is not known when the header is emitted. Decoders read such
// files until EOF.
const unknownSize = 0xFFFFFFFF

// StreamingWAVHeader returns a 44-byte PCM WAV header with open-ended sizes.
func StreamingWAVHeader(sampleRate, channels, bitsPerSample int) []byte {
	var buf bytes.Buffer
	buf.Grow(44)

	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(unknownSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(unknownSize))

	return buf.Bytes()
}

// PCM16ToBytes encodes samples as little-endian 16-bit PCM.
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
