package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/dbehnke/neomonitor/pkg/signal"
)

// chunkMagic and chunkVersion identify the binary chunk layout embedded in
// each chunk's blob, matching the file-backed header of spec.md §6 even
// though chunks are stored as BLOBs rather than standalone files (an
// implementation choice recorded in DESIGN.md).
var chunkMagic = [4]byte{'N', 'E', 'O', 'C'}

const chunkVersion uint16 = 1

const chunkHeaderLen = 4 + 2 + 1 + 1 + 4 + 8 + 8 + 4 + 4 + 28

// RawEEGSample is one unfiltered acquisition-domain sample as persisted to
// disk: later zero-phase re-analysis must start from the raw signal, not
// the live display's causal filter output.
type RawEEGSample struct {
	TsUs     int64
	Channels [signal.EEGChannels]float64
	Quality  uint8
}

// RawNIRSSample is one NIRS frame as persisted to disk.
type RawNIRSSample struct {
	TsUs       int64
	Channels   [signal.NIRSChannels]float64
	ChValid    [signal.NIRSChannels]bool
	ChQuality  [signal.NIRSChannels]uint8
	FrameFlags uint8
}

// EncodeEEGChunk serializes a run of raw EEG samples into one chunk blob.
func EncodeEEGChunk(startUs, endUs int64, sampleRateHz float32, samples []RawEEGSample) []byte {
	var body bytes.Buffer
	for _, s := range samples {
		binary.Write(&body, binary.BigEndian, s.TsUs)
		for _, c := range s.Channels {
			binary.Write(&body, binary.BigEndian, c)
		}
		body.WriteByte(s.Quality)
	}
	return assembleChunk(0, signal.EEGChannels, sampleRateHz, startUs, endUs, uint32(len(samples)), body.Bytes())
}

// DecodeEEGChunk parses a chunk blob previously produced by EncodeEEGChunk
// and verifies its embedded CRC-32 against the recomputed value.
func DecodeEEGChunk(blob []byte) ([]RawEEGSample, error) {
	body, sampleCount, err := splitChunk(blob, signal.EEGChannels)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	out := make([]RawEEGSample, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		var s RawEEGSample
		if err := binary.Read(r, binary.BigEndian, &s.TsUs); err != nil {
			return nil, fmt.Errorf("decode eeg chunk: sample %d: %w", i, err)
		}
		for c := range s.Channels {
			if err := binary.Read(r, binary.BigEndian, &s.Channels[c]); err != nil {
				return nil, fmt.Errorf("decode eeg chunk: sample %d channel %d: %w", i, c, err)
			}
		}
		q, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("decode eeg chunk: sample %d quality: %w", i, err)
		}
		s.Quality = q
		out = append(out, s)
	}
	return out, nil
}

// EncodeNIRSChunk serializes a run of raw NIRS samples into one chunk blob.
func EncodeNIRSChunk(startUs, endUs int64, sampleRateHz float32, samples []RawNIRSSample) []byte {
	var body bytes.Buffer
	for _, s := range samples {
		binary.Write(&body, binary.BigEndian, s.TsUs)
		for c := 0; c < signal.NIRSChannels; c++ {
			binary.Write(&body, binary.BigEndian, s.Channels[c])
			if s.ChValid[c] {
				body.WriteByte(1)
			} else {
				body.WriteByte(0)
			}
			body.WriteByte(s.ChQuality[c])
		}
		body.WriteByte(s.FrameFlags)
	}
	return assembleChunk(1, signal.NIRSChannels, sampleRateHz, startUs, endUs, uint32(len(samples)), body.Bytes())
}

// DecodeNIRSChunk parses a chunk blob previously produced by
// EncodeNIRSChunk.
func DecodeNIRSChunk(blob []byte) ([]RawNIRSSample, error) {
	body, sampleCount, err := splitChunk(blob, signal.NIRSChannels)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)
	out := make([]RawNIRSSample, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		var s RawNIRSSample
		if err := binary.Read(r, binary.BigEndian, &s.TsUs); err != nil {
			return nil, fmt.Errorf("decode nirs chunk: sample %d: %w", i, err)
		}
		for c := 0; c < signal.NIRSChannels; c++ {
			if err := binary.Read(r, binary.BigEndian, &s.Channels[c]); err != nil {
				return nil, fmt.Errorf("decode nirs chunk: sample %d channel %d: %w", i, c, err)
			}
			validByte, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("decode nirs chunk: sample %d channel %d valid flag: %w", i, c, err)
			}
			s.ChValid[c] = validByte != 0
			q, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("decode nirs chunk: sample %d channel %d quality: %w", i, c, err)
			}
			s.ChQuality[c] = q
		}
		flags, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("decode nirs chunk: sample %d frame flags: %w", i, err)
		}
		s.FrameFlags = flags
		out = append(out, s)
	}
	return out, nil
}

func assembleChunk(dataType byte, channelCount int, sampleRateHz float32, startUs, endUs int64, sampleCount uint32, body []byte) []byte {
	var hdr bytes.Buffer
	hdr.Write(chunkMagic[:])
	binary.Write(&hdr, binary.BigEndian, chunkVersion)
	hdr.WriteByte(dataType)
	hdr.WriteByte(byte(channelCount))
	binary.Write(&hdr, binary.BigEndian, sampleRateHz)
	binary.Write(&hdr, binary.BigEndian, startUs)
	binary.Write(&hdr, binary.BigEndian, endUs)
	binary.Write(&hdr, binary.BigEndian, sampleCount)
	crc := crc32.ChecksumIEEE(body)
	binary.Write(&hdr, binary.BigEndian, crc)
	hdr.Write(make([]byte, 28))
	return append(hdr.Bytes(), body...)
}

// ChecksumError is surfaced when a chunk's embedded CRC-32 does not match
// its body; it must never be silently discarded (spec.md §7).
type ChecksumError struct {
	Want, Got uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("chunk checksum mismatch: want %08x, got %08x", e.Want, e.Got)
}

func splitChunk(blob []byte, wantChannels int) (body []byte, sampleCount uint32, err error) {
	if len(blob) < chunkHeaderLen {
		return nil, 0, fmt.Errorf("chunk too short: %d bytes", len(blob))
	}
	if !bytes.Equal(blob[0:4], chunkMagic[:]) {
		return nil, 0, fmt.Errorf("bad chunk magic")
	}
	body = blob[chunkHeaderLen:]
	sampleCount = binary.BigEndian.Uint32(blob[28:32])
	wantCRC := binary.BigEndian.Uint32(blob[32:36])
	gotCRC := crc32.ChecksumIEEE(body)
	if wantCRC != gotCRC {
		return nil, 0, &ChecksumError{Want: wantCRC, Got: gotCRC}
	}
	return body, sampleCount, nil
}

// ChunkChecksum returns the CRC-32 of a chunk blob's body as stored in its
// header (it does not recompute it), used by the writer to populate the
// Chunk row's Checksum column.
func ChunkChecksum(blob []byte) uint32 {
	if len(blob) < chunkHeaderLen {
		return 0
	}
	return binary.BigEndian.Uint32(blob[32:36])
}
