package protocol

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/blockverse/internal/vec"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// initZstd создаёт общий кодер и декодер; EncodeAll/DecodeAll безопасны для горутин
func initZstd() {
	zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if zstdErr != nil {
		return
	}
	zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(MaxFrameSize))
}

// NewChunkPayload упаковывает RLE-данные чанка, при необходимости сжимая их
func NewChunkPayload(pos vec.Vec3, hash uint64, data []byte, compress bool) (ChunkPayload, error) {
	p := ChunkPayload{Pos: pos, Hash: hash, Data: data}
	if !compress {
		return p, nil
	}

	zstdOnce.Do(initZstd)
	if zstdErr != nil {
		return p, fmt.Errorf("zstd init: %w", zstdErr)
	}

	p.Data = zstdEncoder.EncodeAll(data, nil)
	p.Compressed = true
	return p, nil
}

// Raw возвращает RLE-данные чанка, распаковывая их при необходимости
func (p ChunkPayload) Raw() ([]byte, error) {
	if !p.Compressed {
		return p.Data, nil
	}

	zstdOnce.Do(initZstd)
	if zstdErr != nil {
		return nil, fmt.Errorf("zstd init: %w", zstdErr)
	}

	raw, err := zstdDecoder.DecodeAll(p.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %v: %w", p.Pos, err)
	}
	return raw, nil
}
