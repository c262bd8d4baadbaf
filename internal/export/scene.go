package export

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/hpungsan/blockcad/sdk"
)

// SceneFormatVersion is bumped whenever Scene changes incompatibly.
const SceneFormatVersion = 1

// SceneHeader is the JSON line at the start of a raw scene file. It can be read
// without decoding the body.
type SceneHeader struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id,omitempty"`
	Blocks    int    `json:"blocks"`
	NextID    int    `json:"next_id"`
	SavedAt   int64  `json:"saved_at"`
}

// Scene is the raw dump of an editor session: the block sequence plus the
// shared host state plugins see.
type Scene struct {
	Header      SceneHeader
	Blocks      []sdk.Block
	NextID      int
	ActiveColor sdk.Color
	GridSize    float32
}

// WriteScene writes a zstd-compressed header line followed by the gob-encoded scene.
func WriteScene(w io.Writer, scene Scene) error {
	scene.Header.Version = SceneFormatVersion
	scene.Header.Blocks = len(scene.Blocks)
	scene.Header.NextID = scene.NextID

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, err := json.Marshal(scene.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&scene); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadScene reads a file written by WriteScene.
func ReadScene(r io.Reader) (Scene, error) {
	var scene Scene
	dec, err := zstd.NewReader(r)
	if err != nil {
		return scene, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	hb, err := br.ReadBytes('\n')
	if err != nil {
		return scene, fmt.Errorf("read scene header: %w", err)
	}
	var header SceneHeader
	if err := json.Unmarshal(hb, &header); err != nil {
		return scene, fmt.Errorf("decode scene header: %w", err)
	}
	if header.Version != SceneFormatVersion {
		return scene, fmt.Errorf("unsupported scene version %d", header.Version)
	}

	if err := gob.NewDecoder(br).Decode(&scene); err != nil {
		return scene, fmt.Errorf("gob decode: %w", err)
	}
	if scene.Blocks == nil {
		scene.Blocks = []sdk.Block{}
	}
	return scene, nil
}

// Validate checks the invariants a live scene store relies on: ids are positive
// and unique, and no size component is negative.
func (s Scene) Validate() error {
	seen := make(map[int]struct{}, len(s.Blocks))
	for i, b := range s.Blocks {
		if b.ID < 1 {
			return fmt.Errorf("block %d has invalid id %d", i, b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("duplicate block id %d", b.ID)
		}
		seen[b.ID] = struct{}{}
		if b.Size.X < 0 || b.Size.Y < 0 || b.Size.Z < 0 {
			return fmt.Errorf("block #%d has negative size", b.ID)
		}
	}
	return nil
}

// ReadSceneHeader reads only the header line of a raw scene file.
func ReadSceneHeader(r io.Reader) (SceneHeader, error) {
	var header SceneHeader
	dec, err := zstd.NewReader(r)
	if err != nil {
		return header, err
	}
	defer dec.Close()

	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return header, fmt.Errorf("read scene header: %w", err)
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return header, fmt.Errorf("decode scene header: %w", err)
	}
	return header, nil
}
