package snapshot

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rushteam/tourkit/core"
)

// FormatVersion 是组件信封的编码版本，不一致的快照拒绝加载
const FormatVersion = 1

// envelope 是单个组件的持久化形态：gob(envelope) 再整体 gzip。
type envelope struct {
	Tag     string
	Format  int
	Payload []byte
}

// encodeValue 用 gob 编码任意组件状态
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// seal 把组件载荷封装为压缩信封，返回 blob 与其 sha256
func seal(tag string, payload []byte) ([]byte, string, error) {
	raw, err := encodeValue(envelope{Tag: tag, Format: FormatVersion, Payload: payload})
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	blob := buf.Bytes()
	return blob, checksum(blob), nil
}

// open 校验并拆开信封
func open(name string, blob []byte, want Component) ([]byte, error) {
	if got := checksum(blob); got != want.Checksum {
		return nil, core.SnapshotIncompatible(fmt.Sprintf("snapshot: component %s checksum mismatch", name))
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: component "+name+" is not gzip", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: read component "+name, err)
	}
	var env envelope
	if err := decodeValue(raw, &env); err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: decode envelope "+name, err)
	}
	if env.Format != FormatVersion {
		return nil, core.SnapshotIncompatible(fmt.Sprintf("snapshot: component %s format %d, want %d", name, env.Format, FormatVersion))
	}
	if env.Tag != want.Tag {
		return nil, core.SnapshotIncompatible(fmt.Sprintf("snapshot: component %s tag %q, manifest says %q", name, env.Tag, want.Tag))
	}
	return env.Payload, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
