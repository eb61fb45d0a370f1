// Package snapshot 图谱快照的二进制编码：4 字节魔数 + 1 字节版本 + gzip(JSON)
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"novel-rag-engine/internal/domain/entity"
	apperrors "novel-rag-engine/pkg/errors"
)

var magic = []byte("NRGS")

const headerLen = 5

// Encode 编码快照
func Encode(g *entity.Graph) ([]byte, error) {
	if g == nil {
		return nil, apperrors.ErrInvalidParam.WithDetail("nil graph")
	}
	if g.Version != 0 && g.Version != entity.SnapshotVersion {
		return nil, apperrors.ErrContractViolation.WithDetail(fmt.Sprintf("unsupported snapshot version %d", g.Version))
	}

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(byte(entity.SnapshotVersion))

	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(g); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode 解码快照并重建索引；魔数、版本或边引用不合法时返回 ErrContractViolation
func Decode(data []byte) (*entity.Graph, error) {
	if len(data) < headerLen || !bytes.Equal(data[:len(magic)], magic) {
		return nil, apperrors.ErrContractViolation.WithDetail("not a graph snapshot")
	}
	if v := int(data[len(magic)]); v != entity.SnapshotVersion {
		return nil, apperrors.ErrContractViolation.WithDetail(fmt.Sprintf("unsupported snapshot version %d", v))
	}

	zr, err := gzip.NewReader(bytes.NewReader(data[headerLen:]))
	if err != nil {
		return nil, apperrors.ErrContractViolation.WithError(err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, apperrors.ErrContractViolation.WithError(err)
	}

	var g entity.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, apperrors.ErrContractViolation.WithError(err)
	}
	for i, e := range g.Edges {
		if e.Source < 0 || e.Source >= len(g.Nodes) || e.Target < 0 || e.Target >= len(g.Nodes) {
			return nil, apperrors.ErrContractViolation.WithDetail(fmt.Sprintf("edge %d references missing node", i))
		}
	}
	g.Version = entity.SnapshotVersion
	g.Reindex()
	return &g, nil
}
