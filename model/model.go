package model

import (
	"encoding"
	"fmt"

	"github.com/rushteam/tourkit/core"
)

// RankModel 是排序阶段的打分能力：输入按特征结构排列的行，逐行输出分数，顺序不变。
// 变体（gbdt / lr）通过 Tag 区分，加载快照时按 Tag 选择解码器。
type RankModel interface {
	Name() string
	Tag() string
	// SchemaVersion 返回训练时使用的特征结构版本
	SchemaVersion() string
	// Features 返回训练时的特征字段顺序
	Features() []string
	Score(rows [][]float64) ([]float64, error)

	encoding.BinaryMarshaler
}

// Decoder 把序列化字节还原为某个变体
type Decoder func(data []byte) (RankModel, error)

var decoders = map[string]Decoder{
	TagGBDT:   func(data []byte) (RankModel, error) { return UnmarshalGBDT(data) },
	TagLinear: func(data []byte) (RankModel, error) { return UnmarshalLinear(data) },
}

// Decode 按 tag 选择变体解码，未知 tag 返回 SNAPSHOT_INCOMPATIBLE。
func Decode(tag string, data []byte) (RankModel, error) {
	dec, ok := decoders[tag]
	if !ok {
		return nil, core.SnapshotIncompatible(fmt.Sprintf("model: unknown rank model tag %q", tag))
	}
	m, err := dec(data)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "model: decode "+tag, err)
	}
	return m, nil
}

// Tags 返回支持的变体
func Tags() []string {
	return []string{TagGBDT, TagLinear}
}

func checkRows(rows [][]float64, width int) error {
	for i, r := range rows {
		if len(r) != width {
			return core.InvalidRequest(core.ModuleModel, fmt.Sprintf("model: row %d has %d features, want %d", i, len(r), width))
		}
	}
	return nil
}

func checkTraining(rows [][]float64, targets []float64, width int) error {
	if len(rows) == 0 {
		return core.TrainingData(core.ModuleModel, "model: training set is empty")
	}
	if len(rows) != len(targets) {
		return core.TrainingData(core.ModuleModel, "model: rows and targets length mismatch")
	}
	if width == 0 {
		return core.TrainingData(core.ModuleModel, "model: feature list is empty")
	}
	for i, r := range rows {
		if len(r) != width {
			return core.TrainingData(core.ModuleModel, fmt.Sprintf("model: row %d has %d features, want %d", i, len(r), width))
		}
	}
	return nil
}
