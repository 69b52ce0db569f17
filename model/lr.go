package model

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/rushteam/tourkit/core"
)

// TagLinear 是线性回归变体的标签
const TagLinear = "lr"

// LinearModel 是岭回归线性模型，作为 GBDT 之外的轻量排序变体。
//
// 预测：score = Bias + sum(Weight_i * Feature_i)
// 训练：闭式解 (XᵀX + λI) w = Xᵀy，偏置项不做正则。
type LinearModel struct {
	Bias           float64
	Weights        []float64 // 与 FeatureNames 一一对应
	FeatureNames   []string
	Schema         string
	Regularization float64
}

// DefaultLinearRegularization 是默认的 L2 强度
const DefaultLinearRegularization = 1e-3

// TrainLinear 训练线性模型
func TrainLinear(rows [][]float64, targets []float64, features []string, schemaVersion string, lambda float64) (*LinearModel, error) {
	if err := checkTraining(rows, targets, len(features)); err != nil {
		return nil, err
	}
	if lambda <= 0 {
		lambda = DefaultLinearRegularization
	}
	d := len(features) + 1 // 第 0 列为偏置
	a := make([][]float64, d)
	for i := range a {
		a[i] = make([]float64, d+1)
	}
	x := make([]float64, d)
	for r, row := range rows {
		x[0] = 1
		copy(x[1:], row)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				a[i][j] += x[i] * x[j]
			}
			a[i][d] += x[i] * targets[r]
		}
	}
	for i := 1; i < d; i++ {
		a[i][i] += lambda
	}
	w, ok := solve(a)
	if !ok {
		return nil, core.TrainingData(core.ModuleModel, "lr: normal equations are singular")
	}
	return &LinearModel{
		Bias:           w[0],
		Weights:        w[1:],
		FeatureNames:   append([]string(nil), features...),
		Schema:         schemaVersion,
		Regularization: lambda,
	}, nil
}

// solve 对增广矩阵做部分主元高斯消元
func solve(a [][]float64) ([]float64, bool) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i][n] / a[i][i]
	}
	return out, true
}

func (m *LinearModel) Name() string { return "rank.lr" }

func (m *LinearModel) Tag() string { return TagLinear }

func (m *LinearModel) SchemaVersion() string { return m.Schema }

func (m *LinearModel) Features() []string { return append([]string(nil), m.FeatureNames...) }

func (m *LinearModel) Score(rows [][]float64) ([]float64, error) {
	if err := checkRows(rows, len(m.Weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		s := m.Bias
		for j, w := range m.Weights {
			s += w * r[j]
		}
		out[i] = s
	}
	return out, nil
}

func (m *LinearModel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(m)
	return buf.Bytes(), err
}

// UnmarshalLinear 从 MarshalBinary 的输出恢复模型
func UnmarshalLinear(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	if len(m.Weights) != len(m.FeatureNames) {
		return nil, core.SnapshotIncompatible("lr: weights do not match feature list")
	}
	return &m, nil
}
