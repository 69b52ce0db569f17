package snapshot

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
)

// 组件名，同时是组件 Hash 中的字段名
const (
	ComponentCatalog  = "catalog"
	ComponentFeatures = "features"
	ComponentContent  = "content"
	ComponentMF       = "mf"
	ComponentLexical  = "lexical"
	ComponentRanker   = "ranker"
)

// ComponentNames 返回一个完整快照必须包含的组件
func ComponentNames() []string {
	return []string{ComponentCatalog, ComponentFeatures, ComponentContent, ComponentMF, ComponentLexical, ComponentRanker}
}

// Component 是 manifest 中单个组件的元信息
type Component struct {
	Tag      string `json:"tag"`
	Checksum string `json:"sha256"`
	Size     int    `json:"size"`
}

// Manifest 描述一个快照：特征结构、目录版本、各组件与训练指标。
type Manifest struct {
	ID             string               `json:"id"`
	BuiltAt        time.Time            `json:"built_at"`
	FormatVersion  int                  `json:"format_version"`
	FeatureSchema  feature.Schema       `json:"feature_schema"`
	CatalogVersion string               `json:"catalog_version"`
	TourCount      int                  `json:"tour_count"`
	Components     map[string]Component `json:"components"`
	Metrics        map[string]float64   `json:"metrics,omitempty"`
}

// RankerTag 返回排序模型变体
func (m Manifest) RankerTag() string {
	return m.Components[ComponentRanker].Tag
}

func (m Manifest) encode() ([]byte, error) {
	return json.Marshal(m)
}

func decodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: bad manifest", err)
	}
	if m.FormatVersion != FormatVersion {
		return Manifest{}, core.SnapshotIncompatible("snapshot: unsupported manifest format")
	}
	return m, nil
}
