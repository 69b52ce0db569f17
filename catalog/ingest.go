package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/tourkit/pkg/conv"
	"github.com/rushteam/tourkit/pkg/dsl"
	"github.com/rushteam/tourkit/pkg/logging"
)

// Policy 判定一条原始商户记录是否属于游览，规则是可配置的 CEL 表达式
type Policy struct {
	eval *dsl.Eval
}

// NewPolicy 编译策略表达式
func NewPolicy(expr string) (*Policy, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Policy{eval: e}, nil
}

// Expr 返回策略表达式
func (p *Policy) Expr() string { return p.eval.Expr() }

// Keep 对一条原始商户记录求值
func (p *Policy) Keep(rec map[string]any) (bool, error) {
	raw, _ := conv.ToString(rec["categories"])
	r := dsl.Record{CategoriesText: raw, Categories: conv.SplitList(raw)}
	r.Name, _ = conv.ToString(rec["name"])
	r.City, _ = conv.ToString(rec["city"])
	r.State, _ = conv.ToString(rec["state"])
	r.Stars, _ = conv.ToFloat64(rec["stars"])
	r.ReviewCount, _ = conv.ToInt(rec["review_count"])
	return p.eval.Evaluate(r)
}

// IngestStats 是一次导入的计数
type IngestStats struct {
	Businesses  int `json:"businesses"`
	Tours       int `json:"tours"`
	Reviews     int `json:"reviews"`
	KeptReviews int `json:"kept_reviews"`
}

// Ingest 从原始商户与评论 JSONL 清洗出目录与评分：
// business_id 改名为 tour_id，没有类目或策略不命中的商户丢弃，评论只保留已入选游览的。
func Ingest(ctx context.Context, policy *Policy, businesses, reviews io.Reader, toursOut, reviewsOut io.Writer) (IngestStats, error) {
	log := logging.Component("catalog")
	var stats IngestStats
	kept := make(map[string]struct{})

	tw := bufio.NewWriter(toursOut)
	tenc := json.NewEncoder(tw)
	err := scanLines(businesses, func(line int, rec map[string]any) error {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		stats.Businesses++
		t, ok, err := tourFromRecord(line, rec, "business_id")
		if err != nil || !ok {
			return err
		}
		keep, err := policy.Keep(rec)
		if err != nil {
			return fmt.Errorf("catalog: line %d: %w", line, err)
		}
		if !keep {
			return nil
		}
		if _, dup := kept[t.ID]; dup {
			return nil
		}
		kept[t.ID] = struct{}{}
		stats.Tours++
		return tenc.Encode(TourRecord{
			TourID:      t.ID,
			Name:        t.Name,
			City:        t.City,
			State:       t.State,
			Stars:       t.Stars,
			ReviewCount: t.ReviewCount,
			Categories:  strings.Join(t.Categories, ", "),
		})
	})
	if err != nil {
		return stats, err
	}
	if err := tw.Flush(); err != nil {
		return stats, err
	}
	log.Info().Int("businesses", stats.Businesses).Int("tours", stats.Tours).Str("policy", policy.Expr()).Msg("businesses filtered")

	rw := bufio.NewWriter(reviewsOut)
	renc := json.NewEncoder(rw)
	err = scanLines(reviews, func(line int, rec map[string]any) error {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		stats.Reviews++
		bid, _ := conv.ToString(rec["business_id"])
		if _, ok := kept[bid]; !ok {
			return nil
		}
		it, err := interactionFromRecord(line, rec, "business_id")
		if err != nil {
			return err
		}
		stats.KeptReviews++
		return renc.Encode(reviewRecord(it))
	})
	if err != nil {
		return stats, err
	}
	if err := rw.Flush(); err != nil {
		return stats, err
	}
	log.Info().Int("reviews", stats.Reviews).Int("kept", stats.KeptReviews).Msg("reviews filtered")
	return stats, nil
}
