// Package catalog 是目录与评分数据的边界：读写处理后的 JSONL 记录，
// 以及从原始商户/评论导出清洗出游览目录。
package catalog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pkg/conv"
)

// maxLineSize 单行 JSON 的上限，原始评论正文可能很长
const maxLineSize = 16 << 20

// 评论时间可能出现的格式
var dateLayouts = []string{time.DateTime, time.RFC3339, time.DateOnly}

// TourRecord 是处理后的目录行
type TourRecord struct {
	TourID      string  `json:"tour_id"`
	Name        string  `json:"name"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Stars       float64 `json:"stars"`
	ReviewCount int     `json:"review_count"`
	Categories  string  `json:"categories"`
}

// ReviewRecord 是处理后的评分行
type ReviewRecord struct {
	ReviewID string `json:"review_id"`
	UserID   string `json:"user_id"`
	TourID   string `json:"tour_id"`
	Stars    int    `json:"stars"`
	Text     string `json:"text"`
	Date     string `json:"date"`
}

// scanLines 逐行回调非空 JSON 对象，行号从 1 开始
func scanLines(r io.Reader, fn func(line int, rec map[string]any) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeTrainingData, fmt.Sprintf("catalog: line %d is not a JSON object", line), err)
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("catalog: scan: %w", err)
	}
	return nil
}

// tourFromRecord 解析一行目录；categories 为空的记录返回 ok=false
func tourFromRecord(line int, rec map[string]any, idField string) (core.Tour, bool, error) {
	id, _ := conv.ToString(rec[idField])
	if id == "" {
		return core.Tour{}, false, core.TrainingData(core.ModuleCatalog, fmt.Sprintf("catalog: line %d lacks %s", line, idField))
	}
	rawCats, _ := conv.ToString(rec["categories"])
	cats := conv.SplitList(rawCats)
	if len(cats) == 0 {
		return core.Tour{}, false, nil
	}
	t := core.Tour{ID: id, Categories: cats}
	t.Name, _ = conv.ToString(rec["name"])
	t.City, _ = conv.ToString(rec["city"])
	t.State, _ = conv.ToString(rec["state"])
	t.Stars, _ = conv.ToFloat64(rec["stars"])
	t.ReviewCount, _ = conv.ToInt(rec["review_count"])
	return t, true, nil
}

// ReadTours 读取处理后的目录 JSONL，没有类目的记录被跳过
func ReadTours(r io.Reader) ([]core.Tour, error) {
	var tours []core.Tour
	err := scanLines(r, func(line int, rec map[string]any) error {
		t, ok, err := tourFromRecord(line, rec, "tour_id")
		if err != nil || !ok {
			return err
		}
		tours = append(tours, t)
		return nil
	})
	return tours, err
}

// ReadInteractions 读取处理后的评分 JSONL；评分必须是 1..5 的整数
func ReadInteractions(r io.Reader) ([]core.Interaction, error) {
	var out []core.Interaction
	err := scanLines(r, func(line int, rec map[string]any) error {
		it, err := interactionFromRecord(line, rec, "tour_id")
		if err != nil {
			return err
		}
		out = append(out, it)
		return nil
	})
	return out, err
}

func interactionFromRecord(line int, rec map[string]any, tourField string) (core.Interaction, error) {
	var it core.Interaction
	it.UserID, _ = conv.ToString(rec["user_id"])
	it.TourID, _ = conv.ToString(rec[tourField])
	if it.UserID == "" || it.TourID == "" {
		return it, core.TrainingData(core.ModuleCatalog, fmt.Sprintf("catalog: line %d lacks user_id or %s", line, tourField))
	}
	stars, ok := conv.ToInt(rec["stars"])
	if !ok || stars < core.MinRating || stars > core.MaxRating {
		return it, core.TrainingData(core.ModuleCatalog, fmt.Sprintf("catalog: line %d has invalid stars %v", line, rec["stars"]))
	}
	it.Stars = stars
	it.ReviewID, _ = conv.ToString(rec["review_id"])
	it.Text, _ = conv.ToString(rec["text"])
	if s, ok := conv.ToString(rec["date"]); ok {
		it.Date = parseDate(s)
	}
	return it, nil
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WriteTours 以 JSONL 写出目录，类目以逗号连接
func WriteTours(w io.Writer, tours []core.Tour) error {
	enc := json.NewEncoder(w)
	for _, t := range tours {
		rec := TourRecord{
			TourID:      t.ID,
			Name:        t.Name,
			City:        t.City,
			State:       t.State,
			Stars:       t.Stars,
			ReviewCount: t.ReviewCount,
			Categories:  strings.Join(t.Categories, ", "),
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("catalog: write tour %s: %w", t.ID, err)
		}
	}
	return nil
}

// WriteInteractions 以 JSONL 写出评分
func WriteInteractions(w io.Writer, interactions []core.Interaction) error {
	enc := json.NewEncoder(w)
	for _, it := range interactions {
		if err := enc.Encode(reviewRecord(it)); err != nil {
			return fmt.Errorf("catalog: write review %s: %w", it.ReviewID, err)
		}
	}
	return nil
}

func reviewRecord(it core.Interaction) ReviewRecord {
	rec := ReviewRecord{
		ReviewID: it.ReviewID,
		UserID:   it.UserID,
		TourID:   it.TourID,
		Stars:    it.Stars,
		Text:     it.Text,
	}
	if !it.Date.IsZero() {
		rec.Date = it.Date.Format(time.DateTime)
	}
	return rec
}

// LoadTours 从文件读取目录
func LoadTours(path string) ([]core.Tour, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open tours: %w", err)
	}
	defer f.Close()
	return ReadTours(f)
}

// LoadInteractions 从文件读取评分
func LoadInteractions(path string) ([]core.Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open reviews: %w", err)
	}
	defer f.Close()
	return ReadInteractions(f)
}
