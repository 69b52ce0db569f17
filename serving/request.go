package serving

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/tourkit/core"
)

// RecommendRequest 个性化推荐
type RecommendRequest struct {
	UserID string `json:"user_id" validate:"required"`
	TopN   int    `json:"top_n" validate:"gte=0"`
}

// RankRequest 对调用方给出的候选排序
type RankRequest struct {
	UserID  string   `json:"user_id" validate:"required"`
	TourIDs []string `json:"tour_ids" validate:"required,min=1,dive,required"`
}

// SearchRequest 自由文本搜索；带 UserID 时走两阶段排序
type SearchRequest struct {
	Query  string `json:"query" validate:"required"`
	UserID string `json:"user_id"`
	TopN   int    `json:"top_n" validate:"gte=0"`
}

// SimilarRequest 相似游览
type SimilarRequest struct {
	TourID string `json:"tour_id" validate:"required"`
	TopN   int    `json:"top_n" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest 校验请求结构，失败统一转为 INVALID_REQUEST
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.InvalidRequest(core.ModuleServing, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return core.InvalidRequest(core.ModuleServing, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := jsonName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return name + " must not be empty"
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

// jsonName 把结构体字段名映射为请求里的参数名
func jsonName(field string) string {
	switch field {
	case "UserID":
		return "user_id"
	case "TourIDs":
		return "tour_ids"
	case "TourID":
		return "tour_id"
	case "TopN":
		return "top_n"
	case "Query":
		return "query"
	}
	return strings.ToLower(field)
}
