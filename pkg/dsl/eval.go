package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义原始商户记录上可用的变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("stars", cel.DoubleType),
		cel.Variable("review_count", cel.IntType),
		cel.Variable("categories", cel.ListType(cel.StringType)),
		cel.Variable("categories_text", cel.StringType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Record 是表达式求值的输入：一条原始商户记录的已解析字段。
type Record struct {
	Name           string
	City           string
	State          string
	Stars          float64
	ReviewCount    int
	Categories     []string
	CategoriesText string // 未切分的原始类目文本
}

// Eval 是编译后的布尔表达式，使用 CEL (Common Expression Language)。
// 编译一次，可被多个 goroutine 并发求值。
//
// 可用变量：name, city, state, stars, review_count, categories (list), categories_text
//
// 示例：
//   - `["Tours", "Local Flavor"].exists(k, categories_text.contains(k))` → 类目文本包含关键词（子串匹配）
//   - `categories.exists(c, c in ["Tours", "Active Life"])` → 类目精确命中
//   - `stars >= 3.5 && review_count > 10`
type Eval struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式为空时恒为 true。
func Compile(expr string) (*Eval, error) {
	e := &Eval{expr: expr}
	if expr == "" {
		return e, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: env error: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("dsl: expression must return bool, got %v", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program error: %w", err)
	}
	e.prg = prg
	return e, nil
}

// Expr 返回原始表达式
func (e *Eval) Expr() string { return e.expr }

// Evaluate 对一条记录求值。
func (e *Eval) Evaluate(r Record) (bool, error) {
	if e.prg == nil {
		return true, nil
	}
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	out, _, err := e.prg.Eval(map[string]any{
		"name":            r.Name,
		"city":            r.City,
		"state":           r.State,
		"stars":           r.Stars,
		"review_count":    int64(r.ReviewCount),
		"categories":      categories,
		"categories_text": r.CategoriesText,
	})
	if err != nil {
		return false, fmt.Errorf("dsl: eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
