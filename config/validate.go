package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/tourkit/pkg/dsl"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段约束与 catalog 策略表达式
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return errors.New("config: store.redis.addr is required for the redis backend")
	}
	if c.Store.Backend == "badger" && c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
		return errors.New("config: store.badger.path is required unless in_memory is set")
	}
	if _, err := dsl.Compile(c.Catalog.Policy); err != nil {
		return fmt.Errorf("config: catalog.policy: %w", err)
	}
	return nil
}
