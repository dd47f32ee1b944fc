package modules

import (
	"github.com/redis/go-redis/v9"

	"github.com/rescueranger/rescueranger/modules/core"
	"github.com/rescueranger/rescueranger/modules/rescue"
	"github.com/rescueranger/rescueranger/pkg/application"
)

// BuiltIn returns the module set in registration order. Core must come
// first: it owns the policy engine and the isolation enforcer that the
// feature modules register against.
func BuiltIn(redisClient *redis.Client) []application.Module {
	return []application.Module{
		core.NewModule(&core.ModuleOptions{Redis: redisClient}),
		rescue.NewModule(),
	}
}

func Load(app application.Application, mods ...application.Module) error {
	for _, module := range mods {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
