package cache

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/dataset/domain"
)

var Module = fx.Module("cache",
	fx.Provide(NewStatisticsCache),
	fx.Provide(func(c *StatisticsCache) domain.StatisticsInvalidator { return c }),
)
