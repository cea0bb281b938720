package dataset

import (
	"github.com/smallbiznis/oceandata/internal/dataset/repository"
	"github.com/smallbiznis/oceandata/internal/dataset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dataset.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
