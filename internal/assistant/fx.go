package assistant

import (
	"github.com/smallbiznis/oceandata/internal/assistant/gemini"
	"github.com/smallbiznis/oceandata/internal/assistant/repository"
	"github.com/smallbiznis/oceandata/internal/assistant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assistant.service",
	fx.Provide(repository.Provide),
	fx.Provide(gemini.New),
	fx.Provide(service.New),
)
