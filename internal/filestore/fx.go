package filestore

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/config"
)

// Module provides the dataset and image stores as named values
// `name:"datasets"` and `name:"images"`.
var Module = fx.Module("filestore",
	fx.Provide(
		fx.Annotate(NewDatasetStore, fx.ResultTags(`name:"datasets"`)),
		fx.Annotate(NewImageStore, fx.ResultTags(`name:"images"`)),
	),
)

func NewDatasetStore(cfg config.Config) (*Store, error) {
	return New(cfg.DataUploadDir)
}

func NewImageStore(cfg config.Config) (*Store, error) {
	return New(cfg.ImageUploadDir)
}
