package modules

import (
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary"
	"github.com/sevakendra/beneficiary-portal/pkg/application"
)

var BuiltInModules = []application.Module{
	beneficiary.NewModule(),
}

func Load(app application.Application, mods ...application.Module) error {
	return application.Load(app, mods...)
}
