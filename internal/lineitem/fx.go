package lineitem

import (
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	"github.com/smallbiznis/invoicecalc/internal/lineitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("lineitem.repository",
	fx.Provide(repository.New),
	fx.Provide(
		func(r *repository.Repository) lineitemdomain.Source { return r },
		func(r *repository.Repository) lineitemdomain.Sink { return r },
	),
)
