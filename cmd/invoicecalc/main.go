package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicecalc/internal/billingrun"
	"github.com/smallbiznis/invoicecalc/internal/cache"
	"github.com/smallbiznis/invoicecalc/internal/clock"
	"github.com/smallbiznis/invoicecalc/internal/config"
	"github.com/smallbiznis/invoicecalc/internal/currency"
	"github.com/smallbiznis/invoicecalc/internal/exchangerate"
	"github.com/smallbiznis/invoicecalc/internal/invoice"
	"github.com/smallbiznis/invoicecalc/internal/lineitem"
	"github.com/smallbiznis/invoicecalc/internal/observability"
	"github.com/smallbiznis/invoicecalc/internal/pricing"
	"github.com/smallbiznis/invoicecalc/internal/proration"
	"github.com/smallbiznis/invoicecalc/internal/tax"
	"github.com/smallbiznis/invoicecalc/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Rates
		exchangerate.Module,
		cache.Module,
		currency.Module,

		// Calculation
		tax.Module,
		proration.Module,
		pricing.Module,
		invoice.Module,

		// Batch
		lineitem.Module,
		billingrun.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
