package billingrun

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	lineitemdomain "github.com/smallbiznis/invoicecalc/internal/lineitem/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	runner := newTestRunner(t, new(mockSource), newRecordingSink())

	_, err := NewScheduler(Config{Schedule: "every tuesday"}, runner, zap.NewNop())
	assert.Error(t, err)

	_, err = NewScheduler(Config{TimeZone: "Mars/Olympus"}, runner, zap.NewNop())
	assert.Error(t, err)
}

func TestSchedulerRunsOnStart(t *testing.T) {
	header := lineitemdomain.InvoiceHeader{ID: snowflake.ID(3), Ref: "INV-3", Currency: "CAD"}
	source := new(mockSource)
	source.On("ListInvoices", mock.Anything, runNow).Return([]lineitemdomain.InvoiceHeader{header}, nil)
	source.On("LoadLines", mock.Anything, header).Return([]lineitemdomain.RawLine{}, []lineitemdomain.RawTaxAssignment{}, nil)
	sink := newRecordingSink()

	s, err := NewScheduler(Config{RunOnStart: true}, newTestRunner(t, source, sink), zap.NewNop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool {
		_, ok := sink.get("INV-3")
		return ok
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "0 2 * * *", cfg.Schedule)
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.RunOnStart)
}
