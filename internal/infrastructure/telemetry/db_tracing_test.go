package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sequenceRow struct {
	Prefix    string `gorm:"primaryKey"`
	Year      int    `gorm:"primaryKey"`
	LastValue int64
}

func newTracedSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sequenceRow{}))
	return db
}

func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, attr := range span.Attributes() {
		out[string(attr.Key)] = attr.Value.AsInterface()
	}
	return out
}

func TestNewDBTracingPlugin_Defaults(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)

	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", plugin.config.DBSystem)
	assert.False(t, plugin.config.LogFullSQL)
	assert.Equal(t, DefaultDBTracingConfig().SlowQueryThresh, plugin.config.SlowQueryThresh)
}

func TestDBTracingPlugin_Register(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantHooked bool
	}{
		{"disabled leaves callbacks untouched", false, false},
		{"enabled installs timing callbacks", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTracedSQLite(t)
			tp, _ := newRecordingProvider(t)
			cfg := DefaultDBTracingConfig()
			cfg.Enabled = tt.enabled
			cfg.DBSystem = "sqlite"
			cfg.TracerProvider = tp

			require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))

			hooked := db.Callback().Create().Get(callbackName("after", "create")) != nil
			assert.Equal(t, tt.wantHooked, hooked)
			assert.Equal(t, tt.wantHooked, db.Callback().Raw().Get(callbackName("before", "raw")) != nil)
		})
	}
}

func TestDBTracingPlugin_EnabledRecordsQuerySpans(t *testing.T) {
	db := newTracedSQLite(t)
	tp, sr := newRecordingProvider(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	cfg.TracerProvider = tp
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "invoicing.generate_recurring")
	require.NoError(t, db.WithContext(ctx).Create(&sequenceRow{Prefix: "INV", Year: 2024, LastValue: 1}).Error)
	parent.End()

	var child sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		if span.Parent().SpanID() == parent.SpanContext().SpanID() {
			child = span
		}
	}
	require.NotNil(t, child, "query span must be a child of the job span")
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestDBTracingPlugin_AfterAnnotatesSpan(t *testing.T) {
	db := newTracedSQLite(t)
	start := time.Date(2024, time.January, 31, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		lookup   bool
		wantSlow bool
	}{
		{name: "fast insert", elapsed: 20 * time.Millisecond},
		{name: "slow insert", elapsed: 350 * time.Millisecond, wantSlow: true},
		{name: "record not found is not an error", lookup: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sr := newRecordingProvider(t)
			plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())
			plugin.now = func() time.Time { return start.Add(tt.elapsed) }

			ctx, span := tp.Tracer("test").Start(context.Background(), "query")
			var result *gorm.DB
			if tt.lookup {
				result = db.WithContext(ctx).Where("prefix = ?", "missing").First(&sequenceRow{})
			} else {
				result = db.WithContext(ctx).Create(&sequenceRow{Prefix: tt.name, Year: 2024, LastValue: 1})
			}
			result.Statement.Context = context.WithValue(ctx, queryStartKey{}, start)
			plugin.after(result)
			span.End()

			ended := sr.Ended()
			require.Len(t, ended, 1)
			attrs := spanAttributes(ended[0])
			assert.Equal(t, "sequence_rows", attrs[AttrDBTable])
			if tt.wantSlow {
				assert.Equal(t, true, attrs[AttrDBSlowQuery])
				assert.Equal(t, int64(350), attrs[AttrDBQueryDuration])
				require.Len(t, ended[0].Events(), 1)
				assert.Equal(t, "slow_query_warning", ended[0].Events()[0].Name)
			} else {
				assert.NotContains(t, attrs, AttrDBSlowQuery)
			}
			if !tt.lookup {
				assert.Equal(t, int64(1), attrs[AttrDBRowsAffected])
			}
			assert.NotEqual(t, codes.Error, ended[0].Status().Code)
		})
	}
}
