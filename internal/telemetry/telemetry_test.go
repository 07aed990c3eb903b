package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))

	// Baggage still propagates for correlation ids
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestInitTracerRequiresEndpoint(t *testing.T) {
	_, err := InitTracer(Config{Enabled: true, ServiceName: "mist"})
	assert.Error(t, err)
}

func TestGORMTracingPlugin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Use(GORMTracingPlugin("sqlite")))

	type widget struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.AutoMigrate(&widget{}))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)

	var got widget
	require.NoError(t, db.WithContext(ctx).First(&got).Error)
	assert.Equal(t, "a", got.Name)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM widgets").Error)
}

func TestInstrumentedHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewInstrumentedHTTPClient(time.Second)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRecordExternalCallResult(t *testing.T) {
	_, span := TraceExternalCall(context.Background(), "expo", "send")
	RecordExternalCallResult(span, http.StatusBadGateway, errors.New("boom"))
	span.End()
}
