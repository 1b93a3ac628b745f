package bus

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mcb1510/v2v-simulator/internal/bus"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
