package sim

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mcb1510/v2v-simulator/internal/sim"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
