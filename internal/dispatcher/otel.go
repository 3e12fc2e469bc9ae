package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/karola3vax/Source2-AntiWallHack/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
