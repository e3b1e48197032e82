package reports

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/lingting/rehab-core/core/reports"

var tracer = otel.Tracer(scopeName)
var logger = otelslog.NewLogger(scopeName)
