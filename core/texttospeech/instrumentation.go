package texttospeech

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/lingting/rehab-core/core/texttospeech"

var tracer = otel.Tracer(scopeName)
var logger = otelslog.NewLogger(scopeName)
