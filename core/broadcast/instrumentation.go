package broadcast

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/lingting/rehab-core/core/broadcast"

var logger = otelslog.NewLogger(scopeName)
