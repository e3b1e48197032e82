package dashscope

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/lingting/rehab-core/core/speechtotext/dashscope"

var logger = otelslog.NewLogger(scopeName)
