package orchestration

import (
	"context"
	"fmt"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// LastRunes keeps only the trailing n runes of a transcript, for subtitle
// displays that show a single short line.
func LastRunes(n int) func(string) string {
	return func(text string) string {
		runes := []rune(text)
		if n <= 0 || len(runes) <= n {
			return text
		}
		return string(runes[len(runes)-n:])
	}
}
