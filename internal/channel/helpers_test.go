package channel

import "ddt.game/internal/dispatch"

func dispatchHandler(fn func()) *dispatch.Handler {
	return dispatch.NewHandler(func(string, int, string, string) { fn() })
}
