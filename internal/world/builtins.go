package world

import (
	"time"

	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// RegisterBuiltins installs native functions into the "builtins" module:
// currently just `schedule`, the delayed future scripts `await` to
// implement a pause (§4.I's scheduling primitive, §9). A bare name
// resolves in the calling code's own module, so plain `schedule(...)`
// reaches it only from code whose module is "builtins".
func RegisterBuiltins(w *World) {
	mod := w.Module("builtins")
	mod.Members["schedule"] = value.FunctionV(&value.Function{
		Name: "schedule",
		Native: func(args []value.Value) (value.Value, error) {
			seconds := 0.0
			if len(args) > 0 && args[0].Kind == value.Number {
				seconds = args[0].Num
			}
			return value.FutureV(&value.Future{
				Arm: func(resume func()) {
					time.AfterFunc(time.Duration(seconds*float64(time.Second)), resume)
				},
			}), nil
		},
	})
}
