package core

import (
	"reflect"

	"github.com/encodeous/gsqr/state"
)

func Get[T state.GsModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
