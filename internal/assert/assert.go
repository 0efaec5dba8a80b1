package assert

import "reflect"

// NotNil panics when value is nil, including typed nil pointers stored in an interface.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Chan, reflect.Slice:
		if v.IsNil() {
			panic("expected value to be not nil")
		}
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
