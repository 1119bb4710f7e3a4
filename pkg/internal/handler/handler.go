// Package handler provides reflection-based handler execution for registered tasks.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Handler holds metadata about a registered task function.
type Handler struct {
	Fn         reflect.Value
	ParamsType reflect.Type
	HasContext bool
	HasResult  bool
}

// NewHandler creates a Handler from a function.
// Accepted shapes, with T any JSON-decodable type and R any type:
//
//	func(ctx context.Context, params T) error
//	func(ctx context.Context, params T) (R, error)
//	func(params T) error
//	func(ctx context.Context) error
func NewHandler(fn any) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", fn)
	}
	if fnVal.IsNil() {
		return nil, fmt.Errorf("handler function cannot be nil")
	}

	fnType := fnVal.Type()
	h := &Handler{Fn: fnVal}

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 2 {
		return nil, fmt.Errorf("handler must have 1-2 arguments")
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("handler must not be variadic")
	}

	next := 0
	if fnType.In(0).Implements(contextType) {
		h.HasContext = true
		next = 1
	} else if numIn == 2 {
		return nil, fmt.Errorf("first of two arguments must be context.Context")
	}
	if next < numIn {
		h.ParamsType = fnType.In(next)
	}

	switch fnType.NumOut() {
	case 1:
		if !fnType.Out(0).Implements(errorType) {
			return nil, fmt.Errorf("handler must return error")
		}
	case 2:
		if !fnType.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("handler must return (R, error)")
		}
		h.HasResult = true
	default:
		return nil, fmt.Errorf("handler must return error or (R, error)")
	}

	return h, nil
}

// Decode unmarshals params into a new value of the handler's parameter type.
// Empty params decode to the zero value.
func (h *Handler) Decode(params []byte) (reflect.Value, error) {
	if h.ParamsType == nil {
		return reflect.Value{}, nil
	}
	ptr := reflect.New(h.ParamsType)
	if len(params) > 0 {
		if err := json.Unmarshal(params, ptr.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("failed to decode params: %w", err)
		}
	}
	return ptr.Elem(), nil
}

// Validate reports whether params decode into the handler's parameter type.
func (h *Handler) Validate(params []byte) error {
	_, err := h.Decode(params)
	return err
}

// Execute decodes params and calls the handler.
func (h *Handler) Execute(ctx context.Context, params []byte) (any, error) {
	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return nil, fmt.Errorf("handler function is nil or invalid")
	}

	var in []reflect.Value
	if h.HasContext {
		in = append(in, reflect.ValueOf(ctx))
	}
	if h.ParamsType != nil {
		arg, err := h.Decode(params)
		if err != nil {
			return nil, err
		}
		in = append(in, arg)
	}

	out := h.Fn.Call(in)

	errVal := out[len(out)-1]
	if !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	if h.HasResult {
		return out[0].Interface(), nil
	}
	return nil, nil
}
