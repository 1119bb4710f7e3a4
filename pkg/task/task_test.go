package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

type greetParams struct {
	Name string `json:"name"`
}

func TestRegistry_RegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", func(ctx context.Context, p greetParams) (string, error) {
		return "hello " + p.Name, nil
	})

	assert.True(t, r.Has("greet"))
	assert.Equal(t, []string{"greet"}, r.Kinds())

	v, err := r.Execute(context.Background(), "greet", []byte(`{"name":"ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello ada", v)
}

func TestRegistry_RegisterPanicsOnInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Register("bad kind", func(ctx context.Context) error { return nil }) })
	assert.Panics(t, func() { r.Register("ok", "not a function") })
}

func TestRegistry_TryRegister(t *testing.T) {
	r := NewRegistry()
	err := r.TryRegister("1bad", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, core.ErrInvalidTaskKind)
	assert.False(t, r.Has("1bad"))
}

func TestRegistry_UnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTaskKind)
	assert.ErrorIs(t, r.Validate("missing", nil), core.ErrUnknownTaskKind)
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", func(p greetParams) error { return nil })

	assert.NoError(t, r.Validate("greet", []byte(`{"name":"x"}`)))
	assert.NoError(t, r.Validate("greet", nil))

	err := r.Validate("greet", []byte(`{"name":5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, []string{KindFail, KindLog, KindSleep}, r.Kinds())

	_, err := r.Execute(context.Background(), KindLog, []byte(`{"message":"hi","level":"warn"}`))
	assert.NoError(t, err)

	_, err = r.Execute(context.Background(), KindLog, []byte(`{"message":"hi","level":"loud"}`))
	assert.Error(t, err)

	_, err = r.Execute(context.Background(), KindSleep, []byte(`{"duration":"5ms"}`))
	assert.NoError(t, err)

	_, err = r.Execute(context.Background(), KindSleep, []byte(`{"duration":"soon"}`))
	assert.Error(t, err)

	_, err = r.Execute(context.Background(), KindFail, []byte(`{"message":"nope"}`))
	assert.EqualError(t, err, "nope")
}

func TestBuiltins_SleepHonoursContext(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Execute(ctx, KindSleep, []byte(`{"duration":"1h"}`))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
