package layout

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/reportboard/render"
)

func TestRegistry_TrackDefaults(t *testing.T) {
	r := NewRegistry()

	require.Equal(t, render.Container{ID: "a", Width: 600, Height: 300}, r.Track("a", 0, 0, 0))
	require.Equal(t, render.Container{ID: "b", Width: 400, Height: 250}, r.Track("b", 400, 0, 250))
	require.Equal(t, render.Container{ID: "c", Width: 600, Height: 500}, r.Track("c", 0, 500, 250))

	c, ok := r.Container("b")
	require.True(t, ok)
	require.Equal(t, 400, c.Width)

	_, ok = r.Container("missing")
	require.False(t, ok)
	require.Equal(t, 3, r.Len())
}

func TestRegistry_ResizeRedrawsCompleted(t *testing.T) {
	r := NewRegistry()
	r.Track("done", 0, 0, 0)
	r.Track("pending", 0, 0, 0)

	sizeOf := render.Func(func(c render.Container, data json.RawMessage) (string, error) {
		w, h := c.ContentSize()
		return string(data) + "@" + strconv.Itoa(w) + "x" + strconv.Itoa(h), nil
	})
	r.Remember("done", sizeOf, json.RawMessage(`"t"`))
	r.Remember("unknown", sizeOf, json.RawMessage(`"x"`))

	redraws, err := r.Resize(432, 900)
	require.NoError(t, err)
	require.Len(t, redraws, 1)
	require.Equal(t, "done", redraws[0].ID)
	require.Equal(t, render.Container{ID: "done", Width: 400, Height: 300}, redraws[0].Container)
	require.Equal(t, `"t"@378x258`, redraws[0].HTML)

	c, _ := r.Container("pending")
	require.Equal(t, 400, c.Width, "pending containers are resized too")

	// widening restores the configured width
	redraws, err = r.Resize(2000, 900)
	require.NoError(t, err)
	require.Equal(t, 600, redraws[0].Container.Width)

	// containers tracked after a resize fit the current viewport
	_, err = r.Resize(332, 0)
	require.NoError(t, err)
	require.Equal(t, 300, r.Track("late", 0, 0, 0).Width)
}

func TestRegistry_ResizeInvalid(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resize(0, 100)
	require.ErrorIs(t, err, ErrInvalidViewport)

	_, err = r.Resize(100, -1)
	require.Error(t, err)
}

func TestRegistry_ResizeRecoversRendererPanic(t *testing.T) {
	r := NewRegistry()
	r.Track("boom", 0, 0, 0)
	r.Remember("boom", render.Func(func(render.Container, json.RawMessage) (string, error) {
		panic("bad chart")
	}), nil)

	redraws, err := r.Resize(800, 600)
	require.NoError(t, err)
	require.Len(t, redraws, 1)
	require.ErrorContains(t, redraws[0].Err, "bad chart")
}

func TestRegistry_Forget(t *testing.T) {
	r := NewRegistry()
	r.Track("a", 0, 0, 0)
	r.Remember("a", render.HTML{}, json.RawMessage(`"<p>x</p>"`))
	r.Forget("a")
	r.Forget("a")

	require.Zero(t, r.Len())
	redraws, err := r.Resize(800, 600)
	require.NoError(t, err)
	require.Empty(t, redraws)
}
