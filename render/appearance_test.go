package render_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/eak1mov/go-anviltiles/render"
)

func TestParseTable(t *testing.T) {
	t.Parallel()

	table, err := render.ParseTable([]byte(`
stone: {color: "#707070"}
minecraft:water: {color: "#3f76e4", alpha: 0.62, tint: water}
lantern: {color: "#ffd966", emits: true, occludes: false}
oak_slab:
  color: "#9f844d"
  occludes: false
  states:
    - when: {type: double}
      occludes: true
`))
	require.NoError(t, err)

	stone := table.Resolve(chunk.BlockState{Name: "minecraft:stone"})
	require.Equal(t, render.Appearance{R: 0x70, G: 0x70, B: 0x70, Alpha: 1, Occludes: true}, stone)

	water := table.Resolve(chunk.BlockState{Name: "minecraft:water"})
	require.Equal(t, 0.62, water.Alpha)
	require.False(t, water.Occludes, "translucency lifts occlusion")
	require.Equal(t, render.TintWater, water.Tint)

	lantern := table.Resolve(chunk.BlockState{Name: "minecraft:lantern"})
	require.True(t, lantern.Emits)
	require.False(t, lantern.Occludes)
}

func TestStateOverrides(t *testing.T) {
	t.Parallel()

	table, err := render.ParseTable([]byte(`
oak_slab:
  color: "#9f844d"
  occludes: false
  states:
    - when: {type: double}
      occludes: true
`))
	require.NoError(t, err)

	half := table.Resolve(chunk.BlockState{Name: "minecraft:oak_slab", Properties: map[string]string{"type": "bottom"}})
	require.False(t, half.Occludes)

	double := table.Resolve(chunk.BlockState{Name: "minecraft:oak_slab", Properties: map[string]string{"type": "double", "waterlogged": "false"}})
	require.True(t, double.Occludes, "when-map matches as a property subset")
	require.Equal(t, half.R, double.R, "override inherits unset fields")
}

func TestParseTableErrors(t *testing.T) {
	t.Parallel()

	for name, src := range map[string]string{
		"bad color":    `stone: {color: "purple"}`,
		"alpha range":  `stone: {color: "#707070", alpha: 1.5}`,
		"unknown tint": `stone: {color: "#707070", tint: lava}`,
		"not yaml":     `: :`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := render.ParseTable([]byte(src))
			require.Error(t, err)
		})
	}
}

func TestResolveMiss(t *testing.T) {
	t.Parallel()

	table, err := render.ParseTable([]byte(`stone: {color: "#707070"}`))
	require.NoError(t, err)

	app := table.Resolve(chunk.BlockState{Name: "minecraft:gearbox"})
	require.True(t, app.Miss)
	require.Equal(t, uint8(0xff), app.R)
	require.Equal(t, uint8(0xff), app.B)
	require.True(t, app.Occludes)

	table.Resolve(chunk.BlockState{Name: "minecraft:axle"})
	table.Resolve(chunk.BlockState{Name: "minecraft:gearbox"}) // memoized repeat
	require.Equal(t, []string{"minecraft:axle", "minecraft:gearbox"}, table.Misses())
}

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	table := render.DefaultTable()
	for _, name := range []string{
		"minecraft:stone", "minecraft:grass_block", "minecraft:water",
		"minecraft:oak_leaves", "minecraft:sand", "minecraft:lava",
	} {
		require.False(t, table.Resolve(chunk.BlockState{Name: name}).Miss, name)
	}
	air := table.Resolve(chunk.BlockState{Name: "minecraft:air"})
	require.False(t, air.Visible())
	require.Empty(t, table.Misses())
}

func TestDefaultTableInstancesIndependent(t *testing.T) {
	t.Parallel()

	// Each table carries its own miss record, so one run's unknown
	// blocks never show up in another run's summary.
	polluted := render.DefaultTable()
	polluted.Resolve(chunk.BlockState{Name: "minecraft:gearbox"})
	require.Equal(t, []string{"minecraft:gearbox"}, polluted.Misses())

	require.Empty(t, render.DefaultTable().Misses())
}
