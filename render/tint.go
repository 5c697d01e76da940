package render

import "github.com/lucasb-eyer/go-colorful"

// biomeTint holds the blend targets for the three tint classes in one
// biome. Values approximate the game's climate-derived colormaps.
type biomeTint struct {
	Grass   string
	Foliage string
	Water   string
}

var defaultTint = biomeTint{Grass: "#91bd59", Foliage: "#77ab2f", Water: "#3f76e4"}

var biomeTints = map[string]biomeTint{
	"minecraft:plains":          defaultTint,
	"minecraft:sunflower_plains": defaultTint,
	"minecraft:forest":          {Grass: "#79c05a", Foliage: "#59ae30", Water: "#3f76e4"},
	"minecraft:birch_forest":    {Grass: "#88bb67", Foliage: "#6ba941", Water: "#3f76e4"},
	"minecraft:dark_forest":     {Grass: "#507a32", Foliage: "#59ae30", Water: "#3f76e4"},
	"minecraft:jungle":          {Grass: "#59c93c", Foliage: "#30bb0b", Water: "#3f76e4"},
	"minecraft:taiga":           {Grass: "#86b783", Foliage: "#68a464", Water: "#3f76e4"},
	"minecraft:snowy_taiga":     {Grass: "#80b497", Foliage: "#60a17b", Water: "#3d57d6"},
	"minecraft:snowy_plains":    {Grass: "#80b497", Foliage: "#60a17b", Water: "#3d57d6"},
	"minecraft:desert":          {Grass: "#bfb755", Foliage: "#aea42a", Water: "#3f76e4"},
	"minecraft:badlands":        {Grass: "#90814d", Foliage: "#9e814d", Water: "#3f76e4"},
	"minecraft:savanna":         {Grass: "#bfb755", Foliage: "#aea42a", Water: "#3f76e4"},
	"minecraft:swamp":           {Grass: "#6a7039", Foliage: "#6a7039", Water: "#617b64"},
	"minecraft:mangrove_swamp":  {Grass: "#6a7039", Foliage: "#8db127", Water: "#3a7a6a"},
	"minecraft:windswept_hills": {Grass: "#8ab689", Foliage: "#6da36b", Water: "#3f76e4"},
	"minecraft:mushroom_fields": {Grass: "#55c93f", Foliage: "#2bbb0f", Water: "#3f76e4"},
	"minecraft:ocean":           {Grass: "#8eb971", Foliage: "#71a74d", Water: "#3f76e4"},
	"minecraft:deep_ocean":      {Grass: "#8eb971", Foliage: "#71a74d", Water: "#3f76e4"},
	"minecraft:warm_ocean":      {Grass: "#8eb971", Foliage: "#71a74d", Water: "#43d5ee"},
	"minecraft:lukewarm_ocean":  {Grass: "#8eb971", Foliage: "#71a74d", Water: "#45adf2"},
	"minecraft:cold_ocean":      {Grass: "#8eb971", Foliage: "#71a74d", Water: "#3d57d6"},
	"minecraft:frozen_ocean":    {Grass: "#80b497", Foliage: "#60a17b", Water: "#3938c9"},
	"minecraft:frozen_river":    {Grass: "#80b497", Foliage: "#60a17b", Water: "#3938c9"},
	"minecraft:river":           {Grass: "#8eb971", Foliage: "#71a74d", Water: "#3f76e4"},
	"minecraft:beach":           {Grass: "#91bd59", Foliage: "#77ab2f", Water: "#3f76e4"},
	"minecraft:cherry_grove":    {Grass: "#b6db61", Foliage: "#b6db61", Water: "#3f76e4"},
}

// tintColor returns the blend target for a tint class in a biome, falling
// back to temperate defaults when the biome is unknown or unset.
func tintColor(class Tint, biome string) (colorful.Color, bool) {
	if class == TintNone {
		return colorful.Color{}, false
	}
	tint, ok := biomeTints[biome]
	if !ok {
		tint = defaultTint
	}
	var hex string
	switch class {
	case TintGrass:
		hex = tint.Grass
	case TintFoliage:
		hex = tint.Foliage
	case TintWater:
		hex = tint.Water
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// applyTint blends a block's base color 50/50 with its biome tint target.
func applyTint(app Appearance, biome string) (r, g, b float64) {
	base := colorful.Color{R: float64(app.R) / 255, G: float64(app.G) / 255, B: float64(app.B) / 255}
	target, ok := tintColor(app.Tint, biome)
	if !ok {
		return base.R, base.G, base.B
	}
	blended := base.BlendRgb(target, 0.5)
	return blended.R, blended.G, blended.B
}
