package geometry

import "image"

// ReferenceSize is the resolution the built-in tables are measured in.
var ReferenceSize = image.Pt(1920, 1080)

// Keyword sets shared by the built-in tables.
var (
	JudgementKeywords = []string{"JUDGEMENT", "DETAILS", "MAX COMBO", "PERFECT"}
	MaxKeywords       = []string{"MAX"}
	VersusKeywords    = []string{"VERSUS", "MATCHRESULT"}
)

func respectV() *GameSpec {
	return &GameSpec{
		Game:      GameRespectV,
		Reference: ReferenceSize,
		Regions: []RegionSpec{
			{Name: "judgement", ScreenType: Result, Rect: Rect{Left: 1390, Top: 250, Width: 350, Height: 40}, Keywords: JudgementKeywords},
			{Name: "open-large-max", ScreenType: OpenLarge, Rect: Rect{Left: 640, Top: 90, Width: 80, Height: 40}, Keywords: MaxKeywords},
			{Name: "open-small-max", ScreenType: OpenSmall, Rect: Rect{Left: 800, Top: 110, Width: 80, Height: 40}, Keywords: MaxKeywords},
			{Name: "versus-banner", ScreenType: Versus, Rect: Rect{Left: 800, Top: 40, Width: 320, Height: 60}, Keywords: VersusKeywords, Normalize: NormalizeCompact},
			{Name: "collection-title", ScreenType: Collection, Rect: Rect{Left: 60, Top: 40, Width: 300, Height: 50}, Keywords: []string{"COLLECTION"}},
			{Name: "freestyle-title", ScreenType: Select, Rect: Rect{Left: 60, Top: 40, Width: 300, Height: 50}, Keywords: []string{"FREESTYLE"}, Normalize: NormalizeCompact},
			{Name: "open-match-title", ScreenType: OpenSelect, Rect: Rect{Left: 60, Top: 40, Width: 300, Height: 50}, Keywords: []string{"OPENMATCH"}, Normalize: NormalizeCompact},
		},
		Redactions: map[ScreenType][]RedactRegion{
			Result: {
				{Rect: Rect{Left: 1390, Top: 20, Width: 500, Height: 90}, Kind: KindSelf},
			},
			Select: {
				{Rect: Rect{Left: 1580, Top: 20, Width: 320, Height: 80}, Kind: KindSelf},
			},
			Collection: {
				{Rect: Rect{Left: 1580, Top: 20, Width: 320, Height: 80}, Kind: KindSelf},
			},
			OpenSelect: {
				{Rect: Rect{Left: 1580, Top: 20, Width: 320, Height: 80}, Kind: KindSelf},
				{Rect: Rect{Left: 20, Top: 700, Width: 560, Height: 360}, Kind: KindAlways},
			},
			OpenLarge: append(profileSlots(8, 4, Rect{Left: 30, Top: 150, Width: 420, Height: 70}, 470, 420),
				RedactRegion{Rect: Rect{Left: 1440, Top: 860, Width: 460, Height: 200}, Kind: KindAlways}),
			OpenSmall: append(profileSlots(4, 2, Rect{Left: 260, Top: 180, Width: 600, Height: 80}, 800, 400),
				RedactRegion{Rect: Rect{Left: 1440, Top: 860, Width: 460, Height: 200}, Kind: KindAlways}),
			Versus: {
				{Rect: Rect{Left: 100, Top: 150, Width: 600, Height: 90}, Kind: KindSelf},
				{Rect: Rect{Left: 1220, Top: 150, Width: 600, Height: 90}, Kind: KindOther},
			},
		},
	}
}

func platinaLab() *GameSpec {
	return &GameSpec{
		Game:      GamePlatinaLab,
		Reference: ReferenceSize,
		Regions: []RegionSpec{
			{Name: "judgement", ScreenType: Result, Rect: Rect{Left: 120, Top: 860, Width: 420, Height: 60}, Keywords: []string{"JUDGEMENT", "PERFECT", "PATTERN"}},
		},
		Redactions: map[ScreenType][]RedactRegion{
			Result: {
				{Rect: Rect{Left: 1500, Top: 30, Width: 380, Height: 80}, Kind: KindSelf},
			},
		},
	}
}

// profileSlots lays out n player cards in a grid, cols per row. The first
// slot is the user's own card.
func profileSlots(n, cols int, first Rect, dx, dy int) []RedactRegion {
	out := make([]RedactRegion, 0, n+1)
	for i := 0; i < n; i++ {
		r := first
		r.Left += (i % cols) * dx
		r.Top += (i / cols) * dy
		kind := KindOther
		if i == 0 {
			kind = KindSelf
		}
		out = append(out, RedactRegion{Rect: r, Kind: kind})
	}
	return out
}
