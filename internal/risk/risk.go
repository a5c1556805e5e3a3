// Package risk maps a predicted minimum temperature to a discrete frost-risk
// tier with its presentation hints.
package risk

// Nivel is one of the five ordinal risk tiers.
type Nivel struct {
	Riesgo string `json:"riesgo"`
	Emoji  string `json:"emoji_riesgo"`
	Color  string `json:"color_mapa"`
}

var (
	muyAlto = Nivel{Riesgo: "MUY ALTO", Emoji: "🔴", Color: "red"}
	alto    = Nivel{Riesgo: "ALTO", Emoji: "🟠", Color: "orange"}
	medio   = Nivel{Riesgo: "MEDIO", Emoji: "🟡", Color: "yellow"}
	bajo    = Nivel{Riesgo: "BAJO", Emoji: "🟢", Color: "green"}
	muyBajo = Nivel{Riesgo: "MUY BAJO", Emoji: "🟢", Color: "green"}
)

// Classify is total over the reals and deterministic. Boundaries are
// inclusive on the upper side: t <= -2 MUY ALTO, <= 0 ALTO, <= 2 MEDIO,
// <= 4 BAJO, else MUY BAJO.
func Classify(t float64) Nivel {
	switch {
	case t <= -2:
		return muyAlto
	case t <= 0:
		return alto
	case t <= 2:
		return medio
	case t <= 4:
		return bajo
	default:
		return muyBajo
	}
}
