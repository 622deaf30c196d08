// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import (
	"fmt"

	"github.com/ManuGH/arlpanel/internal/plot"
)

// Slot names one of the six plot positions.
type Slot string

const (
	SlotEnv       Slot = "env"
	SlotEigenrays Slot = "eigenrays"
	SlotArrivals  Slot = "arrivals"
	SlotSSP       Slot = "ssp"
	SlotRays      Slot = "rays"
	SlotTLoss     Slot = "tloss"
)

// Slots lists the slots in the order the simulation fills them.
var Slots = []Slot{SlotEnv, SlotEigenrays, SlotArrivals, SlotRays, SlotSSP, SlotTLoss}

// Columns is the fixed grid: environment, eigen rays and arrivals on the
// left; SSP, rays and transmission loss on the right.
var Columns = [][]Slot{
	{SlotEnv, SlotEigenrays, SlotArrivals},
	{SlotSSP, SlotRays, SlotTLoss},
}

var placeholderTitles = map[Slot]string{
	SlotEnv:       "Error plotting environment",
	SlotEigenrays: "Error plotting eigen rays",
	SlotArrivals:  "Error plotting arrivals",
	SlotRays:      "Error plotting rays",
	SlotSSP:       "Error plotting SSP",
	SlotTLoss:     "Error plotting transmission loss",
}

var titleSuffix = map[Slot]string{
	SlotEnv:       " env",
	SlotEigenrays: " eigen rays",
	SlotArrivals:  " arrivals",
	SlotRays:      " rays",
	SlotSSP:       " SSP",
	SlotTLoss:     " transmission loss",
}

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
}

// Title is the figure title of slot for an environment called name.
func Title(slot Slot, name string) string {
	return name + titleSuffix[slot]
}

// PlaceholderFor returns the empty figure shown when slot fails.
func PlaceholderFor(slot Slot) *plot.Figure {
	return plot.Placeholder(placeholderTitles[slot])
}

// Layout maps every slot to its current figure.
type Layout map[Slot]*plot.Figure

func placeholderLayout() Layout {
	l := make(Layout, len(Slots))
	for _, s := range Slots {
		l[s] = PlaceholderFor(s)
	}
	return l
}

// Placeholders counts slots showing a placeholder.
func (l Layout) Placeholders() int {
	n := 0
	for _, s := range Slots {
		if f := l[s]; f == nil || f.Placeholder {
			n++
		}
	}
	return n
}

func (l Layout) clone() Layout {
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
