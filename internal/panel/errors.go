// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package panel

import "errors"

var (
	ErrUnknownKey    = errors.New("unknown parameter")
	ErrUnknownPreset = errors.New("unknown preset")
	ErrUnknownTheme  = errors.New("unknown theme")
	ErrUnknownSlot   = errors.New("unknown layout slot")
)
