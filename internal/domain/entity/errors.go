package entity

import "errors"

var (
	ErrNoImage            = errors.New("no image loaded")
	ErrInvalidSensitivity = errors.New("sensitivity must be between 1 and 100")
	ErrInvalidMarkerSize  = errors.New("marker size must be between 5 and 50")
	ErrInvalidColor       = errors.New("color must be a #rrggbb hex string")
	ErrInvalidDetection   = errors.New("invalid detection")
	ErrInvalidClick       = errors.New("invalid click coordinates")
)
