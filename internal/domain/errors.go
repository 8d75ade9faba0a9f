package domain

import "errors"

var (
	ErrHubClosed    = errors.New("broadcast hub closed")
	ErrFunnelClosed = errors.New("command funnel unavailable")
)
