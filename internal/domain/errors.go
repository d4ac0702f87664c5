package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQuoteExpired      = errors.New("quote expired")
	ErrInsufficientDepth = errors.New("insufficient liquidity")
	ErrChainNotSupported = errors.New("chain not supported")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
