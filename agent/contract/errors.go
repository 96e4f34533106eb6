package contract

import "errors"

var (
	ErrDownload      = errors.New("media download failed")
	ErrExtraction    = errors.New("intent extraction failed")
	ErrBusinessLogic = errors.New("business logic failed")
	ErrDelivery      = errors.New("reply delivery failed")
	ErrValidation    = errors.New("validation failed")
	ErrQueueFull     = errors.New("task queue is full")
)
