package services

import "time"

// Metrics is the narrow surface the orchestrator reports into. The
// prometheus collector implements it; tests use NopMetrics.
type Metrics interface {
	RoomOpened()
	RoomClosed()
	ViewerJoined()
	ViewerLeft()
	ProducerCreated(kind string)
	ConsumerCreated()
	WorkerRespawned()
	OperationObserved(op string, d time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) RoomOpened()                                {}
func (NopMetrics) RoomClosed()                                {}
func (NopMetrics) ViewerJoined()                              {}
func (NopMetrics) ViewerLeft()                                {}
func (NopMetrics) ProducerCreated(string)                     {}
func (NopMetrics) ConsumerCreated()                           {}
func (NopMetrics) WorkerRespawned()                           {}
func (NopMetrics) OperationObserved(string, time.Duration)    {}
