package net

import (
	"github.com/rs/zerolog"
)

// Callback receives training lifecycle events.
type Callback interface {
	OnTrainBegin(n *Network)
	OnEpochEnd(epoch int, loss float64, n *Network)
	OnTrainEnd(n *Network)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network)                        {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, n *Network) {}
func (c BaseCallback) OnTrainEnd(n *Network)                          {}

// LogCallback logs training progress every Interval epochs.
type LogCallback struct {
	BaseCallback
	Log      zerolog.Logger
	Interval int

	last float64
}

func (c *LogCallback) OnTrainBegin(n *Network) {
	c.Log.Debug().
		Int("input", n.InputSize()).
		Int("hidden", n.HiddenSize()).
		Str("activation", n.Activation().Name()).
		Int("epochs", n.epochs).
		Msg("training started")
}

func (c *LogCallback) OnEpochEnd(epoch int, loss float64, n *Network) {
	c.last = loss
	if c.Interval > 0 && epoch%c.Interval == 0 {
		c.Log.Debug().Int("epoch", epoch).Float64("loss", loss).Msg("epoch")
	}
}

func (c *LogCallback) OnTrainEnd(n *Network) {
	c.Log.Info().Float64("final_loss", c.last).Msg("training finished")
}
