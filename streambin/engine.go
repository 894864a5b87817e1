package streambin

import (
	"io"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
)

// Engine is the streaming surface shared by StreamBining and Mixed.
type Engine interface {
	InitializeStream()
	IsStreamInitialized() bool
	AddStreamValue(value float64)
	AddStreamValueFrequency(value float64, frequency int)
	FinalizeStream()

	GetStreamLowerValue() float64
	GetStreamUpperValue() float64
	GetStreamFrequency() int

	ExportStreamBins() []histogram.Bin
	WriteStreamBinMerges(w io.Writer) error
}

var (
	_ Engine = (*StreamBining)(nil)
	_ Engine = (*Mixed)(nil)
)

// New returns an uninitialized engine for opts, which must be valid.
func New(opts options.StreamOptions) Engine {
	if err := opts.Validate(); err != nil {
		panic(err)
	}
	if opts.Mixed {
		return NewMixedWith(opts)
	}
	return NewStreamBiningWith(opts)
}
