package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreamOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultStreamOptions().Validate())
	assert.NoError(t, StreamOptions{MaxBinNumber: 1}.Validate())
	assert.Error(t, StreamOptions{}.Validate())
	assert.Error(t, StreamOptions{MaxBinNumber: -3}.Validate())
}

func TestPluginOptionsValidate(t *testing.T) {
	valid := func() PluginOptions {
		return PluginOptions{
			OutputPath:        "/tmp/out.log",
			AggregationPeriod: DefaultAggregationPeriod,
			Stream:            DefaultStreamOptions(),
		}
	}
	tests := []struct {
		name    string
		modify  func(*PluginOptions)
		wantErr bool
	}{
		{"file output", func(o *PluginOptions) {}, false},
		{"cloudwatch output", func(o *PluginOptions) { o.OutputPath = ""; o.LogGroupName = "group" }, false},
		{"no output", func(o *PluginOptions) { o.OutputPath = "" }, true},
		{"zero period", func(o *PluginOptions) { o.AggregationPeriod = 0 }, true},
		{"negative period", func(o *PluginOptions) { o.AggregationPeriod = -time.Second }, true},
		{"http", func(o *PluginOptions) { o.Protocol = "http" }, false},
		{"ftp", func(o *PluginOptions) { o.Protocol = "ftp" }, true},
		{"no bins", func(o *PluginOptions) { o.Stream.MaxBinNumber = 0 }, true},
		{"large synopsis to file", func(o *PluginOptions) { o.Stream.MaxBinNumber = 500 }, false},
		{"large synopsis to cloudwatch", func(o *PluginOptions) { o.LogGroupName = "group"; o.Stream.MaxBinNumber = 101 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.modify(&o)
			if tt.wantErr {
				assert.Error(t, o.Validate())
			} else {
				assert.NoError(t, o.Validate())
			}
		})
	}
}
