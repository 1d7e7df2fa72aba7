package cvio

import (
	"testing"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/stretchr/testify/assert"
)

func TestFPSMeter(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	meter := fpsMeter{}
	assert.Equal(t, "", meter.caption(start))
	assert.Equal(t, "FPS: 4.0", meter.caption(start.Add(250*time.Millisecond)))
	// Same creation time gives no caption instead of infinite rate
	assert.Equal(t, "", meter.caption(start.Add(250*time.Millisecond)))
}

func TestFPSMeterKeepsFrame(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	meter := fpsMeter{}
	first := mot.NewFrame(nil, start)
	second := mot.NewFrame(nil, start.Add(time.Second))
	meter.caption(first.Created)
	assert.Equal(t, "FPS: 1.0", meter.caption(second.Created))
	assert.Empty(t, first.Info)
	assert.Empty(t, second.Info)
}

func TestPhotoSinkPath(t *testing.T) {
	frame := mot.NewFrame(nil, time.Unix(1700000000, 0))
	assert.Equal(t, "out/result.png", NewPhotoSink("out/result.png", false).Path(frame))
	assert.Equal(t, "out/result_1700000000.png", NewPhotoSink("out/result.png", true).Path(frame))
	assert.Equal(t, "shot.jpg", NewPhotoSink("shot", false).Path(frame))
}
