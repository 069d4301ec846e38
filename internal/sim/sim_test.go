package sim

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/sample"
)

func TestBurstPopsFIFO(t *testing.T) {
	d := New()
	d.Enqueue(sample.Sample{X: 1, Y: 2, Z: 3}, sample.Sample{X: 4, Y: 5, Z: 6})
	test.That(t, d.FIFOLen(), test.ShouldEqual, 2)

	st, err := d.ReadRegister(adxl345.RegFIFOStatus)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st, test.ShouldEqual, byte(2))

	b, err := d.ReadBurst(adxl345.RegDataX0, sample.Size)
	test.That(t, err, test.ShouldBeNil)
	s, _ := sample.Decode(b)
	test.That(t, s, test.ShouldResemble, sample.Sample{X: 1, Y: 2, Z: 3})
	test.That(t, d.FIFOLen(), test.ShouldEqual, 1)
}

func TestFIFOOverwritesOldest(t *testing.T) {
	d := New()
	for i := 0; i < fifoDepth+5; i++ {
		d.Enqueue(sample.Sample{X: int16(i)})
	}
	test.That(t, d.FIFOLen(), test.ShouldEqual, fifoDepth)
	b, _ := d.ReadBurst(adxl345.RegDataX0, sample.Size)
	s, _ := sample.Decode(b)
	test.That(t, s.X, test.ShouldEqual, int16(5))
}

func TestWritesAndDevID(t *testing.T) {
	d := New()
	id, err := d.ReadRegister(adxl345.RegDevID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, adxl345.DeviceID)

	test.That(t, d.WriteRegister(adxl345.RegFIFOCtl, []byte{0x94}), test.ShouldBeNil)
	test.That(t, d.WriteRegister(adxl345.RegPowerCtl, []byte{adxl345.PowerMeasure}), test.ShouldBeNil)
	test.That(t, d.Watermark(), test.ShouldEqual, 20)
	test.That(t, d.Measuring(), test.ShouldBeTrue)
	test.That(t, d.Writes(), test.ShouldResemble, []adxl345.RegPair{
		{Reg: adxl345.RegFIFOCtl, Value: 0x94},
		{Reg: adxl345.RegPowerCtl, Value: adxl345.PowerMeasure},
	})

	d.FailWrites(adxl345.RegBWRate)
	err = d.WriteRegister(adxl345.RegBWRate, []byte{0x0A})
	test.That(t, errors.Is(err, ErrInjected), test.ShouldBeTrue)

	d.FailNextBursts(1)
	_, err = d.ReadBurst(adxl345.RegDataX0, 6)
	test.That(t, errors.Is(err, ErrInjected), test.ShouldBeTrue)
	_, err = d.ReadBurst(adxl345.RegDataX0, 6)
	test.That(t, err, test.ShouldBeNil)
}

func TestSignal(t *testing.T) {
	d := New()
	test.That(t, d.Fire(), test.ShouldBeFalse)

	calls := 0
	test.That(t, d.Arm(func() { calls++ }), test.ShouldBeNil)
	test.That(t, d.Arm(func() {}), test.ShouldNotBeNil)
	test.That(t, d.Burst(sample.Sample{}), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 1)

	test.That(t, d.Disarm(), test.ShouldBeNil)
	test.That(t, d.Armed(), test.ShouldBeFalse)
	test.That(t, d.Fire(), test.ShouldBeFalse)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestRunGeneratesWhileMeasuring(t *testing.T) {
	d := New()
	_ = d.WriteRegister(adxl345.RegFIFOCtl, []byte{0x80 | 4})
	_ = d.WriteRegister(adxl345.RegPowerCtl, []byte{adxl345.PowerMeasure})

	fired := make(chan struct{}, 8)
	test.That(t, d.Arm(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, NewWaveform(100), 2*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("generator never fired")
	}
	test.That(t, d.FIFOLen(), test.ShouldBeGreaterThanOrEqualTo, 4)
}
