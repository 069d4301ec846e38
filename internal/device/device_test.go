package device

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/directory"
	"github.com/relabs-tech/accelstream/internal/irq"
	"github.com/relabs-tech/accelstream/internal/sample"
	"github.com/relabs-tech/accelstream/internal/sim"
)

func attachSim(t *testing.T, opts Options) (*Device, *sim.Device) {
	t.Helper()
	chip := sim.New()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t).Sugar()
	}
	opts.ExpectedDeviceID = adxl345.DeviceID
	d, err := Attach(context.Background(), chip, chip, opts)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		if !d.isClosed() {
			test.That(t, d.Detach(context.Background()), test.ShouldBeNil)
		}
	})
	return d, chip
}

func numbered(n int) []sample.Sample {
	out := make([]sample.Sample, n)
	for i := range out {
		out[i] = sample.Sample{X: int16(i + 1), Y: int16(100 + i), Z: int16(-i - 1)}
	}
	return out
}

func waitWakes(t *testing.T, d *Device, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.wakes.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d wakes, have %d", n, d.wakes.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAttachWritesSetupSequence(t *testing.T) {
	d, chip := attachSim(t, Options{})
	test.That(t, chip.Writes(), test.ShouldResemble, adxl345.DefaultConfig().SetupSequence())
	test.That(t, chip.Armed(), test.ShouldBeTrue)
	test.That(t, chip.Measuring(), test.ShouldBeTrue)
	test.That(t, d.Config(), test.ShouldResemble, adxl345.DefaultConfig())
}

func TestAttachAbortsOnSetupFailure(t *testing.T) {
	chip := sim.New()
	chip.FailWrites(adxl345.RegFIFOCtl)
	_, err := Attach(context.Background(), chip, chip, Options{Logger: zaptest.NewLogger(t).Sugar()})
	test.That(t, errors.Is(err, accelerr.ErrTransport), test.ShouldBeTrue)
	test.That(t, chip.Writes(), test.ShouldResemble, []adxl345.RegPair{
		{Reg: adxl345.RegBWRate, Value: adxl345.Rate100Hz},
		{Reg: adxl345.RegIntEnable, Value: adxl345.IntWatermark},
		{Reg: adxl345.RegDataFormat, Value: 0},
	})
	test.That(t, chip.Armed(), test.ShouldBeFalse)
	test.That(t, chip.Measuring(), test.ShouldBeFalse)
}

func TestAttachRejectsUnexpectedDevice(t *testing.T) {
	chip := sim.New()
	chip.SetDeviceID(0x33)
	_, err := Attach(context.Background(), chip, chip, Options{ExpectedDeviceID: adxl345.DeviceID})
	test.That(t, errors.Is(err, accelerr.ErrUnexpectedDevice), test.ShouldBeTrue)
	test.That(t, chip.Writes(), test.ShouldBeEmpty)

	d, err := Attach(context.Background(), chip, chip, Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Detach(context.Background()), test.ShouldBeNil)
}

func TestAttachRejectsBadOptions(t *testing.T) {
	chip := sim.New()
	_, err := Attach(context.Background(), chip, chip, Options{QueueCapacity: -1})
	test.That(t, errors.Is(err, accelerr.ErrAllocation), test.ShouldBeTrue)

	_, err = Attach(context.Background(), chip, chip, Options{Config: adxl345.Config{RateCode: 0x0A, Watermark: 40}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, chip.Armed(), test.ShouldBeFalse)
}

func TestWatermarkThenReadY(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	samples := numbered(20)
	test.That(t, chip.Burst(samples...), test.ShouldBeTrue)
	waitWakes(t, d, 1)

	st, err := d.Stats(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Queued, test.ShouldEqual, 20)
	test.That(t, st.Accepted, test.ShouldEqual, uint64(20))
	test.That(t, st.Watermarks, test.ShouldEqual, uint64(1))

	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.SelectAxis(ctx, sample.AxisY), test.ShouldBeNil)

	b, err := s.Read(ctx, 2)
	test.That(t, err, test.ShouldBeNil)
	want := samples[0].AxisBytes(sample.AxisY)
	test.That(t, b, test.ShouldResemble, want[:])
	test.That(t, d.queue.Len(), test.ShouldEqual, 19)
}

func TestReadMultipleSamplesInOrder(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	samples := numbered(20)
	chip.Burst(samples...)
	waitWakes(t, d, 1)

	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	b, err := s.Read(ctx, 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldResemble, []byte{1, 0, 2, 0, 3, 0})
}

func TestBlockedReadIsWoken(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)

	type result struct {
		v   int16
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := s.ReadValue(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		t.Fatalf("read returned before any sample: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	samples := numbered(20)
	chip.Burst(samples...)

	select {
	case r := <-done:
		test.That(t, r.err, test.ShouldBeNil)
		test.That(t, r.v, test.ShouldEqual, samples[0].X)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not woken")
	}
}

func TestCancelledReadKeepsSession(t *testing.T) {
	ctx := context.Background()
	d, _ := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)

	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(readCtx, 2)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		test.That(t, errors.Is(err, accelerr.ErrInterrupted), test.ShouldBeTrue)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled read did not return")
	}

	ids, err := d.Sessions(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldResemble, []directory.SessionID{"reader"})

	test.That(t, s.Close(ctx), test.ShouldBeNil)
	ids, err = d.Sessions(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldBeEmpty)
}

func TestReadWithoutOpen(t *testing.T) {
	d, _ := attachSim(t, Options{})
	_, err := d.Read(context.Background(), "stranger", 2)
	test.That(t, errors.Is(err, accelerr.ErrNotRegistered), test.ShouldBeTrue)

	err = d.Control(context.Background(), "stranger", SelectAxis(sample.AxisZ))
	test.That(t, errors.Is(err, accelerr.ErrNotRegistered), test.ShouldBeTrue)
}

func TestReadLength(t *testing.T) {
	ctx := context.Background()
	d, _ := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)

	_, err = s.Read(ctx, 3)
	test.That(t, errors.Is(err, accelerr.ErrInvalidLength), test.ShouldBeTrue)

	b, err := s.Read(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldBeEmpty)
}

func TestDuplicateOpen(t *testing.T) {
	ctx := context.Background()
	d, _ := attachSim(t, Options{})
	_, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	_, err = d.Open(ctx, "reader")
	test.That(t, errors.Is(err, accelerr.ErrDuplicateSession), test.ShouldBeTrue)

	ids, err := d.Sessions(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldHaveLength, 1)
}

func TestAxisSelectionIsPerSession(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	a, err := d.Open(ctx, "a")
	test.That(t, err, test.ShouldBeNil)
	b, err := d.Open(ctx, "b")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.Control(ctx, SelectAxisCode(sample.AxisZ)), test.ShouldBeNil)
	axis, err := a.Axis(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, axis, test.ShouldEqual, sample.AxisX)

	same := make([]sample.Sample, 20)
	for i := range same {
		same[i] = sample.Sample{X: 11, Y: 22, Z: 33}
	}
	chip.Burst(same...)
	waitWakes(t, d, 1)

	va, err := a.ReadValue(ctx)
	test.That(t, err, test.ShouldBeNil)
	vb, err := b.ReadValue(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, va, test.ShouldEqual, int16(11))
	test.That(t, vb, test.ShouldEqual, int16(33))
}

func TestInvalidCommandKeepsSession(t *testing.T) {
	ctx := context.Background()
	d, _ := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, errors.Is(s.Control(ctx, 0x1234), accelerr.ErrInvalidCommand), test.ShouldBeTrue)
	err = d.Control(ctx, "reader", Command{Op: 9})
	test.That(t, errors.Is(err, accelerr.ErrInvalidCommand), test.ShouldBeTrue)
	err = d.Control(ctx, "reader", SelectAxis(3))
	test.That(t, errors.Is(err, accelerr.ErrInvalidCommand), test.ShouldBeTrue)

	test.That(t, s.SelectAxis(ctx, sample.AxisY), test.ShouldBeNil)
	axis, err := s.Axis(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, axis, test.ShouldEqual, sample.AxisY)
}

func TestQueueOverflowDropsNewest(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{QueueCapacity: 4})
	samples := numbered(20)
	chip.Burst(samples...)
	waitWakes(t, d, 1)

	st, err := d.Stats(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Accepted, test.ShouldEqual, uint64(4))
	test.That(t, st.Dropped, test.ShouldEqual, uint64(16))
	test.That(t, st.Queued, test.ShouldEqual, 4)
	test.That(t, st.Capacity, test.ShouldEqual, 4)

	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 4; i++ {
		v, err := s.ReadValue(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, samples[i].X)
	}
}

func TestBurstFailureSkipsSlot(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	chip.FailNextBursts(2)
	chip.Burst(numbered(20)...)
	waitWakes(t, d, 1)

	st, err := d.Stats(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.BurstFailures, test.ShouldEqual, uint64(2))
	test.That(t, st.Accepted, test.ShouldEqual, uint64(18))
	test.That(t, st.Wakes, test.ShouldEqual, uint64(1))
}

func TestDetach(t *testing.T) {
	ctx := context.Background()
	chip := sim.New()
	d, err := Attach(ctx, chip, chip, Options{Logger: zaptest.NewLogger(t).Sugar()})
	test.That(t, err, test.ShouldBeNil)

	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(ctx, 2)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	test.That(t, d.Detach(ctx), test.ShouldBeNil)
	select {
	case err := <-done:
		test.That(t, errors.Is(err, accelerr.ErrInterrupted), test.ShouldBeTrue)
	case <-time.After(2 * time.Second):
		t.Fatal("detach did not wake the reader")
	}

	test.That(t, chip.Armed(), test.ShouldBeFalse)
	test.That(t, chip.Register(adxl345.RegPowerCtl), test.ShouldEqual, adxl345.PowerStandby)
	test.That(t, chip.Fire(), test.ShouldBeFalse)

	ids, err := d.Sessions(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldBeEmpty)

	test.That(t, errors.Is(d.Detach(ctx), accelerr.ErrDetached), test.ShouldBeTrue)
	_, err = d.Open(ctx, "late")
	test.That(t, errors.Is(err, accelerr.ErrDetached), test.ShouldBeTrue)
	test.That(t, s.Close(ctx), test.ShouldBeNil)
}

func TestRegisterAccess(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	id, err := d.ReadRegister(ctx, adxl345.RegDevID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, adxl345.DeviceID)

	test.That(t, d.WriteRegister(ctx, adxl345.RegDataFormat, 0x01), test.ShouldBeNil)
	test.That(t, chip.Register(adxl345.RegDataFormat), test.ShouldEqual, byte(0x01))
}

func TestSimulatedStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, chip := attachSim(t, Options{})
	go chip.Run(ctx, sim.NewWaveform(100), 2*time.Millisecond)

	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	b, err := s.Read(readCtx, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldHaveLength, 100)
}

func TestSignalBelowWatermarkIsIgnored(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	chip.Enqueue(numbered(5)...)
	test.That(t, chip.Fire(), test.ShouldBeTrue)

	deadline := time.Now().Add(2 * time.Second)
	for d.spurious.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	st, err := d.Stats(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Spurious, test.ShouldEqual, uint64(1))
	test.That(t, st.Watermarks, test.ShouldEqual, uint64(0))
	test.That(t, st.Accepted, test.ShouldEqual, uint64(0))
	test.That(t, chip.FIFOLen(), test.ShouldEqual, 5)

	chip.Burst(numbered(15)...)
	waitWakes(t, d, 1)
	test.That(t, chip.FIFOLen(), test.ShouldEqual, 0)
	test.That(t, d.queue.Len(), test.ShouldEqual, 20)
}

func TestHeldInterruptLineKeepsDraining(t *testing.T) {
	ctx := context.Background()
	chip := sim.New()
	// The line is high before arming and never sees another edge.
	pin := &gpiotest.Pin{N: "INT1", L: gpio.High, EdgesChan: make(chan gpio.Level, 1)}
	logger := zaptest.NewLogger(t).Sugar()
	d, err := Attach(ctx, chip, irq.NewGPIO(pin, logger), Options{Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, d.Detach(ctx), test.ShouldBeNil) }()

	chip.Enqueue(numbered(20)...)
	waitWakes(t, d, 1)
	chip.Enqueue(numbered(20)...)
	waitWakes(t, d, 2)

	st, err := d.Stats(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Accepted, test.ShouldEqual, uint64(40))
}

func TestReadingAxisFollowsSelectionDuringBlockedRead(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.SelectAxis(ctx, sample.AxisY), test.ShouldBeNil)

	type result struct {
		axis sample.Axis
		v    int16
		err  error
	}
	done := make(chan result, 1)
	go func() {
		axis, v, err := s.ReadReading(ctx)
		done <- result{axis, v, err}
	}()
	time.Sleep(10 * time.Millisecond)
	test.That(t, s.SelectAxis(ctx, sample.AxisZ), test.ShouldBeNil)

	samples := numbered(20)
	chip.Burst(samples...)
	select {
	case r := <-done:
		test.That(t, r.err, test.ShouldBeNil)
		test.That(t, r.axis, test.ShouldEqual, sample.AxisZ)
		test.That(t, r.v, test.ShouldEqual, samples[0].Z)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not woken")
	}
}

func TestReadingAxisMatchesValue(t *testing.T) {
	ctx := context.Background()
	d, chip := attachSim(t, Options{})
	s, err := d.Open(ctx, "reader")
	test.That(t, err, test.ShouldBeNil)
	chip.Burst(numbered(20)...)
	waitWakes(t, d, 1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		axes := []sample.Axis{sample.AxisX, sample.AxisY, sample.AxisZ}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.SelectAxis(ctx, axes[i%len(axes)])
		}
	}()

	// numbered keeps the three axes in disjoint ranges.
	for i := 0; i < 20; i++ {
		axis, v, err := s.ReadReading(ctx)
		test.That(t, err, test.ShouldBeNil)
		switch axis {
		case sample.AxisX:
			test.That(t, v, test.ShouldBeBetweenOrEqual, int16(1), int16(20))
		case sample.AxisY:
			test.That(t, v, test.ShouldBeBetweenOrEqual, int16(100), int16(119))
		case sample.AxisZ:
			test.That(t, v, test.ShouldBeBetweenOrEqual, int16(-20), int16(-1))
		default:
			t.Fatalf("unexpected axis %v", axis)
		}
	}
	close(stop)
	wg.Wait()
}

func TestOpenRacingDetachLeavesNoSessions(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		chip := sim.New()
		d, err := Attach(ctx, chip, chip, Options{Logger: zaptest.NewLogger(t).Sugar()})
		test.That(t, err, test.ShouldBeNil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := d.Open(ctx, directory.SessionID(fmt.Sprintf("s%d", i)))
				if err != nil {
					test.That(t, errors.Is(err, accelerr.ErrDetached), test.ShouldBeTrue)
				}
			}(i)
		}
		close(start)
		test.That(t, d.Detach(ctx), test.ShouldBeNil)
		wg.Wait()

		ids, err := d.Sessions(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ids, test.ShouldBeEmpty)
	}
}
