package sensors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/config"
)

func TestOpenSimulatedAccelerometer(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("ACCEL_TRANSPORT=sim\nSIM_INTERVAL=5\n"))
	test.That(t, err, test.ShouldBeNil)

	ctx := context.Background()
	acc, err := OpenAccelerometer(ctx, cfg, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)

	s, err := acc.Open(ctx, "test")
	test.That(t, err, test.ShouldBeNil)
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := s.Read(readCtx, 40)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldHaveLength, 40)

	// Close is the device's session close; Shutdown tears the device down.
	test.That(t, acc.Close(ctx, s.ID()), test.ShouldBeNil)
	ids, err := acc.Sessions(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldBeEmpty)

	test.That(t, acc.Shutdown(ctx), test.ShouldBeNil)
	_, err = acc.Open(ctx, "late")
	test.That(t, errors.Is(err, accelerr.ErrDetached), test.ShouldBeTrue)
}
