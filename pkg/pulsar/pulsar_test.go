package pulsar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPulsarEmitsUntilStopped(t *testing.T) {
	p := NewPulsar(5, time.Millisecond)

	pulses := p.Pulsate()

	for i := 0; i < 3; i++ {
		select {
		case <-pulses:
		case <-time.After(time.Second):
			t.Fatalf("expected pulse %d within a second", i)
		}
	}

	p.Stop()
	p.Stop()

	deadline := time.After(time.Second)

	for {
		select {
		case _, ok := <-pulses:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("pulse channel was not closed after Stop")
		}
	}
}

func TestPulsateReturnsSameChannel(t *testing.T) {
	p := NewPulsarWithPeriod(time.Hour)
	defer p.Stop()

	assert.Equal(t, p.Pulsate(), p.Pulsate())
	assert.Equal(t, time.Hour, p.Period)
}
