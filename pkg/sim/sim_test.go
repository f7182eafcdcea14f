/*
   NVMRec - flash audio recorder
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVMRec.

   NVMRec is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVMRec is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVMRec. If not, see <http://www.gnu.org/licenses/>.
*/

package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/nvmrec/pkg/flash"
	"github.com/xelalexv/nvmrec/pkg/recorder"
)

func TestIRQController_Priority(t *testing.T) {

	irq := NewIRQController()
	var order []Line
	for l := Line(0); l < lineCount; l++ {
		line := l
		irq.Attach(line, func() { order = append(order, line) })
	}

	irq.Raise(LineTimer)
	irq.Raise(LineADC)
	irq.Raise(LineDMA)
	irq.Raise(LinePlay)
	irq.Raise(LineRecord)
	irq.Clear(LineADC)
	irq.Drain()

	assert.Equal(t, []Line{LineRecord, LinePlay, LineDMA, LineTimer}, order)
	assert.False(t, irq.Dispatch())
	assert.Equal(t, uint64(1), irq.Served(LineDMA))
	assert.Equal(t, uint64(0), irq.Served(LineADC))
}

func TestIRQController_HandlerRaisesLowerLine(t *testing.T) {

	irq := NewIRQController()
	var order []string
	irq.Attach(LineDMA, func() {
		order = append(order, "dma")
		irq.Raise(LineTimer)
		irq.Raise(LineRecord)
	})
	irq.Attach(LineTimer, func() { order = append(order, "timer") })
	irq.Attach(LineRecord, func() { order = append(order, "record") })

	irq.Raise(LineDMA)
	irq.Drain()

	assert.Equal(t, []string{"dma", "record", "timer"}, order)
}

func TestDMA_Transfer(t *testing.T) {

	irq := NewIRQController()
	dma := NewDMA(irq)
	var counts []int
	dma.OnComplete(func(n int) { counts = append(counts, n) })

	assert.Error(t, dma.StartTransfer(nil))

	dst := make([]recorder.RawSample, 3)
	require.NoError(t, dma.StartTransfer(dst))
	assert.True(t, dma.Busy())

	for v := recorder.RawSample(1); v <= 4; v++ {
		dma.feed(v)
	}
	assert.False(t, dma.Busy())
	assert.Equal(t, []recorder.RawSample{1, 2, 3}, dst)

	irq.Drain()
	assert.Equal(t, []int{3}, counts)
}

func TestDMA_RestartDropsStaleCompletion(t *testing.T) {

	irq := NewIRQController()
	dma := NewDMA(irq)
	var counts []int
	dma.OnComplete(func(n int) { counts = append(counts, n) })

	require.NoError(t, dma.StartTransfer(make([]recorder.RawSample, 1)))
	dma.feed(7)
	require.True(t, irq.Pending(LineDMA))

	require.NoError(t, dma.StartTransfer(make([]recorder.RawSample, 2)))
	assert.False(t, irq.Pending(LineDMA))
	irq.Drain()
	assert.Empty(t, counts)

	dma.feed(1)
	dma.feed(2)
	irq.Drain()
	assert.Equal(t, []int{2}, counts)
}

func TestADC_ConvertsOnlyWhileSampling(t *testing.T) {

	irq := NewIRQController()
	adc := NewADC(irq, NewDMA(irq), DefaultSampleRate)
	adc.SetSignal(recorder.ChannelRate, NewKnob(300))
	adc.SetSignal(recorder.ChannelAudio, NewKnob(700))

	var got []recorder.RawSample
	adc.OnSampleReady(func(v recorder.RawSample) { got = append(got, v) })

	assert.False(t, adc.Convert())

	adc.StartSampling()
	assert.False(t, adc.Convert(), "not enabled")

	adc.Enable()
	adc.StartSampling()
	require.True(t, adc.Convert())
	irq.Drain()

	adc.SetChannel(recorder.ChannelAudio)
	require.True(t, adc.Convert())
	irq.Drain()

	adc.Disable()
	assert.False(t, adc.Sampling())
	assert.False(t, adc.Convert())

	assert.Equal(t, []recorder.RawSample{300, 700}, got)
}

func TestEdgeLine_PolarityAndMasking(t *testing.T) {

	irq := NewIRQController()
	line := NewEdgeLine(irq, LinePlay)
	edges := 0
	line.OnEdge(func() { edges++ })

	line.SetLevel(true)
	irq.Drain()
	assert.Equal(t, 0, edges, "disabled line must not raise")

	line.SetLevel(false)
	line.Enable()
	line.SetPolarity(recorder.Rising)

	line.SetLevel(true)
	line.SetLevel(true)
	irq.Drain()
	assert.Equal(t, 1, edges)

	line.SetLevel(false)
	irq.Drain()
	assert.Equal(t, 1, edges, "falling edge with rising polarity")

	line.SetPolarity(recorder.Falling)
	line.SetLevel(true)
	line.SetLevel(false)
	line.Disable()
	irq.Drain()
	assert.Equal(t, 1, edges, "disabling withdraws the pending edge")
}

func TestOutput_CaptureKeepsMostRecent(t *testing.T) {

	out := NewOutput(4)
	assert.Equal(t, uint8(recorder.MidScale), out.Value())

	for v := uint8(1); v <= 6; v++ {
		out.SetCompareValue(v)
	}

	assert.Equal(t, uint8(6), out.Value())
	assert.Equal(t, []byte{3, 4, 5, 6}, out.Drain())
	assert.Empty(t, out.Drain())
}

func TestTimer_Interval(t *testing.T) {

	irq := NewIRQController()
	tm := NewTimer(irq, 0)
	tm.SetPeriod(2400)
	assert.Equal(t, 100*time.Microsecond, tm.Interval())

	assert.False(t, tm.Fire())
	tm.Start()
	assert.True(t, tm.Fire())
	assert.True(t, irq.Pending(LineTimer))
	tm.Stop()
	assert.False(t, irq.Pending(LineTimer))
}

func TestSignals(t *testing.T) {

	s := &Sine{Frequency: 1000, SampleRate: 8000, Amplitude: 1}
	for ix := 0; ix < 16; ix++ {
		assert.LessOrEqual(t, s.Next(), recorder.RawSample(FullScale))
	}

	n := NewNoise(0.5, 1)
	for ix := 0; ix < 16; ix++ {
		v := n.Next()
		assert.GreaterOrEqual(t, v, recorder.RawSample(255))
		assert.LessOrEqual(t, v, recorder.RawSample(767))
	}

	k := NewKnob(2000)
	assert.Equal(t, recorder.RawSample(FullScale), k.Next())

	_, err := NewSamples(nil)
	assert.Error(t, err)
	smp, err := NewSamples([]byte{1, 255})
	require.NoError(t, err)
	assert.Equal(t, recorder.RawSample(4), smp.Next())
	assert.Equal(t, recorder.RawSample(1020), smp.Next())
	assert.Equal(t, recorder.RawSample(4), smp.Next())
}

type testBoard struct {
	*Board
	mem  *flash.Memory
	dev  *recorder.Device
	data []byte
}

func newTestBoard(t *testing.T) *testBoard {

	geo := recorder.Geometry{
		Base:       0x1000,
		PageSize:   64,
		RowSize:    16,
		EraseBurst: 32,
		WriteBurst: 4,
		MaxSamples: 256,
	}

	mem, err := flash.NewMemory(geo.Base, geo.MaxSamples, geo.PageSize,
		geo.RowSize)
	require.NoError(t, err)

	b := NewBoard(DefaultSampleRate, DefaultClock, 512)
	dev, err := recorder.NewDevice(geo, b.Peripherals(mem))
	require.NoError(t, err)

	data := make([]byte, 512)
	for ix := range data {
		data[ix] = byte(ix*37 + 11)
	}
	smp, err := NewSamples(data)
	require.NoError(t, err)

	b.ADC.SetSignal(recorder.ChannelAudio, smp)
	b.ADC.SetSignal(recorder.ChannelRate, NewKnob(100))
	dev.Start()

	return &testBoard{Board: b, mem: mem, dev: dev, data: data}
}

// step performs n conversions, serving interrupts after each.
func (b *testBoard) step(n int) {
	for ix := 0; ix < n; ix++ {
		b.ADC.Convert()
		b.IRQ.Drain()
	}
}

func (b *testBoard) press(line *EdgeLine, down bool) {
	line.SetLevel(down)
	b.IRQ.Drain()
}

func TestBoard_RecordAndPlay(t *testing.T) {

	b := newTestBoard(t)

	b.step(3)
	assert.Equal(t, uint32(100), b.dev.Status().LastSample)

	b.press(b.Record, true)
	require.Equal(t, recorder.StateRecording, b.dev.State())
	require.Equal(t, recorder.ChannelAudio, b.ADC.Channel())
	assert.True(t, b.LED.On())

	for guard := 0; b.dev.Recorded() < 128 && guard < 1000; guard++ {
		b.step(1)
	}
	require.Equal(t, uint32(128), b.dev.Recorded())

	b.press(b.Record, false)
	require.Equal(t, recorder.StateIdle, b.dev.State())
	assert.False(t, b.LED.On())

	for guard := 0; b.ADC.Channel() != recorder.ChannelRate; guard++ {
		require.Less(t, guard, 100, "scheduler did not quiesce")
		b.step(1)
	}
	assert.Equal(t, uint32(128), b.dev.Recorded())
	assert.Equal(t, b.data[:128], b.mem.Contents(128))

	b.step(2)
	b.press(b.Play, true)
	require.Equal(t, recorder.StatePlaying, b.dev.State())
	assert.Equal(t, uint32(1390), b.Timer.Period())
	assert.False(t, b.ADC.Sampling())
	assert.False(t, b.Record.Enabled())

	b.Output.Drain()
	for ix := 0; ix < 128; ix++ {
		require.True(t, b.Timer.Fire())
		b.IRQ.Drain()
	}
	assert.Equal(t, b.data[:128], b.Output.Drain())

	b.Timer.Fire()
	b.IRQ.Drain()
	assert.Equal(t, uint8(recorder.MidScale), b.Output.Value())

	b.press(b.Play, false)
	assert.Equal(t, recorder.StateIdle, b.dev.State())
	assert.False(t, b.Timer.Running())
	assert.True(t, b.ADC.Sampling())
	assert.True(t, b.Record.Enabled())
}

func TestBoard_ButtonsMaskEachOther(t *testing.T) {

	b := newTestBoard(t)

	b.press(b.Record, true)
	require.Equal(t, recorder.StateRecording, b.dev.State())

	b.press(b.Play, true)
	assert.Equal(t, recorder.StateRecording, b.dev.State())
	assert.Equal(t, uint64(0), b.IRQ.Served(LinePlay))

	b.press(b.Play, false)
	b.press(b.Record, false)
	require.Equal(t, recorder.StateIdle, b.dev.State())
	assert.True(t, b.Play.Enabled())
}

func TestBoard_Run(t *testing.T) {

	b := newTestBoard(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- b.Run(ctx)
	}()

	b.Record.SetLevel(true)
	assert.Eventually(t, func() bool {
		return b.dev.Recorded() >= 64
	}, 5*time.Second, 5*time.Millisecond)
	b.Record.SetLevel(false)

	assert.Eventually(t, func() bool {
		return b.dev.State() == recorder.StateIdle &&
			!b.dev.Scheduler().Armed()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("board did not stop")
	}
}

func TestIRQController_Idle(t *testing.T) {

	irq := NewIRQController()
	release := make(chan struct{})
	entered := make(chan struct{})
	irq.Attach(LineADC, func() {
		close(entered)
		<-release
	})

	assert.True(t, irq.Idle())
	irq.Raise(LineADC)
	assert.False(t, irq.Idle())

	go irq.Dispatch()
	<-entered
	assert.False(t, irq.Idle(), "handler still running")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, irq.Settle(ctx))

	close(release)
	assert.True(t, irq.Settle(context.Background()))
}

// runPaced runs dispatch and fn for d, and returns the time actually taken
func runPaced(irq *IRQController, d time.Duration,
	fn func(context.Context)) time.Duration {

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	start := time.Now()

	go func() {
		irq.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		fn(ctx)
		done <- struct{}{}
	}()

	time.Sleep(d)
	cancel()
	<-done
	<-done
	return time.Since(start)
}

func TestADC_RunKeepsSampleRate(t *testing.T) {

	irq := NewIRQController()
	dma := NewDMA(irq)
	adc := NewADC(irq, dma, DefaultSampleRate)
	adc.SetSignal(recorder.ChannelRate, NewKnob(1))
	adc.OnSampleReady(func(recorder.RawSample) {})
	adc.Enable()
	adc.StartSampling()

	elapsed := runPaced(irq, 300*time.Millisecond, func(ctx context.Context) {
		assert.NoError(t, adc.Run(ctx))
	})

	expected := elapsed.Seconds() * DefaultSampleRate
	served := float64(irq.Served(LineADC))
	assert.Greater(t, served, 0.7*expected, "conversions fell behind")
	assert.LessOrEqual(t, served, expected)
}

func TestADC_RunRejectsInvalidRate(t *testing.T) {
	irq := NewIRQController()
	adc := NewADC(irq, NewDMA(irq), 0)
	assert.Error(t, adc.Run(context.Background()))
}

func TestTimer_RunKeepsPeriod(t *testing.T) {

	irq := NewIRQController()
	tm := NewTimer(irq, 0)
	tm.OnTick(func() {})
	tm.SetPeriod(2400) // 10 kHz

	idle := runPaced(irq, 50*time.Millisecond, tm.Run)
	assert.Equal(t, uint64(0), irq.Served(LineTimer), "stopped timer fired")
	assert.Greater(t, idle, time.Duration(0))

	tm.Start()
	elapsed := runPaced(irq, 300*time.Millisecond, tm.Run)

	expected := elapsed.Seconds() * 10000
	served := float64(irq.Served(LineTimer))
	assert.Greater(t, served, 0.7*expected, "ticks fell behind")
	assert.LessOrEqual(t, served, expected)
}
