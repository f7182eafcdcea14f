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

package daemon

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

const waitFor = 5 * time.Second
const tick = 5 * time.Millisecond

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Geometry = recorder.Geometry{
		Base:       0x1000,
		PageSize:   64,
		RowSize:    16,
		EraseBurst: 32,
		WriteBurst: 4,
		MaxSamples: 512,
	}
	cfg.Capture = 1 << 20
	cfg.Image = filepath.Join(t.TempDir(), "flash.img")
	return cfg
}

// serve runs d in the background; the returned channel yields Serve's result
func serve(d *Daemon) chan error {
	ret := make(chan error, 1)
	go func() {
		ret <- d.Serve()
	}()
	return ret
}

func stop(t *testing.T, d *Daemon, served chan error) {
	require.NoError(t, d.Stop())
	select {
	case err := <-served:
		assert.True(t, errors.Is(err, ErrDaemonStopped), "%v", err)
	case <-time.After(waitFor):
		t.Fatal("daemon did not stop")
	}
}

func TestNewDaemon_Validation(t *testing.T) {

	cfg := testConfig(t)
	cfg.Geometry.RowSize = 0
	_, err := NewDaemon(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Signal = filepath.Join(t.TempDir(), "missing.wav")
	_, err = NewDaemon(cfg)
	assert.Error(t, err)
}

func TestDaemon_RecordPlayPersist(t *testing.T) {

	cfg := testConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	served := serve(d)

	assert.Error(t, d.SetLine("stop", true))
	assert.Error(t, d.SetKnob(5000))
	require.NoError(t, d.SetKnob(200))

	require.NoError(t, d.SetLine(LineRecord, true))
	require.Eventually(t, func() bool {
		return d.Device().Recorded() >= 128
	}, waitFor, tick)
	require.NoError(t, d.SetLine(LineRecord, false))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateIdle &&
			!d.Device().Scheduler().Armed()
	}, waitFor, tick)

	recorded := d.Device().Recorded()
	data, err := d.Recording()
	require.NoError(t, err)
	assert.Len(t, data, int(recorded))

	var dump bytes.Buffer
	require.NoError(t, d.Dump(&dump))
	assert.NotEmpty(t, dump.String())

	require.Eventually(t, func() bool {
		return d.Status().LastSample == 200
	}, waitFor, tick)

	d.Output()
	require.NoError(t, d.Toggle(LinePlay))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StatePlaying
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return d.Device().Player().Cursor() == recorded
	}, waitFor, tick)
	require.NoError(t, d.Toggle(LinePlay))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateIdle
	}, waitFor, tick)

	out := d.Output()
	require.GreaterOrEqual(t, len(out), int(recorded))
	assert.Equal(t, data, out[:recorded])
	assert.Equal(t, uint32(1000+780), d.Status().Period)

	stop(t, d, served)

	img, err := os.ReadFile(cfg.Image)
	require.NoError(t, err)
	assert.Equal(t, data, img)

	d2, err := NewDaemon(cfg)
	require.NoError(t, err)
	assert.Equal(t, recorded, d2.Device().Recorded())
	restored, err := d2.Recording()
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestDaemon_ButtonBox(t *testing.T) {

	box, port := net.Pipe()
	saved := openPort
	openPort = func(string) (io.ReadWriteCloser, error) {
		return port, nil
	}
	defer func() { openPort = saved }()

	cfg := testConfig(t)
	cfg.Port = "pipe"
	cfg.Image = ""
	cfg.Geometry.MaxSamples = 1 << 16
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	served := serve(d)

	require.NoError(t, box.SetDeadline(time.Now().Add(waitFor)))

	expect := func(want []byte) {
		got := make([]byte, commandLength)
		_, err := io.ReadFull(box, got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	send := func(data []byte) {
		_, err := box.Write(data)
		require.NoError(t, err)
	}

	send([]byte("zzhlob"))
	expect(helloDaemon)
	expect(indicatorCommand(false))
	assert.True(t, d.Connected())

	send([]byte{CmdLine, argRecord, 1, 0})
	expect(indicatorCommand(true))
	assert.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateRecording
	}, waitFor, tick)

	send(ping)
	expect(pong)

	send([]byte{CmdStatus, 0, 0, 0})
	status := make([]byte, 1)
	_, err = io.ReadFull(box, status)
	require.NoError(t, err)
	assert.Equal(t, byte(flagRecording), status[0]&flagRecording)

	send([]byte{CmdDebug, 'o', 'k', 42})
	send([]byte{CmdTimeEnd, 0, 0, 0})
	send([]byte{CmdTimeStart, 0, 0, 0})
	assert.Nil(t, d.LastTiming(), "stop without start")

	from := d.Device().Recorded()
	require.Eventually(t, func() bool {
		return d.Device().Recorded() >= from+64
	}, waitFor, tick)
	send([]byte{CmdTimeEnd, 0, 0, 0})
	require.Eventually(t, func() bool {
		return d.LastTiming() != nil
	}, waitFor, tick)
	timing := d.LastTiming()
	assert.Greater(t, timing.Elapsed, time.Duration(0))
	assert.GreaterOrEqual(t, timing.Samples, uint32(32))
	assert.Greater(t, timing.Rate(), 0.0)

	send([]byte{CmdKnob, 0x01, 0x2c, 0})
	send([]byte{CmdLine, argRecord, 0, 0})
	expect(indicatorCommand(false))

	require.Eventually(t, func() bool {
		return d.Status().LastSample == 300
	}, waitFor, tick)

	stop(t, d, served)
	assert.False(t, d.Connected())
}

func TestCommand_Args(t *testing.T) {

	c := newCommand([]byte{CmdKnob, 3, 0xe8, 0})
	assert.Equal(t, byte(CmdKnob), c.cmd())
	assert.Equal(t, byte(3), c.arg(0))
	assert.Equal(t, byte(0), c.arg(3))
	assert.Equal(t, byte(0), c.arg(-1))

	assert.Equal(t, []byte{'i', 1, 0, 0}, indicatorCommand(true))
}

func TestShiftLeft(t *testing.T) {
	buf := []byte("abcd")
	shiftLeft(buf)
	assert.Equal(t, []byte("bcdd"), buf)
}

func TestDaemon_Signals(t *testing.T) {

	dir := t.TempDir()
	samples := []byte{10, 20, 30, 40}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.raw"), samples,
		0644))

	cfg := testConfig(t)
	cfg.Repository = dir
	cfg.Signal = "repo://take.raw"
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	assert.NoError(t, d.SetSignal("noise"))
	assert.NoError(t, d.SetSignal("sine"))
	assert.NoError(t, d.SetSignal(filepath.Join(dir, "take.raw")))
	assert.Error(t, d.SetSignal("repo://../take.raw"))
	assert.Error(t, d.SetSignal(filepath.Join(dir, "none.wav")))

	assert.NoError(t, d.LoadSignal(bytes.NewReader(samples), "raw"))
	assert.Error(t, d.LoadSignal(bytes.NewReader(samples), "wav"))
	assert.Error(t, d.LoadSignal(bytes.NewReader(nil), "raw"))

	cfg.Repository = ""
	_, err = NewDaemon(cfg)
	assert.Error(t, err)
}

func TestDaemon_RecordsLoadedSignal(t *testing.T) {

	cfg := testConfig(t)
	cfg.Image = ""
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	samples := make([]byte, 256)
	for ix := range samples {
		samples[ix] = byte(ix)
	}
	require.NoError(t, d.LoadSignal(bytes.NewReader(samples), "raw"))

	served := serve(d)
	require.NoError(t, d.SetLine(LineRecord, true))
	require.Eventually(t, func() bool {
		return d.Device().Recorded() >= 64
	}, waitFor, tick)
	require.NoError(t, d.SetLine(LineRecord, false))
	require.Eventually(t, func() bool {
		return !d.Device().Scheduler().Armed()
	}, waitFor, tick)

	data, err := d.Recording()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// consecutive samples, unless conversions were skipped between bursts
	steps := 0
	for ix := 1; ix < len(data); ix++ {
		if data[ix] == data[ix-1]+1 {
			steps++
		}
	}
	assert.Greater(t, steps, len(data)/2)

	stop(t, d, served)
}

func TestDaemon_PressRightAfterServe(t *testing.T) {

	cfg := testConfig(t)
	cfg.Image = ""
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	// pressed before the board runs, so the edge has to wait
	require.NoError(t, d.SetLine(LineRecord, true))
	served := serve(d)

	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateRecording &&
			d.Device().Recorded() >= 32
	}, waitFor, tick)

	require.NoError(t, d.SetLine(LineRecord, false))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateIdle
	}, waitFor, tick)

	require.NoError(t, d.SetLine(LinePlay, true))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StatePlaying
	}, waitFor, tick)
	require.NoError(t, d.SetLine(LinePlay, false))
	require.Eventually(t, func() bool {
		return d.Device().State() == recorder.StateIdle
	}, waitFor, tick)

	stop(t, d, served)
}

func TestTiming_Rate(t *testing.T) {
	assert.Equal(t, 0.0, Timing{}.Rate())
	tm := Timing{Elapsed: 500 * time.Millisecond, Samples: 4000}
	assert.Equal(t, 8000.0, tm.Rate())
	assert.Contains(t, tm.String(), "8000 samples/s")
}
