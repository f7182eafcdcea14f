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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/flash"
	"github.com/xelalexv/nvmrec/pkg/format"
	"github.com/xelalexv/nvmrec/pkg/recorder"
	"github.com/xelalexv/nvmrec/pkg/repo"
	"github.com/xelalexv/nvmrec/pkg/sim"
)

var ErrDaemonStopped = errors.New("daemon stopped")

const (
	LineRecord = "record"
	LinePlay   = "play"
)

// Config carries the settings for the recorder and its simulated board.
type Config struct {
	// serial port of the button box; when empty, the recorder can only be
	// operated via the API
	Port string
	// file for persisting the flash region across restarts
	Image      string
	Geometry   recorder.Geometry
	SampleRate int
	Clock      uint64
	// audio input: sine, noise, a repository reference, or a file path
	Signal string
	// base folder for repository references; when empty, references are
	// rejected
	Repository string
	Knob       uint32
	FlushTail  bool
	Pacing     recorder.Pacing
	// number of output values kept for inspection
	Capture int
}

func DefaultConfig() Config {
	return Config{
		Geometry:   recorder.DefaultGeometry(),
		SampleRate: sim.DefaultSampleRate,
		Clock:      sim.DefaultClock,
		Signal:     "sine",
		Knob:       sim.FullScale / 2,
		Pacing:     recorder.DefaultPacing(),
		Capture:    int(recorder.DefaultGeometry().MaxSamples),
	}
}

// the daemon that runs the recorder and talks to the button box
type Daemon struct {
	//
	cfg   Config
	board *sim.Board
	mem   *flash.Memory
	dev   *recorder.Device
	knob  *sim.Knob
	//
	conduit   *conduit
	conduitMu sync.Mutex
	synced    atomic.Bool
	indicator chan bool
	//
	watch stopWatch
	//
	ctx     context.Context
	cancel  context.CancelFunc
	serving atomic.Bool
	done    chan struct{}
}

func NewDaemon(cfg Config) (*Daemon, error) {

	geo := cfg.Geometry
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	mem, err := flash.NewMemory(geo.Base, geo.MaxSamples, geo.PageSize,
		geo.RowSize)
	if err != nil {
		return nil, err
	}

	board := sim.NewBoard(cfg.SampleRate, cfg.Clock, cfg.Capture)
	knob := sim.NewKnob(cfg.Knob)
	board.ADC.SetSignal(recorder.ChannelRate, knob)

	audio, err := newSignal(cfg.Signal, cfg.Repository, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	board.ADC.SetSignal(recorder.ChannelAudio, audio)

	d := &Daemon{
		cfg:       cfg,
		board:     board,
		mem:       mem,
		knob:      knob,
		indicator: make(chan bool, 1),
		done:      make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.dev, err = recorder.NewDevice(geo, board.Peripherals(mem),
		recorder.WithFlushTail(cfg.FlushTail),
		recorder.WithPacing(cfg.Pacing),
		recorder.WithFaultHook(func(err error) {
			log.Errorf("recorder halted: %v", err)
		}))
	if err != nil {
		return nil, err
	}

	board.LED.Watch(func(on bool) {
		for { // latest value wins
			select {
			case d.indicator <- on:
				return
			default:
			}
			select {
			case <-d.indicator:
			default:
			}
		}
	})

	if err := d.loadImage(); err != nil {
		return nil, err
	}

	// lines are armed from here on, so that edges arriving before the board
	// runs stay pending until served
	d.dev.Start()

	return d, nil
}

/*
newSignal creates an audio input from spec, which is either the name of a
generator (sine, noise), a sample repository reference, or the path of a
raw or WAV file.
*/
func newSignal(spec, repository string, rate int) (sim.Signal, error) {

	switch spec {

	case "", "sine":
		return &sim.Sine{
			Frequency: 440, SampleRate: float64(rate), Amplitude: 0.8}, nil

	case "noise":
		return sim.NewNoise(0.5, time.Now().UnixNano()), nil
	}

	var in io.ReadCloser
	var err error

	if repo.IsReference(spec) {
		in, err = repo.Resolve(spec, repository)
	} else {
		in, err = os.Open(spec)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open audio input: %v", err)
	}
	defer in.Close()

	typ := strings.TrimPrefix(filepath.Ext(spec), ".")
	if typ == "" {
		typ = "wav"
	}
	return readSignal(bufio.NewReader(in), typ)
}

func readSignal(in io.Reader, typ string) (sim.Signal, error) {
	form, err := format.NewFormat(typ)
	if err != nil {
		return nil, err
	}
	data, err := form.Read(in)
	if err != nil {
		return nil, fmt.Errorf("cannot read audio input: %v", err)
	}
	return sim.NewSamples(data)
}

// Serve runs the recorder, and the button box connection if a port is
// configured, until Stop is called.
func (d *Daemon) Serve() error {

	if !d.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("daemon already serving")
	}
	defer close(d.done)

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := d.board.Run(d.ctx); err != nil {
			log.Errorf("board stopped with error: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		d.forwardIndicator()
	}()

	var err error
	if d.cfg.Port == "" {
		log.Info("no button box configured")
		<-d.ctx.Done()
	} else {
		err = d.listen()
	}

	d.cancel()
	wg.Wait()

	if d.ctx.Err() != nil {
		return ErrDaemonStopped
	}
	return err
}

// Stop stops the daemon and persists the flash image.
func (d *Daemon) Stop() error {

	log.Info("daemon stopping...")
	d.cancel()

	d.conduitMu.Lock()
	if d.conduit != nil {
		d.conduit.close()
	}
	d.conduitMu.Unlock()

	if d.serving.Load() {
		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			log.Warn("daemon did not stop in time")
		}
	}

	return d.saveImage()
}

func (d *Daemon) listen() error {

	if err := d.ResetConduit(); err != nil {
		return err
	}

	var cmd *command
	var err error

	for ; d.ctx.Err() == nil; cmd = nil {

		con := d.getConduit()

		if d.synced.Load() {
			if cmd, err = con.receiveCommand(); err != nil {
				log.Errorf("error receiving command: %v", err)
				d.synced.Store(false)
			}

		} else {
			if err = con.syncOnHello(); err != nil {
				log.Errorf("error syncing with button box: %v", err)
			} else {
				d.synced.Store(true)
				err = d.sendIndicator(d.board.LED.On())
			}
		}

		if d.ctx.Err() != nil {
			break
		}

		if err != nil {
			if err := d.ResetConduit(); err != nil {
				return err
			}

		} else if cmd != nil {
			if err = cmd.dispatch(d); err != nil {
				log.Errorf("error dispatching command: %v", err)
				d.synced.Store(false)
			}
		}
	}

	return ErrDaemonStopped
}

func (d *Daemon) ResetConduit() error {

	d.synced.Store(false)

	d.conduitMu.Lock()
	defer d.conduitMu.Unlock()

	if d.conduit != nil {
		log.Infof("closing port %s", d.cfg.Port)
		if err := d.conduit.close(); err != nil {
			log.Errorf("error closing port: %v", err)
		}
		d.conduit = nil
	}

	maxBackoff := 15 * time.Second

	for backoff := time.Second; ; {
		log.Infof("opening port %s", d.cfg.Port)
		if con, err := newConduit(d.cfg.Port); err != nil {
			log.Errorf("cannot open serial port: %v", err)
			if backoff < maxBackoff {
				backoff *= 2
			}
			select {
			case <-time.After(backoff):
			case <-d.ctx.Done():
				return ErrDaemonStopped
			}
		} else {
			d.conduit = con
			return nil
		}
	}
}

func (d *Daemon) getConduit() *conduit {
	d.conduitMu.Lock()
	defer d.conduitMu.Unlock()
	return d.conduit
}

func (d *Daemon) forwardIndicator() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case on := <-d.indicator:
			if d.synced.Load() {
				if err := d.sendIndicator(on); err != nil {
					log.Errorf("error sending indicator: %v", err)
				}
			}
		}
	}
}

func (d *Daemon) sendIndicator(on bool) error {
	if con := d.getConduit(); con != nil {
		return con.send(indicatorCommand(on))
	}
	return nil
}

func (d *Daemon) loadImage() error {

	if d.cfg.Image == "" {
		return nil
	}

	f, err := os.Open(d.cfg.Image)
	if os.IsNotExist(err) {
		log.Infof("no flash image at %s, starting erased", d.cfg.Image)
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	if err := d.mem.Load(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("error loading flash image: %v", err)
	}

	return d.dev.Restore(uint32(fi.Size()))
}

func (d *Daemon) saveImage() error {

	if d.cfg.Image == "" {
		return nil
	}

	data, err := d.Recording()
	if err != nil {
		return err
	}

	if err := os.WriteFile(d.cfg.Image, data, 0644); err != nil {
		return fmt.Errorf("error saving flash image: %v", err)
	}

	log.WithFields(log.Fields{
		"file": d.cfg.Image, "samples": len(data)}).Info("flash image saved")
	return nil
}

// Device gives access to the recorder.
func (d *Daemon) Device() *recorder.Device {
	return d.dev
}

func (d *Daemon) Status() *recorder.Status {
	return d.dev.Status()
}

// Connected tells whether the button box is synced.
func (d *Daemon) Connected() bool {
	return d.synced.Load()
}

func (d *Daemon) SampleRate() int {
	return d.cfg.SampleRate
}

// SetLine drives record or play line to the given level, i.e. presses or
// releases the button.
func (d *Daemon) SetLine(line string, high bool) error {

	l, err := d.getLine(line)
	if err != nil {
		return err
	}

	if d.dev.Fault() != nil {
		return fmt.Errorf("cannot operate %s button: %w", line, recorder.ErrHalted)
	}

	log.WithFields(log.Fields{"line": line, "high": high}).Debug("LINE")
	l.SetLevel(high)
	return nil
}

// Toggle flips the level of the given line.
func (d *Daemon) Toggle(line string) error {
	l, err := d.getLine(line)
	if err != nil {
		return err
	}
	return d.SetLine(line, !l.Level())
}

func (d *Daemon) getLine(line string) (*sim.EdgeLine, error) {
	switch line {
	case LineRecord:
		return d.board.Record, nil
	case LinePlay:
		return d.board.Play, nil
	default:
		return nil, fmt.Errorf("unknown line: %s", line)
	}
}

// SetKnob turns the speed knob. Takes effect with the next playback.
func (d *Daemon) SetKnob(v uint32) error {
	if v > sim.FullScale {
		return fmt.Errorf("knob value %d out of range 0-%d", v, sim.FullScale)
	}
	log.WithField("value", v).Debug("KNOB")
	d.knob.Set(v)
	return nil
}

// SetSignal switches the audio input, see newSignal for valid specs.
func (d *Daemon) SetSignal(spec string) error {
	sig, err := newSignal(spec, d.cfg.Repository, d.cfg.SampleRate)
	if err != nil {
		return err
	}
	log.WithField("signal", spec).Info("audio input changed")
	d.board.ADC.SetSignal(recorder.ChannelAudio, sig)
	return nil
}

// LoadSignal switches the audio input to samples read from in, which is in
// format typ.
func (d *Daemon) LoadSignal(in io.Reader, typ string) error {
	sig, err := readSignal(in, typ)
	if err != nil {
		return err
	}
	log.WithField("format", typ).Info("audio input loaded")
	d.board.ADC.SetSignal(recorder.ChannelAudio, sig)
	return nil
}

// Recording returns a copy of the recorded samples.
func (d *Daemon) Recording() ([]byte, error) {

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if !d.mem.Lock(ctx) {
		return nil, fmt.Errorf("could not lock flash")
	}
	defer d.mem.Unlock()

	return d.mem.Contents(d.dev.Recorded()), nil
}

// Dump writes a hex dump of the recorded samples to w.
func (d *Daemon) Dump(w io.Writer) error {

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if !d.mem.Lock(ctx) {
		return fmt.Errorf("could not lock flash")
	}
	defer d.mem.Unlock()

	return d.mem.Dump(w, d.dev.Recorded())
}

// Output returns the output values captured since the last call.
func (d *Daemon) Output() []byte {
	return d.board.Output.Drain()
}
