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

package recorder

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

type config struct {
	flushTail bool
	pacing    Pacing
	hook      func(error)
}

// Option configures a device.
type Option func(*config)

// WithFlushTail makes the scheduler write the final partial row of a
// recording, padded with silence, instead of dropping it.
func WithFlushTail(flush bool) Option {
	return func(c *config) {
		c.flushTail = flush
	}
}

// WithPacing sets the mapping from captured rate sample to playback period.
func WithPacing(p Pacing) Option {
	return func(c *config) {
		c.pacing = p
	}
}

// WithFaultHook registers a function called once when the device halts.
func WithFaultHook(hook func(error)) Option {
	return func(c *config) {
		c.hook = hook
	}
}

/*
Device ties scheduler, player, and mode controller to the peripherals. All
handlers are registered with their peripherals when the device is created.
The peripherals are expected to deliver them the way a single core
interrupt controller would, i.e. never two at the same time.
*/
type Device struct {
	geo        Geometry
	p          Peripherals
	fault      *fault
	sched      *Scheduler
	player     *Player
	ctrl       *Controller
	lastSample atomic.Uint32
}

// Status is a snapshot of the device state.
type Status struct {
	State      string `json:"state"`
	Recorded   uint32 `json:"recorded"`
	Capacity   uint32 `json:"capacity"`
	Played     uint32 `json:"played"`
	Erases     uint32 `json:"erases"`
	Writes     uint32 `json:"writes"`
	LastSample uint32 `json:"lastSample"`
	Period     uint32 `json:"period"`
	Fault      string `json:"fault,omitempty"`
}

func (s *Status) String() string {
	ret := fmt.Sprintf(`
state:     %s
recorded:  %d/%d samples (%d erases, %d writes)
played:    %d samples
rate:      sample %d, period %d ticks
`, s.State, s.Recorded, s.Capacity, s.Erases, s.Writes, s.Played,
		s.LastSample, s.Period)
	if s.Fault != "" {
		ret += fmt.Sprintf("fault:     %s\n", s.Fault)
	}
	return ret
}

// NewDevice creates a device and registers its handlers.
func NewDevice(geo Geometry, p Peripherals, opts ...Option) (*Device, error) {

	if err := geo.Validate(); err != nil {
		return nil, err
	}

	if p.Source == nil || p.Transfer == nil || p.NVM == nil ||
		p.Timer == nil || p.Output == nil || p.Record == nil ||
		p.Play == nil || p.Indicator == nil {
		return nil, fmt.Errorf("incomplete peripherals")
	}

	cfg := config{pacing: DefaultPacing()}
	for _, o := range opts {
		o(&cfg)
	}

	d := &Device{geo: geo, p: p}
	d.fault = &fault{indicator: p.Indicator, hook: func(err error) {
		d.halt()
		if cfg.hook != nil {
			cfg.hook(err)
		}
	}}
	d.sched = newScheduler(geo, p, d.fault, cfg.flushTail)
	d.player = newPlayer(geo, p, d.fault)
	d.ctrl = &Controller{
		record:     p.Record,
		play:       p.Play,
		source:     p.Source,
		indicator:  p.Indicator,
		sched:      d.sched,
		player:     d.player,
		fault:      d.fault,
		pacing:     cfg.pacing,
		lastSample: &d.lastSample,
	}

	p.Source.OnSampleReady(d.onSample)
	p.Transfer.OnComplete(d.sched.OnBurstComplete)
	p.Timer.OnTick(d.player.OnTick)
	p.Record.OnEdge(d.ctrl.OnRecordEdge)
	p.Play.OnEdge(d.ctrl.OnPlayEdge)

	return d, nil
}

// Start brings the device into idle state: output at silence, converter
// running on the rate channel, both lines armed for their start edge.
func (d *Device) Start() {

	d.p.Output.SetCompareValue(MidScale)
	d.p.Indicator.Set(false)

	d.p.Source.Disable()
	d.p.Source.SetChannel(ChannelRate)
	d.p.Source.Enable()
	d.p.Source.StartSampling()

	d.p.Record.SetPolarity(Rising)
	d.p.Record.Enable()
	d.p.Play.SetPolarity(Rising)
	d.p.Play.Enable()

	log.WithFields(log.Fields{
		"base":     fmt.Sprintf("0x%08X", d.geo.Base),
		"capacity": d.geo.MaxSamples,
		"page":     d.geo.PageSize,
		"row":      d.geo.RowSize,
	}).Info("device started")
}

// onSample is the conversion complete handler. The value may be read stale by
// one sample when playback is armed, which is fine.
func (d *Device) onSample(v RawSample) {
	d.lastSample.Store(v)
}

// halt stops all forward progress after a fault.
func (d *Device) halt() {
	d.p.Record.Disable()
	d.p.Play.Disable()
	d.p.Timer.Stop()
	d.p.Source.Disable()
	d.sched.armed.Store(false)
	d.player.running.Store(false)
}

func (d *Device) Geometry() Geometry {
	return d.geo
}

func (d *Device) State() State {
	return d.ctrl.State()
}

func (d *Device) Scheduler() *Scheduler {
	return d.sched
}

func (d *Device) Player() *Player {
	return d.player
}

func (d *Device) Controller() *Controller {
	return d.ctrl
}

// Fault returns the error that halted the device, or nil.
func (d *Device) Fault() error {
	return d.fault.cause()
}

/*
Restore sets the length of the recording held in memory, e.g. after the
memory was loaded from an image. Lengths are cut to whole rows and to the
capacity. The device needs to be idle.
*/
func (d *Device) Restore(n uint32) error {

	if d.fault.isHalted() {
		return ErrHalted
	}
	if st := d.ctrl.State(); st != StateIdle {
		return fmt.Errorf("cannot restore recording while %s", st)
	}

	if n > d.geo.MaxSamples {
		n = d.geo.MaxSamples
	}
	n -= n % d.geo.RowSize
	d.sched.cursor.Store(n)

	log.WithField("samples", n).Info("recording restored")
	return nil
}

// Recorded returns the length of the last recording.
func (d *Device) Recorded() uint32 {
	return d.sched.Cursor()
}

func (d *Device) Status() *Status {
	ret := &Status{
		State:      d.ctrl.State().String(),
		Recorded:   d.sched.Cursor(),
		Capacity:   d.geo.MaxSamples,
		Played:     d.player.Cursor(),
		Erases:     d.sched.Erases(),
		Writes:     d.sched.Writes(),
		LastSample: d.lastSample.Load(),
		Period:     d.ctrl.Period(),
	}
	if err := d.fault.cause(); err != nil {
		ret.Fault = err.Error()
	}
	return ret
}
