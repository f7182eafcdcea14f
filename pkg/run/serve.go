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

package run

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/control"
	"github.com/xelalexv/nvmrec/pkg/daemon"
	"github.com/xelalexv/nvmrec/pkg/recorder"
	"github.com/xelalexv/nvmrec/pkg/sim"
)

func NewServe() *Serve {

	def := daemon.DefaultConfig()
	geo := def.Geometry

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [-a|--address {address}] [-d|--device {device}] [-i|--image {file}]
      [-s|--signal {sine|noise|file}] [-r|--rate {rate}] [-k|--knob {value}]
      [--flush-tail] [geometry & pacing settings]`,
		"daemon & API server command",
		`Use the serve command for running the recorder daemon and API server. The recorder
runs on a simulated board. Optionally, a button box can be connected via serial
port, providing record & play buttons, speed knob, and status LED.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

- The flash image is loaded at start and saved when the daemon stops.

`+runnerHelpEpilogue, s.Run)

	s.AddSetting(&s.Address, "address", "a", "NVMREC_ADDRESS", ":8888",
		"listen address and port of daemon's API server", false)
	s.AddSetting(&s.Device, "device", "d", "NVMREC_DEVICE", nil,
		"serial port device of button box", false)
	s.AddSetting(&s.Image, "image", "i", "NVMREC_IMAGE", nil,
		"flash image file", false)
	s.AddSetting(&s.Signal, "signal", "s", "NVMREC_SIGNAL", def.Signal,
		"audio input, 'sine', 'noise', repo://{file}, or path of a raw/WAV file",
		false)
	s.AddSetting(&s.Repository, "repo", "", "NVMREC_REPO", nil,
		`sample repository base folder; when omitted, repo:// references
for the audio input are rejected`, false)
	s.AddSetting(&s.SampleRate, "rate", "r", "NVMREC_SAMPLE_RATE",
		def.SampleRate, "sample rate in Hz", false)
	s.AddSetting(&s.Knob, "knob", "k", "NVMREC_KNOB", def.Knob,
		"initial speed knob value (0-1023)", false)
	s.AddSetting(&s.Clock, "clock", "", "NVMREC_CLOCK", def.Clock,
		"output timer clock in Hz", false)
	s.AddSetting(&s.FlushTail, "flush-tail", "", "NVMREC_FLUSH_TAIL", false,
		"keep the last partial row of a recording, padded with silence", false)

	s.AddSetting(&s.Base, "base", "", "", geo.Base,
		"start address of flash region", false)
	s.AddSetting(&s.PageSize, "page-size", "", "", geo.PageSize,
		"flash page (erase unit) size", false)
	s.AddSetting(&s.RowSize, "row-size", "", "", geo.RowSize,
		"flash row (program unit) size", false)
	s.AddSetting(&s.EraseBurst, "erase-burst", "", "", geo.EraseBurst,
		"samples to transfer while a page erases", false)
	s.AddSetting(&s.WriteBurst, "write-burst", "", "", geo.WriteBurst,
		"minimum samples to transfer while a row programs", false)
	s.AddSetting(&s.MaxSamples, "max-samples", "m", "NVMREC_MAX_SAMPLES",
		geo.MaxSamples, "recording capacity in samples", false)
	s.AddSetting(&s.PaceOffset, "pace-offset", "", "", def.Pacing.Offset,
		"playback period offset in timer ticks", false)
	s.AddSetting(&s.PaceScale, "pace-scale", "", "", def.Pacing.Scale,
		"playback period ticks per knob step", false)

	return s
}

type Serve struct {
	//
	Runner
	//
	Address    string
	Device     string
	Image      string
	Signal     string
	Repository string
	SampleRate int
	Knob       uint32
	Clock      uint64
	FlushTail  bool
	//
	Base       uint32
	PageSize   uint32
	RowSize    uint32
	EraseBurst uint32
	WriteBurst uint32
	MaxSamples uint32
	PaceOffset float64
	PaceScale  float64
}

func (s *Serve) config() daemon.Config {
	return daemon.Config{
		Port:  s.Device,
		Image: s.Image,
		Geometry: recorder.Geometry{
			Base:       s.Base,
			PageSize:   s.PageSize,
			RowSize:    s.RowSize,
			EraseBurst: s.EraseBurst,
			WriteBurst: s.WriteBurst,
			MaxSamples: s.MaxSamples,
		},
		SampleRate: s.SampleRate,
		Clock:      s.Clock,
		Signal:     s.Signal,
		Repository: s.Repository,
		Knob:       s.Knob,
		FlushTail:  s.FlushTail,
		Pacing:     recorder.Pacing{Offset: s.PaceOffset, Scale: s.PaceScale},
		Capture:    int(s.MaxSamples),
	}
}

func (s *Serve) Run() error {

	s.ParseSettings()

	if s.Knob > sim.FullScale {
		s.Knob = sim.FullScale
	}

	d, err := daemon.NewDaemon(s.config())
	if err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := d.Serve()
		if err != nil && err != daemon.ErrDaemonStopped {
			log.Errorf("daemon closed with error: %v", err)
		} else {
			log.Info("daemon stopped")
		}
	}()

	api := control.NewAPIServer(s.Address, d)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					if err := d.Stop(); err != nil {
						log.Errorf("error stopping daemon: %v", err)
					}
					wg.Wait()
					log.Info("NVMRec stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}
