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
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

/*
Timing is a stop watch reading taken by the button box, e.g. for measuring
button bounce or how long a recording ran. Samples is the number of samples
the recorder committed to flash between start and stop.
*/
type Timing struct {
	Elapsed time.Duration
	Samples uint32
}

// Rate is the recording rate in samples per second seen during the reading.
func (t Timing) Rate() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Samples) / t.Elapsed.Seconds()
}

func (t Timing) String() string {
	return fmt.Sprintf("%v, %d samples, %.0f samples/s",
		t.Elapsed, t.Samples, t.Rate())
}

type stopWatch struct {
	mu      sync.Mutex
	started time.Time
	cursor  uint32
	last    *Timing
	debug   time.Time
}

// debug logs a debug message from the button box, together with the
// recorder state and the time passed since the previous message
func (c *command) debug(d *Daemon) error {

	d.watch.mu.Lock()
	now := time.Now()
	since := now.Sub(d.watch.debug)
	d.watch.debug = now
	d.watch.mu.Unlock()

	log.WithFields(log.Fields{
		"state": d.dev.State(),
		"since": since,
	}).Debugf("box: %c%c %3d  [ %08b ]",
		c.arg(0), c.arg(1), c.arg(2), c.arg(2))

	return nil
}

// timer starts or stops the stop watch
func (c *command) timer(start bool, d *Daemon) error {

	w := &d.watch
	w.mu.Lock()
	defer w.mu.Unlock()

	if start {
		w.started = time.Now()
		w.cursor = d.dev.Recorded()
		return nil
	}

	if w.started.IsZero() {
		log.Warn("box: stop watch stopped without start")
		return nil
	}

	t := &Timing{Elapsed: time.Since(w.started)}
	if rec := d.dev.Recorded(); rec > w.cursor {
		t.Samples = rec - w.cursor
	}
	w.started = time.Time{}
	w.last = t

	log.WithField("state", d.dev.State()).Infof("box: stop watch %v", t)
	return nil
}

// LastTiming returns the most recent stop watch reading of the button box,
// or nil if there is none.
func (d *Daemon) LastTiming() *Timing {
	d.watch.mu.Lock()
	defer d.watch.mu.Unlock()
	if d.watch.last == nil {
		return nil
	}
	ret := *d.watch.last
	return &ret
}
