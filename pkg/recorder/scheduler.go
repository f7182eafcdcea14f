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
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

// storageShift converts a 10 bit raw sample into a stored byte
const storageShift = 2

func truncate(raw RawSample) byte {
	return byte(raw >> storageShift)
}

/*
Scheduler is the flash write scheduler. It runs entirely inside the burst
complete handler: it drains the transfer buffer, assembles rows, decides
when to erase a page and when to program a row, and how many samples to
request with the next burst.

Completed bursts are truncated to storage width and queued in a backlog,
from which rows are assembled. This keeps the assembly buffer shorter than
a row whenever the handler returns, even after an erase burst longer than a
row.

Cursor, assembly buffer, backlog and erase suppression are only mutated by
OnBurstComplete, and by Arm while no transfer can complete. The armed flag
is the only state the mode controller changes while a session is running.
*/
type Scheduler struct {
	geo       Geometry
	nvm       NVM
	transfer  BurstTransfer
	source    SampleSource
	fault     *fault
	flushTail bool
	//
	buf      []RawSample
	pending  int
	scratch  []byte
	backlog  *ringbuffer.RingBuffer
	assembly []byte
	//
	cursor          atomic.Uint32
	eraseSuppressed bool
	session         bool
	armed           atomic.Bool
	//
	erases atomic.Uint32
	writes atomic.Uint32
}

func newScheduler(geo Geometry, p Peripherals, f *fault, flushTail bool) *Scheduler {
	capacity := geo.transferCapacity()
	return &Scheduler{
		geo:       geo,
		nvm:       p.NVM,
		transfer:  p.Transfer,
		source:    p.Source,
		fault:     f,
		flushTail: flushTail,
		buf:       make([]RawSample, capacity),
		scratch:   make([]byte, capacity),
		backlog:   ringbuffer.New(int(geo.backlogCapacity())),
		assembly:  make([]byte, 0, geo.RowSize),
	}
}

// Cursor returns the write cursor, i.e. the number of samples written in the
// current or last session.
func (s *Scheduler) Cursor() uint32 {
	return s.cursor.Load()
}

func (s *Scheduler) Armed() bool {
	return s.armed.Load()
}

// Erases returns the number of page erases of the current or last session.
func (s *Scheduler) Erases() uint32 {
	return s.erases.Load()
}

// Writes returns the number of row programs of the current or last session.
func (s *Scheduler) Writes() uint32 {
	return s.writes.Load()
}

/*
Arm starts a new session: cursor, buffers and erase suppression are reset,
the source is switched to the audio channel, and the first invocation is
made right away, which erases the first page and starts the first burst.
Starting that burst aborts a transfer still in flight from a previous
session.
*/
func (s *Scheduler) Arm() {

	if s.fault.isHalted() {
		return
	}

	s.cursor.Store(0)
	s.assembly = s.assembly[:0]
	s.backlog.Reset()
	s.eraseSuppressed = false
	s.pending = 0
	s.erases.Store(0)
	s.writes.Store(0)
	s.session = true

	s.source.Disable()
	s.source.SetChannel(ChannelAudio)
	s.source.Enable()
	s.source.StartSampling()

	s.armed.Store(true)
	log.WithField("base", s.geo.Base).Debug("scheduler armed")
	s.step()
}

/*
Disarm requests the session to stop. Since a transfer may be in flight, the
buffers are left alone; the next burst completion sees the flag and
quiesces. If nothing is in flight, the source is released right away.
*/
func (s *Scheduler) Disarm() {
	s.armed.Store(false)
	if !s.transfer.Busy() {
		s.release()
	}
}

// OnBurstComplete is the burst complete handler.
func (s *Scheduler) OnBurstComplete(count int) {

	if s.fault.isHalted() {
		return
	}

	if !s.armed.Load() || s.cursor.Load() >= s.geo.MaxSamples {
		s.quiesce(count)
		return
	}

	if err := s.absorb(count); err != nil {
		s.fault.raise(err)
		return
	}

	s.step()
}

// step performs exactly one of erase, program, or fill.
func (s *Scheduler) step() {

	cursor := s.cursor.Load()

	switch {

	case cursor%s.geo.PageSize == 0 && !s.eraseSuppressed:
		s.eraseSuppressed = true
		if !s.request(s.geo.EraseBurst) {
			return
		}
		if !s.erase(cursor) {
			return
		}
		log.WithField("cursor", cursor).Trace("page erased")

	case s.available() >= int(s.geo.RowSize):
		s.fillAssembly(int(s.geo.RowSize))
		need := int(s.geo.RowSize) - (s.available() - len(s.assembly))
		if need < int(s.geo.WriteBurst) {
			need = int(s.geo.WriteBurst)
		}
		if !s.request(uint32(need)) {
			return
		}
		if !s.program(cursor, s.assembly[:s.geo.RowSize]) {
			return
		}
		n := copy(s.assembly, s.assembly[s.geo.RowSize:])
		s.assembly = s.assembly[:n]
		s.eraseSuppressed = false
		if s.backlog.Length() < int(s.geo.RowSize)-len(s.assembly) {
			s.fillAssembly(int(s.geo.RowSize) - 1)
		}
		log.WithField("cursor", s.cursor.Load()).Trace("row written")

	default:
		s.fillAssembly(int(s.geo.RowSize) - 1)
		s.request(s.geo.RowSize - uint32(len(s.assembly)))
	}
}

// available is the number of samples received but not yet programmed.
func (s *Scheduler) available() int {
	return len(s.assembly) + s.backlog.Length()
}

// absorb moves the completed burst into the backlog.
func (s *Scheduler) absorb(count int) error {

	if count > s.pending {
		count = s.pending
	}
	s.pending = 0

	if count <= 0 {
		return nil
	}

	for ix := 0; ix < count; ix++ {
		s.scratch[ix] = truncate(s.buf[ix])
	}

	if n, err := s.backlog.Write(s.scratch[:count]); err != nil || n < count {
		return ErrOverrun
	}
	return nil
}

// fillAssembly moves samples from backlog to assembly buffer until it holds
// limit samples or the backlog is empty.
func (s *Scheduler) fillAssembly(limit int) {
	l := len(s.assembly)
	if limit <= l || s.backlog.IsEmpty() {
		return
	}
	n, _ := s.backlog.Read(s.assembly[l:limit])
	s.assembly = s.assembly[:l+n]
}

func (s *Scheduler) request(length uint32) bool {
	s.pending = int(length)
	if err := s.transfer.StartTransfer(s.buf[:length]); err != nil {
		s.fault.raise(err)
		return false
	}
	return true
}

func (s *Scheduler) erase(cursor uint32) bool {
	addr := s.geo.Base + cursor
	if err := s.nvm.ErasePage(addr); err != nil {
		s.fault.raise(&MediumError{Op: OpErase, Address: addr, Err: err})
		return false
	}
	s.erases.Add(1)
	return true
}

func (s *Scheduler) program(cursor uint32, row []byte) bool {
	addr := s.geo.Base + cursor
	if err := s.nvm.WriteRow(row, addr); err != nil {
		s.fault.raise(&MediumError{Op: OpWrite, Address: addr, Err: err})
		return false
	}
	s.cursor.Store(cursor + s.geo.RowSize)
	s.writes.Add(1)
	return true
}

/*
quiesce ends a session after the last burst completed. With tail flushing
enabled, the final burst and any partial row are still written, padded with
silence. Otherwise they are dropped.
*/
func (s *Scheduler) quiesce(count int) {

	if s.session {
		s.session = false
		if s.flushTail {
			if err := s.absorb(count); err != nil {
				log.Warnf("dropping last burst: %v", err)
			}
			s.flushRemainder()
		}
		log.WithFields(log.Fields{
			"samples": s.cursor.Load(),
			"dropped": s.available(),
		}).Info("recording finished")
	}

	s.release()
}

func (s *Scheduler) flushRemainder() {

	for s.available() > 0 && s.cursor.Load() < s.geo.MaxSamples {

		cursor := s.cursor.Load()
		if cursor%s.geo.PageSize == 0 && !s.eraseSuppressed {
			s.eraseSuppressed = true
			if !s.erase(cursor) {
				return
			}
		}

		s.fillAssembly(int(s.geo.RowSize))
		for l := len(s.assembly); l < int(s.geo.RowSize); l++ {
			s.assembly = append(s.assembly, MidScale)
		}

		if !s.program(cursor, s.assembly) {
			return
		}
		s.assembly = s.assembly[:0]
		s.eraseSuppressed = false
	}
}

// release hands the source back to the rate channel.
func (s *Scheduler) release() {
	s.source.Disable()
	s.source.SetChannel(ChannelRate)
	s.source.Enable()
	s.source.StartSampling()
}
