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
	"github.com/stretchr/testify/mock"
)

// MockNVM is a testify mock of the NVM driver.
type MockNVM struct {
	mock.Mock
}

func (m *MockNVM) ErasePage(address uint32) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockNVM) WriteRow(data []byte, address uint32) error {
	args := m.Called(data, address)
	return args.Error(0)
}

func (m *MockNVM) ReadRow(buf []byte, address uint32) error {
	args := m.Called(buf, address)
	return args.Error(0)
}

// fakeSource records how the converter was configured.
type fakeSource struct {
	enabled  bool
	sampling bool
	channel  Channel
	handler  func(RawSample)
}

func (s *fakeSource) Enable()               { s.enabled = true }
func (s *fakeSource) Disable()              { s.enabled, s.sampling = false, false }
func (s *fakeSource) SetChannel(ch Channel) { s.channel = ch }
func (s *fakeSource) StartSampling()        { s.sampling = s.enabled }

func (s *fakeSource) OnSampleReady(fn func(RawSample)) { s.handler = fn }

func (s *fakeSource) convert(v RawSample) {
	if s.sampling && s.handler != nil {
		s.handler(v)
	}
}

// fakeTransfer holds the transfer in flight until complete is called.
type fakeTransfer struct {
	busy     bool
	dst      []RawSample
	requests []int
	handler  func(int)
}

func (f *fakeTransfer) StartTransfer(dst []RawSample) error {
	f.busy = true
	f.dst = dst
	f.requests = append(f.requests, len(dst))
	return nil
}

func (f *fakeTransfer) Busy() bool { return f.busy }

func (f *fakeTransfer) OnComplete(fn func(int)) { f.handler = fn }

// complete fills the transfer in flight from next and runs the handler.
func (f *fakeTransfer) complete(next func() RawSample) bool {
	if !f.busy {
		return false
	}
	for ix := range f.dst {
		f.dst[ix] = next()
	}
	f.busy = false
	f.handler(len(f.dst))
	return true
}

type fakeTimer struct {
	running bool
	period  uint32
	handler func()
}

func (t *fakeTimer) SetPeriod(ticks uint32) { t.period = ticks }
func (t *fakeTimer) Start()                 { t.running = true }
func (t *fakeTimer) Stop()                  { t.running = false }
func (t *fakeTimer) OnTick(fn func())       { t.handler = fn }

func (t *fakeTimer) tick() {
	if t.running {
		t.handler()
	}
}

type fakeOutput struct {
	values []uint8
}

func (o *fakeOutput) SetCompareValue(v uint8) { o.values = append(o.values, v) }

func (o *fakeOutput) last() uint8 {
	if len(o.values) == 0 {
		return 0
	}
	return o.values[len(o.values)-1]
}

// fakeLine delivers edges only while enabled, like a masked interrupt.
type fakeLine struct {
	enabled  bool
	polarity Edge
	handler  func()
}

func (l *fakeLine) Enable()            { l.enabled = true }
func (l *fakeLine) Disable()           { l.enabled = false }
func (l *fakeLine) SetPolarity(e Edge) { l.polarity = e }
func (l *fakeLine) OnEdge(fn func())   { l.handler = fn }

func (l *fakeLine) edge() bool {
	if !l.enabled {
		return false
	}
	l.handler()
	return true
}

type fakeIndicator struct {
	on bool
}

func (i *fakeIndicator) Set(on bool) { i.on = on }
