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

// Channel selects the analog input the sample source converts.
type Channel int

const (
	// ChannelRate is the speed knob, sampled while not recording. Its last
	// value sets the playback rate.
	ChannelRate Channel = iota
	// ChannelAudio is the microphone input, sampled while recording.
	ChannelAudio
)

func (c Channel) String() string {
	switch c {
	case ChannelRate:
		return "rate"
	case ChannelAudio:
		return "audio"
	default:
		return "<unknown>"
	}
}

// Edge is the polarity an edge line triggers on.
type Edge int

const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Rising {
		return "rising"
	}
	return "falling"
}

// RawSample is a sample as delivered by the converter, 10 bits wide.
type RawSample = uint32

// SampleSource is the analog-to-digital converter.
type SampleSource interface {
	Enable()
	Disable()
	SetChannel(ch Channel)
	// StartSampling starts free running conversions on the selected channel.
	StartSampling()
	// OnSampleReady registers the conversion-complete handler.
	OnSampleReady(func(RawSample))
}

// BurstTransfer moves samples from the converter's result register into a
// buffer without involving the handlers, one word per conversion.
type BurstTransfer interface {
	// StartTransfer fills dst; completion is signalled with the count.
	StartTransfer(dst []RawSample) error
	Busy() bool
	OnComplete(func(count int))
}

// NVM is the non-volatile memory driver. All calls are synchronous.
type NVM interface {
	ErasePage(address uint32) error
	WriteRow(data []byte, address uint32) error
	ReadRow(buf []byte, address uint32) error
}

// OutputTimer paces playback.
type OutputTimer interface {
	SetPeriod(ticks uint32)
	Start()
	Stop()
	OnTick(func())
}

// Output is the compare unit of the PWM driving the analog output.
type Output interface {
	SetCompareValue(v uint8)
}

// EdgeLine is an edge triggered external interrupt.
type EdgeLine interface {
	Enable()
	Disable()
	SetPolarity(e Edge)
	OnEdge(func())
}

// Indicator is a digital output, used as activity and fault light.
type Indicator interface {
	Set(on bool)
}

// Peripherals bundles the collaborators a device is built from.
type Peripherals struct {
	Source    SampleSource
	Transfer  BurstTransfer
	NVM       NVM
	Timer     OutputTimer
	Output    Output
	Record    EdgeLine
	Play      EdgeLine
	Indicator Indicator
}
