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
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

// FullScale is the largest value the converter delivers.
const FullScale = 1023

// Signal is the analog input seen by one converter channel.
type Signal interface {
	Next() recorder.RawSample
}

func clamp(v float64) recorder.RawSample {
	if v < 0 {
		return 0
	}
	if v > FullScale {
		return FullScale
	}
	return recorder.RawSample(v)
}

// Sine is a tone of given frequency and amplitude (0.0 to 1.0) around mid
// scale.
type Sine struct {
	Frequency  float64
	SampleRate float64
	Amplitude  float64
	n          uint64
}

func (s *Sine) Next() recorder.RawSample {
	phase := 2 * math.Pi * s.Frequency * float64(s.n) / s.SampleRate
	s.n++
	return clamp(FullScale/2 + s.Amplitude*FullScale/2*math.Sin(phase))
}

// Noise is uniform noise around mid scale.
type Noise struct {
	Amplitude float64
	rnd       *rand.Rand
}

func NewNoise(amplitude float64, seed int64) *Noise {
	return &Noise{Amplitude: amplitude, rnd: rand.New(rand.NewSource(seed))}
}

func (n *Noise) Next() recorder.RawSample {
	return clamp(FullScale/2 + n.Amplitude*FullScale/2*(2*n.rnd.Float64()-1))
}

// Knob is a constant level that can be turned while the board runs.
type Knob struct {
	value atomic.Uint32
}

func NewKnob(v recorder.RawSample) *Knob {
	ret := &Knob{}
	ret.Set(v)
	return ret
}

func (k *Knob) Set(v recorder.RawSample) {
	if v > FullScale {
		v = FullScale
	}
	k.value.Store(v)
}

func (k *Knob) Next() recorder.RawSample {
	return k.value.Load()
}

// Samples replays 8 bit audio in a loop, e.g. taken from a WAV file.
type Samples struct {
	mu   sync.Mutex
	data []byte
	pos  int
}

func NewSamples(data []byte) (*Samples, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no samples")
	}
	return &Samples{data: data}, nil
}

func (s *Samples) Next() recorder.RawSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := recorder.RawSample(s.data[s.pos]) << 2
	s.pos = (s.pos + 1) % len(s.data)
	return ret
}
