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
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

const DefaultSampleRate = 8000

// Board is the set of simulated peripherals a recorder device runs on.
type Board struct {
	IRQ    *IRQController
	ADC    *ADC
	DMA    *DMA
	Timer  *Timer
	Output *Output
	Record *EdgeLine
	Play   *EdgeLine
	LED    *Pin
}

// NewBoard creates a board converting at sampleRate, with the output timer
// counting at clock Hz. The output keeps the last capture values.
func NewBoard(sampleRate int, clock uint64, capture int) *Board {

	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	irq := NewIRQController()
	dma := NewDMA(irq)

	return &Board{
		IRQ:    irq,
		ADC:    NewADC(irq, dma, sampleRate),
		DMA:    dma,
		Timer:  NewTimer(irq, clock),
		Output: NewOutput(capture),
		Record: NewEdgeLine(irq, LineRecord),
		Play:   NewEdgeLine(irq, LinePlay),
		LED:    &Pin{},
	}
}

// Peripherals returns the board's peripherals for use by a device, with nvm
// as the memory driver.
func (b *Board) Peripherals(nvm recorder.NVM) recorder.Peripherals {
	return recorder.Peripherals{
		Source:    b.ADC,
		Transfer:  b.DMA,
		NVM:       nvm,
		Timer:     b.Timer,
		Output:    b.Output,
		Record:    b.Record,
		Play:      b.Play,
		Indicator: b.LED,
	}
}

// Run runs interrupt dispatch, converter, and timer until ctx is done.
func (b *Board) Run(ctx context.Context) error {

	log.Info("board running")

	var err error
	wg := &sync.WaitGroup{}
	wg.Add(3)

	go func() {
		defer wg.Done()
		b.IRQ.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		err = b.ADC.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		b.Timer.Run(ctx)
	}()

	wg.Wait()
	log.Info("board stopped")
	return err
}
