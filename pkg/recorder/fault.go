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
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

/*
fault is the terminal state entered on the first medium failure. Once
raised, the indicator is held on, every handler turns into a no-op, and the
registered hook is called exactly once. Only a reset, i.e. creating a new
device, leaves this state.
*/
type fault struct {
	halted    atomic.Bool
	once      sync.Once
	err       atomic.Value
	indicator Indicator
	hook      func(error)
}

func (f *fault) raise(err error) {
	f.once.Do(func() {
		f.err.Store(err)
		f.halted.Store(true)
		log.WithField("error", err).Error("FAULT, halting")
		if f.indicator != nil {
			f.indicator.Set(true)
		}
		if f.hook != nil {
			f.hook(err)
		}
	})
}

func (f *fault) isHalted() bool {
	return f.halted.Load()
}

func (f *fault) cause() error {
	if err, ok := f.err.Load().(error); ok {
		return err
	}
	return nil
}
