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
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

const flagRecording = 1
const flagPlaying = 2
const flagHalted = 4
const flagHasRecording = 8

// status sends the recorder state to the button box as a single flag byte
func (c *command) status(d *Daemon) error {

	var state byte

	switch d.dev.State() {
	case recorder.StateRecording:
		state = flagRecording
	case recorder.StatePlaying:
		state = flagPlaying
	case recorder.StateHalted:
		state = flagHalted
	}
	msg := d.dev.State().String()

	if d.dev.Recorded() > 0 {
		state |= flagHasRecording
		msg += ", has recording"
	}

	log.WithField("state", msg).Debug("STATUS")
	return d.getConduit().send([]byte{state})
}
