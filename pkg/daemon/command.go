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
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const CmdHello = 'h'     // hello (send/receive to/from button box)
const CmdPing = 'P'      // ping/pong (receive from button box)
const CmdLine = 'l'      // line level change (receive from button box)
const CmdKnob = 'k'      // knob position (receive from button box)
const CmdIndicator = 'i' // indicator state (send to button box)
const CmdStatus = 's'    // recorder state (send to button box)
const CmdDebug = 'd'     // debug message (receive from button box)
const CmdTimeStart = 't' // start stop watch
const CmdTimeEnd = 'q'   // stop stop watch

const argRecord = 'r'
const argPlay = 'p'

var ping = []byte("Ping")
var pong = []byte("Pong")

func newCommand(data []byte) *command {
	return &command{data: data}
}

func indicatorCommand(on bool) []byte {
	ret := []byte{CmdIndicator, 0, 0, 0}
	if on {
		ret[1] = 1
	}
	return ret
}

type command struct {
	data []byte
}

func (c *command) dispatch(d *Daemon) error {

	switch c.cmd() {

	case CmdHello:
		d.synced.Store(false)
		return nil

	case CmdPing:
		if bytes.Equal(c.data, ping) {
			log.Debug("ping from button box")
			return d.getConduit().send(pong)
		}
		return nil

	case CmdLine:
		return c.line(d)

	case CmdKnob:
		return c.knob(d)

	case CmdStatus:
		return c.status(d)

	case CmdDebug:
		return c.debug(d)

	case CmdTimeStart:
		return c.timer(true, d)

	case CmdTimeEnd:
		return c.timer(false, d)
	}

	return fmt.Errorf("unknown command: %v", c.data)
}

func (c *command) cmd() byte {
	return c.data[0]
}

func (c *command) arg(ix int) byte {
	if 0 <= ix && ix < len(c.data)-1 {
		return c.data[ix+1]
	}
	return 0
}

// line handles a button press or release; arg 0 selects the line, arg 1 is
// the new level. A press on a halted recorder is logged, but does not break
// the connection.
func (c *command) line(d *Daemon) error {

	var line string
	switch c.arg(0) {
	case argRecord:
		line = LineRecord
	case argPlay:
		line = LinePlay
	default:
		return fmt.Errorf("illegal line: %d", c.arg(0))
	}

	high := c.arg(1) != 0
	log.WithFields(log.Fields{"line": line, "high": high}).Info("BUTTON")

	if err := d.SetLine(line, high); err != nil {
		log.Warnf("button ignored: %v", err)
	}
	return nil
}

// knob handles a knob position, big endian in args 0 and 1
func (c *command) knob(d *Daemon) error {
	v := uint32(c.arg(0))<<8 | uint32(c.arg(1))
	return d.SetKnob(v)
}
