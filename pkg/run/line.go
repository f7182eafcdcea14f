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
	"fmt"
)

func NewRecord() *Line {
	return newLine("record", "r", "start or stop recording",
		`
Use the record command to press or release the record button. Holding the button
records; without --level, the button is toggled.`)
}

func NewPlay() *Line {
	return newLine("play", "p", "start or stop playback",
		`
Use the play command to press or release the play button. Playback runs while
the button is held; without --level, the button is toggled.`)
}

func newLine(line, short, help, long string) *Line {

	l := &Line{line: line}
	l.Runner = *NewRunner(
		fmt.Sprintf("%s [-l|--level {0|1}] [-p|--port {port}]", line),
		help, long, "", runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddSetting(&l.Level, "level", "l", "", -1,
		"button level, 1 for pressed, 0 for released", false)

	return l
}

type Line struct {
	Runner
	//
	Level int
	line  string
}

func (l *Line) Run() error {

	l.ParseSettings()

	path := fmt.Sprintf("/line/%s", l.line)

	switch l.Level {
	case -1:
	case 0, 1:
		path = fmt.Sprintf("%s?level=%d", path, l.Level)
	default:
		return fmt.Errorf("invalid level: %d; use 0 or 1", l.Level)
	}

	return l.printReply("PUT", path)
}
