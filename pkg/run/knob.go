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

func NewKnob() *Knob {

	k := &Knob{}
	k.Runner = *NewRunner(
		"knob -v|--value {value} [-p|--port {port}]",
		"turn the speed knob",
		`
Use the knob command to set the speed knob, 0 through 1023. The new position takes
effect with the next playback.`,
		"", runnerHelpEpilogue, k.Run)

	k.AddBaseSettings()
	k.AddSetting(&k.Value, "value", "v", "", -1, "knob value (0-1023)", false)

	return k
}

type Knob struct {
	Runner
	//
	Value int
}

func (k *Knob) Run() error {

	k.ParseSettings()

	if k.Value < 0 {
		fmt.Println("\nnothing to set")
		return nil
	}

	return k.printReply("PUT", fmt.Sprintf("/knob?value=%d", k.Value))
}
