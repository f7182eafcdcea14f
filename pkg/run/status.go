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

func NewStatus() *Status {

	s := &Status{}
	s.Runner = *NewRunner(
		"status [-p|--port {port}]",
		"get recorder status from daemon",
		"\nUse the status command to get the state of the recorder from the daemon.",
		"", runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()

	return s
}

type Status struct {
	Runner
}

func (s *Status) Run() error {
	s.ParseSettings()
	return s.printReply("GET", "/status")
}
