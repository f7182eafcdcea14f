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
	"bufio"
	"fmt"
	"io"
	"os"
)

func NewSave() *Save {

	s := &Save{}
	s.Runner = *NewRunner(
		"save -o|--output {file} [--played] [-f|--force] [-p|--port {port}]",
		"get recording from daemon and save",
		"\nUse the save command to get the recording from the daemon and save it to a file.",
		"", `- The format for saving the file is determined by the file extensions of the
  given file name. Currently supported formats are .raw and .wav

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.File, "output", "o", "", nil, "recording output file", true)
	s.AddSetting(&s.Played, "played", "", "", false,
		"save what was played since the last call instead of the recording",
		false)
	s.AddSetting(&s.Force, "force", "f", "", false,
		"force overwriting output file", false)

	return s
}

type Save struct {
	//
	Runner
	//
	File   string
	Played bool
	Force  bool
}

func (s *Save) Run() error {

	s.ParseSettings()

	if !s.Force {
		if _, err := os.Stat(s.File); err == nil &&
			!GetUserConfirmation("File exists, overwrite?") {
			return nil
		}
	}

	source := "recording"
	if s.Played {
		source = "output"
	}

	resp, err := s.apiCall("GET",
		fmt.Sprintf("/%s?type=%s", source, getExtension(s.File)), false, nil)
	if err != nil {
		return err
	}

	defer resp.Close()

	f, err := os.Create(s.File)
	if err != nil {
		return err
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	defer out.Flush()

	if _, err := io.Copy(out, resp); err != nil {
		return err
	}

	fmt.Println("recording saved")
	return nil
}
