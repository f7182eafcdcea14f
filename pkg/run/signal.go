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
	"net/url"
	"os"
)

func NewSignal() *Signal {

	s := &Signal{}
	s.Runner = *NewRunner(
		"signal [-n|--name {sine|noise|repo://{file}}] [-i|--input {file}] [-p|--port {port}]",
		"change the audio input",
		`
Use the signal command to change what the recorder hears. Either name a generator
or a file in the daemon's sample repository, or upload a file.`,
		"", `- The format of an uploaded file is determined by its file extension.
  Currently supported formats are .raw and .wav

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Name, "name", "n", "", nil,
		"generator name or repository reference", false)
	s.AddSetting(&s.File, "input", "i", "", nil, "audio file to upload", false)

	return s
}

type Signal struct {
	//
	Runner
	//
	Name string
	File string
}

func (s *Signal) Run() error {

	s.ParseSettings()

	if (s.Name == "") == (s.File == "") {
		return fmt.Errorf("specify either a name or an input file")
	}

	if s.Name != "" {
		return s.printReply("PUT",
			fmt.Sprintf("/signal?name=%s", url.QueryEscape(s.Name)))
	}

	f, err := os.Open(s.File)
	if err != nil {
		return err
	}
	defer f.Close()

	resp, err := s.apiCall("PUT",
		fmt.Sprintf("/signal?type=%s", getExtension(s.File)), false,
		bufio.NewReader(f))
	if err != nil {
		return err
	}
	defer resp.Close()

	fmt.Println("audio input uploaded")
	return nil
}
