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
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/xelalexv/nvmrec/pkg/format"
)

func NewDump() *Dump {

	d := &Dump{}
	d.Runner = *NewRunner(
		"dump [-i|--input {file}] [-p|--port {port}]",
		"dump recording from file or daemon",
		"\nUse the dump command to output a hex dump of a recording from file or from daemon.",
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddSetting(&d.File, "input", "i", "", nil, "recording input file", false)

	return d
}

type Dump struct {
	//
	Runner
	//
	File string
}

func (d *Dump) Run() error {

	d.ParseSettings()

	if d.File != "" {
		f, err := os.Open(d.File)
		if err != nil {
			return err
		}
		defer f.Close()

		form, err := format.NewFormat(getExtension(d.File))
		if err != nil {
			return err
		}

		data, err := form.Read(bufio.NewReader(f))
		if err != nil {
			return err
		}

		fmt.Print(hex.Dump(data))

	} else {
		resp, err := d.apiCall("GET", "/dump", false, nil)
		if err != nil {
			return err
		}
		defer resp.Close()

		if _, err := io.Copy(os.Stdout, resp); err != nil {
			return err
		}
	}

	fmt.Println()
	return nil
}
