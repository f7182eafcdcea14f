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

package main

import (
	"fmt"
	"os"

	"github.com/xelalexv/nvmrec/pkg/run"
)

var NVMRecVersion string

func synopsis() {
	fmt.Print(`
synopsis: nvmrec {serve|status|record|play|knob|signal|save|dump|version} ...

run 'nvmrec {action} -h|--help' to see detailed info

`)
}

func version() {
	fmt.Printf("\nNVMRec %s\n\n", NVMRecVersion)
}

func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "record":
		run.DieOnError(run.NewRecord().Execute(args))

	case "play":
		run.DieOnError(run.NewPlay().Execute(args))

	case "knob":
		run.DieOnError(run.NewKnob().Execute(args))

	case "signal":
		run.DieOnError(run.NewSignal().Execute(args))

	case "save":
		run.DieOnError(run.NewSave().Execute(args))

	case "dump":
		run.DieOnError(run.NewDump().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
