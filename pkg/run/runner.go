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
	"io"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strings"
)

const runnerHelpPrologue = ""
const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

/*
NewRunner creates a base runner for commands to use. The parameters are
passed to the base command wrapped by this runner.
*/
func NewRunner(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{
		Command: *NewCommand(
			use, short, long, helpPrologue, helpEpilogue, exec),
	}
}

type Runner struct {
	//
	Command
	//
	Server string
	Port   int
	//
	client *http.Client
}

func (r *Runner) AddBaseSettings() {
	// Implementation Note: This cannot be included in NewRunner, but rather has
	// to be called from the top level command type. Otherwise, we will confuse
	// Cobra/Viper and the settings will not be filled with their values.
	r.AddSetting(&r.Server, "server", "", "NVMREC_SERVER", "127.0.0.1",
		"host of daemon's API server", false)
	r.AddSetting(&r.Port, "port", "p", "NVMREC_PORT", 8888,
		"port of daemon's API server", false)
}

// apiCall sends a request to the daemon. Replies with a status other than
// 2xx are turned into an error carrying the reply's message.
func (r *Runner) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	client := r.client
	if client == nil {
		client = &http.Client{}
	}

	req, err := http.NewRequest(method,
		fmt.Sprintf("http://%s:%d%s", r.Server, r.Port, path), body)
	if err != nil {
		return nil, err
	}

	if json {
		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("Accept", "application/json")
	} else {
		req.Header.Add("Content-Type", "text/plain")
		req.Header.Add("Accept", "text/plain")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || 299 < resp.StatusCode {
		defer resp.Body.Close()
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("daemon replied %d: %s", resp.StatusCode,
			strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}

// printReply prints the daemon's reply to path
func (r *Runner) printReply(method, path string) error {

	resp, err := r.apiCall(method, path, false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	msg, err := ioutil.ReadAll(resp)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", strings.TrimRight(string(msg), "\n"))
	return nil
}

func getExtension(file string) string {
	return strings.TrimPrefix(filepath.Ext(file), ".")
}
