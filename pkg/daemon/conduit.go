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
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

const commandLength = 4

var helloDaemon = []byte("hlod")
var helloBox = []byte("hlob")

// openPort is a variable so that tests can swap in a pipe
var openPort = func(p string) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

// conduit is the serial connection to the button box. Receiving happens
// on the daemon's listen loop only, sending may happen concurrently.
type conduit struct {
	port   io.ReadWriteCloser
	sendMu sync.Mutex
}

func newConduit(port string) (*conduit, error) {
	p, err := openPort(port)
	if err != nil {
		return nil, err
	}
	return &conduit{port: p}, nil
}

func (c *conduit) close() error {
	return c.port.Close()
}

func (c *conduit) syncOnHello() error {

	log.Info("syncing with button box")
	hello := make([]byte, commandLength)

	for !bytes.Equal(hello, helloBox) {
		shiftLeft(hello)
		if err := c.receive(hello[len(hello)-1:]); err != nil {
			return err
		}
	}

	if err := c.send(helloDaemon); err != nil {
		return fmt.Errorf("error sending daemon hello: %v", err)
	}

	log.Info("synced with button box")
	return nil
}

func (c *conduit) receive(data []byte) error {
	_, err := io.ReadFull(c.port, data)
	return err
}

func (c *conduit) send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	_, err := c.port.Write(data)
	return err
}

func (c *conduit) receiveCommand() (*command, error) {
	data := make([]byte, commandLength)
	if err := c.receive(data); err != nil {
		return nil, err
	}
	return newCommand(data), nil
}

func shiftLeft(buf []byte) {
	if len(buf) > 1 {
		for ix := 0; ix < len(buf)-1; ix++ {
			buf[ix] = buf[ix+1]
		}
	}
}
