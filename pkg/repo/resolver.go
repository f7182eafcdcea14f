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

package repo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const PrefixRepoRef = "repo://"

func newFileSource(file string) (*fileSource, error) {
	if f, err := os.Open(file); err != nil {
		return nil, err
	} else {
		return &fileSource{file: f, reader: bufio.NewReader(f)}, nil
	}
}

type fileSource struct {
	file   *os.File
	reader io.Reader
}

func (fs *fileSource) Read(p []byte) (n int, err error) {
	return fs.reader.Read(p)
}

func (fs *fileSource) Close() error {
	return fs.file.Close()
}

/*
Resolve opens the audio file a reference points to. References have the
form repo://{path}, where path is relative to the sample repository. Paths
leaving the repository are rejected.
*/
func Resolve(ref, repo string) (io.ReadCloser, error) {

	log.WithFields(log.Fields{
		"reference":  ref,
		"repository": repo,
	}).Debug("resolving ref")

	if !IsReference(ref) {
		return nil, fmt.Errorf("not a repository reference: %s", ref)
	}

	if repo == "" {
		return nil, fmt.Errorf("sample repository is not enabled")
	}

	base, err := filepath.Abs(repo)
	if err != nil {
		return nil, err
	}

	file := filepath.Join(base, ref[len(PrefixRepoRef):])
	if !strings.HasPrefix(file, base+string(filepath.Separator)) {
		return nil, fmt.Errorf("reference outside of repository: %s", ref)
	}

	return newFileSource(file)
}

func IsReference(r string) bool {
	return strings.HasPrefix(r, PrefixRepoRef)
}
