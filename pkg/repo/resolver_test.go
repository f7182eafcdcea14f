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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "takes"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "takes", "a.raw"), []byte{1, 2, 3}, 0644))

	rc, err := Resolve("repo://takes/a.raw", dir)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = Resolve("repo://takes/missing.raw", dir)
	assert.Error(t, err)

	_, err = Resolve("repo://../escape.raw", dir)
	assert.Error(t, err)

	_, err = Resolve("repo://takes/a.raw", "")
	assert.Error(t, err)

	_, err = Resolve("/takes/a.raw", dir)
	assert.Error(t, err)
}

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("repo://x.wav"))
	assert.False(t, IsReference("x.wav"))
}
