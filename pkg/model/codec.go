// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package model

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"

	"gcodeviewer-go/pkg/gcode"
	"gcodeviewer-go/pkg/pool"
)

// Encode packs commands as zlib-compressed JSON, the same bytes that go
// on the wire when compression is enabled.
func Encode(cmds []*gcode.Command) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	zw := pool.GetZlibWriter(buf)
	defer pool.PutZlibWriter(zw)

	if err := json.NewEncoder(zw).Encode(cmds); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decode reverses Encode.
func Decode(data []byte) ([]*gcode.Command, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var cmds []*gcode.Command
	if err := json.NewDecoder(zr).Decode(&cmds); err != nil {
		return nil, err
	}
	// drain so the checksum is verified
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, err
	}
	return cmds, nil
}
