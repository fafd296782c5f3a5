// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build cgo

package mediacache

import (
	"bytes"
	"image"

	cwebp "go.mau.fi/webp"
)

func init() {
	encodeThumbnail = func(img image.Image) ([]byte, error) {
		var buf bytes.Buffer
		if err := cwebp.Encode(&buf, img, &cwebp.Options{Quality: 80}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
