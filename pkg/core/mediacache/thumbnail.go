// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mediacache

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "go.mau.fi/goheif"
	_ "go.mau.fi/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ThumbnailMaxDimension bounds the longest edge of a generated thumbnail.
const ThumbnailMaxDimension = 512

// blurhashComponentsX/Y are the AC component counts passed to
// blurhash.Encode; 4x3 matches the component count Matrix clients
// conventionally use for message attachments.
const (
	blurhashComponentsX = 4
	blurhashComponentsY = 3
)

// decode sniffs data's MIME type with mimetype (so a server that lies
// about Content-Type doesn't break decoding) and decodes it, relying on
// the blank-imported format packages (gif/jpeg/png plus the teacher's
// heif/webp/bmp/tiff decoders) having registered themselves with
// image.Decode.
func decode(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	log.Trace().Str("mime", mtype.String()).Msg("Decoded media for thumbnailing")
	return img, nil
}

// encodeThumbnail re-encodes a resized image into its final on-disk form.
// thumbnail_cwebp.go swaps this for a cwebp-backed encoder under cgo
// builds; thumbnail_fallback.go provides the plain-PNG default otherwise,
// mirroring the teacher's init()-based encoder-swap split for its own
// cgo-optional media encoder.
var encodeThumbnail func(image.Image) ([]byte, error)

// generateThumbnail downsizes data to fit within ThumbnailMaxDimension and
// re-encodes it with whichever encoder this build registered.
func generateThumbnail(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	resized := imaging.Fit(img, ThumbnailMaxDimension, ThumbnailMaxDimension, imaging.Lanczos)
	return encodeThumbnail(resized)
}

// encodeBlurhash computes a placeholder hash string for an already-fetched
// image blob, swallowing decode errors: a missing placeholder is cosmetic,
// never worth failing the whole fetch over.
func encodeBlurhash(data []byte) string {
	img, err := decode(data)
	if err != nil {
		return ""
	}
	hash, err := blurhash.Encode(blurhashComponentsX, blurhashComponentsY, img)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to compute blurhash placeholder")
		return ""
	}
	return hash
}
