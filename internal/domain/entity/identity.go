package entity

import (
	"crypto/sha256"
	"encoding/hex"
)

// ImageIdentity отпечаток содержимого изображения (SHA-256 в hex).
// Пустое значение означает "изображение не загружено".
type ImageIdentity string

// NewImageIdentity считает отпечаток по байтам файла.
func NewImageIdentity(data []byte) ImageIdentity {
	sum := sha256.Sum256(data)
	return ImageIdentity(hex.EncodeToString(sum[:]))
}

// Short первые 12 символов, для логов
func (id ImageIdentity) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}
