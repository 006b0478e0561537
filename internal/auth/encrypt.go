package auth

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"errors"
)

// Token payloads travel as AES/ECB/PKCS5 ciphertext, Base64 encoded, with
// the configured secret's UTF-8 bytes as the key.

func Encrypt(plain, secret string) (string, error) {
	block, err := aes.NewCipher([]byte(secret))
	if err != nil {
		return "", err
	}
	src := pkcs5Padding([]byte(plain), block.BlockSize())
	out := make([]byte, len(src))
	bs := block.BlockSize()
	for i := 0; i < len(src); i += bs {
		block.Encrypt(out[i:i+bs], src[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func Decrypt(contentBase64, secret string) (string, error) {
	block, err := aes.NewCipher([]byte(secret))
	if err != nil {
		return "", err
	}
	enc, err := base64.StdEncoding.DecodeString(contentBase64)
	if err != nil {
		return "", err
	}
	if len(enc) == 0 || len(enc)%block.BlockSize() != 0 {
		return "", errors.New("invalid ciphertext size")
	}

	bs := block.BlockSize()
	out := make([]byte, len(enc))
	for i := 0; i < len(enc); i += bs {
		block.Decrypt(out[i:i+bs], enc[i:i+bs])
	}
	unpadded, err := pkcs5UnPadding(out)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs5Padding(src []byte, blockSize int) []byte {
	padding := blockSize - len(src)%blockSize
	return append(src, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs5UnPadding(src []byte) ([]byte, error) {
	length := len(src)
	if length == 0 {
		return nil, errors.New("invalid padding size")
	}
	unpadding := int(src[length-1])
	if unpadding <= 0 || unpadding > length {
		return nil, errors.New("invalid padding")
	}
	for i := 0; i < unpadding; i++ {
		if src[length-1-i] != byte(unpadding) {
			return nil, errors.New("invalid padding")
		}
	}
	return src[:length-unpadding], nil
}
