// Package cipher encrypts byte sequences to a namespace keypair.
//
// Records are split into fixed-size chunks, each sealed as an anonymous NaCl
// box (ephemeral X25519 + XSalsa20-Poly1305) to the keypair's public key:
//
//	magic   "\x00SCFG"
//	version 0x01
//	repeat: uint32 BE length | sealed chunk
//
// The plaintext is framed as uint64 BE length | data | zero padding up to a
// multiple of ChunkSize, so ciphertext size only reveals the plaintext length
// rounded up to a chunk boundary. Every sealed chunk starts with a random
// record ID, its index and the chunk count, which binds chunks to their
// record and position.
package cipher

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"

	"github.com/systmms/sealcfg/internal/secure"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keys"
)

// ChunkSize is the framed plaintext carried by every sealed chunk.
const ChunkSize = 4096

// Version is the record format version written by Encrypt.
const Version byte = 0x01

const magic = "\x00SCFG"

// HeaderSize is the length of the magic plus version byte.
const HeaderSize = len(magic) + 1

const (
	lengthPrefix = 8
	chunkPrefix  = 4
	recordIDSize = 16
	chunkHeader  = recordIDSize + 4 + 4

	// SealedChunkSize is the only valid value of a chunk length prefix.
	SealedChunkSize = chunkHeader + ChunkSize + box.AnonymousOverhead
)

// Encrypt seals plaintext to kp's public key. Encrypting the same input twice
// yields different output.
func Encrypt(kp *keys.Keypair, plaintext []byte) ([]byte, error) {
	framed := frame(plaintext)
	defer secure.Wipe(framed)

	var recordID [recordIDSize]byte
	if _, err := io.ReadFull(rand.Reader, recordID[:]); err != nil {
		return nil, fmt.Errorf("generate record id: %w", err)
	}

	chunks := len(framed) / ChunkSize
	out := make([]byte, 0, SealedLen(len(plaintext)))
	out = append(out, magic...)
	out = append(out, Version)

	pub := kp.PublicKey()
	chunk := make([]byte, chunkHeader+ChunkSize)
	defer secure.Wipe(chunk)
	for i := 0; i < chunks; i++ {
		copy(chunk, recordID[:])
		binary.BigEndian.PutUint32(chunk[recordIDSize:], uint32(i))
		binary.BigEndian.PutUint32(chunk[recordIDSize+4:], uint32(chunks))
		copy(chunk[chunkHeader:], framed[i*ChunkSize:(i+1)*ChunkSize])

		out = binary.BigEndian.AppendUint32(out, SealedChunkSize)
		var err error
		out, err = box.SealAnonymous(out, chunk, pub, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("seal chunk %d: %w", i, err)
		}
	}
	return out, nil
}

// Decrypt opens a record produced by Encrypt with kp's private key. A record
// that is malformed, truncated, reordered, tampered with or sealed to another
// key fails with cfgerrors.ErrDecrypt.
func Decrypt(kp *keys.Keypair, ciphertext []byte) ([]byte, error) {
	subject := kp.Namespace()

	body, err := checkHeader(ciphertext)
	if err != nil {
		return nil, cfgerrors.Decrypt(subject, err)
	}

	priv, err := kp.OpenPrivate()
	if err != nil {
		return nil, cfgerrors.Decrypt(subject, err)
	}
	defer priv.Destroy()

	pub := kp.PublicKey()
	framed := make([]byte, 0, len(body)/(chunkPrefix+SealedChunkSize)*ChunkSize)
	defer func() { secure.Wipe(framed) }()
	chunk := make([]byte, 0, chunkHeader+ChunkSize)
	defer func() { secure.Wipe(chunk) }()

	var recordID []byte
	var total uint32
	index := uint32(0)
	for ; len(body) > 0; index++ {
		if len(body) < chunkPrefix {
			return nil, cfgerrors.Decrypt(subject, fmt.Errorf("chunk %d: truncated length prefix", index))
		}
		if size := binary.BigEndian.Uint32(body); size != SealedChunkSize {
			return nil, cfgerrors.Decrypt(subject, fmt.Errorf("chunk %d: invalid length %d", index, size))
		}
		body = body[chunkPrefix:]
		if len(body) < SealedChunkSize {
			return nil, cfgerrors.Decrypt(subject, fmt.Errorf("chunk %d: truncated", index))
		}

		var ok bool
		chunk, ok = box.OpenAnonymous(chunk[:0], body[:SealedChunkSize], pub, priv.ByteArray32())
		if !ok {
			return nil, cfgerrors.Decrypt(subject, fmt.Errorf("chunk %d: authentication failed", index))
		}
		body = body[SealedChunkSize:]

		if index == 0 {
			recordID = append([]byte(nil), chunk[:recordIDSize]...)
			total = binary.BigEndian.Uint32(chunk[recordIDSize+4:])
		}
		if !bytes.Equal(chunk[:recordIDSize], recordID) ||
			binary.BigEndian.Uint32(chunk[recordIDSize:]) != index ||
			binary.BigEndian.Uint32(chunk[recordIDSize+4:]) != total {
			return nil, cfgerrors.Decrypt(subject, fmt.Errorf("chunk %d: out of sequence", index))
		}
		framed = append(framed, chunk[chunkHeader:]...)
	}
	if index != total {
		return nil, cfgerrors.Decrypt(subject, fmt.Errorf("record has %d of %d chunks", index, total))
	}

	plaintext, err := unframe(framed)
	if err != nil {
		return nil, cfgerrors.Decrypt(subject, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether data starts with the record magic.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(magic))
}

// SealedLen returns the ciphertext length Encrypt produces for n plaintext bytes.
func SealedLen(n int) int {
	return HeaderSize + chunkCount(n)*(chunkPrefix+SealedChunkSize)
}

func chunkCount(n int) int {
	return (lengthPrefix + n + ChunkSize - 1) / ChunkSize
}

func checkHeader(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("record too short")
	}
	if !IsEncrypted(data) {
		return nil, errors.New("missing record magic")
	}
	if v := data[len(magic)]; v != Version {
		return nil, fmt.Errorf("unsupported record version %d", v)
	}
	body := data[HeaderSize:]
	if len(body) == 0 {
		return nil, errors.New("record has no chunks")
	}
	return body, nil
}

func frame(plaintext []byte) []byte {
	framed := make([]byte, chunkCount(len(plaintext))*ChunkSize)
	binary.BigEndian.PutUint64(framed, uint64(len(plaintext)))
	copy(framed[lengthPrefix:], plaintext)
	return framed
}

func unframe(framed []byte) ([]byte, error) {
	n := binary.BigEndian.Uint64(framed)
	if n > uint64(len(framed)-lengthPrefix) {
		return nil, fmt.Errorf("framed length %d exceeds record", n)
	}
	if chunkCount(int(n))*ChunkSize != len(framed) {
		return nil, errors.New("record has extra chunks")
	}
	end := lengthPrefix + int(n)
	for _, b := range framed[end:] {
		if b != 0 {
			return nil, errors.New("non-zero padding")
		}
	}

	plaintext := make([]byte, n)
	copy(plaintext, framed[lengthPrefix:end])
	return plaintext, nil
}
