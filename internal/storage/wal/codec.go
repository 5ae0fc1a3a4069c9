package wal

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/crypto/adaptive"
)

type wirePayload struct {
	Timestamp int64  `json:"ts"`
	TokenID   string `json:"tid"`
	Version   uint64 `json:"ver,omitempty"`

	Token *domain.Token `json:"token,omitempty"`

	// SealedToken is base64 of adaptive.Cipher.Encrypt(tokenJSON).
	SealedToken string `json:"enc_token,omitempty"`
}

func encodeEntryFrame(e *Entry, cipher adaptive.Cipher) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	if e.OpType == OpTypeUnspecified {
		return nil, ErrInvalidEntryType
	}
	if e.OpType != OpTypeDelete && e.Token == nil {
		return nil, fmt.Errorf("wal: missing token for op %d", e.OpType)
	}

	p := wirePayload{
		Timestamp: e.Timestamp,
		TokenID:   e.TokenID,
		Version:   e.Version,
	}

	if e.OpType != OpTypeDelete {
		if cipher == nil {
			p.Token = e.Token
		} else {
			plain, err := json.Marshal(e.Token)
			if err != nil {
				return nil, fmt.Errorf("wal: marshal token: %w", err)
			}
			sealed, err := cipher.Encrypt(plain, nil)
			if err != nil {
				return nil, fmt.Errorf("wal: encrypt token: %w", err)
			}
			p.SealedToken = base64.StdEncoding.EncodeToString(sealed)
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	typeByte := []byte{byte(e.OpType)}
	crc := crc32.ChecksumIEEE(append(typeByte, payload...))

	// Length = CRC(4) + Type(1) + Payload.
	length := uint32(4 + 1 + len(payload))

	out := make([]byte, 0, 4+int(length))
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], length)
	out = append(out, header[:]...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, typeByte...)
	out = append(out, payload...)
	return out, nil
}

func decodeEntryFrame(frame []byte, cipher adaptive.Cipher) (*Entry, error) {
	// Frame layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	typeByte := frame[4]
	payload := frame[5:]

	gotCRC := crc32.ChecksumIEEE(append([]byte{typeByte}, payload...))
	if gotCRC != wantCRC {
		return nil, ErrChecksumMismatch
	}

	var p wirePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("wal: unmarshal payload: %w", err)
	}

	op := OpType(typeByte)
	switch op {
	case OpTypeCreate, OpTypeUpdate, OpTypeDelete:
	default:
		return nil, ErrInvalidEntryType
	}

	out := &Entry{
		OpType:    op,
		Timestamp: p.Timestamp,
		TokenID:   p.TokenID,
		Version:   p.Version,
	}

	if op == OpTypeDelete {
		return out, nil
	}

	if p.Token != nil {
		out.Token = p.Token
		return out, nil
	}

	if p.SealedToken == "" {
		return nil, fmt.Errorf("wal: missing token payload")
	}
	if cipher == nil {
		return nil, fmt.Errorf("wal: sealed entry requires cipher")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("wal: decode sealed token: %w", err)
	}
	plain, err := cipher.Decrypt(ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wal: decrypt token: %w", err)
	}

	var token domain.Token
	if err := json.Unmarshal(plain, &token); err != nil {
		return nil, fmt.Errorf("wal: unmarshal token: %w", err)
	}
	out.Token = &token
	return out, nil
}
