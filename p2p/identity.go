package p2p

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/natefinch/atomic"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/filesystem"
)

const keyFilename = "p2p.key"

type identityInfo struct {
	Key []byte `json:"key"`
	ID  string `json:"id"`
}

// EnsureIdentity loads the identity key from dir, or generates and persists a new one.
// The address of the node is derived from the key, so it is stable across sessions.
func EnsureIdentity(dir string) (crypto.PrivKey, error) {
	if err := os.MkdirAll(dir, filesystem.OwnerReadWriteExec); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, keyFilename)
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		return decodeIdentity(buf)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}
	id, err := peer.IDFromPrivateKey(key)
	if err != nil {
		return nil, err
	}
	buf, err = codec.Encode(identityInfo{Key: raw, ID: id.String()})
	if err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return key, nil
}

func decodeIdentity(buf []byte) (crypto.PrivKey, error) {
	var info identityInfo
	if err := codec.Decode(buf, &info); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	key, err := crypto.UnmarshalPrivateKey(info.Key)
	if err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	id, err := peer.IDFromPrivateKey(key)
	if err != nil {
		return nil, err
	}
	if id.String() != info.ID {
		return nil, fmt.Errorf("identity key doesn't match stored id %s", info.ID)
	}
	return key, nil
}

// AddressOf returns the address derived from the identity key.
func AddressOf(key crypto.PrivKey) (types.Address, error) {
	id, err := peer.IDFromPrivateKey(key)
	if err != nil {
		return "", err
	}
	return types.Address(id.String()), nil
}
