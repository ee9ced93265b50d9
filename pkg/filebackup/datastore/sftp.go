// Copyright 2025 Oppie Thunder Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// SFTPOptions configures an SFTPFileDataStore (spec §6.1's sftp scheme).
type SFTPOptions struct {
	User       string
	Host       string
	Port       string
	WorkingDir string

	// Exactly one of Password or PrivateKeyPEM is used: a secret that
	// resolved to a readable file is a PEM private key, otherwise a
	// password (spec §6.1).
	Password      string
	PrivateKeyPEM []byte

	HostKeyCallback ssh.HostKeyCallback
}

// SFTPFileDataStore is a FileBasedDataStore backed by an SSH/SFTP session
// (spec §4.1, §6.1). Remote, so ExecuteInParallel is false and BytesAvailable
// is unknown (no portable SFTP quota query).
type SFTPFileDataStore struct {
	client     *sftp.Client
	conn       *ssh.Client
	workingDir string
}

// NewSFTPFileDataStore dials host:port and opens an SFTP session rooted at
// opts.WorkingDir.
func NewSFTPFileDataStore(opts SFTPOptions) (*SFTPFileDataStore, error) {
	var auth ssh.AuthMethod
	if len(opts.PrivateKeyPEM) > 0 {
		signer, err := ssh.ParsePrivateKey(opts.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("datastore: parse sftp private key: %w", err)
		}
		auth = ssh.PublicKeys(signer)
	} else {
		auth = ssh.Password(opts.Password)
	}

	hostKeyCallback := opts.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(opts.Host, opts.Port), config)
	if err != nil {
		return nil, fmt.Errorf("datastore: sftp dial %s: %w", opts.Host, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("datastore: sftp session: %w", err)
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = "."
	}
	if err := client.MkdirAll(workingDir); err != nil {
		client.Close()
		conn.Close()
		return nil, fmt.Errorf("datastore: sftp mkdir working dir: %w", err)
	}

	return &SFTPFileDataStore{client: client, conn: conn, workingDir: workingDir}, nil
}

// Close releases the underlying SFTP session and SSH connection.
func (s *SFTPFileDataStore) Close() error {
	err := s.client.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *SFTPFileDataStore) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.workingDir, p)
}

// ValidateBackupInputs is a no-op: a remote store can never overlap a local
// source path.
func (s *SFTPFileDataStore) ValidateBackupInputs([]string) error { return nil }

// SnapshotPathToDestPath applies the same flattening rules as the local
// store (spec §6.4); the rule is store-agnostic.
func (s *SFTPFileDataStore) SnapshotPathToDestPath(absPath string) string {
	return FlattenSnapshotPath(absPath)
}

// BytesAvailable is unknown over SFTP: no portable quota query exists.
func (s *SFTPFileDataStore) BytesAvailable() (int64, bool) { return 0, false }

func (s *SFTPFileDataStore) GetWorkingDir() string { return s.workingDir }

func (s *SFTPFileDataStore) SetWorkingDir(p string) error {
	s.workingDir = p
	return s.client.MkdirAll(p)
}

func (s *SFTPFileDataStore) ItemType(p string) (types.ItemType, error) {
	fi, err := s.client.Lstat(s.abs(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, fs.ErrNotExist) {
			return types.ItemNone, nil
		}
		return types.ItemNone, err
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return types.ItemSymLink, nil
	case fi.IsDir():
		return types.ItemDir, nil
	default:
		return types.ItemFile, nil
	}
}

func (s *SFTPFileDataStore) FileSize(p string) (int64, error) {
	fi, err := s.client.Stat(s.abs(p))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *SFTPFileDataStore) RemoveDir(p string) error {
	return s.client.RemoveAll(s.abs(p))
}

func (s *SFTPFileDataStore) RemoveFile(p string) error {
	return s.client.Remove(s.abs(p))
}

func (s *SFTPFileDataStore) MakeDirs(p string) error {
	return s.client.MkdirAll(s.abs(p))
}

func (s *SFTPFileDataStore) Open(_ context.Context, p string, flag int) (io.ReadWriteCloser, error) {
	return s.client.OpenFile(s.abs(p), flag)
}

// Rename replaces any existing entry at newPath, since sftp.Client.Rename
// fails if newPath already exists.
func (s *SFTPFileDataStore) Rename(oldPath, newPath string) error {
	np := s.abs(newPath)
	if fi, err := s.client.Lstat(np); err == nil {
		if fi.IsDir() {
			if err := s.client.RemoveAll(np); err != nil {
				return err
			}
		} else if err := s.client.Remove(np); err != nil {
			return err
		}
	}
	return s.client.Rename(s.abs(oldPath), np)
}

func (s *SFTPFileDataStore) Walk(ctx context.Context, root string) (<-chan WalkEntry, <-chan error) {
	entries := make(chan WalkEntry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		base := s.abs(root)
		byDir := map[string]*WalkEntry{}
		var order []string

		walker := s.client.Walk(base)
		for walker.Step() {
			if err := walker.Err(); err != nil {
				errs <- err
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			p := walker.Path()
			if p == base {
				continue
			}
			dir := path.Dir(p)
			entry, ok := byDir[dir]
			if !ok {
				entry = &WalkEntry{Root: dir}
				byDir[dir] = entry
				order = append(order, dir)
			}
			info := walker.Stat()
			if info.IsDir() {
				entry.Dirs = append(entry.Dirs, path.Base(p))
			} else {
				entry.Files = append(entry.Files, path.Base(p))
			}
		}

		for _, dir := range order {
			select {
			case entries <- *byDir[dir]:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return entries, errs
}

// ExecuteInParallel is false: SFTP sessions serialize over one TCP
// connection, so concurrent workers buy nothing (spec §5).
func (s *SFTPFileDataStore) ExecuteInParallel() bool { return false }

var _ FileBasedDataStore = (*SFTPFileDataStore)(nil)
