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
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Destination is the result of parsing a destination URL (spec §6.1): either
// a FileBasedDataStore, a BulkStorageDataStore, or neither when the caller
// asked for "None" (offsite-only: stage locally, don't deliver).
type Destination struct {
	File FileBasedDataStore
	Bulk BulkStorageDataStore
	None bool
}

// ParseDestinationURL implements spec §6.1's destination URL grammar.
func ParseDestinationURL(raw string) (Destination, error) {
	if strings.EqualFold(raw, "none") {
		return Destination{None: true}, nil
	}

	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		switch scheme {
		case "sftp":
			store, err := parseSFTPURL(rest)
			if err != nil {
				return Destination{}, err
			}
			return Destination{File: store}, nil
		case "fast_glacier":
			store, err := parseFastGlacierURL(rest)
			if err != nil {
				return Destination{}, err
			}
			return Destination{Bulk: store}, nil
		case "s3_browser":
			store, err := parseS3BrowserURL(rest)
			if err != nil {
				return Destination{}, err
			}
			return Destination{Bulk: store}, nil
		default:
			return Destination{}, fmt.Errorf("datastore: unsupported destination scheme %q", scheme)
		}
	}

	path := raw
	nonLocal := false
	if rest, ok := strings.CutPrefix(path, "[nonlocal]"); ok {
		nonLocal, path = true, rest
	}

	store, err := NewLocalFileSystemDataStore(path)
	if err != nil {
		return Destination{}, err
	}
	store.NonLocal = nonLocal
	return Destination{File: store}, nil
}

// parseSFTPURL parses ftp://<user>:<password|private-key-path>@<host>[:<port>][/<working_dir>]
// (spec §6.1). A secret that names a readable file is treated as a PEM
// private key; otherwise it is used as a plain password.
func parseSFTPURL(rest string) (*SFTPFileDataStore, error) {
	u, err := url.Parse("ftp://" + rest)
	if err != nil {
		return nil, fmt.Errorf("datastore: invalid sftp URL: %w", err)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("datastore: sftp URL requires a user")
	}

	secret, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "22"
	}
	workingDir := strings.TrimPrefix(u.Path, "/")
	if workingDir == "" {
		workingDir = "."
	}

	opts := SFTPOptions{
		User:       u.User.Username(),
		Host:       host,
		Port:       port,
		WorkingDir: workingDir,
	}
	if data, err := os.ReadFile(secret); err == nil {
		opts.PrivateKeyPEM = data
	} else {
		opts.Password = secret
	}

	return NewSFTPFileDataStore(opts)
}

func parseFastGlacierURL(rest string) (*FastGlacierDataStore, error) {
	account, region, dir, err := splitAccountHostDir(rest)
	if err != nil {
		return nil, fmt.Errorf("datastore: invalid fast_glacier URL: %w", err)
	}
	return &FastGlacierDataStore{Account: account, Region: region, Dir: dir}, nil
}

func parseS3BrowserURL(rest string) (*S3BrowserDataStore, error) {
	account, bucket, dir, err := splitAccountHostDir(rest)
	if err != nil {
		return nil, fmt.Errorf("datastore: invalid s3_browser URL: %w", err)
	}
	return &S3BrowserDataStore{Account: account, Bucket: bucket, Dir: dir}, nil
}

// splitAccountHostDir parses "<account>@<host>[/<dir>]", shared by the two
// bulk-store URL schemes of spec §6.1.
func splitAccountHostDir(rest string) (account, host, dir string, err error) {
	account, hostAndDir, ok := strings.Cut(rest, "@")
	if !ok || account == "" {
		return "", "", "", fmt.Errorf("missing account before '@'")
	}
	host, dir, _ = strings.Cut(hostAndDir, "/")
	if host == "" {
		return "", "", "", fmt.Errorf("missing host/region/bucket after '@'")
	}
	return account, host, dir, nil
}
