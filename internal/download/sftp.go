// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ratazzi/hola/internal/herrors"
)

func sftpHostKeyCallback(auth *SSHAuth) (ssh.HostKeyCallback, error) {
	if auth == nil || auth.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(auth.KnownHostsPath)
	if err != nil {
		return nil, herrors.NewDownloadError("invalid known_hosts file", err.Error(), auth.KnownHostsPath, err)
	}
	return cb, nil
}

func sftpClientConfig(u *url.URL, auth *SSHAuth) (*ssh.ClientConfig, error) {
	user := u.User.Username()
	if user == "" {
		user = "root"
	}

	var methods []ssh.AuthMethod
	if auth != nil && auth.PrivateKeyPath != "" {
		keyData, err := os.ReadFile(auth.PrivateKeyPath)
		if err != nil {
			return nil, herrors.NewDownloadError("cannot read private key", err.Error(), auth.PrivateKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, herrors.NewDownloadError("invalid private key", err.Error(), auth.PrivateKeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if auth != nil && auth.Password != "" {
		methods = append(methods, ssh.Password(auth.Password))
	}
	if pw, ok := u.User.Password(); ok && len(methods) == 0 {
		methods = append(methods, ssh.Password(pw))
	}
	if len(methods) == 0 {
		return nil, herrors.NewDownloadError("no SSH credentials", "no private key or password provided", "", nil)
	}

	hostKeyCallback, err := sftpHostKeyCallback(auth)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func sftpAddr(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "22"
	}
	return host + ":" + port
}

func dialSFTP(req Request) (*ssh.Client, *sftp.Client, string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, nil, "", herrors.NewDownloadError("invalid URL", err.Error(), "", err)
	}

	var sshAuth *SSHAuth
	if req.Auth != nil {
		sshAuth = req.Auth.SSH
	}

	cfg, err := sftpClientConfig(u, sshAuth)
	if err != nil {
		return nil, nil, "", err
	}

	sshClient, err := ssh.Dial("tcp", sftpAddr(u), cfg)
	if err != nil {
		return nil, nil, "", herrors.NewDownloadError("connection failed", err.Error(), sftpAddr(u), err)
	}

	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, "", herrors.NewDownloadError("connection failed", err.Error(), "sftp subsystem negotiation failed", err)
	}

	return sshClient, sc, u.Path, nil
}

func (e *Engine) doSFTP(ctx context.Context, req Request) (*Response, error) {
	sshClient, sc, path, err := dialSFTP(req)
	if err != nil {
		return nil, err
	}
	defer sshClient.Close()
	defer sc.Close()

	switch req.Method {
	case MethodPut, MethodPost:
		f, err := sc.Create(path)
		if err != nil {
			return nil, herrors.NewDownloadError("remote create failed", err.Error(), path, err)
		}
		defer f.Close()
		if _, err := f.Write(req.Body); err != nil {
			return nil, herrors.NewDownloadError("remote write failed", err.Error(), path, err)
		}
		return &Response{Status: 200}, nil
	default:
		f, err := sc.Open(path)
		if err != nil {
			return nil, herrors.NewDownloadError("remote open failed", err.Error(), path, err)
		}
		defer f.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, f); err != nil {
			return nil, herrors.NewDownloadError("remote read failed", err.Error(), path, err)
		}
		return &Response{Status: 200, Body: buf.Bytes()}, nil
	}
}

func (e *Engine) streamSFTP(ctx context.Context, req Request, write WriteFunc, progress ProgressFunc) (*Response, error) {
	sshClient, sc, path, err := dialSFTP(req)
	if err != nil {
		return nil, err
	}
	defer sshClient.Close()
	defer sc.Close()

	f, err := sc.Open(path)
	if err != nil {
		return nil, herrors.NewDownloadError("remote open failed", err.Error(), path, err)
	}
	defer f.Close()

	var total *uint64
	if fi, err := f.Stat(); err == nil {
		t := uint64(fi.Size())
		total = &t
	}

	var written uint64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, rerr := f.Read(buf)
		if n > 0 {
			if werr := write(buf[:n]); werr != nil {
				return nil, herrors.NewDownloadError("write failed", werr.Error(), "", werr)
			}
			written += uint64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, herrors.NewDownloadError("remote read failed", rerr.Error(), path, rerr)
		}
	}

	return &Response{Status: 200, Headers: map[string][]string{
		"Content-Length": {strconv.FormatUint(written, 10)},
	}}, nil
}
