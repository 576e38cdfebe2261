package publish

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"vodcutter/logger"
)

// SFTPPublisher copies the VOD to a remote host whose RemoteDir is fronted
// by an HTTP server at BaseURL.
type SFTPPublisher struct {
	Host      string
	Port      string
	User      string
	Password  string
	KeyFile   string
	RemoteDir string
	BaseURL   string
}

func (p *SFTPPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	var auths []ssh.AuthMethod
	if p.KeyFile != "" {
		keyBytes, err := os.ReadFile(p.KeyFile)
		if err != nil {
			return "", fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return "", fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if p.Password != "" {
		auths = append(auths, ssh.Password(p.Password))
	} else {
		return "", fmt.Errorf("no SFTP auth method configured")
	}

	config := &ssh.ClientConfig{
		User:            p.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(p.Host, p.Port)
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	name := objectName(localPath)
	remotePath := path.Join(p.RemoteDir, name)
	logger.Infof("Publishing VOD via SFTP: %s -> %s:%s", localPath, p.Host, remotePath)

	if err := mkdirAllSFTP(sftpClient, path.Dir(remotePath)); err != nil {
		return "", fmt.Errorf("ensure remote dir: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open VOD: %w", err)
	}
	defer src.Close()

	dst, err := sftpClient.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close remote file %s: %w", remotePath, err)
	}

	return p.BaseURL + "/" + name, nil
}

// mkdirAllSFTP mimics os.MkdirAll over SFTP, creating each path segment.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, p := range strings.Split(dir, "/") {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if os.IsNotExist(err) {
				if err := client.Mkdir(cur); err != nil {
					return fmt.Errorf("mkdir %s: %w", cur, err)
				}
			} else {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
		}
	}
	return nil
}
