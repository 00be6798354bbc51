// Package transport defines the secure-transport collaborator used to
// deliver reconciliation output, and the periodic delivery cycle that
// drives it. Transport internals (credentials, encryption) are owned by
// the client implementation, not this engine.
package transport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Client is the outbound surface of the remote transport. The delivery
// cycle only pushes exports; inbound files arrive through the watcher.
type Client interface {
	Upload(localPath, remoteDir string) error
}

// LocalClient is a filesystem-backed Client used for local deployments
// and tests; the remote directory is a mounted path.
type LocalClient struct{}

func (c *LocalClient) Upload(localPath, remoteDir string) error {
	if err := os.MkdirAll(remoteDir, 0o755); err != nil {
		return err
	}
	return copyFile(localPath, filepath.Join(remoteDir, filepath.Base(localPath)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Sync()
}
