package jobstore

import (
	"io"
	"os"

	"github.com/colinmarc/hdfs/v2"
)

// hdfsClient adapts *hdfs.Client to DFSClient. The underlying library's
// Open/CreateFile return concrete *hdfs.FileReader/*hdfs.FileWriter
// types rather than the stdlib io interfaces, so this thin wrapper is
// needed for DFSClient's method set to match exactly.
type hdfsClient struct {
	*hdfs.Client
}

// NewHDFSClient dials namenode and returns a DFSClient backed by the
// real HDFS client library.
func NewHDFSClient(namenode string) (DFSClient, error) {
	c, err := hdfs.New(namenode)
	if err != nil {
		return nil, err
	}
	return hdfsClient{Client: c}, nil
}

func (c hdfsClient) CreateFile(path string, replication int, blockSize int64, perm os.FileMode) (io.WriteCloser, error) {
	return c.Client.CreateFile(path, replication, blockSize, perm)
}

func (c hdfsClient) Open(path string) (io.ReadCloser, error) {
	return c.Client.Open(path)
}

func (c hdfsClient) ReadDir(dirname string) ([]os.FileInfo, error) {
	return c.Client.ReadDir(dirname)
}
