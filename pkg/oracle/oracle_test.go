package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFsck = `Connecting to namenode via http://nn1:9870
FSCK started by hdfs (auth:SIMPLE) from /10.0.0.1 for path /u/alice/x at Wed Jul 29 12:00:00 UTC 2026
/u/alice/x 134217728 bytes, replicated: replication=3, 1 block(s):  OK
0. BP-123:blk_1073839025_12345 len=134217728 Live_repl=3  [DatanodeInfoWithStorage[10.0.0.1:9866,DS-aaa,DISK], DatanodeInfoWithStorage[10.0.0.2:9866,DS-bbb,DISK], DatanodeInfoWithStorage[10.0.0.3:9866,DS-ccc,DISK]]

Status: HEALTHY
`

func TestParse_HappyPath(t *testing.T) {
	blocklists, err := Parse(strings.NewReader(sampleFsck))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"blk_1073839025"}, blocklists["10.0.0.1"])
	assert.ElementsMatch(t, []string{"blk_1073839025"}, blocklists["10.0.0.2"])
	assert.ElementsMatch(t, []string{"blk_1073839025"}, blocklists["10.0.0.3"])
}

func TestParse_SkipsNonBlockLines(t *testing.T) {
	blocklists, err := Parse(strings.NewReader("Status: HEALTHY\nFSCK started...\n"))
	require.NoError(t, err)
	assert.Empty(t, blocklists)
}

func TestParse_MultipleBlocksAccumulate(t *testing.T) {
	input := "0. BP-1:blk_100_1 len=1 [DatanodeInfoWithStorage[10.0.0.1:9866,DS-a,DISK]]\n" +
		"1. BP-1:blk_200_1 len=1 [DatanodeInfoWithStorage[10.0.0.1:9866,DS-a,DISK]]\n"
	blocklists, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"blk_100", "blk_200"}, blocklists["10.0.0.1"])
}

func TestParse_TrimsWhitespace(t *testing.T) {
	input := "   0. BP-1:blk_100_1 len=1 [DatanodeInfoWithStorage[10.0.0.1:9866,DS-a,DISK]]   \n"
	blocklists, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"blk_100"}, blocklists["10.0.0.1"])
}
