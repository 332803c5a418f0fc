/*
Package oracle implements the block-location oracle: an external
subprocess that, given a DFS path, reports which data nodes hold which
blocks (spec §4.3 step 3, §6).

Production invokes "hdfs fsck -files -blocks -locations" the way the
teacher's pkg/health ExecChecker shells out to a command and captures
its output. The parser consumes the subprocess's stdout as a lazy,
finite, non-restartable line stream (spec §9's redesign away from an
iterator-of-subprocess-lines) rather than buffering the whole report,
since fsck output on a large file can run to many thousands of lines.
*/
package oracle
