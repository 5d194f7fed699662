package logs

import logging "github.com/ipfs/go-log/v2"

// SetAllLoggers sets the given level on every registered logger while
// keeping the chattiest libp2p subsystems quieter.
func SetAllLoggers(level logging.LogLevel) {
	logging.SetAllLoggers(level)
	_ = logging.SetLogLevel("swarm2", "WARN")
	_ = logging.SetLogLevel("connmgr", "WARN")
	_ = logging.SetLogLevel("pubsub", "WARN")
	_ = logging.SetLogLevel("net/identify", "ERROR")
	_ = logging.SetLogLevel("nat", "INFO")
}
