/*
File Name:  Exit.go
*/

package mesh

// Exit codes signal why a meshcore-based application exited. Clients are
// encouraged to log additional details in a log file.
const (
	ExitSuccess           = 0 // Actually never used as a process exit code.
	ExitErrorConfigAccess = 1 // Error accessing the config file.
	ExitErrorConfigParse  = 2 // Error parsing the config file.
	ExitErrorLogInit      = 3 // Error initializing the log file.
	ExitErrorTransport    = 4 // Error starting the configured transport.
	ExitGraceful          = 9 // Graceful shutdown.
)
